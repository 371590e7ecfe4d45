package engine

import (
	"math"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// sentinelFor returns the non-escape sentinel value for a given max_iter:
// a strictly negative value consumers test the sign of.
func sentinelFor(maxIter int) float64 {
	return -float64(maxIter)
}

// ln2 is math.Log(2), computed once via the standard library rather than a
// hand literal, per the engine's design notes.
var ln2 = math.Log(2)

// smoothIterations computes the smooth escape-time value
// mu = i + 1 - log(log(|Z|^2)) / log(2) for an escape recorded at index i
// with squared modulus modSq at that step.
func smoothIterations(i int, modSq float64) float64 {
	if modSq < 1 {
		// log(log(x)) is undefined below 1; escape radius guarantees
		// modSq is always comfortably above 1 in practice, but guard
		// against NaN propagation from pathological deltas.
		modSq = 1.0000001
	}
	return float64(i) + 1 - math.Log(math.Log(modSq))/ln2
}

// inCardioidOrBulb is the closed-form interior predicate for the main
// cardioid and the period-2 bulb, applied uniformly across every kernel
// (double, extended, perturbation) so no kernel shows a seam at the
// cardioid/bulb boundary that another kernel doesn't.
func inCardioidOrBulb(cr, ci float64) bool {
	q := (cr-0.25)*(cr-0.25) + ci*ci
	if q*(q+(cr-0.25)) < 0.25*ci*ci {
		return true // main cardioid
	}
	if (cr+1)*(cr+1)+ci*ci < 1.0/16.0 {
		return true // period-2 bulb
	}
	return false
}

// escapeRadiusScalar2 is the squared escape radius used by the double and
// extended scalar kernels. The larger-than-usual radius of 16 (256 when
// squared) yields noticeably smoother continuation.
const escapeRadiusScalar2 = 256.0

// escapeRadiusPerturbation2 is the squared escape radius used by the
// perturbation kernel, which is numerically more delicate and cannot
// afford the extra iterations past escape.
const escapeRadiusPerturbation2 = 4.0

// iterateDouble runs the scalar 64-bit escape-time kernel for one pixel.
func iterateDouble(cr, ci float64, maxIter int) float64 {
	if inCardioidOrBulb(cr, ci) {
		return sentinelFor(maxIter)
	}

	var zr, zi, zr2, zi2 float64
	for n := 0; n < maxIter; n++ {
		zi = 2*zr*zi + ci
		zr = zr2 - zi2 + cr
		zr2 = zr * zr
		zi2 = zi * zi
		if zr2+zi2 > escapeRadiusScalar2 {
			return smoothIterations(n+1, zr2+zi2)
		}
	}
	return sentinelFor(maxIter)
}

// iterateExtended runs the scalar double-double ("80-bit-class") escape-
// time kernel for one pixel. The interior test remains 64-bit: it is a
// fast rejection, not a precision-critical step.
func iterateExtended(cr, ci quad.Float, maxIter int) float64 {
	if inCardioidOrBulb(cr.Float64(), ci.Float64()) {
		return sentinelFor(maxIter)
	}

	var zr, zi, zr2, zi2 quad.Float
	two := quad.FromFloat64(2)
	radius := quad.FromFloat64(escapeRadiusScalar2)
	for n := 0; n < maxIter; n++ {
		zi = quad.Add(quad.Mul(two, quad.Mul(zr, zi)), ci)
		zr = quad.Add(quad.Sub(zr2, zi2), cr)
		zr2 = quad.Sqr(zr)
		zi2 = quad.Sqr(zi)
		modSq := quad.Add(zr2, zi2)
		if quad.Cmp(modSq, radius) > 0 {
			return smoothIterations(n+1, zr2.Float64()+zi2.Float64())
		}
	}
	return sentinelFor(maxIter)
}
