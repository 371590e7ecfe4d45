package engine

import "github.com/cwbudde/mandelzoom/internal/engine/quad"

// referenceOrbit holds the quad-precision reference orbit and its 64-bit
// cast, plus the step at which it first escapes. The two slices are
// parallel flat arrays of length max_iter+1: one quad complex and one
// float64 complex per orbit step.
type referenceOrbit struct {
	X       []quad.Complex // quad-precision orbit X_n
	XD      []complex128   // float64 cast of X_n
	RefIter int            // first n with |X_n|^2 > 4, or maxIter if never
	C0      complex128     // view-center c, for the per-pixel interior test
}

// maxReferenceIter bounds how large max_iter may grow before a reference
// orbit's allocation (a quad.Complex and a complex128 per step, 48 bytes
// total) becomes implausible for a single frame. 1<<25 caps one orbit
// at 1.5 GiB — far above any legitimate deep-zoom request (2^21 is a
// typical ceiling) — so a caller that passes a runaway value fails fast
// here instead of making two multi-gigabyte allocations.
const maxReferenceIter = 1 << 25

// buildReferenceOrbit iterates the view center in quad precision
// X_{n+1} = X_n^2 + c0, X_0 = 0, recording both the quad
// orbit and its float64 cast at every step, and the first escape index.
func buildReferenceOrbit(c0 quad.Complex, maxIter int) (*referenceOrbit, error) {
	if maxIter < 0 {
		return nil, newError(InvalidSize, "max_iter must be non-negative")
	}
	if maxIter > maxReferenceIter {
		return nil, newError(OutOfMemory, "max_iter exceeds reference orbit allocation limit")
	}

	orbit := &referenceOrbit{
		X:  make([]quad.Complex, maxIter+1),
		XD: make([]complex128, maxIter+1),
	}

	x := quad.Complex{} // X_0 = 0
	refIter := maxIter
	for n := 0; n <= maxIter; n++ {
		orbit.X[n] = x
		orbit.XD[n] = x.ToComplex128()

		if quad.Cmp(quad.AbsSq(x), quad.FromFloat64(4)) > 0 {
			refIter = n
			break
		}
		if n == maxIter {
			refIter = maxIter
			break
		}
		x = quad.AddC(quad.SqrC(x), c0)
	}

	orbit.RefIter = refIter
	orbit.C0 = c0.ToComplex128()
	return orbit, nil
}
