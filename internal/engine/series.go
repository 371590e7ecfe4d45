package engine

import "math"

// seriesCoefficient computes the scalar linear-approximation coefficient
// B at skip_iter, and skip_iter itself:
//
//	B <- 0; skip_iter <- 0
//	for n in 0..ref_iter:
//	  if |B|*r_view >= 1e-12: break
//	  skip_iter <- n
//	  B <- 2*X_n^d*B + 1
//
// This is a small stateful scan over a sequence that stops early once a
// threshold test trips, recording the last index before the break rather
// than after it. B is the value of the recurrence *at* skip_iter, which is
// the value the loop checked against the threshold before advancing, not
// the value left over after the final update, so it is tracked separately
// from the recurrence variable that keeps advancing.
func seriesCoefficient(xd []complex128, refIter int, rView float64) (b complex128, skipIter int) {
	var current complex128
	bAtSkip := current
	skipIter = 0

	limit := refIter
	if limit >= len(xd) {
		limit = len(xd) - 1
	}

	for n := 0; n <= limit; n++ {
		if cmplxAbs(current)*rView >= seriesThreshold {
			break
		}
		skipIter = n
		bAtSkip = current
		current = 2*xd[n]*current + 1
	}

	return bAtSkip, skipIter
}

func cmplxAbs(z complex128) float64 {
	re, im := real(z), imag(z)
	return math.Sqrt(re*re + im*im)
}
