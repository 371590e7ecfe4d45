package engine

import (
	"testing"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// c = 0 sits inside the main cardioid; c = -1 sits in the period-2 bulb.
// Both must be classified interior without iterating.
func TestInCardioidOrBulb_KnownInteriorPoints(t *testing.T) {
	if !inCardioidOrBulb(0.0, 0.0) {
		t.Error("origin should be inside the main cardioid")
	}
	if !inCardioidOrBulb(-1.0, 0.0) {
		t.Error("(-1, 0) should be inside the period-2 bulb")
	}
}

func TestInCardioidOrBulb_KnownExteriorPoints(t *testing.T) {
	if inCardioidOrBulb(-2.0, -1.0) {
		t.Error("(-2, -1) should be outside the cardioid/bulb")
	}
	if inCardioidOrBulb(1.0, 1.0) {
		t.Error("(1, 1) should be outside the cardioid/bulb")
	}
}

// Every pixel the cardioid/bulb predicate accepts must come back as
// exactly -max_iter from the double kernel.
func TestIterateDouble_InteriorSentinel(t *testing.T) {
	const maxIter = 256
	if v := iterateDouble(0.0, 0.0, maxIter); v != sentinelFor(maxIter) {
		t.Errorf("expected sentinel %v for interior point, got %v", sentinelFor(maxIter), v)
	}
	if v := iterateDouble(-1.0, 0.0, maxIter); v != sentinelFor(maxIter) {
		t.Errorf("expected sentinel %v for bulb point, got %v", sentinelFor(maxIter), v)
	}
}

// For an escaped pixel, the smooth value depends only on the
// first-escape step, not on the iteration cap.
func TestIterateDouble_SmoothMonotonicity(t *testing.T) {
	const cr, ci = -2.0, -1.0
	v1 := iterateDouble(cr, ci, 50)
	v2 := iterateDouble(cr, ci, 5000)
	if v1 != v2 {
		t.Errorf("smooth value changed with max_iter: %v (50) vs %v (5000)", v1, v2)
	}
	if v1 <= 0 {
		t.Fatalf("expected an escaped (positive) value for (%v, %v), got %v", cr, ci, v1)
	}
}

func TestSmoothIterations_GuardsSubUnityModulus(t *testing.T) {
	v := smoothIterations(10, 0.5)
	if v != v {
		t.Fatal("smoothIterations produced NaN for modSq < 1")
	}
}

func TestSentinelFor_IsStrictlyNegative(t *testing.T) {
	if sentinelFor(100) >= 0 {
		t.Error("sentinel must be strictly negative so callers can test its sign")
	}
	if sentinelFor(100) != -100 {
		t.Errorf("sentinelFor(100) = %v, want -100", sentinelFor(100))
	}
}

// iterateDouble and iterateExtended must agree closely away from the
// cardioid/bulb boundary, where both kernels use the same escape radius.
func TestIterateExtendedAgreesWithDouble(t *testing.T) {
	cases := []struct{ cr, ci float64 }{
		{-2.0, -1.0}, {0.3, 0.5}, {-1.5, 0.1},
	}
	for _, c := range cases {
		d := iterateDouble(c.cr, c.ci, 500)
		e := iterateExtended(quad.FromFloat64(c.cr), quad.FromFloat64(c.ci), 500)
		if d < 0 && e < 0 {
			continue // both interior, fine
		}
		diff := d - e
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-6 {
			t.Errorf("double/extended disagree at (%v,%v): %v vs %v", c.cr, c.ci, d, e)
		}
	}
}
