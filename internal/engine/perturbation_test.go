package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// A deep-zoom view near a known Seahorse Valley point must select
// perturbation mode, use the series skip, and produce a mix of escaped
// and interior pixels rather than a blank frame.
func TestCompute_PerturbationModeProducesPartialEscape(t *testing.T) {
	mode, err := ChoosePrecisionMode("-0.743643887037151000005", "-0.743643887037150999995", 400)
	if err != nil {
		t.Fatalf("ChoosePrecisionMode failed: %v", err)
	}
	if mode != ModePerturbation {
		t.Fatalf("expected ModePerturbation, got %v", mode)
	}

	req := FrameRequest{
		XMin: "-0.743643887037151000005", XMax: "-0.743643887037150999995",
		YMin: "0.131825904205329999996", YMax: "0.131825904205330000004",
		Width: 120, Height: 90, MaxIter: 4096,
	}
	out := make([]float64, req.Width*req.Height)
	if err := Compute(req, out); err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	escaped := 0
	for _, v := range out {
		if v >= 0 {
			escaped++
		}
	}
	frac := float64(escaped) / float64(len(out))
	if frac <= 0.2 || frac >= 0.8 {
		t.Errorf("expected 0.2 < escaped fraction < 0.8 for an interesting region, got %v", frac)
	}
}

func mustParseQuad(t *testing.T, s string) quad.Float {
	t.Helper()
	f, err := quad.ParseFloat(s)
	if err != nil {
		t.Fatalf("ParseFloat(%q) failed: %v", s, err)
	}
	return f
}

func TestSeriesCoefficient_SkipsAheadForDeepView(t *testing.T) {
	c0 := quad.Complex{
		Re: mustParseQuad(t, "-0.743643887037151"),
		Im: mustParseQuad(t, "0.131825904205330"),
	}
	orbit, err := buildReferenceOrbit(c0, 4096)
	if err != nil {
		t.Fatalf("buildReferenceOrbit failed: %v", err)
	}

	_, skipIter := seriesCoefficient(orbit.XD, orbit.RefIter, 1e-20)
	if skipIter <= 0 {
		t.Errorf("expected skip_iter > 0 for a deep-zoom rView, got %d", skipIter)
	}
}

// A pixel whose reference-orbit ancestor escapes at step k with
// skip_iter = 0 must match the naive per-pixel double iteration on the
// same c, within 0.1 in smooth value.
func TestPerturbation_MatchesNaiveAtZeroSkip(t *testing.T) {
	c0 := quad.Complex{Re: quad.FromFloat64(-1.25), Im: quad.FromFloat64(0.0)}
	maxIter := 200
	orbit, err := buildReferenceOrbit(c0, maxIter)
	if err != nil {
		t.Fatalf("buildReferenceOrbit failed: %v", err)
	}

	// A view wide enough that the series coefficient never escapes
	// skip_iter = 0 (large rView forces the threshold check to trip
	// immediately).
	b, skipIter := seriesCoefficient(orbit.XD, orbit.RefIter, 1.0)
	if skipIter != 0 {
		t.Fatalf("expected skip_iter == 0 for a coarse view, got %d", skipIter)
	}

	region := resolvedRegion{
		width: 3, height: 3, maxIter: maxIter,
		dxF: 0.01, dyF: 0.01,
	}
	out := make([]float64, 3*3)
	perturbRow(orbit, b, skipIter, region, 1, out)

	// Pixel (1,1) is the lane's center pixel: offset (0,0) from c0.
	perturbVal := out[1]

	cr, ci := -1.25, 0.0
	naive := iterateDouble(cr, ci, maxIter)

	if perturbVal < 0 && naive < 0 {
		return // both interior, consistent
	}
	diff := math.Abs(perturbVal - naive)
	if diff > 0.1 {
		t.Errorf("perturbation/naive mismatch at skip_iter=0: %v vs %v (diff %v)", perturbVal, naive, diff)
	}
}

// At a view wide enough to qualify as double-precision, perturbation
// mode forced on the same region must agree pixelwise with the double
// kernel within 1e-3 in smooth value.
func TestModeAgreement_PerturbationVsDouble(t *testing.T) {
	req := FrameRequest{
		XMin: "-1.0", XMax: "-0.5",
		YMin: "-0.25", YMax: "0.25",
		Width: 16, Height: 16, MaxIter: 500,
	}

	region, err := resolveRegion(req)
	if err != nil {
		t.Fatalf("resolveRegion failed: %v", err)
	}
	w := quad.Sub(region.xmax, region.xmin).Float64()
	if classifyWidth(w) != ModeDouble {
		t.Fatalf("test setup error: view should classify as ModeDouble, width=%v", w)
	}

	doubleOut := make([]float64, req.Width*req.Height)
	runParallelDouble(region, doubleOut)

	perturbOut := make([]float64, req.Width*req.Height)
	if err := runPerturbationFrame(region, perturbOut); err != nil {
		t.Fatalf("runPerturbationFrame failed: %v", err)
	}

	mismatches := 0
	for i := range doubleOut {
		d, p := doubleOut[i], perturbOut[i]
		if d < 0 && p < 0 {
			continue
		}
		if d < 0 || p < 0 {
			mismatches++
			continue
		}
		if math.Abs(d-p) > 1e-3 {
			mismatches++
		}
	}
	if mismatches > 0 {
		t.Errorf("%d/%d pixels disagree beyond tolerance between double and perturbation kernels", mismatches, len(doubleOut))
	}
}

// A 1024x1024 perturbation-mode frame at max_iter=100000 must succeed.
// The reference orbit and per-lane scratch are the only large
// allocations, and both are released once compute returns: the scratch in
// perturbLane is fixed-size arrays, and the orbit's slices go out of scope
// with runPerturbationFrame's stack frame, leaving nothing for the caller
// to free explicitly.
func TestCompute_LargePerturbationFrameSucceeds(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large perturbation frame in short mode")
	}

	req := FrameRequest{
		XMin: "-0.743643887037151000005", XMax: "-0.743643887037150999995",
		YMin: "0.131825904205329999996", YMax: "0.131825904205330000004",
		Width: 1024, Height: 1024, MaxIter: 100000,
	}
	out := make([]float64, req.Width*req.Height)
	if err := Compute(req, out); err != nil {
		t.Fatalf("Compute failed on large perturbation frame: %v", err)
	}
}

func TestBuildReferenceOrbit_RejectsNegativeMaxIter(t *testing.T) {
	_, err := buildReferenceOrbit(quad.Complex{}, -1)
	if err == nil {
		t.Fatal("expected error for negative max_iter")
	}
}

func TestBuildReferenceOrbit_RejectsImplausibleMaxIter(t *testing.T) {
	_, err := buildReferenceOrbit(quad.Complex{}, maxReferenceIter+1)
	if err == nil {
		t.Fatal("expected error for max_iter beyond the reference orbit allocation limit")
	}
	var computeErr *Error
	if !errors.As(err, &computeErr) || computeErr.Kind != OutOfMemory {
		t.Errorf("expected OutOfMemory error, got %v", err)
	}
}

func TestBuildReferenceOrbit_RecordsEscapeIndex(t *testing.T) {
	// c = 2 escapes at step 2: X_1 = 0^2 + 2 = 2, |2|^2=4, not >4;
	// X_2 = 2^2+2=6, |6|^2=36>4.
	orbit, err := buildReferenceOrbit(quad.Complex{Re: quad.FromFloat64(2), Im: quad.FromFloat64(0)}, 50)
	if err != nil {
		t.Fatalf("buildReferenceOrbit failed: %v", err)
	}
	if orbit.RefIter <= 0 || orbit.RefIter >= 50 {
		t.Errorf("expected an early escape index, got RefIter=%d", orbit.RefIter)
	}
}

func TestClampRefIndex(t *testing.T) {
	if got := clampRefIndex(5, 10); got != 5 {
		t.Errorf("clampRefIndex(5,10) = %d, want 5", got)
	}
	if got := clampRefIndex(10, 10); got != 9 {
		t.Errorf("clampRefIndex(10,10) = %d, want 9 (clamped)", got)
	}
	if got := clampRefIndex(0, 0); got != 0 {
		t.Errorf("clampRefIndex(0,0) = %d, want 0", got)
	}
}
