package engine

import (
	"math"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// PrecisionMode is the closed, tagged variant of arithmetic strategies the
// Precision Dispatcher chooses between. It is a single match, not a class
// hierarchy, per the engine's design notes.
type PrecisionMode int

const (
	// ModeDouble: scalar 64-bit iteration. w > 1e-13.
	ModeDouble PrecisionMode = iota
	// ModeExtended: scalar double-double ("80-bit-class") iteration.
	// 1e-17 < w <= 1e-13.
	ModeExtended
	// modeReserved is value 2, reserved for a future arithmetic strategy;
	// never returned by ChoosePrecisionMode.
	modeReserved
	// ModePerturbation: quad-precision reference orbit + float64 delta
	// perturbation. w <= 1e-17.
	ModePerturbation
)

func (m PrecisionMode) String() string {
	switch m {
	case ModeDouble:
		return "double"
	case ModeExtended:
		return "extended"
	case ModePerturbation:
		return "perturbation"
	default:
		return "reserved"
	}
}

// Mode-selection thresholds: double ulp at a coordinate of order 1 is
// ~2e-16, so view widths below ~1e-13 lose more than three digits of
// pixel spacing.
const (
	thresholdDoubleToExtended     = 1e-13
	thresholdExtendedToPerturbation = 1e-17
)

// seriesThreshold is the point at which |B_n|*r_view is considered to have
// dropped the quadratic term safely below double ulp.
const seriesThreshold = 1e-12

// FrameRequest is the caller-supplied description of one view of the
// complex plane plus an iteration budget. Decimal strings preserve more
// than 15 significant digits of precision; width/height/max_iter are
// ordinary ints.
type FrameRequest struct {
	XMin, XMax, YMin, YMax string
	Width, Height          int
	MaxIter                int
}

// resolvedRegion holds the parsed quad-precision region plus derived
// scalar quantities shared by every kernel. Every kernel samples pixel
// centers, not pixel corners: pixel (x, y) maps to c = xmin + (x+0.5)*dx,
// ymin + (y+0.5)*dy. This keeps a symmetric view's output exactly
// symmetric about its middle row/column, which corner sampling does not.
type resolvedRegion struct {
	xmin, xmax, ymin, ymax quad.Float
	width, height          int
	maxIter                int
	dx, dy                 quad.Float // quad step sizes
	dxF, dyF               float64    // float64-cast step sizes
	rView                  float64    // half-diagonal of view delta
	onRow                  func()     // optional per-row progress hook; nil is a no-op
}

func resolveRegion(req FrameRequest) (resolvedRegion, error) {
	if req.Width <= 0 || req.Height <= 0 || req.MaxIter <= 0 {
		return resolvedRegion{}, newError(InvalidSize, "width, height, and max_iter must be positive")
	}

	xmin, err := quad.ParseFloat(req.XMin)
	if err != nil {
		return resolvedRegion{}, newError(InvalidRegion, "xmin: "+err.Error())
	}
	xmax, err := quad.ParseFloat(req.XMax)
	if err != nil {
		return resolvedRegion{}, newError(InvalidRegion, "xmax: "+err.Error())
	}
	ymin, err := quad.ParseFloat(req.YMin)
	if err != nil {
		return resolvedRegion{}, newError(InvalidRegion, "ymin: "+err.Error())
	}
	ymax, err := quad.ParseFloat(req.YMax)
	if err != nil {
		return resolvedRegion{}, newError(InvalidRegion, "ymax: "+err.Error())
	}

	if quad.Cmp(xmax, xmin) <= 0 {
		return resolvedRegion{}, newError(InvalidRegion, "xmax must be greater than xmin")
	}
	if quad.Cmp(ymax, ymin) <= 0 {
		return resolvedRegion{}, newError(InvalidRegion, "ymax must be greater than ymin")
	}

	dx := quad.Div(quad.Sub(xmax, xmin), quad.FromFloat64(float64(req.Width)))
	dy := quad.Div(quad.Sub(ymax, ymin), quad.FromFloat64(float64(req.Height)))
	dxF, dyF := dx.Float64(), dy.Float64()

	halfW := float64(req.Width) * dxF / 2
	halfH := float64(req.Height) * dyF / 2
	rView := halfDiagonal(halfW, halfH)

	return resolvedRegion{
		xmin: xmin, xmax: xmax, ymin: ymin, ymax: ymax,
		width: req.Width, height: req.Height, maxIter: req.MaxIter,
		dx: dx, dy: dy, dxF: dxF, dyF: dyF,
		rView: rView,
	}, nil
}

func halfDiagonal(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}
