package engine

import (
	"log/slog"
	"time"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// ChoosePrecisionMode classifies a view without computing it, so callers
// can size an iteration budget ahead of time.
func ChoosePrecisionMode(xminS, xmaxS string, width int) (PrecisionMode, error) {
	if width <= 0 {
		return 0, newError(InvalidSize, "width must be positive")
	}
	xmin, err := quad.ParseFloat(xminS)
	if err != nil {
		return 0, newError(InvalidRegion, "xmin: "+err.Error())
	}
	xmax, err := quad.ParseFloat(xmaxS)
	if err != nil {
		return 0, newError(InvalidRegion, "xmax: "+err.Error())
	}
	if quad.Cmp(xmax, xmin) <= 0 {
		return 0, newError(InvalidRegion, "xmax must be greater than xmin")
	}
	w := quad.Sub(xmax, xmin).Float64()
	return classifyWidth(w), nil
}

func classifyWidth(w float64) PrecisionMode {
	switch {
	case w > thresholdDoubleToExtended:
		return ModeDouble
	case w > thresholdExtendedToPerturbation:
		return ModeExtended
	default:
		return ModePerturbation
	}
}

// Compute is the engine's primary entry point. It parses the four region
// strings in quad precision, selects an arithmetic strategy, and fills out
// with one smooth-iteration value (or the non-escape sentinel) per pixel.
// out must be a preallocated buffer of width*height float64s; on success
// it is fully populated. On failure out is left untouched (InvalidRegion/
// InvalidSize) or its contents are left undefined (OutOfMemory).
func Compute(req FrameRequest, out []float64) error {
	if len(out) != req.Width*req.Height {
		return newError(InvalidSize, "out buffer must have width*height elements")
	}

	region, err := resolveRegion(req)
	if err != nil {
		return err
	}

	w := quad.Sub(region.xmax, region.xmin).Float64()
	mode := classifyWidth(w)

	start := time.Now()
	switch mode {
	case ModeDouble:
		runParallelDouble(region, out)
	case ModeExtended:
		runParallelExtended(region, out)
	case ModePerturbation:
		if err := runPerturbationFrame(region, out); err != nil {
			return err
		}
	}

	slog.Debug("frame computed",
		"mode", mode.String(),
		"width", req.Width,
		"height", req.Height,
		"max_iter", req.MaxIter,
		"elapsed", time.Since(start),
	)
	return nil
}

// ComputeWithProgress behaves exactly like Compute, but invokes onRow once
// after every completed output row, from whichever worker goroutine
// finished it. onRow must be safe for concurrent calls from multiple
// goroutines; pass nil for no progress reporting (equivalent to Compute).
// This is the hook the ambient job-progress layer uses to drive its
// row-completion event stream without threading callbacks through every
// kernel.
func ComputeWithProgress(req FrameRequest, out []float64, onRow func()) error {
	if len(out) != req.Width*req.Height {
		return newError(InvalidSize, "out buffer must have width*height elements")
	}

	region, err := resolveRegion(req)
	if err != nil {
		return err
	}
	region.onRow = onRow

	w := quad.Sub(region.xmax, region.xmin).Float64()
	mode := classifyWidth(w)

	switch mode {
	case ModeDouble:
		runParallelDouble(region, out)
	case ModeExtended:
		runParallelExtended(region, out)
	case ModePerturbation:
		if err := runPerturbationFrame(region, out); err != nil {
			return err
		}
	}
	return nil
}

// ComputeLegacy is the legacy API for callers that only need double
// precision: it accepts float64 region bounds directly and always runs
// the scalar double kernel, skipping mode selection.
func ComputeLegacy(xmin, xmax, ymin, ymax float64, width, height, maxIter int, out []float64) error {
	if width <= 0 || height <= 0 || maxIter <= 0 {
		return newError(InvalidSize, "width, height, and max_iter must be positive")
	}
	if len(out) != width*height {
		return newError(InvalidSize, "out buffer must have width*height elements")
	}
	if xmax <= xmin || ymax <= ymin {
		return newError(InvalidRegion, "xmax/ymax must exceed xmin/ymin")
	}

	region := resolvedRegion{
		xmin: quad.FromFloat64(xmin), xmax: quad.FromFloat64(xmax),
		ymin: quad.FromFloat64(ymin), ymax: quad.FromFloat64(ymax),
		width: width, height: height, maxIter: maxIter,
		dx: quad.FromFloat64((xmax - xmin) / float64(width)),
		dy: quad.FromFloat64((ymax - ymin) / float64(height)),
		dxF: (xmax - xmin) / float64(width),
		dyF: (ymax - ymin) / float64(height),
	}
	runParallelDouble(region, out)
	return nil
}
