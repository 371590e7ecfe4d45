package engine

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/cwbudde/mandelzoom/internal/engine/quad"
)

// rowRange is one unit of work handed to a worker: a contiguous, disjoint
// span of rows it alone writes into: no cell is written by more than
// one thread, so no locks are needed.
type rowRange struct{ start, end int }

// guidedChunkRows sizes work chunks so that iteration cost, which varies
// by orders of magnitude across a frame (interior vs. frontier pixels),
// gets load-balanced across workers instead of producing the bad tail
// latency a static per-worker row split would. Every chunk has the same size,
// a quarter of an even per-worker share of rows (never below one row), so
// workers that finish early take more chunks from the shared queue.
func guidedChunkRows(height, workers int) int {
	if workers < 1 {
		workers = 1
	}
	chunk := height / (workers * 4)
	if chunk < 1 {
		chunk = 1
	}
	return chunk
}

// runParallelRows dispatches one call to work per row, across
// runtime.NumCPU() worker goroutines consuming a channel of row ranges —
// a dynamic, work-stealing schedule rather than a fixed static split. It
// blocks until every row has been written, matching the engine's
// synchronous, no-suspension-point concurrency model: compute returns
// only once every write is complete.
func runParallelRows(height int, work func(y int)) {
	workers := runtime.NumCPU()
	if workers > height {
		workers = height
	}
	if workers < 1 {
		workers = 1
	}

	chunk := guidedChunkRows(height, workers)
	ranges := make(chan rowRange, height/chunk+1)
	for y := 0; y < height; y += chunk {
		end := y + chunk
		if end > height {
			end = height
		}
		ranges <- rowRange{start: y, end: end}
	}
	close(ranges)

	slog.Debug("parallel driver starting", "workers", workers, "rows", height, "chunk_rows", chunk)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for r := range ranges {
				for y := r.start; y < r.end; y++ {
					work(y)
				}
			}
		}()
	}
	wg.Wait()
}

// runParallelDouble fills out with the scalar 64-bit kernel's output for
// every pixel in ModeDouble.
func runParallelDouble(region resolvedRegion, out []float64) {
	width := region.width
	xminF := region.xmin.Float64()
	yminF := region.ymin.Float64()
	dxF, dyF := region.dxF, region.dyF
	maxIter := region.maxIter

	runParallelRows(region.height, func(y int) {
		ci := yminF + (float64(y)+0.5)*dyF
		rowOff := y * width
		for x := 0; x < width; x++ {
			cr := xminF + (float64(x)+0.5)*dxF
			out[rowOff+x] = iterateDouble(cr, ci, maxIter)
		}
		if region.onRow != nil {
			region.onRow()
		}
	})
}

// runParallelExtended fills out with the scalar double-double kernel's
// output for every pixel in ModeExtended.
func runParallelExtended(region resolvedRegion, out []float64) {
	width := region.width
	maxIter := region.maxIter

	half := quad.FromFloat64(0.5)
	runParallelRows(region.height, func(y int) {
		yOff := quad.Add(quad.FromFloat64(float64(y)), half)
		ci := quad.Add(region.ymin, quad.Mul(yOff, region.dy))
		rowOff := y * width
		for x := 0; x < width; x++ {
			xOff := quad.Add(quad.FromFloat64(float64(x)), half)
			cr := quad.Add(region.xmin, quad.Mul(xOff, region.dx))
			out[rowOff+x] = iterateExtended(cr, ci, maxIter)
		}
		if region.onRow != nil {
			region.onRow()
		}
	})
}
