package engine

import "github.com/cwbudde/mandelzoom/internal/engine/quad"

// runPerturbationFrame computes a full frame in perturbation mode
// build one quad-precision reference orbit at the
// view center, derive the series (BLA) coefficient, then run the
// vectorized perturbation kernel per row across the parallel driver.
func runPerturbationFrame(region resolvedRegion, out []float64) error {
	two := quad.FromFloat64(2)
	c0 := quad.Complex{
		Re: quad.Div(quad.Add(region.xmin, region.xmax), two),
		Im: quad.Div(quad.Add(region.ymin, region.ymax), two),
	}

	orbit, err := buildReferenceOrbit(c0, region.maxIter)
	if err != nil {
		return err
	}

	b, skipIter := seriesCoefficient(orbit.XD, orbit.RefIter, region.rView)

	runParallelRows(region.height, func(y int) {
		rowOff := y * region.width
		perturbRow(orbit, b, skipIter, region, y, out[rowOff:rowOff+region.width])
		if region.onRow != nil {
			region.onRow()
		}
	})
	return nil
}

// perturbRow computes one row of pixels, splitting it into fixed-width
// lane groups processed by perturbLane, with a scalar-width tail group for
// width mod W leftover pixels — identical semantics to the main loop, per
// the vectorization contract.
func perturbRow(orbit *referenceOrbit, b complex128, skipIter int, region resolvedRegion, y int, out []float64) {
	width := region.width
	laneW := int(ActiveLaneWidth)

	x := 0
	for ; x+laneW <= width; x += laneW {
		perturbLane(orbit, b, skipIter, region, y, x, laneW, out[x:x+laneW])
	}
	if x < width {
		perturbLane(orbit, b, skipIter, region, y, x, width-x, out[x:width])
	}
}

// perturbLane runs the perturbation recurrence for one lane group of up to
// maxLaneWidth pixels in lockstep: 4 iterations unrolled between escape
// checks, masked lane retirement on escape, scalar tail handled by calling
// this with n < maxLaneWidth. Scratch state is fixed-size arrays, not
// slices from make(), so the hot path never allocates.
func perturbLane(orbit *referenceOrbit, b complex128, skipIter int, region resolvedRegion, y, xStart, n int, out []float64) {
	var delta, deltaC [maxLaneWidth]complex128
	var active [maxLaneWidth]bool
	var escapedAt [maxLaneWidth]int
	var escapedModSq [maxLaneWidth]float64

	ci := (float64(y) - (float64(region.height)-1)/2) * region.dyF
	c0 := orbit.C0
	for i := 0; i < n; i++ {
		px := xStart + i
		cr := (float64(px) - (float64(region.width)-1)/2) * region.dxF
		dc := complex(cr, ci)
		deltaC[i] = dc
		if skipIter > 0 {
			delta[i] = b * dc
		}
		absC := c0 + dc
		// interior pixels never escape, so leaving active false here
		// carries them straight to the sentinel in the output pass below.
		active[i] = !inCardioidOrBulb(real(absC), imag(absC))
		escapedAt[i] = -1
	}

	refIter := orbit.RefIter
	xd := orbit.XD
	maxIter := region.maxIter

	iter := skipIter
	for iter < maxIter {
		anyActive := false
		for step := 0; step < 4 && iter < maxIter; step++ {
			refIdx := clampRefIndex(iter, refIter)
			xn := xd[refIdx]
			for i := 0; i < n; i++ {
				if !active[i] {
					continue
				}
				d := delta[i]
				delta[i] = 2*xn*d + d*d + deltaC[i]
			}
			iter++
		}

		checkIdx := clampRefIndex(iter, refIter)
		xCheck := xd[checkIdx]
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			full := xCheck + delta[i]
			modSq := real(full)*real(full) + imag(full)*imag(full)
			if modSq > escapeRadiusPerturbation2 {
				escapedAt[i] = iter
				escapedModSq[i] = modSq
				active[i] = false
				delta[i] = 0 // retire: prevent numeric explosion from polluting later vector ops
			} else {
				anyActive = true
			}
		}
		if !anyActive {
			break
		}
	}

	for i := 0; i < n; i++ {
		if escapedAt[i] >= 0 {
			out[i] = smoothIterations(escapedAt[i], escapedModSq[i])
		} else {
			out[i] = sentinelFor(maxIter)
		}
	}
}

// clampRefIndex implements the documented (unfixed) clamp behavior: reading
// the reference orbit past its own escape index is meaningless, so the
// lookup clamps to ref_iter-1 when the requested step has reached or
// passed ref_iter. A known, documented imprecision; no fix prescribed.
func clampRefIndex(n, refIter int) int {
	if refIter <= 0 {
		return 0
	}
	if n >= refIter {
		return refIter - 1
	}
	return n
}
