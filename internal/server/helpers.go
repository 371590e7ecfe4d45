package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"math"
)

// hashFrameSpec derives a stable cache key from a frame spec. The engine's
// sentinel-ness vs. escape-time distinction and the mode choice itself
// depend only on these fields, so they're the entire key.
func hashFrameSpec(spec FrameSpec) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%d|%d|%d", spec.XMin, spec.XMax, spec.YMin, spec.YMax, spec.Width, spec.Height, spec.MaxIter)
	return hex.EncodeToString(h.Sum(nil))
}

// renderGrayscale converts a computed escape-time grid into a grayscale
// debug image: the non-escape sentinel maps to black, and finite values
// map linearly onto the observed escape-time range. This is a diagnostic
// dump, not the palette/coloring stage a production renderer would use.
func renderGrayscale(values []float64, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))

	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			if v < 0 {
				img.SetGray(x, y, color.Gray{Y: 0})
				continue
			}
			level := uint8(math.Min(255, 255*v/maxVal))
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}

	return img
}
