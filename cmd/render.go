package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/cwbudde/mandelzoom/internal/engine"
	"github.com/spf13/cobra"
)

var (
	renderXMin, renderXMax string
	renderYMin, renderYMax string
	renderWidth            int
	renderHeight           int
	renderMaxIter          int
	renderOut              string
	renderCPUProfile       string
	renderMemProfile       string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compute a single frame and write a debug grayscale PNG",
	Long:  `Computes one Mandelbrot frame and writes the raw escape-time grid as a grayscale PNG.`,
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderXMin, "xmin", "-2.0", "Region xmin (decimal string)")
	renderCmd.Flags().StringVar(&renderXMax, "xmax", "1.0", "Region xmax (decimal string)")
	renderCmd.Flags().StringVar(&renderYMin, "ymin", "-1.5", "Region ymin (decimal string)")
	renderCmd.Flags().StringVar(&renderYMax, "ymax", "1.5", "Region ymax (decimal string)")
	renderCmd.Flags().IntVar(&renderWidth, "width", 800, "Frame width in pixels")
	renderCmd.Flags().IntVar(&renderHeight, "height", 600, "Frame height in pixels")
	renderCmd.Flags().IntVar(&renderMaxIter, "max-iter", 1000, "Iteration budget")
	renderCmd.Flags().StringVar(&renderOut, "out", "out.png", "Output image path")

	renderCmd.Flags().StringVar(&renderCPUProfile, "cpuprofile", "", "Write CPU profile to file")
	renderCmd.Flags().StringVar(&renderMemProfile, "memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderCPUProfile != "" {
		f, err := os.Create(renderCPUProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", renderCPUProfile)
	}

	req := engine.FrameRequest{
		XMin: renderXMin, XMax: renderXMax,
		YMin: renderYMin, YMax: renderYMax,
		Width: renderWidth, Height: renderHeight,
		MaxIter: renderMaxIter,
	}

	mode, err := engine.ChoosePrecisionMode(req.XMin, req.XMax, req.Width)
	if err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}

	slog.Info("computing frame", "mode", mode.String(), "width", req.Width, "height", req.Height, "max_iter", req.MaxIter)

	out := make([]float64, req.Width*req.Height)
	start := time.Now()
	if err := engine.Compute(req, out); err != nil {
		return fmt.Errorf("compute failed: %w", err)
	}
	elapsed := time.Since(start)

	img := renderGrayscale(out, req.Width, req.Height)

	outFile, err := os.Create(renderOut)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer outFile.Close()

	if err := png.Encode(outFile, img); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	pixelsPerSecond := float64(req.Width*req.Height) / elapsed.Seconds()

	slog.Info("frame computed",
		"elapsed", elapsed,
		"mode", mode.String(),
		"pixels_per_second", fmt.Sprintf("%.0f", pixelsPerSecond),
	)

	fmt.Printf("Wrote %s (%dx%d, mode=%s, %.2fs)\n", renderOut, req.Width, req.Height, mode.String(), elapsed.Seconds())

	if renderMemProfile != "" {
		f, err := os.Create(renderMemProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("memory profile written", "output", renderMemProfile)
	}

	return nil
}

// renderGrayscale converts a computed escape-time grid into a grayscale
// debug image: the non-escape sentinel maps to black, finite values map
// linearly onto the observed escape-time range. This is a diagnostic dump,
// not the palette/coloring stage a production renderer would use.
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
