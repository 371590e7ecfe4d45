package engine

import "golang.org/x/sys/cpu"

// LaneWidth is the number of pixels the perturbation kernel batches into
// one software SIMD lane group. This is the "SIMD abstraction" the
// engine's design notes call for: lane width is a plain integer setting
// with a reasonable default, and the per-lane masked update is an ordinary
// Go loop over fixed-size arrays in perturbation.go, not hand-written
// assembly — a wider or narrower lane changes throughput, not semantics.
type LaneWidth int

const (
	// Lanes1 is the scalar fallback (no vectorization).
	Lanes1 LaneWidth = 1
	// Lanes4 models a 256-bit vector register (4 float64 lanes).
	Lanes4 LaneWidth = 4
	// Lanes8 models a 512-bit vector register (8 float64 lanes).
	Lanes8 LaneWidth = 8
)

func (w LaneWidth) String() string {
	switch w {
	case Lanes1:
		return "scalar"
	case Lanes4:
		return "256-bit/4-lane"
	case Lanes8:
		return "512-bit/8-lane"
	default:
		return "unknown"
	}
}

// maxLaneWidth bounds the fixed-size per-lane scratch arrays in
// perturbation.go so the hot path never allocates.
const maxLaneWidth = int(Lanes8)

// ActiveLaneWidth is selected once at init time by probing CPU features:
// cpu.X86.HasAVX2 / cpu.ARM64.HasASIMD pick a lane width for the
// perturbation kernel's batched inner loop, the same dispatch-by-feature-
// flag pattern used to pick a SIMD backend function pointer elsewhere.
var ActiveLaneWidth LaneWidth

func init() {
	switch {
	case cpu.X86.HasAVX512F:
		ActiveLaneWidth = Lanes8
	case cpu.X86.HasAVX2:
		ActiveLaneWidth = Lanes4
	case cpu.ARM64.HasASIMD:
		ActiveLaneWidth = Lanes4
	default:
		ActiveLaneWidth = Lanes1
	}
}
