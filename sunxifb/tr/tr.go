// Package tr drives the Allwinner rotation hardware. Two accelerators
// exist: the transform engine (/dev/transform), an asynchronous
// submit/poll device used for all planar 4:2:0 content, and the G2D
// block-transform engine (/dev/g2d), a one-shot blit path limited to two
// formats. Both are exposed through the Rotator interface and produce
// their output in the caller's double-buffered rotation pool.
package tr

import (
	"context"

	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
)

// Mode is the requested transform. The numeric values are the historical
// rotation-property values (vertical flip is 6, not 5) and are kept for
// compatibility with existing pipeline configurations.
type Mode int

const (
	Rot0   Mode = 0
	Rot90  Mode = 1
	Rot180 Mode = 2
	Rot270 Mode = 3
	FlipH  Mode = 4
	FlipV  Mode = 6
)

func (m Mode) String() string {
	switch m {
	case Rot0:
		return "rot0"
	case Rot90:
		return "rot90"
	case Rot180:
		return "rot180"
	case Rot270:
		return "rot270"
	case FlipH:
		return "hflip"
	case FlipV:
		return "vflip"
	}
	return "invalid"
}

// Valid reports whether m is one of the supported transforms.
func (m Mode) Valid() bool {
	switch m {
	case Rot0, Rot90, Rot180, Rot270, FlipH, FlipV:
		return true
	}
	return false
}

// Transposes reports whether the transform swaps width and height.
// Flips mirror in place and keep the source orientation.
func (m Mode) Transposes() bool { return m == Rot90 || m == Rot270 }

// Rect is a region of a frame.
type Rect struct {
	X, Y int
	W, H int
}

// Frame describes one side of a transform: physical plane addresses with
// their pitches and heights. Addresses must be 32-byte aligned.
type Frame struct {
	Format format.Format
	Addr   [3]uintptr
	Pitch  [3]int
	Height [3]int
}

// Result is the destination produced by a rotation: the plane layout the
// display controller should scan out, plus the visible rectangle.
type Result struct {
	Addr   [3]uintptr
	Pitch  [3]int
	Height [3]int
	Rect   Rect
}

// Rotator transforms a frame into a pool-owned destination buffer.
// Implementations block until the hardware has finished writing.
type Rotator interface {
	Rotate(ctx context.Context, mode Mode, src Frame, srcRect Rect) (Result, error)
}
