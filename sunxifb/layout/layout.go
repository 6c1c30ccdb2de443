// Package layout computes the plane geometry the Allwinner overlay engine
// expects for a negotiated video format: per-plane byte offsets and
// scanline strides, plus the alignment the buffer start address must
// satisfy. It is pure computation; no device state is touched.
package layout

import (
	"errors"
	"fmt"

	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
)

// ErrUnsupported is returned when the overlay hardware cannot display the
// requested geometry in the requested format.
var ErrUnsupported = errors.New("layout: unsupported overlay geometry")

const (
	// BaseAlign is the required alignment of the overlay start address in
	// video memory.
	BaseAlign = 16
	// strideAlign keeps scanlines on pixel boundaries with a minimum of
	// word alignment. A good match for what upstream buffers already use,
	// so zero-copy streaming is almost always possible.
	strideAlign = 4
	// RotateAlign is the stricter alignment the rotation engine needs on
	// both its source and destination buffers.
	RotateAlign = 32
)

// VideoInfo is the negotiated buffer layout handed down by the sink base.
type VideoInfo struct {
	Format      format.Format
	Width       int
	Height      int
	PlaneOffset [3]int
	PlaneStride [3]int
	Size        int
}

// AlignmentRule describes the alignment the overlay imposes on a buffer.
type AlignmentRule struct {
	BaseAlign   int
	PlaneStride [3]int // required stride alignment per plane, bytes
}

// FrameGeometry is the plane layout the overlay will be programmed with.
type FrameGeometry struct {
	Width       int
	Height      int
	PlaneOffset [3]int
	PlaneStride [3]int
	Size        int
}

// Align16 rounds n up to a 16-byte boundary.
func Align16(n int) int { return (n + 15) &^ 15 }

// Align32 rounds n up to a 32-byte boundary.
func Align32(n int) int { return (n + 31) &^ 31 }

func alignTo(n, align int) int { return (n + align - 1) &^ (align - 1) }

// ComputeAlignment validates info against the overlay hardware and
// derives the plane geometry it will be displayed with. matches reports
// whether the negotiated layout already satisfied the overlay's natural
// layout, in which case the buffer can be scanned out without a
// repacking copy.
func ComputeAlignment(info VideoInfo) (AlignmentRule, FrameGeometry, bool, error) {
	f := info.Format
	if !f.Valid() {
		return AlignmentRule{}, FrameGeometry{}, false,
			fmt.Errorf("%w: format %v", ErrUnsupported, f)
	}
	if f.Subsampled() && info.Width&1 == 1 {
		// Hardware limitation for all 4:2:0 planar formats: an odd width
		// leaves an artifact line at the right of the scaled area.
		return AlignmentRule{}, FrameGeometry{}, false,
			fmt.Errorf("%w: %v with odd width %d", ErrUnsupported, f, info.Width)
	}

	rule := AlignmentRule{BaseAlign: BaseAlign}
	geom := FrameGeometry{Width: info.Width, Height: info.Height}

	offset := 0
	for i := 0; i < f.Planes(); i++ {
		rule.PlaneStride[i] = strideAlign
		stride := alignTo(naturalStride(f, i, info.Width), strideAlign)
		geom.PlaneStride[i] = stride
		geom.PlaneOffset[i] = offset
		offset += stride * planeHeight(f, i, info.Height)
	}
	geom.Size = offset

	matches := true
	for i := 0; i < f.Planes(); i++ {
		if info.PlaneStride[i] != geom.PlaneStride[i] ||
			info.PlaneOffset[i] != geom.PlaneOffset[i] {
			matches = false
			break
		}
	}
	return rule, geom, matches, nil
}

// WidthInPixels recovers the plane-0 width in pixels from a scanline
// stride, the inverse of the stride derivation. Presenters use this to
// program the overlay's luma width.
func WidthInPixels(f format.Format, stride int) int {
	return stride / f.PixStride()
}

// ChromaSize returns the chroma plane dimensions for a planar format.
func ChromaSize(f format.Format, width, height int) (int, int) {
	if f.Subsampled() {
		return width / 2, height / 2
	}
	return width, height
}

func naturalStride(f format.Format, plane, width int) int {
	if plane == 0 {
		return width * f.PixStride()
	}
	switch f {
	case format.NV12, format.NV21:
		// Interleaved chroma pair: half the samples, two bytes each.
		return width
	case format.Y444:
		return width
	default:
		return (width + 1) / 2
	}
}

func planeHeight(f format.Format, plane, height int) int {
	if plane == 0 || !f.Subsampled() {
		return height
	}
	return (height + 1) / 2
}
