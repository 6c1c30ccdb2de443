// Package format describes the pixel formats the Allwinner display engine
// can scan out from a hardware overlay layer, along with the per-format
// geometry facts (plane count, chroma subsampling, pixel stride) the rest
// of the pipeline needs to build plane descriptors.
package format

// Format identifies a negotiated video pixel format.
type Format int

const (
	Unknown Format = iota
	// Planar 4:2:0, Y then U then V.
	I420
	// Planar 4:2:0, Y then V then U. The display engine is still fed the
	// canonical U-then-V plane order, so the two chroma addresses are
	// swapped at presentation time (see SwapChroma).
	YV12
	// Semi-planar 4:2:0, Y plane then interleaved UV.
	NV12
	// Semi-planar 4:2:0, Y plane then interleaved VU.
	NV21
	// Planar 4:4:4.
	Y444
	// Packed 4:4:4 with alpha.
	AYUV
	// Packed 4:2:2.
	YUY2
	UYVY
	// Packed RGB with padding byte.
	BGRx
)

// Family groups formats by the presenter that can display them.
type Family int

const (
	FamilyPlanarYUV Family = iota
	FamilyPackedYUV
	FamilyPackedRGB
)

// props carries the static facts about a format. One table entry per
// format; presentation code must not grow format special cases outside
// this table.
type props struct {
	name       string
	planes     int
	subsampled bool // 4:2:0 chroma (half width, half height)
	pixStride  int  // bytes per pixel of plane 0
	oddWidth   bool // hardware accepts odd widths
	swapChroma bool // plane 1/2 addresses swapped vs canonical order
	family     Family
}

var table = map[Format]props{
	I420: {"I420", 3, true, 1, false, false, FamilyPlanarYUV},
	YV12: {"YV12", 3, true, 1, false, true, FamilyPlanarYUV},
	NV12: {"NV12", 2, true, 1, false, false, FamilyPlanarYUV},
	NV21: {"NV21", 2, true, 1, false, false, FamilyPlanarYUV},
	Y444: {"Y444", 3, false, 1, true, false, FamilyPlanarYUV},
	AYUV: {"AYUV", 1, false, 4, true, false, FamilyPackedYUV},
	YUY2: {"YUY2", 1, false, 2, false, false, FamilyPackedYUV},
	UYVY: {"UYVY", 1, false, 2, false, false, FamilyPackedYUV},
	BGRx: {"BGRx", 1, false, 4, true, false, FamilyPackedRGB},
}

func (f Format) String() string {
	if p, ok := table[f]; ok {
		return p.name
	}
	return "unknown"
}

// Planes returns the number of memory planes.
func (f Format) Planes() int { return table[f].planes }

// Subsampled reports whether chroma is 4:2:0 (half width, half height).
func (f Format) Subsampled() bool { return table[f].subsampled }

// PixStride returns the bytes per pixel of plane 0.
func (f Format) PixStride() int { return table[f].pixStride }

// SupportsOddWidth reports whether the overlay hardware accepts an odd
// frame width for this format. The 4:2:0 planar formats do not; an
// artifact column shows up at the right edge of the scaled area.
func (f Format) SupportsOddWidth() bool { return table[f].oddWidth }

// SwapChroma reports whether plane 1 and plane 2 addresses must be
// swapped relative to the canonical U-then-V order when programming the
// display engine. Only YV12 carries this quirk; it is kept as a table
// entry rather than a branch so it cannot silently regress.
func (f Format) SwapChroma() bool { return table[f].swapChroma }

// Family returns the presenter family for this format.
func (f Format) Family() Family { return table[f].family }

// Valid reports whether f is one of the overlay formats.
func (f Format) Valid() bool {
	_, ok := table[f]
	return ok
}

// SupportedOverlayFormats returns the overlay formats in negotiation
// order: formats that tolerate odd widths first.
func SupportedOverlayFormats() []Format {
	return []Format{
		YV12, I420, NV12, NV21, AYUV, BGRx,
		// These do not properly support odd widths.
		YUY2, UYVY, Y444,
	}
}
