// Package disp drives the Allwinner display controller's layer interface
// (/dev/disp). Two incompatible kernel ABIs exist in the wild: the newer
// display2 interface (per-plane sizes, fixed-point crop, keyed by layer
// and channel) and the legacy interface (single size, read-modify-write,
// keyed by channel). Both are exposed through the same logical Driver;
// callers pick a concrete driver at composition time and never see the
// wire layout.
package disp

import (
	"errors"

	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
)

// ErrCommit is returned when the atomic layer-config commit is rejected
// by the kernel. The layer keeps its previous configuration.
var ErrCommit = errors.New("disp: layer config commit failed")

// PixelFormat is the logical scan-out format of a layer framebuffer.
type PixelFormat int

const (
	FormatARGB8888 PixelFormat = iota
	FormatYUV420P
	FormatYUV420SPUVUV
	FormatYUV420SPVUVU
	FormatYUV422P
	FormatYUV444P
)

// PixelFormatFor maps a negotiated video format to the scan-out format
// the controller is programmed with. Packed 4:2:2 and 4:4:4 sources are
// scanned out through the planar 422/444 paths; BGRx through ARGB.
func PixelFormatFor(f format.Format) PixelFormat {
	switch f {
	case format.NV12:
		return FormatYUV420SPUVUV
	case format.NV21:
		return FormatYUV420SPVUVU
	case format.Y444, format.AYUV:
		return FormatYUV444P
	case format.YUY2, format.UYVY:
		return FormatYUV422P
	case format.BGRx:
		return FormatARGB8888
	default:
		return FormatYUV420P
	}
}

// ColorSpace selects the YUV-to-RGB matrix.
type ColorSpace int

const (
	BT601 ColorSpace = iota
	BT709
)

// ColorSpaceFor applies the fixed selection rule: standard-definition
// destination rectangles get BT.601, everything else BT.709. The choice
// keys on the output height, not on stream metadata.
func ColorSpaceFor(destHeight int) ColorSpace {
	if destHeight < 720 {
		return BT601
	}
	return BT709
}

// Rect is a position and size on the screen or in the source buffer.
type Rect struct {
	X, Y int
	W, H int
}

// Size is a plane dimension in pixels.
type Size struct {
	W, H int
}

// LayerConfig is the logical projection of one layer's configuration.
// Each concrete driver folds it into its own wire layout; fields a
// variant cannot express (per-plane sizes on legacy) collapse to plane 0.
type LayerConfig struct {
	Channel int
	LayerID int
	Enable  bool

	Format PixelFormat
	// Physical plane addresses, canonical order (chroma swap for YV12 is
	// applied by the presenter before the config reaches the driver).
	Addr [3]uint64
	// Per-plane sizes in pixels. Plane 0 carries the scanline pitch via
	// its width, which may exceed the visible width.
	Size [3]Size
	// Crop is the visible region of the source buffer.
	Crop Rect
	// Screen is the destination window on the display.
	Screen Rect

	ColorSpace ColorSpace
}

// Driver is the logical display-controller surface the overlay machinery
// is written against.
type Driver interface {
	// LayerConfig reads the current configuration of a layer. Drivers
	// without a readback path return a zero config.
	LayerConfig(channel, layer int) (LayerConfig, error)
	// SetLayerConfig commits a configuration atomically.
	SetLayerConfig(cfg *LayerConfig) error
	// SetLayerEnable switches a layer's visibility.
	SetLayerEnable(channel, layer int, enable bool) error
	// ScreenWidth and ScreenHeight query the output dimensions.
	ScreenWidth() (int, error)
	ScreenHeight() (int, error)
	Close() error
}
