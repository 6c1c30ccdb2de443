// Package sunxifb presents decoded video frames on a hardware overlay
// layer of an Allwinner display controller, with optional accelerated
// rotation. The heavy lifting lives in the subpackages: layout computes
// plane geometry, mem manages physically contiguous buffers, tr drives
// the rotation engines, disp talks to the display controller, and layer
// tracks overlay visibility. This package wires them into a sink that a
// frame producer drives through OpenHardware / ShowOverlay /
// CloseHardware.
package sunxifb

import (
	"time"

	"github.com/sunxi-display/go-sunxifb/sunxifb/disp"
	"github.com/sunxi-display/go-sunxifb/sunxifb/layout"
	"github.com/sunxi-display/go-sunxifb/sunxifb/mem"
	"github.com/sunxi-display/go-sunxifb/sunxifb/tr"
)

// Sentinel errors, re-exported from the subpackages that raise them so
// callers only need errors.Is against this package.
var (
	ErrUnsupported = layout.ErrUnsupported
	ErrCommit      = disp.ErrCommit
	ErrNoMemory    = mem.ErrNoMemory
)

// VideoInfo is the negotiated frame metadata handed to the sink.
type VideoInfo = layout.VideoInfo

// Rect is a screen-space rectangle.
type Rect = disp.Rect

// Frame is one decoded frame to present. Data is the CPU mapping of the
// buffer. When PhysicallyContiguous is set the buffer can be handed to
// the hardware after a physical-address translation; otherwise Offset
// locates it inside the sink's video memory. TraceID correlates log
// lines across the presentation path.
type Frame struct {
	Data                 []byte
	Offset               uintptr
	PhysicallyContiguous bool
	TraceID              string
}

// Options configure a Sink.
type Options struct {
	// UseHardwareOverlay gates the whole overlay path. When false the
	// sink opens no display devices and rejects ShowOverlay.
	UseHardwareOverlay bool

	// RotateAngle selects the transform applied to planar YUV frames.
	RotateAngle tr.Mode

	// UseG2D routes rotation through the G2D blitter instead of the
	// transform engine. Only YV12 and NV21 sources work there.
	UseG2D bool

	// LegacyDisplay selects the driver for the older disp kernel ABI.
	LegacyDisplay bool

	// Channel and LayerID pick the overlay plane. LayerID must be > 0.
	Channel int
	LayerID int

	// Device node overrides. Empty means the conventional path.
	FBPath        string
	DispPath      string
	TransformPath string
	G2DPath       string
	IONPath       string

	// ExtraVideoMemory is reserved past the pannable framebuffer for
	// CPU-written frames. When zero, non-contiguous frame offsets are
	// resolved against the framebuffer base instead.
	ExtraVideoMemory int

	// PollInterval and MaxRetries tune the rotation poll loop. Zero
	// values mean 1ms and unbounded resubmission.
	PollInterval time.Duration
	MaxRetries   int
}
