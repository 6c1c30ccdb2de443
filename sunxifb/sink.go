package sunxifb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sunxi-display/go-sunxifb/sunxifb/dev"
	"github.com/sunxi-display/go-sunxifb/sunxifb/disp"
	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
	"github.com/sunxi-display/go-sunxifb/sunxifb/layer"
	"github.com/sunxi-display/go-sunxifb/sunxifb/layout"
	"github.com/sunxi-display/go-sunxifb/sunxifb/mem"
	"github.com/sunxi-display/go-sunxifb/sunxifb/tr"
)

// Sink owns one overlay layer and everything needed to put frames on
// it. It is driven synchronously from the frame-delivery goroutine; no
// method is safe for concurrent use.
type Sink struct {
	opts Options
	log  *slog.Logger

	info VideoInfo
	rule layout.AlignmentRule
	geom layout.FrameGeometry

	fb       *framebuffer
	drv      disp.Driver
	adapter  mem.Adapter
	ownsAdpt bool
	pool     *mem.RotatePool
	rotator  tr.Rotator
	rotClose func() error
	lyr      *layer.Layer

	screenW int
	screenH int

	// current is the last successfully committed configuration. A failed
	// commit leaves it untouched, so the layer keeps showing it.
	current *disp.LayerConfig
	// centered records the rotated geometry the destination window was
	// last re-centered for, so the window is recomputed once per
	// geometry rather than every frame.
	centeredW, centeredH int
}

// New returns an unopened sink. Call OpenHardware before presenting.
func New(opts Options, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{opts: opts, log: log}
}

// Hardware bundles injected backends, used by tests and by callers that
// manage the devices themselves. Any nil field is opened from the
// device paths in Options.
type Hardware struct {
	Driver  disp.Driver
	Adapter mem.Adapter
	Rotator tr.Rotator
	ScreenW int
	ScreenH int
	FBBase  uintptr
}

// NewWithHardware returns a sink bound to pre-built backends. Unlike
// New, OpenHardware touches no device files.
func NewWithHardware(opts Options, hw Hardware, log *slog.Logger) *Sink {
	s := New(opts, log)
	s.drv = hw.Driver
	s.adapter = hw.Adapter
	s.rotator = hw.Rotator
	s.screenW, s.screenH = hw.ScreenW, hw.ScreenH
	s.fb = &framebuffer{base: hw.FBBase}
	return s
}

// OpenHardware validates the negotiated format, claims the display
// devices and reserves the overlay layer. Missing acceleration devices
// degrade the sink (no overlay, or no rotation) instead of failing.
// It returns the total video memory size and the pannable portion.
func (s *Sink) OpenHardware(info VideoInfo) (videoMemSize, pannableSize int, err error) {
	rule, geom, _, err := layout.ComputeAlignment(info)
	if err != nil {
		return 0, 0, err
	}
	s.info = info
	s.rule = rule
	s.geom = geom

	injected := s.drv != nil || s.adapter != nil || s.rotator != nil
	if !injected {
		if err := s.openDevices(); err != nil {
			return 0, 0, err
		}
	}
	if s.fb != nil {
		videoMemSize = s.fb.size
		pannableSize = videoMemSize - s.opts.ExtraVideoMemory
		if pannableSize < 0 {
			pannableSize = videoMemSize
		}
	}

	if s.drv == nil {
		return videoMemSize, pannableSize, nil
	}
	if s.screenW == 0 {
		if w, err := s.drv.ScreenWidth(); err == nil {
			s.screenW = w
		}
		if h, err := s.drv.ScreenHeight(); err == nil {
			s.screenH = h
		}
	}
	lyr := layer.New(s.drv, s.opts.Channel, s.opts.LayerID, s.log)
	if err := lyr.Reserve(); err != nil {
		s.log.Warn("overlay layer reservation failed, continuing without overlay",
			"error", err)
		return videoMemSize, pannableSize, nil
	}
	s.lyr = lyr
	if s.pool == nil && s.adapter != nil && s.opts.RotateAngle != tr.Rot0 {
		s.pool = mem.NewRotatePool(s.adapter)
	}
	s.log.Info("overlay hardware open",
		"format", info.Format, "width", info.Width, "height", info.Height,
		"rotate", s.opts.RotateAngle, "screen_width", s.screenW, "screen_height", s.screenH)
	return videoMemSize, pannableSize, nil
}

// openDevices opens the real device nodes per Options. Only the
// framebuffer is mandatory.
func (s *Sink) openDevices() error {
	fb, err := openFramebuffer(s.opts.FBPath)
	if err != nil {
		return err
	}
	fb.clear()
	s.fb = fb

	if !s.opts.UseHardwareOverlay {
		return nil
	}

	dispPath := s.opts.DispPath
	if dispPath == "" {
		dispPath = "/dev/disp"
	}
	conn, err := dev.Open(dispPath)
	if err != nil {
		s.log.Warn("display controller unavailable, overlay disabled", "error", err)
		return nil
	}
	if s.opts.LegacyDisplay {
		s.drv = disp.NewLegacy(conn)
	} else {
		s.drv = disp.NewDisplay2(conn)
	}

	adapter, err := mem.OpenION(s.opts.IONPath)
	if err != nil {
		s.log.Warn("ion allocator unavailable, rotation and zero-copy disabled", "error", err)
	} else {
		s.adapter = adapter
		s.ownsAdpt = true
	}

	if s.opts.RotateAngle != tr.Rot0 && s.adapter != nil {
		s.pool = mem.NewRotatePool(s.adapter)
		if err := s.openRotator(); err != nil {
			s.log.Warn("rotation engine unavailable, rotation disabled", "error", err)
			s.pool.Close()
			s.pool = nil
		}
	}
	return nil
}

func (s *Sink) openRotator() error {
	if s.opts.UseG2D {
		eng, err := tr.OpenG2D(s.opts.G2DPath, s.pool)
		if err != nil {
			return err
		}
		s.rotator = eng
		s.rotClose = eng.Close
		return nil
	}
	device, err := tr.OpenTransform(s.opts.TransformPath)
	if err != nil {
		return err
	}
	pipe, err := tr.NewPipeline(device, s.pool, tr.PipelineOptions{
		PollInterval: s.opts.PollInterval,
		MaxRetries:   s.opts.MaxRetries,
	}, s.log)
	if err != nil {
		device.Close()
		return err
	}
	s.rotator = pipe
	s.rotClose = func() error {
		err := pipe.Close()
		if cerr := device.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return nil
}

// CloseHardware releases the layer and every device the sink opened.
func (s *Sink) CloseHardware() {
	if s.lyr != nil {
		s.lyr.Release()
		s.lyr = nil
	}
	if s.rotClose != nil {
		if err := s.rotClose(); err != nil {
			s.log.Warn("rotation engine close failed", "error", err)
		}
		s.rotClose = nil
	}
	s.rotator = nil
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	if s.ownsAdpt {
		if c, ok := s.adapter.(*mem.IONAdapter); ok {
			c.Close()
		}
		s.adapter = nil
		s.ownsAdpt = false
	}
	if s.drv != nil {
		s.drv.Close()
		s.drv = nil
	}
	if s.fb != nil && s.fb.f != nil {
		s.fb.close()
	}
	s.fb = nil
	s.current = nil
}

// VideoMemory exposes the mapped framebuffer memory. Frame producers
// without their own contiguous buffers write frames here and reference
// them by Offset.
func (s *Sink) VideoMemory() []byte {
	if s.fb == nil {
		return nil
	}
	return s.fb.mapp
}

// SupportedOverlayFormats lists the formats the overlay path accepts, in
// negotiation preference order.
func (s *Sink) SupportedOverlayFormats() []format.Format {
	return format.SupportedOverlayFormats()
}

// OverlayVideoAlignment reports the alignment the overlay needs for the
// negotiated geometry and whether the negotiated layout already matches.
func (s *Sink) OverlayVideoAlignment(info VideoInfo) (layout.AlignmentRule, bool, error) {
	rule, geom, matches, err := layout.ComputeAlignment(info)
	if err != nil {
		return layout.AlignmentRule{}, false, err
	}
	s.info = info
	s.rule = rule
	s.geom = geom
	return rule, matches, nil
}

// PrepareOverlay hides the layer ahead of a format switch and records
// the format the next frames arrive in.
func (s *Sink) PrepareOverlay(f format.Format) error {
	if !f.Valid() {
		return fmt.Errorf("prepare overlay: %w: %s", ErrUnsupported, f)
	}
	if s.lyr != nil {
		if err := s.lyr.Hide(); err != nil {
			return err
		}
	}
	s.info.Format = f
	s.current = nil
	s.centeredW, s.centeredH = 0, 0
	return nil
}

// ShowOverlay presents one frame: resolves its physical address,
// dispatches to the presenter for its format family, commits the layer
// configuration and makes the layer visible. A commit failure leaves
// the previously shown configuration on screen.
func (s *Sink) ShowOverlay(ctx context.Context, frame *Frame) error {
	if s.lyr == nil {
		return fmt.Errorf("show overlay: %w: no overlay layer", ErrUnsupported)
	}
	phys, err := s.resolvePhys(frame)
	if err != nil {
		return err
	}

	f := s.info.Format
	var cfg disp.LayerConfig
	switch f.Family() {
	case format.FamilyPlanarYUV:
		cfg, err = s.presentPlanar(ctx, phys, frame)
	case format.FamilyPackedYUV:
		cfg, err = s.presentPackedYUV(phys)
	case format.FamilyPackedRGB:
		cfg, err = s.presentRGB(phys)
	default:
		err = fmt.Errorf("show overlay: %w: %s", ErrUnsupported, f)
	}
	if err != nil {
		return err
	}

	if err := s.drv.SetLayerConfig(&cfg); err != nil {
		s.log.Error("layer config commit failed",
			"trace_id", frame.TraceID, "format", f, "error", err)
		return fmt.Errorf("show overlay: %w: %v", ErrCommit, err)
	}
	s.current = &cfg
	if err := s.lyr.Show(); err != nil {
		return err
	}
	s.log.Debug("frame presented",
		"trace_id", frame.TraceID, "format", f,
		"crop_w", cfg.Crop.W, "crop_h", cfg.Crop.H)
	return nil
}

// resolvePhys turns a frame's backing memory into a physical address
// the display controller can scan out from.
func (s *Sink) resolvePhys(frame *Frame) (uintptr, error) {
	if frame.PhysicallyContiguous {
		if s.adapter == nil {
			return 0, fmt.Errorf("show overlay: %w: no memory adapter", ErrUnsupported)
		}
		return s.adapter.PhysAddr(virtAddr(frame.Data))
	}
	if s.opts.ExtraVideoMemory == 0 {
		return s.fb.base + frame.Offset, nil
	}
	if s.adapter == nil {
		return 0, fmt.Errorf("show overlay: %w: no memory adapter", ErrUnsupported)
	}
	virt := virtAddr(frame.Data)
	if err := s.adapter.FlushCache(virt, len(frame.Data)); err != nil {
		return 0, err
	}
	return s.adapter.PhysAddr(virt)
}

// actualSize is the decoder-reported output size, which the crop
// rectangle follows so padding rows and columns never reach the screen.
// Without an adapter, or before the decoder reports, the negotiated
// size stands in.
func (s *Sink) actualSize() (int, int) {
	if s.adapter != nil {
		if w, h := s.adapter.ActualSize(); w > 0 && h > 0 {
			return w, h
		}
	}
	return s.info.Width, s.info.Height
}
