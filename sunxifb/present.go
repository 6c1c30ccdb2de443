package sunxifb

import (
	"context"
	"unsafe"

	"github.com/sunxi-display/go-sunxifb/sunxifb/disp"
	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
	"github.com/sunxi-display/go-sunxifb/sunxifb/layout"
	"github.com/sunxi-display/go-sunxifb/sunxifb/tr"
)

func virtAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// baseConfig fills the fields every presenter shares: layer identity,
// a full-screen destination window and the color-space matrix for it.
func (s *Sink) baseConfig(f format.Format) disp.LayerConfig {
	screen := disp.Rect{W: s.screenW, H: s.screenH}
	return disp.LayerConfig{
		Channel:    s.opts.Channel,
		LayerID:    s.opts.LayerID,
		Enable:     true,
		Format:     disp.PixelFormatFor(f),
		Screen:     screen,
		ColorSpace: disp.ColorSpaceFor(screen.H),
	}
}

// presentPlanar handles 4:2:0 and planar 4:4:4 sources. It is the only
// presenter with a rotation path; the chroma-order quirk of YV12 is
// applied here so the drivers always see canonical plane order.
func (s *Sink) presentPlanar(ctx context.Context, phys uintptr, frame *Frame) (disp.LayerConfig, error) {
	f := s.info.Format
	cfg := s.baseConfig(f)

	addr := [3]uintptr{
		phys + uintptr(s.geom.PlaneOffset[0]),
		phys + uintptr(s.geom.PlaneOffset[1]),
		phys + uintptr(s.geom.PlaneOffset[2]),
	}
	if f.SwapChroma() {
		addr[1], addr[2] = addr[2], addr[1]
	}

	cropW, cropH := s.actualSize()

	// Y444 scan-out cannot go through the 4:2:0-only rotation engines.
	rotate := s.opts.RotateAngle != tr.Rot0 && s.rotator != nil && f.Subsampled()
	if !rotate {
		width := layout.WidthInPixels(f, s.geom.PlaneStride[0])
		cfg.Addr = [3]uint64{uint64(addr[0]), uint64(addr[1]), uint64(addr[2])}
		cfg.Size[0] = disp.Size{W: width, H: s.info.Height}
		cw, ch := layout.ChromaSize(f, width, s.info.Height)
		cfg.Size[1] = disp.Size{W: cw, H: ch}
		cfg.Size[2] = cfg.Size[1]
		cfg.Crop = disp.Rect{W: cropW, H: cropH}
		return cfg, nil
	}

	src := tr.Frame{
		Format: f,
		Addr:   addr,
		Pitch: [3]int{
			s.geom.PlaneStride[0],
			s.geom.PlaneStride[1],
			s.geom.PlaneStride[2],
		},
		Height: [3]int{
			s.info.Height,
			(s.info.Height + 1) / 2,
			(s.info.Height + 1) / 2,
		},
	}
	res, err := s.rotator.Rotate(ctx, s.opts.RotateAngle, src,
		tr.Rect{W: cropW, H: cropH})
	if err != nil {
		return disp.LayerConfig{}, err
	}

	cfg.Addr = [3]uint64{uint64(res.Addr[0]), uint64(res.Addr[1]), uint64(res.Addr[2])}
	cfg.Size[0] = disp.Size{W: res.Pitch[0], H: res.Height[0]}
	cfg.Size[1] = disp.Size{W: res.Pitch[1], H: res.Height[1]}
	cfg.Size[2] = disp.Size{W: res.Pitch[2], H: res.Height[2]}
	cfg.Crop = disp.Rect{W: res.Rect.W, H: res.Rect.H}
	cfg.Screen = s.rotatedWindow(res.Rect.W, res.Rect.H)
	cfg.ColorSpace = disp.ColorSpaceFor(cfg.Screen.H)
	return cfg, nil
}

// rotatedWindow centers a transposed frame on the screen. The window is
// recomputed only when the rotated geometry changes, so a steady stream
// keeps a stable destination rectangle.
func (s *Sink) rotatedWindow(w, h int) disp.Rect {
	if !s.opts.RotateAngle.Transposes() {
		return disp.Rect{W: s.screenW, H: s.screenH}
	}
	if w != s.centeredW || h != s.centeredH {
		s.centeredW, s.centeredH = w, h
		s.log.Info("re-centering rotated overlay window", "width", w, "height", h)
	}
	x := (s.screenW - w) / 2
	y := (s.screenH - h) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return disp.Rect{X: x, Y: y, W: w, H: h}
}

// presentPackedYUV handles the interleaved 4:2:2 and 4:4:4 formats.
// Rotation does not apply; the single plane carries everything.
func (s *Sink) presentPackedYUV(phys uintptr) (disp.LayerConfig, error) {
	f := s.info.Format
	cfg := s.baseConfig(f)
	width := layout.WidthInPixels(f, s.geom.PlaneStride[0])
	cfg.Addr[0] = uint64(phys + uintptr(s.geom.PlaneOffset[0]))
	cfg.Size[0] = disp.Size{W: width, H: s.info.Height}
	cropW, cropH := s.actualSize()
	cfg.Crop = disp.Rect{W: cropW, H: cropH}
	return cfg, nil
}

// presentRGB handles packed RGB32 sources.
func (s *Sink) presentRGB(phys uintptr) (disp.LayerConfig, error) {
	f := s.info.Format
	cfg := s.baseConfig(f)
	width := layout.WidthInPixels(f, s.geom.PlaneStride[0])
	cfg.Addr[0] = uint64(phys + uintptr(s.geom.PlaneOffset[0]))
	cfg.Size[0] = disp.Size{W: width, H: s.info.Height}
	cropW, cropH := s.actualSize()
	cfg.Crop = disp.Rect{W: cropW, H: cropH}
	return cfg, nil
}
