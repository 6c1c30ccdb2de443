package tr

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/sunxi-display/go-sunxifb/sunxifb/dev"
	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
	"github.com/sunxi-display/go-sunxifb/sunxifb/layout"
	"github.com/sunxi-display/go-sunxifb/sunxifb/mem"
)

// G2D blit command and transform flags.
const (
	g2dCmdBitblt = 0x50

	g2dBltRot90  = 0x01
	g2dBltRot180 = 0x02
	g2dBltRot270 = 0x03
	g2dBltHFlip  = 0x04
	g2dBltVFlip  = 0x08
	g2dBltNone   = 0x00
)

// G2D image formats. The engine handles many more, but only the two the
// blit path accepts are mapped.
const (
	g2dFmtYUV420Planar = 0x23
	g2dFmtYUV420VUVU   = 0x27
)

type g2dRect struct {
	X, Y int32
	W, H uint32
}

type g2dImage struct {
	Format   uint32
	LAddr    [3]uintptr
	HAddr    [3]uintptr
	Width    uint32
	Height   uint32
	Align    [3]uint32
	ClipRect g2dRect
	Gamut    uint32
	Premul   uint32
	Alpha    uint32
	Mode     uint32
}

type g2dBlit struct {
	Flags uint32
	Src   g2dImage
	Dst   g2dImage
}

// blitConn is the ioctl surface the engine blits through. *dev.File
// satisfies it; tests substitute an in-process fake.
type blitConn interface {
	IoctlRet(req uintptr, arg unsafe.Pointer) int
	Close() error
}

// G2DEngine rotates frames through the mali G2D blitter. The blit is a
// single blocking ioctl, so there is no submit/poll loop. Only YV12 and
// NV21 sources are handled; everything else must go through the
// transform engine.
type G2DEngine struct {
	conn blitConn
	pool *mem.RotatePool
}

// OpenG2D opens the G2D device node.
func OpenG2D(path string, pool *mem.RotatePool) (*G2DEngine, error) {
	if path == "" {
		path = "/dev/g2d"
	}
	f, err := dev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("g2d: %w", err)
	}
	return &G2DEngine{conn: f, pool: pool}, nil
}

// NewG2D returns an engine over an already open connection.
func NewG2D(conn blitConn, pool *mem.RotatePool) *G2DEngine {
	return &G2DEngine{conn: conn, pool: pool}
}

// Rotate performs a one-shot blit into a pool-owned buffer. The call
// returns once the ioctl does; ctx is checked only before submission
// because the blit itself cannot be interrupted.
func (g *G2DEngine) Rotate(ctx context.Context, mode Mode, src Frame, srcRect Rect) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	srcFmt, err := g2dFormat(src.Format)
	if err != nil {
		return Result{}, err
	}
	flags, err := g2dFlags(mode)
	if err != nil {
		return Result{}, err
	}

	wa := layout.Align32(src.Pitch[0])
	ha := layout.Align32(src.Height[0])
	slot, err := g.pool.Acquire(wa, ha)
	if err != nil {
		return Result{}, err
	}
	base := slot.PhysAddr()
	lumaSize := uintptr(wa * ha)

	res := Result{
		Addr: [3]uintptr{base, base + lumaSize, base + lumaSize*5/4},
	}
	if mode.Transposes() {
		res.Rect = Rect{W: srcRect.H, H: srcRect.W}
		res.Pitch = [3]int{ha, ha / 2, ha / 2}
		res.Height = [3]int{wa, wa / 2, wa / 2}
	} else {
		res.Rect = Rect{W: srcRect.W, H: srcRect.H}
		res.Pitch = [3]int{wa, wa / 2, wa / 2}
		res.Height = [3]int{ha, ha / 2, ha / 2}
	}

	blit := g2dBlit{
		Flags: flags,
		// Image dimensions carry the 32-aligned buffer geometry the
		// blitter requires; the clip rectangles bound the visible pixels.
		Src: g2dImage{
			Format: srcFmt,
			LAddr:  src.Addr,
			Width:  uint32(wa),
			Height: uint32(ha),
			ClipRect: g2dRect{
				X: int32(srcRect.X), Y: int32(srcRect.Y),
				W: uint32(srcRect.W), H: uint32(srcRect.H),
			},
		},
		Dst: g2dImage{
			Format: srcFmt,
			LAddr:  res.Addr,
			Width:  uint32(res.Pitch[0]),
			Height: uint32(res.Height[0]),
			ClipRect: g2dRect{
				W: uint32(res.Rect.W), H: uint32(res.Rect.H),
			},
		},
	}
	if ret := g.conn.IoctlRet(g2dCmdBitblt, unsafe.Pointer(&blit)); ret < 0 {
		return Result{}, fmt.Errorf("g2d: bitblt failed (%d)", ret)
	}
	return res, nil
}

func (g *G2DEngine) Close() error {
	return g.conn.Close()
}

func g2dFormat(f format.Format) (uint32, error) {
	switch f {
	case format.YV12:
		return g2dFmtYUV420Planar, nil
	case format.NV21:
		return g2dFmtYUV420VUVU, nil
	}
	return 0, fmt.Errorf("g2d: %w: format %s", layout.ErrUnsupported, f)
}

func g2dFlags(mode Mode) (uint32, error) {
	switch mode {
	case Rot0:
		return g2dBltNone, nil
	case Rot90:
		return g2dBltRot90, nil
	case Rot180:
		return g2dBltRot180, nil
	case Rot270:
		return g2dBltRot270, nil
	case FlipH:
		return g2dBltHFlip, nil
	case FlipV:
		return g2dBltVFlip, nil
	}
	return 0, fmt.Errorf("g2d: %w: mode %d", layout.ErrUnsupported, int(mode))
}
