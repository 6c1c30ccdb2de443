package disp

import (
	"fmt"
	"unsafe"
)

// legacy disp ioctl command numbers.
const (
	lgScnGetWidth  = 0x08
	lgScnGetHeight = 0x09
	lgLayerOpen    = 0x42
	lgLayerClose   = 0x43
	lgLayerSetPara = 0x4a
	lgLayerGetPara = 0x4b
)

// legacy wire enums. The pixel format is a family code plus separate
// plane-mode and component-sequence fields.
const (
	lgFmtARGB8888 = 0x0d
	lgFmtYUV444   = 0x10
	lgFmtYUV422   = 0x11
	lgFmtYUV420   = 0x12

	lgModInterleaved = 0x01
	lgModPlanar      = 0x00
	lgModUVCombined  = 0x02

	lgSeqARGB = 0x00
	lgSeqP10  = 0x10
	lgSeqUVUV = 0x05
	lgSeqVUVU = 0x06

	lgWorkModeScaler = 4

	lgCSModeBT601 = 0
	lgCSModeBT709 = 1

	// Fixed layer attributes on the legacy interface.
	lgPrio = 3
	lgPipe = 0
)

type lgRect struct {
	X int32
	Y int32
	W uint32
	H uint32
}

type lgFB struct {
	Addr        [3]uint32
	Size        d2RectSz
	Format      uint32
	Seq         uint32
	Mode        uint32
	BrSwap      uint8
	CSMode      uint32
	PreMultiply uint8
}

type lgLayerInfo struct {
	WorkMode   uint32
	FromScreen uint8
	Pipe       uint8
	Prio       uint8
	AlphaEn    uint8
	AlphaVal   uint16
	CKEnable   uint8
	ScnWin     lgRect
	SrcWin     lgRect
	FB         lgFB
}

// LegacyDriver programs layers through the original disp interface:
// parameters are read, modified and written back per channel, all planes
// share one 2D size, and the layer runs in scaler work mode.
type LegacyDriver struct {
	conn Conn
}

// NewLegacy returns a driver over an open /dev/disp connection using the
// legacy ABI.
func NewLegacy(conn Conn) *LegacyDriver {
	return &LegacyDriver{conn: conn}
}

func (d *LegacyDriver) args(vals ...uintptr) [4]uintptr {
	var a [4]uintptr
	copy(a[:], vals)
	return a
}

// LayerConfig reads the current layer parameters.
func (d *LegacyDriver) LayerConfig(channel, layer int) (LayerConfig, error) {
	var wire lgLayerInfo
	a := d.args(uintptr(channel), uintptr(layer), uintptr(unsafe.Pointer(&wire)))
	if err := d.conn.Ioctl(lgLayerGetPara, unsafe.Pointer(&a)); err != nil {
		return LayerConfig{}, fmt.Errorf("disp: get layer para: %w", err)
	}
	cfg := LayerConfig{
		Channel: channel,
		LayerID: layer,
		Format:  lgLogical(wire.FB.Format, wire.FB.Mode, wire.FB.Seq),
		Crop: Rect{
			X: int(wire.SrcWin.X), Y: int(wire.SrcWin.Y),
			W: int(wire.SrcWin.W), H: int(wire.SrcWin.H),
		},
		Screen: Rect{
			X: int(wire.ScnWin.X), Y: int(wire.ScnWin.Y),
			W: int(wire.ScnWin.W), H: int(wire.ScnWin.H),
		},
	}
	for i := 0; i < 3; i++ {
		cfg.Addr[i] = uint64(wire.FB.Addr[i])
	}
	cfg.Size[0] = Size{W: int(wire.FB.Size.W), H: int(wire.FB.Size.H)}
	if wire.FB.CSMode == lgCSModeBT709 {
		cfg.ColorSpace = BT709
	}
	return cfg, nil
}

// SetLayerConfig folds the logical configuration into the legacy
// parameter block and writes it back. Only plane 0's size exists on this
// interface; the hardware derives the chroma geometry from the format.
func (d *LegacyDriver) SetLayerConfig(cfg *LayerConfig) error {
	var wire lgLayerInfo
	// Read-modify-write: start from what the kernel currently holds so
	// fields this driver does not own keep their values.
	a := d.args(uintptr(cfg.Channel), uintptr(cfg.LayerID), uintptr(unsafe.Pointer(&wire)))
	if err := d.conn.Ioctl(lgLayerGetPara, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("disp: get layer para: %w", err)
	}

	wire.WorkMode = lgWorkModeScaler
	wire.Pipe = lgPipe
	wire.Prio = lgPrio
	wire.AlphaEn = 0
	wire.AlphaVal = 0xff
	for i := 0; i < 3; i++ {
		wire.FB.Addr[i] = uint32(cfg.Addr[i])
	}
	wire.FB.Size = d2RectSz{W: uint32(cfg.Size[0].W), H: uint32(cfg.Size[0].H)}
	wire.FB.Format, wire.FB.Mode, wire.FB.Seq = lgWire(cfg.Format)
	wire.FB.PreMultiply = 0
	if cfg.ColorSpace == BT709 {
		wire.FB.CSMode = lgCSModeBT709
	} else {
		wire.FB.CSMode = lgCSModeBT601
	}
	wire.SrcWin = lgRect{
		X: int32(cfg.Crop.X), Y: int32(cfg.Crop.Y),
		W: uint32(cfg.Crop.W), H: uint32(cfg.Crop.H),
	}
	wire.ScnWin = lgRect{
		X: int32(cfg.Screen.X), Y: int32(cfg.Screen.Y),
		W: uint32(cfg.Screen.W), H: uint32(cfg.Screen.H),
	}

	a = d.args(uintptr(cfg.Channel), uintptr(cfg.LayerID), uintptr(unsafe.Pointer(&wire)))
	if err := d.conn.Ioctl(lgLayerSetPara, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	if cfg.Enable {
		return d.SetLayerEnable(cfg.Channel, cfg.LayerID, true)
	}
	return nil
}

// SetLayerEnable opens or closes the layer.
func (d *LegacyDriver) SetLayerEnable(channel, layer int, enable bool) error {
	cmd := uintptr(lgLayerClose)
	if enable {
		cmd = lgLayerOpen
	}
	a := d.args(uintptr(channel), uintptr(layer))
	if err := d.conn.Ioctl(cmd, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("disp: layer enable=%v: %w", enable, err)
	}
	return nil
}

// ScreenWidth queries the output width in pixels.
func (d *LegacyDriver) ScreenWidth() (int, error) {
	a := d.args(0)
	w := d.conn.IoctlRet(lgScnGetWidth, unsafe.Pointer(&a))
	if w < 0 {
		return w, fmt.Errorf("disp: screen width query returned %d", w)
	}
	return w, nil
}

// ScreenHeight queries the output height in pixels.
func (d *LegacyDriver) ScreenHeight() (int, error) {
	a := d.args(0)
	h := d.conn.IoctlRet(lgScnGetHeight, unsafe.Pointer(&a))
	if h < 0 {
		return h, fmt.Errorf("disp: screen height query returned %d", h)
	}
	return h, nil
}

func (d *LegacyDriver) Close() error { return d.conn.Close() }

func lgWire(f PixelFormat) (format, mode, seq uint32) {
	switch f {
	case FormatYUV420P:
		return lgFmtYUV420, lgModPlanar, lgSeqP10
	case FormatYUV420SPUVUV:
		return lgFmtYUV420, lgModUVCombined, lgSeqUVUV
	case FormatYUV420SPVUVU:
		return lgFmtYUV420, lgModUVCombined, lgSeqVUVU
	case FormatYUV422P:
		return lgFmtYUV422, lgModPlanar, lgSeqP10
	case FormatYUV444P:
		return lgFmtYUV444, lgModPlanar, lgSeqP10
	default:
		return lgFmtARGB8888, lgModInterleaved, lgSeqARGB
	}
}

func lgLogical(format, mode, seq uint32) PixelFormat {
	switch format {
	case lgFmtYUV420:
		if mode == lgModUVCombined {
			if seq == lgSeqVUVU {
				return FormatYUV420SPVUVU
			}
			return FormatYUV420SPUVUV
		}
		return FormatYUV420P
	case lgFmtYUV422:
		return FormatYUV422P
	case lgFmtYUV444:
		return FormatYUV444P
	default:
		return FormatARGB8888
	}
}
