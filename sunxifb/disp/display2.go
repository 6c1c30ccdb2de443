package disp

import (
	"fmt"
	"unsafe"
)

// Conn is the ioctl transport a driver talks through. *dev.File
// satisfies it; tests substitute an in-process fake.
type Conn interface {
	Ioctl(req uintptr, arg unsafe.Pointer) error
	IoctlRet(req uintptr, arg unsafe.Pointer) int
	Close() error
}

// display2 ioctl command numbers.
const (
	d2GetScnWidth    = 0x07
	d2GetScnHeight   = 0x08
	d2LayerEnable    = 0x40
	d2LayerDisable   = 0x41
	d2LayerSetConfig = 0x47
	d2LayerGetConfig = 0x48
)

// display2 wire enums.
const (
	d2FmtARGB8888     = 0x00
	d2FmtYUV444P      = 0x50
	d2FmtYUV422P      = 0x51
	d2FmtYUV420P      = 0x52
	d2FmtYUV420SPUVUV = 0x62
	d2FmtYUV420SPVUVU = 0x63

	d2ModeBuffer       = 0
	d2BufferFlagNormal = 0
	d2ScanProgressive  = 0

	d2BT601 = 0
	d2BT709 = 1

	// Fixed layer attributes for the video overlay on this interface.
	d2ZOrder     = 11
	d2AlphaMode  = 1
	d2AlphaValue = 0xff
)

type d2RectSz struct {
	W uint32
	H uint32
}

type d2Rect struct {
	X int32
	Y int32
	W uint32
	H uint32
}

// d2Rect64 carries 32.32 fixed-point crop coordinates.
type d2Rect64 struct {
	X int64
	Y int64
	W int64
	H int64
}

type d2FBInfo struct {
	Addr         [3]uint64
	Size         [3]d2RectSz
	Align        [3]uint32
	Format       uint32
	ColorSpace   uint32
	TrdRightAddr [3]uint32
	PreMultiply  uint8
	Crop         d2Rect64
	Flags        uint32
	Scan         uint32
}

type d2LayerInfo struct {
	Mode       uint32
	ZOrder     uint8
	AlphaMode  uint8
	AlphaValue uint8
	Screen     d2Rect
	TrdOut     uint8
	OutTrdMode uint32
	FB         d2FBInfo
}

type d2LayerConfig struct {
	Info    d2LayerInfo
	Enable  uint8
	Channel uint32
	LayerID uint32
}

// Display2Driver programs layers through the display2 kernel interface:
// configuration keyed by {layer, channel}, three independent plane
// addresses and sizes, crop in 32.32 fixed point.
type Display2Driver struct {
	conn Conn
}

// NewDisplay2 returns a driver over an open /dev/disp connection.
func NewDisplay2(conn Conn) *Display2Driver {
	return &Display2Driver{conn: conn}
}

func (d *Display2Driver) args(vals ...uintptr) [4]uintptr {
	var a [4]uintptr
	copy(a[:], vals)
	return a
}

// LayerConfig reads back the current layer configuration.
func (d *Display2Driver) LayerConfig(channel, layer int) (LayerConfig, error) {
	wire := d2LayerConfig{Channel: uint32(channel), LayerID: uint32(layer)}
	a := d.args(uintptr(channel), uintptr(unsafe.Pointer(&wire)), 1)
	if err := d.conn.Ioctl(d2LayerGetConfig, unsafe.Pointer(&a)); err != nil {
		return LayerConfig{}, fmt.Errorf("disp: get layer config: %w", err)
	}
	return d.decode(&wire), nil
}

// SetLayerConfig commits a configuration as an atomic array of one.
func (d *Display2Driver) SetLayerConfig(cfg *LayerConfig) error {
	wire := d.encode(cfg)
	a := d.args(uintptr(cfg.Channel), uintptr(unsafe.Pointer(&wire)), 1)
	if err := d.conn.Ioctl(d2LayerSetConfig, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	return nil
}

// SetLayerEnable switches a layer without touching the rest of its
// configuration.
func (d *Display2Driver) SetLayerEnable(channel, layer int, enable bool) error {
	cmd := uintptr(d2LayerDisable)
	if enable {
		cmd = d2LayerEnable
	}
	a := d.args(uintptr(channel), uintptr(layer))
	if err := d.conn.Ioctl(cmd, unsafe.Pointer(&a)); err != nil {
		return fmt.Errorf("disp: layer enable=%v: %w", enable, err)
	}
	return nil
}

// ScreenWidth queries the output width in pixels.
func (d *Display2Driver) ScreenWidth() (int, error) {
	a := d.args(0)
	w := d.conn.IoctlRet(d2GetScnWidth, unsafe.Pointer(&a))
	if w < 0 {
		return w, fmt.Errorf("disp: screen width query returned %d", w)
	}
	return w, nil
}

// ScreenHeight queries the output height in pixels.
func (d *Display2Driver) ScreenHeight() (int, error) {
	a := d.args(0)
	h := d.conn.IoctlRet(d2GetScnHeight, unsafe.Pointer(&a))
	if h < 0 {
		return h, fmt.Errorf("disp: screen height query returned %d", h)
	}
	return h, nil
}

func (d *Display2Driver) Close() error { return d.conn.Close() }

func (d *Display2Driver) encode(cfg *LayerConfig) d2LayerConfig {
	wire := d2LayerConfig{
		Channel: uint32(cfg.Channel),
		LayerID: uint32(cfg.LayerID),
	}
	if cfg.Enable {
		wire.Enable = 1
	}

	info := &wire.Info
	info.Mode = d2ModeBuffer
	info.ZOrder = d2ZOrder
	info.AlphaMode = d2AlphaMode
	info.AlphaValue = d2AlphaValue
	info.Screen = d2Rect{
		X: int32(cfg.Screen.X), Y: int32(cfg.Screen.Y),
		W: uint32(cfg.Screen.W), H: uint32(cfg.Screen.H),
	}

	fb := &info.FB
	for i := 0; i < 3; i++ {
		fb.Addr[i] = cfg.Addr[i]
		fb.Size[i] = d2RectSz{W: uint32(cfg.Size[i].W), H: uint32(cfg.Size[i].H)}
	}
	fb.Format = d2Format(cfg.Format)
	if cfg.ColorSpace == BT709 {
		fb.ColorSpace = d2BT709
	} else {
		fb.ColorSpace = d2BT601
	}
	// Crop is 32.32 fixed point on this interface.
	fb.Crop = d2Rect64{
		X: int64(cfg.Crop.X) << 32, Y: int64(cfg.Crop.Y) << 32,
		W: int64(cfg.Crop.W) << 32, H: int64(cfg.Crop.H) << 32,
	}
	fb.Flags = d2BufferFlagNormal
	fb.Scan = d2ScanProgressive
	return wire
}

func (d *Display2Driver) decode(wire *d2LayerConfig) LayerConfig {
	cfg := LayerConfig{
		Channel: int(wire.Channel),
		LayerID: int(wire.LayerID),
		Enable:  wire.Enable != 0,
		Format:  d2Logical(wire.Info.FB.Format),
		Crop: Rect{
			X: int(wire.Info.FB.Crop.X >> 32), Y: int(wire.Info.FB.Crop.Y >> 32),
			W: int(wire.Info.FB.Crop.W >> 32), H: int(wire.Info.FB.Crop.H >> 32),
		},
		Screen: Rect{
			X: int(wire.Info.Screen.X), Y: int(wire.Info.Screen.Y),
			W: int(wire.Info.Screen.W), H: int(wire.Info.Screen.H),
		},
	}
	for i := 0; i < 3; i++ {
		cfg.Addr[i] = wire.Info.FB.Addr[i]
		cfg.Size[i] = Size{W: int(wire.Info.FB.Size[i].W), H: int(wire.Info.FB.Size[i].H)}
	}
	if wire.Info.FB.ColorSpace == d2BT709 {
		cfg.ColorSpace = BT709
	}
	return cfg
}

func d2Format(f PixelFormat) uint32 {
	switch f {
	case FormatYUV420P:
		return d2FmtYUV420P
	case FormatYUV420SPUVUV:
		return d2FmtYUV420SPUVUV
	case FormatYUV420SPVUVU:
		return d2FmtYUV420SPVUVU
	case FormatYUV422P:
		return d2FmtYUV422P
	case FormatYUV444P:
		return d2FmtYUV444P
	default:
		return d2FmtARGB8888
	}
}

func d2Logical(v uint32) PixelFormat {
	switch v {
	case d2FmtYUV420P:
		return FormatYUV420P
	case d2FmtYUV420SPUVUV:
		return FormatYUV420SPUVUV
	case d2FmtYUV420SPVUVU:
		return FormatYUV420SPVUVU
	case d2FmtYUV422P:
		return FormatYUV422P
	case d2FmtYUV444P:
		return FormatYUV444P
	default:
		return FormatARGB8888
	}
}
