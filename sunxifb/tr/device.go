package tr

import (
	"fmt"
	"unsafe"

	"github.com/sunxi-display/go-sunxifb/sunxifb/dev"
)

// Transform engine ioctl commands. The driver multiplexes everything
// through an args[4] array, like the display controller.
const (
	trRequest    = 0x01
	trRelease    = 0x02
	trCommit     = 0x03
	trQuery      = 0x04
	trSetTimeout = 0x05
)

// Transform engine pixel formats. Only planar 4:2:0 is submitted by the
// pipeline; the rest are listed for completeness of the wire enum.
const (
	trFmtARGB8888   = 0x00
	trFmtYUV420P    = 0x0a
	trFmtYUV420SPUV = 0x0b
	trFmtYUV420SPVU = 0x0c
)

// Transform engine modes. Unlike the rotation property, vertical flip
// is 5 on the wire.
const (
	trModeRot0   = 0
	trModeRot90  = 1
	trModeRot180 = 2
	trModeRot270 = 3
	trModeHFlip  = 4
	trModeVFlip  = 5
)

type trRect struct {
	X, Y int32
	W, H uint32
}

type trFrame struct {
	Fmt    uint32
	LAddr  [3]uintptr
	HAddr  [3]uintptr
	Pitch  [3]uint32
	Height [3]uint32
}

type trInfo struct {
	Mode    uint32
	Src     trFrame
	SrcRect trRect
	Dst     trFrame
	DstRect trRect
}

// Status is the outcome of a Query.
type Status int

const (
	StatusDone    Status = 0
	StatusBusy    Status = 1
	StatusTimeout Status = -1
)

// Device is the transform engine control surface. A channel is requested
// once, configured with a hardware timeout, and then jobs are committed
// and polled on it.
type Device interface {
	RequestChannel() (uintptr, error)
	ReleaseChannel(channel uintptr) error
	SetTimeout(channel uintptr, ms int) error
	Commit(channel uintptr, info *trInfo) error
	Query(channel uintptr) Status
	Close() error
}

// TransformDevice talks to /dev/transform.
type TransformDevice struct {
	f *dev.File
}

// OpenTransform opens the transform engine device node.
func OpenTransform(path string) (*TransformDevice, error) {
	if path == "" {
		path = "/dev/transform"
	}
	f, err := dev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	return &TransformDevice{f: f}, nil
}

func (d *TransformDevice) RequestChannel() (uintptr, error) {
	var args [4]uintptr
	ret := d.f.IoctlRet(trRequest, unsafe.Pointer(&args[0]))
	if ret <= 0 {
		return 0, fmt.Errorf("transform: channel request failed (%d)", ret)
	}
	return uintptr(ret), nil
}

func (d *TransformDevice) ReleaseChannel(channel uintptr) error {
	args := [4]uintptr{channel}
	if ret := d.f.IoctlRet(trRelease, unsafe.Pointer(&args[0])); ret < 0 {
		return fmt.Errorf("transform: channel release failed (%d)", ret)
	}
	return nil
}

func (d *TransformDevice) SetTimeout(channel uintptr, ms int) error {
	args := [4]uintptr{channel, uintptr(ms)}
	if ret := d.f.IoctlRet(trSetTimeout, unsafe.Pointer(&args[0])); ret < 0 {
		return fmt.Errorf("transform: set timeout failed (%d)", ret)
	}
	return nil
}

func (d *TransformDevice) Commit(channel uintptr, info *trInfo) error {
	args := [4]uintptr{channel, uintptr(unsafe.Pointer(info))}
	if ret := d.f.IoctlRet(trCommit, unsafe.Pointer(&args[0])); ret < 0 {
		return fmt.Errorf("transform: commit failed (%d)", ret)
	}
	return nil
}

func (d *TransformDevice) Query(channel uintptr) Status {
	args := [4]uintptr{channel}
	return Status(d.f.IoctlRet(trQuery, unsafe.Pointer(&args[0])))
}

func (d *TransformDevice) Close() error {
	return d.f.Close()
}
