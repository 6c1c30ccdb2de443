package sunxifb

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sunxi-display/go-sunxifb/sunxifb/dev"
)

const fbioGetFScreenInfo = 0x4602

// fbFixScreenInfo mirrors struct fb_fix_screeninfo.
type fbFixScreenInfo struct {
	ID           [16]byte
	SmemStart    uintptr
	SmemLen      uint32
	Type         uint32
	TypeAux      uint32
	Visual       uint32
	XPanStep     uint16
	YPanStep     uint16
	YWrapStep    uint16
	_            uint16
	LineLength   uint32
	MmioStart    uintptr
	MmioLen      uint32
	Accel        uint32
	Capabilities uint16
	_            [2]uint16
}

// framebuffer is the sink's window into /dev/fb0: the physical base of
// video memory for offset translation, and the mapping used to clear
// the screen behind the overlay.
type framebuffer struct {
	f    *dev.File
	mapp []byte
	base uintptr
	size int
}

func openFramebuffer(path string) (*framebuffer, error) {
	if path == "" {
		path = "/dev/fb0"
	}
	f, err := dev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framebuffer: %w", err)
	}
	var fix fbFixScreenInfo
	if err := f.Ioctl(fbioGetFScreenInfo, unsafe.Pointer(&fix)); err != nil {
		f.Close()
		return nil, fmt.Errorf("framebuffer: screeninfo: %w", err)
	}
	mapp, err := unix.Mmap(f.Fd(), 0, int(fix.SmemLen),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("framebuffer: mmap: %w", err)
	}
	return &framebuffer{f: f, mapp: mapp, base: fix.SmemStart, size: int(fix.SmemLen)}, nil
}

// clear blanks the entire video memory so stale framebuffer content
// never shows through around the overlay window.
func (fb *framebuffer) clear() {
	for i := range fb.mapp {
		fb.mapp[i] = 0
	}
}

func (fb *framebuffer) close() error {
	if fb.mapp != nil {
		unix.Munmap(fb.mapp)
		fb.mapp = nil
	}
	return fb.f.Close()
}
