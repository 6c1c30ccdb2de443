//go:build linux

package mem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sunxi-display/go-sunxifb/sunxifb/dev"
)

// IONAdapter implements Adapter over the ION allocator (/dev/ion) with
// the sunxi custom commands for physical address lookup and cache
// maintenance. It is the concrete memory service on Allwinner boards;
// tests use an in-process fake instead.
type IONAdapter struct {
	f *dev.File

	// decoder output dimensions, reported through ActualSize. The video
	// decoder updates these out of band; zero means "same as buffer".
	actualW int
	actualH int
}

const ionHeapTypeDMAMask = 1 << 1 // ION_HEAP_TYPE_DMA: CMA-backed, contiguous

type ionAllocationData struct {
	Len        uint64
	Align      uint64
	HeapIDMask uint32
	Flags      uint32
	Handle     int32
	_          [4]byte
}

type ionHandleData struct {
	Handle int32
	_      [4]byte
}

type ionFDData struct {
	Handle int32
	FD     int32
}

type ionCustomData struct {
	Cmd uint32
	_   [4]byte
	Arg uint64
}

type sunxiPhysData struct {
	Handle   int32
	PhysAddr uint32
	Size     uint32
}

type sunxiCacheRange struct {
	Start uint64
	End   uint64
}

var (
	ionIocAlloc  = dev.IOWR('I', 0, unsafe.Sizeof(ionAllocationData{}))
	ionIocFree   = dev.IOWR('I', 1, unsafe.Sizeof(ionHandleData{}))
	ionIocMap    = dev.IOWR('I', 2, unsafe.Sizeof(ionFDData{}))
	ionIocCustom = dev.IOWR('I', 6, unsafe.Sizeof(ionCustomData{}))
)

const (
	sunxiIonCmdFlushRange = 5
	sunxiIonCmdPhysAddr   = 7
)

// OpenION opens the ION device.
func OpenION(path string) (*IONAdapter, error) {
	f, err := dev.Open(path)
	if err != nil {
		return nil, err
	}
	return &IONAdapter{f: f}, nil
}

// SetActualSize records the decoder's actual output dimensions.
func (a *IONAdapter) SetActualSize(w, h int) { a.actualW, a.actualH = w, h }

// ActualSize reports the decoder's actual output dimensions.
func (a *IONAdapter) ActualSize() (int, int) { return a.actualW, a.actualH }

// Alloc obtains a contiguous block from the CMA heap and maps it.
func (a *IONAdapter) Alloc(size int) (Block, error) {
	alloc := ionAllocationData{
		Len:        uint64(size),
		Align:      uint64(4096),
		HeapIDMask: ionHeapTypeDMAMask,
	}
	if err := a.f.Ioctl(ionIocAlloc, unsafe.Pointer(&alloc)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMemory, err)
	}

	fdData := ionFDData{Handle: alloc.Handle}
	if err := a.f.Ioctl(ionIocMap, unsafe.Pointer(&fdData)); err != nil {
		a.free(alloc.Handle)
		return nil, fmt.Errorf("ion map: %w", err)
	}
	buf, err := unix.Mmap(int(fdData.FD), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(int(fdData.FD))
		a.free(alloc.Handle)
		return nil, fmt.Errorf("ion mmap: %w", err)
	}

	phys := sunxiPhysData{Handle: alloc.Handle}
	custom := ionCustomData{
		Cmd: sunxiIonCmdPhysAddr,
		Arg: uint64(uintptr(unsafe.Pointer(&phys))),
	}
	if err := a.f.Ioctl(ionIocCustom, unsafe.Pointer(&custom)); err != nil {
		unix.Munmap(buf)
		unix.Close(int(fdData.FD))
		a.free(alloc.Handle)
		return nil, fmt.Errorf("ion phys addr: %w", err)
	}

	return &ionBlock{
		adapter: a,
		handle:  alloc.Handle,
		dmaFD:   int(fdData.FD),
		buf:     buf,
		phys:    uintptr(phys.PhysAddr),
	}, nil
}

// PhysAddr translates a mapped virtual address. The translation only
// tracks addresses inside blocks this adapter handed out.
func (a *IONAdapter) PhysAddr(virt uintptr) (uintptr, error) {
	phys := sunxiPhysData{}
	custom := ionCustomData{
		Cmd: sunxiIonCmdPhysAddr,
		Arg: uint64(uintptr(unsafe.Pointer(&phys))),
	}
	// The sunxi command resolves by virtual address when the handle is 0.
	phys.PhysAddr = uint32(virt)
	if err := a.f.Ioctl(ionIocCustom, unsafe.Pointer(&custom)); err != nil {
		return 0, fmt.Errorf("ion phys addr: %w", err)
	}
	return uintptr(phys.PhysAddr), nil
}

// FlushCache writes back the CPU cache for a mapped range.
func (a *IONAdapter) FlushCache(virt uintptr, size int) error {
	rng := sunxiCacheRange{Start: uint64(virt), End: uint64(virt) + uint64(size)}
	custom := ionCustomData{
		Cmd: sunxiIonCmdFlushRange,
		Arg: uint64(uintptr(unsafe.Pointer(&rng))),
	}
	if err := a.f.Ioctl(ionIocCustom, unsafe.Pointer(&custom)); err != nil {
		return fmt.Errorf("ion flush range: %w", err)
	}
	return nil
}

// Close closes the ION device. Outstanding blocks stay valid until their
// own Close.
func (a *IONAdapter) Close() error { return a.f.Close() }

func (a *IONAdapter) free(handle int32) {
	h := ionHandleData{Handle: handle}
	_ = a.f.Ioctl(ionIocFree, unsafe.Pointer(&h))
}

type ionBlock struct {
	adapter *IONAdapter
	handle  int32
	dmaFD   int
	buf     []byte
	phys    uintptr
}

func (b *ionBlock) Bytes() []byte     { return b.buf }
func (b *ionBlock) PhysAddr() uintptr { return b.phys }
func (b *ionBlock) Size() int         { return len(b.buf) }

func (b *ionBlock) Close() error {
	err := unix.Munmap(b.buf)
	unix.Close(b.dmaFD)
	b.adapter.free(b.handle)
	return err
}
