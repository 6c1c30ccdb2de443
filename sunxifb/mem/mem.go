// Package mem provides access to physically contiguous memory, which the
// display and rotation engines require for DMA, and the double-buffered
// scratch pool the rotation pipeline renders into.
package mem

import "errors"

// ErrNoMemory is returned when a physically contiguous allocation fails.
// The failure aborts only the current frame; the devices stay open.
var ErrNoMemory = errors.New("mem: no physically contiguous memory")

// Block is a physically contiguous allocation.
type Block interface {
	// Bytes is the CPU mapping of the block.
	Bytes() []byte
	// PhysAddr is the physical base address, usable for DMA descriptors.
	PhysAddr() uintptr
	// Size is the allocation size in bytes.
	Size() int
	// Close releases the block.
	Close() error
}

// Adapter is the process-wide memory service the sink borrows. It is a
// shared capability: the sink invokes it but does not own its lifetime.
type Adapter interface {
	// Alloc obtains a physically contiguous block of the given size.
	Alloc(size int) (Block, error)
	// PhysAddr translates a CPU-mapped virtual address to physical.
	PhysAddr(virt uintptr) (uintptr, error)
	// FlushCache writes back CPU caches for a mapped range so a device
	// reading through DMA sees the data.
	FlushCache(virt uintptr, size int) error
	// ActualSize reports the decoder's actual output dimensions, which
	// may be smaller than the padded buffer geometry. Zero means the
	// decoder has not reported.
	ActualSize() (width, height int)
}
