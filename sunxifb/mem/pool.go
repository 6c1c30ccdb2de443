package mem

import (
	"fmt"
	"log/slog"
	"unsafe"
)

// RotatePool owns the two physically contiguous destination buffers the
// rotation engine alternates between, so the engine never writes the
// buffer the display controller may still be scanning out.
//
// The parity counter lives on the pool instance; multiple sinks each get
// their own alternation discipline.
type RotatePool struct {
	adapter Adapter
	slots   [2]Block
	width   int // aligned luma width the slots were sized for
	height  int
	parity  int
}

// NewRotatePool creates an empty pool. Buffers are allocated on first
// Acquire and reused for the life of the pool.
func NewRotatePool(adapter Adapter) *RotatePool {
	return &RotatePool{adapter: adapter}
}

// Acquire returns the next destination slot for an aligned luma geometry,
// strictly alternating between the two buffers. Each slot holds
// width × height × 3/2 bytes (4:2:0 packing). A geometry change frees and
// reallocates both slots; the previous hardware never resized them, which
// left a mid-stream resolution change scanning garbage.
func (p *RotatePool) Acquire(width, height int) (Block, error) {
	if p.slots[0] != nil && (width != p.width || height != p.height) {
		slog.Info("rotate pool geometry changed, reallocating",
			"old", fmt.Sprintf("%dx%d", p.width, p.height),
			"new", fmt.Sprintf("%dx%d", width, height))
		p.release()
	}

	if p.slots[0] == nil {
		size := width * height * 3 / 2
		for i := range p.slots {
			b, err := p.adapter.Alloc(size)
			if err != nil {
				p.release()
				return nil, fmt.Errorf("%w: rotate slot %d (%d bytes)", ErrNoMemory, i, size)
			}
			// Zero the slot and flush so the engine's first read of an
			// untouched region is black, not stale cache lines.
			buf := b.Bytes()
			for j := range buf {
				buf[j] = 0
			}
			if err := p.adapter.FlushCache(uintptr(unsafe.Pointer(&buf[0])), size); err != nil {
				slog.Error("rotate pool cache flush failed", "error", err)
			}
			p.slots[i] = b
		}
		p.width, p.height = width, height
	}

	slot := p.slots[p.parity]
	p.parity ^= 1
	return slot, nil
}

// Allocated reports whether the pool currently holds buffers.
func (p *RotatePool) Allocated() bool { return p.slots[0] != nil }

// Close frees both slots.
func (p *RotatePool) Close() error {
	p.release()
	return nil
}

func (p *RotatePool) release() {
	for i, b := range p.slots {
		if b != nil {
			if err := b.Close(); err != nil {
				slog.Error("rotate pool release failed", "slot", i, "error", err)
			}
			p.slots[i] = nil
		}
	}
	p.width, p.height = 0, 0
}
