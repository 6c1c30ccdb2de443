package mem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlock struct {
	buf    []byte
	phys   uintptr
	closed bool
}

func (b *fakeBlock) Bytes() []byte     { return b.buf }
func (b *fakeBlock) PhysAddr() uintptr { return b.phys }
func (b *fakeBlock) Size() int         { return len(b.buf) }
func (b *fakeBlock) Close() error      { b.closed = true; return nil }

type fakeAdapter struct {
	nextPhys uintptr
	allocs   []*fakeBlock
	flushes  int
	failAt   int // fail the nth allocation (1-based), 0 = never
}

func (a *fakeAdapter) Alloc(size int) (Block, error) {
	if a.failAt > 0 && len(a.allocs)+1 == a.failAt {
		return nil, errors.New("allocator exhausted")
	}
	a.nextPhys += 0x1000
	b := &fakeBlock{buf: make([]byte, size), phys: a.nextPhys}
	a.allocs = append(a.allocs, b)
	return b, nil
}

func (a *fakeAdapter) PhysAddr(virt uintptr) (uintptr, error) { return virt, nil }

func (a *fakeAdapter) FlushCache(virt uintptr, size int) error {
	a.flushes++
	return nil
}

func (a *fakeAdapter) ActualSize() (int, int) { return 0, 0 }

func TestPoolParityAlternates(t *testing.T) {
	adapter := &fakeAdapter{}
	pool := NewRotatePool(adapter)
	defer pool.Close()

	first, err := pool.Acquire(64, 48)
	require.NoError(t, err)
	second, err := pool.Acquire(64, 48)
	require.NoError(t, err)
	third, err := pool.Acquire(64, 48)
	require.NoError(t, err)

	assert.NotEqual(t, first.PhysAddr(), second.PhysAddr(),
		"consecutive jobs must not target the same slot")
	assert.Equal(t, first.PhysAddr(), third.PhysAddr())
}

func TestPoolLazyAllocationAndSizing(t *testing.T) {
	adapter := &fakeAdapter{}
	pool := NewRotatePool(adapter)
	defer pool.Close()

	assert.False(t, pool.Allocated())
	assert.Empty(t, adapter.allocs)

	_, err := pool.Acquire(64, 48)
	require.NoError(t, err)

	assert.True(t, pool.Allocated())
	require.Len(t, adapter.allocs, 2, "both slots allocate on first acquire")
	for _, b := range adapter.allocs {
		assert.Equal(t, 64*48*3/2, len(b.buf))
	}
	assert.Equal(t, 2, adapter.flushes, "each slot is flushed after zeroing")
}

func TestPoolReallocatesOnGeometryChange(t *testing.T) {
	adapter := &fakeAdapter{}
	pool := NewRotatePool(adapter)
	defer pool.Close()

	_, err := pool.Acquire(64, 48)
	require.NoError(t, err)
	_, err = pool.Acquire(128, 96)
	require.NoError(t, err)

	require.Len(t, adapter.allocs, 4)
	assert.True(t, adapter.allocs[0].closed)
	assert.True(t, adapter.allocs[1].closed)
	assert.Equal(t, 128*96*3/2, len(adapter.allocs[2].buf))
}

func TestPoolAllocationFailure(t *testing.T) {
	adapter := &fakeAdapter{failAt: 2}
	pool := NewRotatePool(adapter)
	defer pool.Close()

	_, err := pool.Acquire(64, 48)
	assert.True(t, errors.Is(err, ErrNoMemory))
	assert.False(t, pool.Allocated())
	// The slot that did allocate must not leak.
	require.Len(t, adapter.allocs, 1)
	assert.True(t, adapter.allocs[0].closed)
}

func TestPoolClose(t *testing.T) {
	adapter := &fakeAdapter{}
	pool := NewRotatePool(adapter)

	_, err := pool.Acquire(64, 48)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	for _, b := range adapter.allocs {
		assert.True(t, b.closed)
	}
	assert.False(t, pool.Allocated())
}
