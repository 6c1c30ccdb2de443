package tr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
	"github.com/sunxi-display/go-sunxifb/sunxifb/mem"
)

type testBlock struct {
	buf  []byte
	phys uintptr
}

func (b *testBlock) Bytes() []byte     { return b.buf }
func (b *testBlock) PhysAddr() uintptr { return b.phys }
func (b *testBlock) Size() int         { return len(b.buf) }
func (b *testBlock) Close() error      { return nil }

type testAdapter struct {
	nextPhys uintptr
}

func (a *testAdapter) Alloc(size int) (mem.Block, error) {
	a.nextPhys += 0x100000
	return &testBlock{buf: make([]byte, size), phys: a.nextPhys}, nil
}

func (a *testAdapter) PhysAddr(virt uintptr) (uintptr, error)  { return virt, nil }
func (a *testAdapter) FlushCache(virt uintptr, size int) error { return nil }
func (a *testAdapter) ActualSize() (int, int)                  { return 0, 0 }

type fakeDevice struct {
	timeout  int
	commits  []trInfo
	statuses []Status
	released bool
}

func (d *fakeDevice) RequestChannel() (uintptr, error)    { return 1, nil }
func (d *fakeDevice) ReleaseChannel(ch uintptr) error     { d.released = true; return nil }
func (d *fakeDevice) SetTimeout(ch uintptr, ms int) error { d.timeout = ms; return nil }
func (d *fakeDevice) Close() error                        { return nil }

func (d *fakeDevice) Commit(ch uintptr, info *trInfo) error {
	d.commits = append(d.commits, *info)
	return nil
}

func (d *fakeDevice) Query(ch uintptr) Status {
	if len(d.statuses) == 0 {
		return StatusDone
	}
	s := d.statuses[0]
	d.statuses = d.statuses[1:]
	return s
}

func newTestPipeline(t *testing.T, dev Device) *Pipeline {
	t.Helper()
	pool := mem.NewRotatePool(&testAdapter{})
	t.Cleanup(func() { pool.Close() })
	p, err := NewPipeline(dev, pool, PipelineOptions{PollInterval: 100 * time.Microsecond}, nil)
	require.NoError(t, err)
	return p
}

func srcFrame64x48() (Frame, Rect) {
	src := Frame{
		Format: format.I420,
		Addr:   [3]uintptr{0x1000, 0x2000, 0x3000},
		Pitch:  [3]int{64, 32, 32},
		Height: [3]int{48, 24, 24},
	}
	return src, Rect{W: 64, H: 48}
}

func TestPipelineSetsDeviceTimeout(t *testing.T) {
	dev := &fakeDevice{}
	newTestPipeline(t, dev)
	assert.Equal(t, 200, dev.timeout)
}

func TestRotate180PreservesGeometry(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	res, err := p.Rotate(context.Background(), Rot180, src, rect)
	require.NoError(t, err)

	assert.Equal(t, Rect{W: 64, H: 48}, res.Rect)
	assert.Equal(t, [3]int{64, 32, 32}, res.Pitch)
	assert.Equal(t, [3]int{64, 32, 32}, res.Height)
}

func TestRotate90TransposesGeometry(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	for _, mode := range []Mode{Rot90, Rot270} {
		res, err := p.Rotate(context.Background(), mode, src, rect)
		require.NoError(t, err)

		assert.Equal(t, Rect{W: 48, H: 64}, res.Rect, "mode %s", mode)
		// Destination pitch comes from the 32-aligned source height.
		assert.Equal(t, [3]int{64, 32, 32}, res.Pitch, "mode %s", mode)
		assert.Equal(t, [3]int{64, 32, 32}, res.Height, "mode %s", mode)
	}
}

// The transform engine wants 32-aligned pitches and heights on both
// frames of the job, regardless of the visible rectangle.
func TestRotateSubmitsAlignedGeometry(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src := Frame{
		Format: format.I420,
		Addr:   [3]uintptr{0x1000, 0x2000, 0x3000},
		Pitch:  [3]int{720, 360, 360},
		Height: [3]int{480, 240, 240},
	}
	_, err := p.Rotate(context.Background(), Rot90, src, Rect{W: 720, H: 480})
	require.NoError(t, err)

	require.Len(t, dev.commits, 1)
	job := dev.commits[0]
	assert.Equal(t, [3]uint32{736, 368, 368}, job.Src.Pitch)
	assert.Equal(t, [3]uint32{480, 240, 240}, job.Src.Height)
	assert.Equal(t, uint32(720), job.SrcRect.W)
	assert.Equal(t, uint32(480), job.SrcRect.H)
	assert.Equal(t, uint32(480), job.DstRect.W, "transposed destination spans the aligned height")
	assert.Equal(t, uint32(736), job.DstRect.H)
}

// Flips mirror in place; unlike 90 and 270 they keep the source
// orientation and the destination pitch of the unrotated path.
func TestRotateFlipsKeepOrientation(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	for _, mode := range []Mode{FlipH, FlipV} {
		res, err := p.Rotate(context.Background(), mode, src, rect)
		require.NoError(t, err)

		assert.Equal(t, Rect{W: 64, H: 48}, res.Rect, "mode %s", mode)
		assert.Equal(t, [3]int{64, 32, 32}, res.Pitch, "mode %s", mode)
	}
}

func TestRotateDestinationAddresses(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	res, err := p.Rotate(context.Background(), Rot0, src, rect)
	require.NoError(t, err)

	base := res.Addr[0]
	luma := uintptr(64 * 64) // align32 dimensions
	assert.Equal(t, base+luma, res.Addr[1])
	assert.Equal(t, base+luma*5/4, res.Addr[2])
}

func TestRotateAlternatesSlots(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	first, err := p.Rotate(context.Background(), Rot90, src, rect)
	require.NoError(t, err)
	second, err := p.Rotate(context.Background(), Rot90, src, rect)
	require.NoError(t, err)

	assert.NotEqual(t, first.Addr[0], second.Addr[0],
		"consecutive jobs must not target the same destination")
}

func TestRotateResubmitsOnTimeout(t *testing.T) {
	dev := &fakeDevice{statuses: []Status{StatusTimeout, StatusDone}}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	_, err := p.Rotate(context.Background(), Rot90, src, rect)
	require.NoError(t, err)

	require.Len(t, dev.commits, 2)
	assert.Equal(t, dev.commits[0], dev.commits[1], "the identical job is resubmitted")
}

func TestRotatePollsWhileBusy(t *testing.T) {
	dev := &fakeDevice{statuses: []Status{StatusBusy, StatusBusy, StatusDone}}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	_, err := p.Rotate(context.Background(), Rot90, src, rect)
	require.NoError(t, err)
	assert.Len(t, dev.commits, 1, "busy polls must not resubmit")
}

func TestRotateMaxRetries(t *testing.T) {
	dev := &fakeDevice{statuses: []Status{StatusTimeout, StatusTimeout, StatusTimeout}}
	pool := mem.NewRotatePool(&testAdapter{})
	defer pool.Close()
	p, err := NewPipeline(dev, pool, PipelineOptions{
		PollInterval: 100 * time.Microsecond,
		MaxRetries:   1,
	}, nil)
	require.NoError(t, err)

	src, rect := srcFrame64x48()
	_, err = p.Rotate(context.Background(), Rot90, src, rect)
	require.Error(t, err)
	assert.Len(t, dev.commits, 2)
}

func TestRotateCancellation(t *testing.T) {
	dev := &fakeDevice{statuses: []Status{
		StatusBusy, StatusBusy, StatusBusy, StatusBusy, StatusBusy,
		StatusBusy, StatusBusy, StatusBusy, StatusBusy, StatusBusy,
	}}
	p := newTestPipeline(t, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src, rect := srcFrame64x48()
	_, err := p.Rotate(ctx, Rot90, src, rect)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRotateRejectsInvalidMode(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)

	src, rect := srcFrame64x48()
	_, err := p.Rotate(context.Background(), Mode(5), src, rect)
	require.Error(t, err)
	assert.Empty(t, dev.commits)
}

func TestWireModeMapping(t *testing.T) {
	tests := []struct {
		mode Mode
		wire uint32
	}{
		{Rot0, trModeRot0},
		{Rot90, trModeRot90},
		{Rot180, trModeRot180},
		{Rot270, trModeRot270},
		{FlipH, trModeHFlip},
		{FlipV, trModeVFlip},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wire, wireMode(tt.mode), "mode %s", tt.mode)
	}
}

func TestPipelineCloseReleasesChannel(t *testing.T) {
	dev := &fakeDevice{}
	p := newTestPipeline(t, dev)
	require.NoError(t, p.Close())
	assert.True(t, dev.released)
}
