package disp

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lgFakeConn struct {
	reqs     []uintptr
	current  lgLayerInfo
	setParas []lgLayerInfo
	scnW     int
	scnH     int
	failSet  bool
}

func (c *lgFakeConn) Ioctl(req uintptr, arg unsafe.Pointer) error {
	c.reqs = append(c.reqs, req)
	args := (*[4]uintptr)(arg)
	switch req {
	case lgLayerGetPara:
		*(*lgLayerInfo)(unsafe.Pointer(args[2])) = c.current
	case lgLayerSetPara:
		if c.failSet {
			return errors.New("ioctl: invalid argument")
		}
		c.current = *(*lgLayerInfo)(unsafe.Pointer(args[2]))
		c.setParas = append(c.setParas, c.current)
	}
	return nil
}

func (c *lgFakeConn) IoctlRet(req uintptr, arg unsafe.Pointer) int {
	c.reqs = append(c.reqs, req)
	switch req {
	case lgScnGetWidth:
		return c.scnW
	case lgScnGetHeight:
		return c.scnH
	}
	return 0
}

func (c *lgFakeConn) Close() error { return nil }

func TestLegacySetLayerConfigReadsThenWrites(t *testing.T) {
	conn := &lgFakeConn{}
	drv := NewLegacy(conn)

	cfg := testConfig()
	cfg.Enable = false
	require.NoError(t, drv.SetLayerConfig(&cfg))

	assert.Equal(t, []uintptr{lgLayerGetPara, lgLayerSetPara}, conn.reqs)
}

func TestLegacyWireFields(t *testing.T) {
	conn := &lgFakeConn{}
	drv := NewLegacy(conn)

	cfg := testConfig()
	cfg.Enable = false
	require.NoError(t, drv.SetLayerConfig(&cfg))
	require.Len(t, conn.setParas, 1)
	wire := conn.setParas[0]

	assert.Equal(t, uint32(lgWorkModeScaler), wire.WorkMode)
	assert.Equal(t, uint8(lgPipe), wire.Pipe)
	assert.Equal(t, uint8(lgPrio), wire.Prio)
	assert.Equal(t, uint32(lgFmtYUV420), wire.FB.Format)
	assert.Equal(t, uint32(lgModPlanar), wire.FB.Mode)
	assert.Equal(t, uint32(lgSeqP10), wire.FB.Seq)

	// Only plane 0's size exists on this interface.
	assert.Equal(t, d2RectSz{W: 720, H: 480}, wire.FB.Size)
	assert.Equal(t, uint32(0x40000000), wire.FB.Addr[0])
	assert.Equal(t, lgRect{W: 720, H: 480}, wire.SrcWin)
	assert.Equal(t, lgRect{W: 1920, H: 1080}, wire.ScnWin)
	assert.Equal(t, uint32(lgCSModeBT601), wire.FB.CSMode)
}

// Fields this driver does not own must survive the read-modify-write.
func TestLegacyPreservesUnownedFields(t *testing.T) {
	conn := &lgFakeConn{}
	conn.current.CKEnable = 1
	conn.current.FromScreen = 1
	drv := NewLegacy(conn)

	cfg := testConfig()
	cfg.Enable = false
	require.NoError(t, drv.SetLayerConfig(&cfg))

	wire := conn.setParas[0]
	assert.Equal(t, uint8(1), wire.CKEnable)
	assert.Equal(t, uint8(1), wire.FromScreen)
}

func TestLegacyEnableOpensLayer(t *testing.T) {
	conn := &lgFakeConn{}
	drv := NewLegacy(conn)

	cfg := testConfig()
	require.NoError(t, drv.SetLayerConfig(&cfg))
	assert.Equal(t, []uintptr{lgLayerGetPara, lgLayerSetPara, lgLayerOpen}, conn.reqs)

	require.NoError(t, drv.SetLayerEnable(0, 1, false))
	assert.Equal(t, uintptr(lgLayerClose), conn.reqs[len(conn.reqs)-1])
}

func TestLegacyFormatMapping(t *testing.T) {
	tests := []struct {
		logical PixelFormat
		format  uint32
		mode    uint32
		seq     uint32
	}{
		{FormatYUV420P, lgFmtYUV420, lgModPlanar, lgSeqP10},
		{FormatYUV420SPUVUV, lgFmtYUV420, lgModUVCombined, lgSeqUVUV},
		{FormatYUV420SPVUVU, lgFmtYUV420, lgModUVCombined, lgSeqVUVU},
		{FormatYUV422P, lgFmtYUV422, lgModPlanar, lgSeqP10},
		{FormatYUV444P, lgFmtYUV444, lgModPlanar, lgSeqP10},
		{FormatARGB8888, lgFmtARGB8888, lgModInterleaved, lgSeqARGB},
	}
	for _, tt := range tests {
		f, m, s := lgWire(tt.logical)
		assert.Equal(t, tt.format, f)
		assert.Equal(t, tt.mode, m)
		assert.Equal(t, tt.seq, s)
		assert.Equal(t, tt.logical, lgLogical(f, m, s))
	}
}

func TestLegacyCommitFailure(t *testing.T) {
	conn := &lgFakeConn{failSet: true}
	drv := NewLegacy(conn)

	cfg := testConfig()
	err := drv.SetLayerConfig(&cfg)
	assert.True(t, errors.Is(err, ErrCommit))
}

func TestLegacyScreenSize(t *testing.T) {
	conn := &lgFakeConn{scnW: 1280, scnH: 720}
	drv := NewLegacy(conn)

	w, err := drv.ScreenWidth()
	require.NoError(t, err)
	h, err := drv.ScreenHeight()
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}
