package layer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunxi-display/go-sunxifb/sunxifb/disp"
)

type fakeDriver struct {
	configs   []disp.LayerConfig
	enables   []bool
	scnW      int
	scnH      int
	scnErr    error
	enableErr error
}

func (d *fakeDriver) LayerConfig(channel, layer int) (disp.LayerConfig, error) {
	return disp.LayerConfig{}, nil
}

func (d *fakeDriver) SetLayerConfig(cfg *disp.LayerConfig) error {
	d.configs = append(d.configs, *cfg)
	return nil
}

func (d *fakeDriver) SetLayerEnable(channel, layer int, enable bool) error {
	if d.enableErr != nil {
		return d.enableErr
	}
	d.enables = append(d.enables, enable)
	return nil
}

func (d *fakeDriver) ScreenWidth() (int, error)  { return d.scnW, d.scnErr }
func (d *fakeDriver) ScreenHeight() (int, error) { return d.scnH, d.scnErr }
func (d *fakeDriver) Close() error               { return nil }

func TestReserveCommitsDisabledFullScreen(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	require.Len(t, drv.configs, 1)

	cfg := drv.configs[0]
	assert.False(t, cfg.Enable)
	assert.Equal(t, 1, cfg.LayerID)
	assert.Equal(t, disp.Rect{W: 1920, H: 1080}, cfg.Screen)
	assert.True(t, l.HasScaler())
	assert.False(t, l.Visible())
}

// A nonsense screen size is a warning, not a failure; some kernels
// answer the query with garbage before the first modeset.
func TestReserveToleratesBadScreenSize(t *testing.T) {
	drv := &fakeDriver{scnW: -1, scnH: -1}
	l := New(drv, 0, 1, nil)
	assert.NoError(t, l.Reserve())
}

func TestReserveThenShowYieldsVisible(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	require.NoError(t, l.Show())
	assert.True(t, l.Visible())
	assert.Equal(t, []bool{true}, drv.enables)
}

func TestShowWhenVisibleIsNoop(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	require.NoError(t, l.Show())
	require.NoError(t, l.Show())
	assert.Len(t, drv.enables, 1)
}

func TestHideWhenHiddenIsNoop(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	require.NoError(t, l.Hide())
	assert.Empty(t, drv.enables)

	require.NoError(t, l.Show())
	require.NoError(t, l.Hide())
	assert.Equal(t, []bool{true, false}, drv.enables)
	assert.False(t, l.Visible())
}

func TestShowAfterReleaseFails(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	l.Release()

	assert.Equal(t, -1, l.ID())
	assert.False(t, l.HasScaler())
	assert.Error(t, l.Show())
}

func TestReleaseHidesVisibleLayer(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	require.NoError(t, l.Show())
	l.Release()

	assert.Equal(t, []bool{true, false}, drv.enables)
	assert.False(t, l.Visible())
}

func TestShowPropagatesDriverError(t *testing.T) {
	drv := &fakeDriver{scnW: 1920, scnH: 1080, enableErr: errors.New("device gone")}
	l := New(drv, 0, 1, nil)

	require.NoError(t, l.Reserve())
	assert.Error(t, l.Show())
	assert.False(t, l.Visible())
}
