// Package layer manages the lifetime of one hardware overlay layer:
// reserve it, flip it between visible and hidden as frames arrive, and
// release it when the sink shuts down.
package layer

import (
	"fmt"
	"log/slog"

	"github.com/sunxi-display/go-sunxifb/sunxifb/disp"
)

// Layer is a reserved overlay layer on one display channel. The zero
// value is unreserved; call Reserve before anything else. Layer is not
// safe for concurrent use.
type Layer struct {
	drv     disp.Driver
	log     *slog.Logger
	channel int
	id      int
	visible bool
	scaler  bool
}

// New returns an unreserved layer handle for the given channel and id.
func New(drv disp.Driver, channel, id int, log *slog.Logger) *Layer {
	if log == nil {
		log = slog.Default()
	}
	return &Layer{drv: drv, log: log, channel: channel, id: id}
}

// ID returns the layer id, or -1 after Release.
func (l *Layer) ID() int { return l.id }

// Channel returns the display channel the layer lives on.
func (l *Layer) Channel() int { return l.channel }

// Visible reports whether the layer is currently shown.
func (l *Layer) Visible() bool { return l.visible }

// HasScaler reports whether the layer was reserved with scaling.
func (l *Layer) HasScaler() bool { return l.scaler }

// Reserve claims the layer: it commits a disabled full-screen
// configuration so the first Show has a sane state to enable. A driver
// reporting a nonsensical screen size is logged and tolerated; some
// kernels answer the size query with garbage before the first modeset.
func (l *Layer) Reserve() error {
	w, errW := l.drv.ScreenWidth()
	h, errH := l.drv.ScreenHeight()
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		l.log.Warn("driver reported invalid screen size",
			"width", w, "height", h, "width_err", errW, "height_err", errH)
	}
	cfg := disp.LayerConfig{
		Channel: l.channel,
		LayerID: l.id,
		Enable:  false,
		Format:  disp.FormatARGB8888,
		Screen:  disp.Rect{W: w, H: h},
		Crop:    disp.Rect{W: w, H: h},
	}
	cfg.Size[0] = disp.Size{W: w, H: h}
	if err := l.drv.SetLayerConfig(&cfg); err != nil {
		return fmt.Errorf("layer reserve: %w", err)
	}
	l.scaler = true
	l.visible = false
	l.log.Info("overlay layer reserved", "channel", l.channel, "layer", l.id,
		"screen_width", w, "screen_height", h)
	return nil
}

// Show enables the layer. Showing an already visible layer is a no-op.
func (l *Layer) Show() error {
	if l.visible {
		return nil
	}
	if l.id <= 0 {
		return fmt.Errorf("layer show: no layer reserved")
	}
	if err := l.drv.SetLayerEnable(l.channel, l.id, true); err != nil {
		return fmt.Errorf("layer show: %w", err)
	}
	l.visible = true
	return nil
}

// Hide disables the layer. Hiding a hidden layer is a no-op.
func (l *Layer) Hide() error {
	if !l.visible {
		return nil
	}
	if err := l.drv.SetLayerEnable(l.channel, l.id, false); err != nil {
		return fmt.Errorf("layer hide: %w", err)
	}
	l.visible = false
	return nil
}

// Release hides the layer and invalidates the handle. The layer cannot
// be shown again; create a new Layer to reclaim it.
func (l *Layer) Release() {
	if l.visible {
		if err := l.Hide(); err != nil {
			l.log.Warn("hide during release failed", "layer", l.id, "error", err)
		}
	}
	l.id = -1
	l.scaler = false
}
