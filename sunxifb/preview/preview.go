// Package preview renders I420 frames in the terminal. It exists so the
// presentation pipeline can be exercised on machines without an
// Allwinner display controller.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
)

const (
	scaleX        = 1
	verticalScale = 2
	frameTime     = time.Second / 30
)

var shadeChars = []rune{'░', '▒', '▓', '█'}

// Renderer draws luma planes as shade runes on a tcell screen.
// running is shared with the input goroutine.
type Renderer struct {
	screen  tcell.Screen
	running atomic.Bool
}

func NewRenderer() (*Renderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()
	r := &Renderer{screen: screen}
	r.running.Store(true)
	return r, nil
}

// Run pulls I420 frames from next at a fixed rate and draws them until
// the context is cancelled or the user presses ESC.
func (r *Renderer) Run(ctx context.Context, next func() []byte, width, height int) error {
	defer func() {
		slog.Info("Finishing terminal preview")
		r.screen.Fini()
	}()

	go r.handleInput()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for r.running.Load() {
		select {
		case <-ticker.C:
			frame := next()
			if frame == nil {
				r.running.Store(false)
				return nil
			}
			r.Draw(frame, width, height)
			r.screen.Show()
		case <-ctx.Done():
			r.running.Store(false)
			return ctx.Err()
		}
	}
	return nil
}

func (r *Renderer) handleInput() {
	for r.running.Load() {
		ev := r.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				r.running.Store(false)
			}
		case *tcell.EventResize:
			r.screen.Sync()
		}
	}
}

// Draw renders one I420 frame. Only the luma plane matters for the
// shade mapping; every other line is skipped for terminal aspect ratio.
func (r *Renderer) Draw(frame []byte, width, height int) {
	r.screen.Clear()
	for y := 0; y < height; y += verticalScale {
		for x := 0; x < width; x++ {
			luma := frame[y*width+x]
			char := shadeChars[Shade(luma)]
			style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
			for sx := 0; sx < scaleX; sx++ {
				r.screen.SetContent(x*scaleX+sx, y/verticalScale, char, nil, style)
			}
		}
	}
}

// Shade maps a luma value to an index into the shade runes.
func Shade(luma byte) int {
	shade := int(luma) / 64
	if shade > 3 {
		shade = 3
	}
	return shade
}
