package tr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunxi-display/go-sunxifb/sunxifb/layout"
	"github.com/sunxi-display/go-sunxifb/sunxifb/mem"
)

// deviceTimeoutMS is the hardware-side timeout handed to the transform
// engine, in milliseconds.
const deviceTimeoutMS = 200

// defaultPollInterval is how often a committed job is queried.
const defaultPollInterval = time.Millisecond

// PipelineOptions tune the submit/poll loop.
type PipelineOptions struct {
	// PollInterval between QUERY ioctls. Zero means 1ms.
	PollInterval time.Duration
	// MaxRetries bounds how many times a timed-out job is resubmitted.
	// Zero means retry until the job completes or the context is done.
	MaxRetries int
}

// Pipeline rotates planar 4:2:0 frames through the transform engine.
// Destination buffers come from a double-buffered rotation pool so the
// frame currently on screen is never overwritten.
type Pipeline struct {
	dev     Device
	pool    *mem.RotatePool
	channel uintptr
	log     *slog.Logger

	pollInterval time.Duration
	maxRetries   int
}

// NewPipeline requests a transform channel and configures its timeout.
func NewPipeline(device Device, pool *mem.RotatePool, opts PipelineOptions, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	ch, err := device.RequestChannel()
	if err != nil {
		return nil, err
	}
	if err := device.SetTimeout(ch, deviceTimeoutMS); err != nil {
		device.ReleaseChannel(ch)
		return nil, err
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Pipeline{
		dev:          device,
		pool:         pool,
		channel:      ch,
		log:          log,
		pollInterval: interval,
		maxRetries:   opts.MaxRetries,
	}, nil
}

// Rotate submits src through the transform engine and blocks until the
// destination buffer holds the transformed frame. The engine requires
// 32-aligned pitches and heights on both sides of the job, so the
// source geometry is aligned up from the buffer dimensions before
// submission; srcRect still crops to the visible region. A hardware
// timeout resubmits the identical job; cancellation is only through
// ctx or the configured retry bound.
func (p *Pipeline) Rotate(ctx context.Context, mode Mode, src Frame, srcRect Rect) (Result, error) {
	if !mode.Valid() {
		return Result{}, fmt.Errorf("rotate: %w: mode %d", layout.ErrUnsupported, int(mode))
	}

	wa := layout.Align32(src.Pitch[0])
	ha := layout.Align32(src.Height[0])
	slot, err := p.pool.Acquire(wa, ha)
	if err != nil {
		return Result{}, err
	}
	base := slot.PhysAddr()
	lumaSize := uintptr(wa * ha)

	res := Result{
		Addr: [3]uintptr{base, base + lumaSize, base + lumaSize*5/4},
	}
	if mode.Transposes() {
		res.Rect = Rect{W: srcRect.H, H: srcRect.W}
		res.Pitch = [3]int{ha, ha / 2, ha / 2}
		res.Height = [3]int{wa, wa / 2, wa / 2}
	} else {
		res.Rect = Rect{W: srcRect.W, H: srcRect.H}
		res.Pitch = [3]int{wa, wa / 2, wa / 2}
		res.Height = [3]int{ha, ha / 2, ha / 2}
	}

	info := trInfo{
		Mode: wireMode(mode),
		Src: trFrame{
			Fmt:    trFmtYUV420P,
			LAddr:  src.Addr,
			Pitch:  [3]uint32{uint32(wa), uint32(wa / 2), uint32(wa / 2)},
			Height: [3]uint32{uint32(ha), uint32(ha / 2), uint32(ha / 2)},
		},
		SrcRect: trRect{
			X: int32(srcRect.X), Y: int32(srcRect.Y),
			W: uint32(srcRect.W), H: uint32(srcRect.H),
		},
		Dst: trFrame{
			Fmt:    trFmtYUV420P,
			LAddr:  res.Addr,
			Pitch:  [3]uint32{uint32(res.Pitch[0]), uint32(res.Pitch[1]), uint32(res.Pitch[2])},
			Height: [3]uint32{uint32(res.Height[0]), uint32(res.Height[1]), uint32(res.Height[2])},
		},
		// The destination rectangle spans the full aligned buffer; the
		// visible region is cropped later from Result.Rect.
		DstRect: trRect{W: uint32(res.Pitch[0]), H: uint32(res.Height[0])},
	}

	retries := 0
	for {
		if err := p.dev.Commit(p.channel, &info); err != nil {
			return Result{}, err
		}
		status, err := p.poll(ctx)
		if err != nil {
			return Result{}, err
		}
		if status == StatusDone {
			return res, nil
		}
		// Hardware timeout. The job did not run; submit it again.
		retries++
		if p.maxRetries > 0 && retries > p.maxRetries {
			return Result{}, fmt.Errorf("rotate: transform engine timed out after %d attempts", retries)
		}
		p.log.Warn("transform engine timeout, resubmitting", "mode", mode, "attempt", retries)
	}
}

// poll queries the channel until the job leaves the busy state.
func (p *Pipeline) poll(ctx context.Context) (Status, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		switch status := p.dev.Query(p.channel); status {
		case StatusBusy:
		default:
			return status, nil
		}
		select {
		case <-ctx.Done():
			return StatusBusy, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the transform channel. The rotation pool is owned by
// the caller and is not touched.
func (p *Pipeline) Close() error {
	return p.dev.ReleaseChannel(p.channel)
}

func wireMode(m Mode) uint32 {
	if m == FlipV {
		return trModeVFlip
	}
	return uint32(m)
}
