package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/sunxi-display/go-sunxifb/sunxifb"
	"github.com/sunxi-display/go-sunxifb/sunxifb/format"
	"github.com/sunxi-display/go-sunxifb/sunxifb/preview"
)

func main() {
	app := cli.NewApp()
	app.Name = "sunxifb"
	app.Description = "Push test frames through the Allwinner overlay pipeline"
	app.Usage = "sunxifb [options]"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to a YAML config file",
		},
		cli.IntFlag{
			Name:  "rotate",
			Usage: "Rotation mode (0, 1=90, 2=180, 3=270, 4=hflip, 6=vflip)",
			Value: -1,
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of test frames to present (0 = run until interrupted)",
			Value: 0,
		},
		cli.BoolFlag{
			Name:  "preview",
			Usage: "Render frames in the terminal instead of the display hardware",
		},
		cli.IntFlag{
			Name:  "test-pattern",
			Usage: "Test pattern index (0=checkerboard, 1=gradient, 2=stripes, 3=diagonal)",
			Value: 0,
		},
	}
	app.Action = run

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running sunxifb", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if rot := c.Int("rotate"); rot >= 0 {
		cfg.Rotate = rot
	}

	pattern := preview.Pattern(c.Int("test-pattern") % preview.PatternCount)
	frames := c.Int("frames")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("preview") {
		return runPreview(ctx, cfg, pattern, frames)
	}
	return runHardware(ctx, cfg, pattern, frames)
}

func runPreview(ctx context.Context, cfg *Config, pattern preview.Pattern, frames int) error {
	slog.Info("Running in terminal preview mode", "pattern", pattern)
	renderer, err := preview.NewRenderer()
	if err != nil {
		return err
	}
	n := 0
	next := func() []byte {
		if frames > 0 && n >= frames {
			return nil
		}
		n++
		return preview.TestFrame(pattern, cfg.Width, cfg.Height, n)
	}
	err = renderer.Run(ctx, next, cfg.Width, cfg.Height)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runHardware(ctx context.Context, cfg *Config, pattern preview.Pattern, frames int) error {
	sink := sunxifb.New(cfg.Options(), slog.Default())

	info := i420Info(cfg.Width, cfg.Height)
	videoMem, pannable, err := sink.OpenHardware(info)
	if err != nil {
		return err
	}
	defer sink.CloseHardware()
	slog.Info("Hardware open", "video_mem", videoMem, "pannable", pannable,
		"width", cfg.Width, "height", cfg.Height)

	if err := sink.PrepareOverlay(format.I420); err != nil {
		return err
	}

	mem := sink.VideoMemory()
	if len(mem) < info.Size {
		return fmt.Errorf("video memory too small for a %dx%d frame", cfg.Width, cfg.Height)
	}

	for n := 0; frames == 0 || n < frames; n++ {
		if err := ctx.Err(); err != nil {
			slog.Info("Interrupted", "frames_presented", n)
			return nil
		}
		buf := preview.TestFrame(pattern, cfg.Width, cfg.Height, n)
		copy(mem, buf)
		frame := &sunxifb.Frame{
			Data:    mem[:info.Size],
			Offset:  0,
			TraceID: uuid.NewString(),
		}
		if err := sink.ShowOverlay(ctx, frame); err != nil {
			return err
		}
	}
	slog.Info("Done", "frames", frames)
	return nil
}

// i420Info builds the negotiated metadata for a tightly packed I420
// buffer of the given dimensions.
func i420Info(w, h int) sunxifb.VideoInfo {
	info := sunxifb.VideoInfo{
		Format: format.I420,
		Width:  w,
		Height: h,
		Size:   w * h * 3 / 2,
	}
	info.PlaneStride = [3]int{w, w / 2, w / 2}
	info.PlaneOffset = [3]int{0, w * h, w * h * 5 / 4}
	return info
}
