package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sunxi-display/go-sunxifb/sunxifb"
	"github.com/sunxi-display/go-sunxifb/sunxifb/tr"
)

// Config is the YAML-file projection of sunxifb.Options plus the demo
// geometry. Flags override whatever the file sets.
type Config struct {
	UseHardwareOverlay bool `yaml:"use_hardware_overlay"`
	Rotate             int  `yaml:"rotate"`
	UseG2D             bool `yaml:"use_g2d"`
	LegacyDisplay      bool `yaml:"legacy_display"`

	Channel int `yaml:"channel"`
	Layer   int `yaml:"layer"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	ExtraVideoMemory int `yaml:"extra_video_memory"`
	PollIntervalMS   int `yaml:"poll_interval_ms"`
	MaxRetries       int `yaml:"max_retries"`

	Devices struct {
		Framebuffer string `yaml:"framebuffer"`
		Disp        string `yaml:"disp"`
		Transform   string `yaml:"transform"`
		G2D         string `yaml:"g2d"`
		ION         string `yaml:"ion"`
	} `yaml:"devices"`
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{
		UseHardwareOverlay: true,
		Layer:              1,
		Width:              720,
		Height:             480,
	}
	return cfg
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}
	return cfg, nil
}

// Options maps the config onto sink options.
func (c *Config) Options() sunxifb.Options {
	return sunxifb.Options{
		UseHardwareOverlay: c.UseHardwareOverlay,
		RotateAngle:        tr.Mode(c.Rotate),
		UseG2D:             c.UseG2D,
		LegacyDisplay:      c.LegacyDisplay,
		Channel:            c.Channel,
		LayerID:            c.Layer,
		FBPath:             c.Devices.Framebuffer,
		DispPath:           c.Devices.Disp,
		TransformPath:      c.Devices.Transform,
		G2DPath:            c.Devices.G2D,
		IONPath:            c.Devices.ION,
		ExtraVideoMemory:   c.ExtraVideoMemory,
		PollInterval:       time.Duration(c.PollIntervalMS) * time.Millisecond,
		MaxRetries:         c.MaxRetries,
	}
}
