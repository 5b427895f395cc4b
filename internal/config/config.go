// Package config handles geomcache configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all settings.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Render  RenderConfig  `yaml:"render"`
	Decoder DecoderConfig `yaml:"decoder"`
	Logging LoggingConfig `yaml:"logging"`
}

// ReaderConfig holds the geometry source parameters.
type ReaderConfig struct {
	File               string `yaml:"file"`                 // Mesh file (.gvc, .rsm or archive.grf#path.rsm)
	MtlDefsFile        string `yaml:"mtl_defs_file"`        // Material definitions (YAML or TOML)
	MtlAssignmentsFile string `yaml:"mtl_assignments_file"` // XML assignment rules
	MotionBlurSamples  int    `yaml:"motion_blur_samples"`  // Per-object override, 0 = global
}

// RenderConfig stands in for the host renderer's sequence and frame data.
type RenderConfig struct {
	FrameStart int              `yaml:"frame_start"`
	FrameEnd   int              `yaml:"frame_end"`
	FPS        float32          `yaml:"fps"`
	MotionBlur MotionBlurConfig `yaml:"motion_blur"`
}

// MotionBlurConfig holds the global motion blur settings.
type MotionBlurConfig struct {
	On             bool    `yaml:"on"`
	GeomSamples    int     `yaml:"geom_samples"`
	Duration       float64 `yaml:"duration"`        // Shutter length in frames
	IntervalCenter float64 `yaml:"interval_center"` // Shutter center offset in frames
}

// DecoderConfig holds mesh decoder settings.
type DecoderConfig struct {
	Workers int `yaml:"workers"` // Decompression workers, 0 decodes inline
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			FrameStart: 0,
			FrameEnd:   0,
			FPS:        24,
			MotionBlur: MotionBlurConfig{
				On:             false,
				GeomSamples:    2,
				Duration:       0.5,
				IntervalCenter: 0,
			},
		},
		Decoder: DecoderConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Render.FrameEnd < c.Render.FrameStart {
		errs = append(errs, fmt.Errorf("frame_end %d before frame_start %d", c.Render.FrameEnd, c.Render.FrameStart))
	}
	if c.Render.FPS < 0 {
		errs = append(errs, fmt.Errorf("negative fps %v", c.Render.FPS))
	}
	if c.Render.MotionBlur.GeomSamples < 1 {
		errs = append(errs, fmt.Errorf("geom_samples must be at least 1, got %d", c.Render.MotionBlur.GeomSamples))
	}
	if c.Render.MotionBlur.Duration < 0 {
		errs = append(errs, fmt.Errorf("negative motion blur duration %v", c.Render.MotionBlur.Duration))
	}
	if c.Reader.MotionBlurSamples < 0 {
		errs = append(errs, fmt.Errorf("negative motion_blur_samples %d", c.Reader.MotionBlurSamples))
	}
	if c.Decoder.Workers < 0 {
		errs = append(errs, fmt.Errorf("negative decoder workers %d", c.Decoder.Workers))
	}
	return errors.Join(errs...)
}
