// Package config handles pipeline configuration loading and management.
package config

import (
	"fmt"
	"image/color"
)

// Config holds all pipeline settings.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Export  ExportConfig  `yaml:"export"`
	Pack    PackConfig    `yaml:"pack"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig holds input and output directories.
type PathsConfig struct {
	Source string `yaml:"source"` // Raw assets root
	Output string `yaml:"output"` // Generated root (atlas/ and fonts/ live here)
	Work   string `yaml:"work"`   // Staging dir; empty = temp dir
}

// ExportConfig holds preprocessing settings.
type ExportConfig struct {
	InPlace            bool     `yaml:"in_place"`
	ChangeDetection    string   `yaml:"change_detection"` // "mtime" or "hash"
	MergeOrder         string   `yaml:"merge_order"`      // "newest_first" or "oldest_first"
	IgnoreBlankRegions bool     `yaml:"ignore_blank_regions"`
	KeepPartialCells   bool     `yaml:"keep_partial_cells"`
	SentinelColor      [3]uint8 `yaml:"sentinel_color"`
	FontExtension      string   `yaml:"font_extension"`
}

// PackConfig holds atlas packing settings.
type PackConfig struct {
	AtlasName    string   `yaml:"atlas_name"`
	MaxWidth     int      `yaml:"max_width"`
	MaxHeight    int      `yaml:"max_height"`
	Padding      int      `yaml:"padding"`
	FlattenPaths bool     `yaml:"flatten_paths"`
	Formats      []string `yaml:"formats"` // "gdx", "json"
	Filter       string   `yaml:"filter"`
}

// RuntimeConfig holds registry settings.
type RuntimeConfig struct {
	ExportOnLoad bool `yaml:"export_on_load"`
	Suggestions  int  `yaml:"suggestions"` // Max similar names listed on lookup failure
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Change detection modes.
const (
	DetectMtime = "mtime"
	DetectHash  = "hash"
)

// Merge draw orders.
const (
	MergeNewestFirst = "newest_first"
	MergeOldestFirst = "oldest_first"
)

// Atlas metadata formats.
const (
	FormatGDX  = "gdx"
	FormatJSON = "json"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Source: "assets_raw/atlas",
			Output: "generated",
		},
		Export: ExportConfig{
			InPlace:            false,
			ChangeDetection:    DetectMtime,
			MergeOrder:         MergeNewestFirst,
			IgnoreBlankRegions: true,
			KeepPartialCells:   true,
			SentinelColor:      [3]uint8{4, 20, 69},
			FontExtension:      ".fnt",
		},
		Pack: PackConfig{
			AtlasName: "atlas",
			MaxWidth:  2048,
			MaxHeight: 2048,
			Padding:   2,
			Formats:   []string{FormatGDX},
			Filter:    "Nearest",
		},
		Runtime: RuntimeConfig{
			ExportOnLoad: false,
			Suggestions:  5,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Sentinel returns the reserved "erase" color as an opaque NRGBA value.
func (e ExportConfig) Sentinel() color.NRGBA {
	return color.NRGBA{R: e.SentinelColor[0], G: e.SentinelColor[1], B: e.SentinelColor[2], A: 0xff}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Paths.Source == "" {
		return fmt.Errorf("paths.source is required")
	}
	if c.Paths.Output == "" {
		return fmt.Errorf("paths.output is required")
	}
	switch c.Export.ChangeDetection {
	case DetectMtime, DetectHash:
	default:
		return fmt.Errorf("export.change_detection: unknown mode %q", c.Export.ChangeDetection)
	}
	switch c.Export.MergeOrder {
	case MergeNewestFirst, MergeOldestFirst:
	default:
		return fmt.Errorf("export.merge_order: unknown order %q", c.Export.MergeOrder)
	}
	if c.Pack.AtlasName == "" {
		return fmt.Errorf("pack.atlas_name is required")
	}
	if c.Pack.MaxWidth <= 0 || c.Pack.MaxHeight <= 0 {
		return fmt.Errorf("pack: page size must be positive, got %dx%d", c.Pack.MaxWidth, c.Pack.MaxHeight)
	}
	if c.Pack.Padding < 0 {
		return fmt.Errorf("pack.padding must not be negative")
	}
	if len(c.Pack.Formats) == 0 {
		return fmt.Errorf("pack.formats must list at least one format")
	}
	for _, f := range c.Pack.Formats {
		if f != FormatGDX && f != FormatJSON {
			return fmt.Errorf("pack.formats: unknown format %q", f)
		}
	}
	return nil
}
