// Package config holds the complete voucherscan configuration and its
// loading from files, environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/voucherscan/internal/ocr"
	"github.com/MeKo-Tech/voucherscan/internal/rectify"
	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

// Config represents the complete configuration for the voucherscan
// application, covering the scan pipeline, persistence, output and the HTTP
// server.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store" json:"store"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// PipelineConfig contains scan pipeline settings.
type PipelineConfig struct {
	Rectify  RectifyConfig `mapstructure:"rectify" yaml:"rectify" json:"rectify"`
	Segment  SegmentConfig `mapstructure:"segment" yaml:"segment" json:"segment"`
	OCR      OCRConfig     `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	CacheDir string        `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
	DebugDir string        `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// RectifyConfig contains document boundary detection settings.
type RectifyConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxDetectSize   int     `mapstructure:"max_detect_size" yaml:"max_detect_size" json:"max_detect_size"`
	BlurSigma       float64 `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
	ThresholdWindow int     `mapstructure:"threshold_window" yaml:"threshold_window" json:"threshold_window"`
	ThresholdC      float64 `mapstructure:"threshold_c" yaml:"threshold_c" json:"threshold_c"`
	ApproxTolerance float64 `mapstructure:"approx_tolerance" yaml:"approx_tolerance" json:"approx_tolerance"`
	MinAreaRatio    float64 `mapstructure:"min_area_ratio" yaml:"min_area_ratio" json:"min_area_ratio"`
	MaxAreaRatio    float64 `mapstructure:"max_area_ratio" yaml:"max_area_ratio" json:"max_area_ratio"`
}

// SegmentConfig contains region segmentation settings.
type SegmentConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// OCRConfig contains recognition engine settings.
type OCRConfig struct {
	Language          string `mapstructure:"language" yaml:"language" json:"language"`
	PageSegMode       int    `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	Whitelist         string `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	SecondPassEnabled bool   `mapstructure:"second_pass_enabled" yaml:"second_pass_enabled" json:"second_pass_enabled"`
	SecondPassSegMode int    `mapstructure:"second_pass_seg_mode" yaml:"second_pass_seg_mode" json:"second_pass_seg_mode"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path" json:"sqlite_path"`
	ObjectDir  string `mapstructure:"object_dir" yaml:"object_dir" json:"object_dir"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch scanning settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Rectify: defaultRectifyConfig(),
			Segment: SegmentConfig{Mode: string(segment.ModeQuarters)},
			OCR:     defaultOCRConfig(),
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "vouchers.db",
			ObjectDir:  "voucher-objects",
		},
		Output: OutputConfig{Format: "text"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
	}
}

func defaultRectifyConfig() RectifyConfig {
	cfg := rectify.DefaultConfig()
	return RectifyConfig{
		Enabled:         cfg.Enabled,
		MaxDetectSize:   cfg.MaxDetectSize,
		BlurSigma:       cfg.BlurSigma,
		ThresholdWindow: cfg.ThresholdWindow,
		ThresholdC:      cfg.ThresholdC,
		ApproxTolerance: cfg.ApproxTolerance,
		MinAreaRatio:    cfg.MinAreaRatio,
		MaxAreaRatio:    cfg.MaxAreaRatio,
	}
}

func defaultOCRConfig() OCRConfig {
	cfg := ocr.DefaultTesseractConfig()
	return OCRConfig{
		Language:          cfg.Language,
		PageSegMode:       cfg.PageSegMode,
		SecondPassEnabled: true,
		SecondPassSegMode: 6, // assume a uniform block of text
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := segment.ParseMode(c.Pipeline.Segment.Mode); err != nil {
		return err
	}

	validBackends := []string{"sqlite", "object"}
	if !contains(validBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (must be one of: %s)",
			c.Store.Backend, strings.Join(validBackends, ", "))
	}

	if err := validateRatio(c.Pipeline.Rectify.ApproxTolerance, "approx_tolerance"); err != nil {
		return err
	}
	if err := validateRatio(c.Pipeline.Rectify.MinAreaRatio, "min_area_ratio"); err != nil {
		return err
	}
	if err := validateRatio(c.Pipeline.Rectify.MaxAreaRatio, "max_area_ratio"); err != nil {
		return err
	}
	if c.Pipeline.Rectify.MinAreaRatio > c.Pipeline.Rectify.MaxAreaRatio {
		return fmt.Errorf("min_area_ratio %.2f exceeds max_area_ratio %.2f",
			c.Pipeline.Rectify.MinAreaRatio, c.Pipeline.Rectify.MaxAreaRatio)
	}

	if c.Pipeline.Rectify.MaxDetectSize < 1 {
		return fmt.Errorf("max_detect_size must be positive, got %d", c.Pipeline.Rectify.MaxDetectSize)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch workers must be positive, got %d", c.Batch.Workers)
	}
	return nil
}

// ToRectifyConfig converts to the rectify package configuration.
func (c *Config) ToRectifyConfig() rectify.Config {
	base := rectify.DefaultConfig()
	base.Enabled = c.Pipeline.Rectify.Enabled
	base.MaxDetectSize = c.Pipeline.Rectify.MaxDetectSize
	base.BlurSigma = c.Pipeline.Rectify.BlurSigma
	base.ThresholdWindow = c.Pipeline.Rectify.ThresholdWindow
	base.ThresholdC = c.Pipeline.Rectify.ThresholdC
	base.ApproxTolerance = c.Pipeline.Rectify.ApproxTolerance
	base.MinAreaRatio = c.Pipeline.Rectify.MinAreaRatio
	base.MaxAreaRatio = c.Pipeline.Rectify.MaxAreaRatio
	base.DebugDir = c.Pipeline.DebugDir
	return base
}

// ToTesseractConfig converts to the primary engine configuration.
func (c *Config) ToTesseractConfig() ocr.TesseractConfig {
	return ocr.TesseractConfig{
		Language:    c.Pipeline.OCR.Language,
		PageSegMode: c.Pipeline.OCR.PageSegMode,
		Whitelist:   c.Pipeline.OCR.Whitelist,
	}
}

// ToSecondPassConfig converts to the secondary engine configuration.
func (c *Config) ToSecondPassConfig() ocr.TesseractConfig {
	return ocr.TesseractConfig{
		Language:    c.Pipeline.OCR.Language,
		PageSegMode: c.Pipeline.OCR.SecondPassSegMode,
		Whitelist:   c.Pipeline.OCR.Whitelist,
	}
}

func contains(values []string, item string) bool {
	for _, v := range values {
		if v == item {
			return true
		}
	}
	return false
}

func validateRatio(value float64, name string) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%s must be between 0.0 and 1.0, got %.2f", name, value)
	}
	return nil
}
