package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/voucherscan/internal/segment"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, string(segment.ModeQuarters), cfg.Pipeline.Segment.Mode)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.True(t, cfg.Pipeline.Rectify.Enabled)
	assert.True(t, cfg.Pipeline.OCR.SecondPassEnabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad output format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: "invalid output format",
		},
		{
			name:    "bad segment mode",
			mutate:  func(c *Config) { c.Pipeline.Segment.Mode = "thirds" },
			wantErr: "unknown mode",
		},
		{
			name:    "bad store backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: "invalid store backend",
		},
		{
			name:    "tolerance out of range",
			mutate:  func(c *Config) { c.Pipeline.Rectify.ApproxTolerance = 1.5 },
			wantErr: "approx_tolerance",
		},
		{
			name: "area ratios inverted",
			mutate: func(c *Config) {
				c.Pipeline.Rectify.MinAreaRatio = 0.9
				c.Pipeline.Rectify.MaxAreaRatio = 0.5
			},
			wantErr: "exceeds max_area_ratio",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero batch workers",
			mutate:  func(c *Config) { c.Batch.Workers = 0 },
			wantErr: "batch workers",
		},
		{
			name:    "zero detect size",
			mutate:  func(c *Config) { c.Pipeline.Rectify.MaxDetectSize = 0 },
			wantErr: "max_detect_size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToRectifyConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Rectify.MaxDetectSize = 512
	cfg.Pipeline.DebugDir = "/tmp/debug"

	rc := cfg.ToRectifyConfig()
	assert.Equal(t, 512, rc.MaxDetectSize)
	assert.Equal(t, "/tmp/debug", rc.DebugDir)
	assert.True(t, rc.Enabled)
}

func TestToTesseractConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.OCR.Language = "deu"
	cfg.Pipeline.OCR.Whitelist = "0123456789 "

	primary := cfg.ToTesseractConfig()
	assert.Equal(t, "deu", primary.Language)
	assert.Equal(t, "0123456789 ", primary.Whitelist)

	second := cfg.ToSecondPassConfig()
	assert.Equal(t, "deu", second.Language)
	assert.Equal(t, cfg.Pipeline.OCR.SecondPassSegMode, second.PageSegMode)
	assert.NotEqual(t, primary.PageSegMode, second.PageSegMode)
}
