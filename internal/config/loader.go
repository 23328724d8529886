package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "voucherscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "VOUCHERSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader around the global viper instance so cobra flag
// bindings are visible.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load reads configuration from the search paths, environment variables and
// defaults, then validates the result.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile reads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper { return l.v }

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string { return l.v.ConfigFileUsed() }

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath("/etc/voucherscan")
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "voucherscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "voucherscan"))
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("pipeline.rectify.enabled", defaults.Pipeline.Rectify.Enabled)
	l.v.SetDefault("pipeline.rectify.max_detect_size", defaults.Pipeline.Rectify.MaxDetectSize)
	l.v.SetDefault("pipeline.rectify.blur_sigma", defaults.Pipeline.Rectify.BlurSigma)
	l.v.SetDefault("pipeline.rectify.threshold_window", defaults.Pipeline.Rectify.ThresholdWindow)
	l.v.SetDefault("pipeline.rectify.threshold_c", defaults.Pipeline.Rectify.ThresholdC)
	l.v.SetDefault("pipeline.rectify.approx_tolerance", defaults.Pipeline.Rectify.ApproxTolerance)
	l.v.SetDefault("pipeline.rectify.min_area_ratio", defaults.Pipeline.Rectify.MinAreaRatio)
	l.v.SetDefault("pipeline.rectify.max_area_ratio", defaults.Pipeline.Rectify.MaxAreaRatio)

	l.v.SetDefault("pipeline.segment.mode", defaults.Pipeline.Segment.Mode)

	l.v.SetDefault("pipeline.ocr.language", defaults.Pipeline.OCR.Language)
	l.v.SetDefault("pipeline.ocr.page_seg_mode", defaults.Pipeline.OCR.PageSegMode)
	l.v.SetDefault("pipeline.ocr.whitelist", defaults.Pipeline.OCR.Whitelist)
	l.v.SetDefault("pipeline.ocr.second_pass_enabled", defaults.Pipeline.OCR.SecondPassEnabled)
	l.v.SetDefault("pipeline.ocr.second_pass_seg_mode", defaults.Pipeline.OCR.SecondPassSegMode)

	l.v.SetDefault("pipeline.cache_dir", defaults.Pipeline.CacheDir)
	l.v.SetDefault("pipeline.debug_dir", defaults.Pipeline.DebugDir)

	l.v.SetDefault("store.backend", defaults.Store.Backend)
	l.v.SetDefault("store.sqlite_path", defaults.Store.SQLitePath)
	l.v.SetDefault("store.object_dir", defaults.Store.ObjectDir)

	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)

	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	l.v.SetDefault("batch.workers", defaults.Batch.Workers)
	l.v.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home, filepath.Join(home, ".config", "voucherscan"))
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "voucherscan"))
	}
	return append(paths, "/etc/voucherscan")
}
