// Package config provides configuration management for the Clipsmith Agent.
// Configuration is loaded from environment variables with sensible defaults,
// optionally overridden by a settings.yaml file in the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 8998
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipsmith"

	// Environment variable names
	EnvPort     = "CLIPSMITH_PORT"
	EnvLogLevel = "CLIPSMITH_LOG_LEVEL"
	EnvDataDir  = "CLIPSMITH_DATA_DIR"
	EnvFFmpeg   = "CLIPSMITH_FFMPEG"
	EnvFontsDir = "CLIPSMITH_FONTS_DIR"
	EnvHeadless = "CLIPSMITH_HEADLESS"

	// Database filename
	DBFilename = "clipsmith.db"

	// Settings file picked up from the data directory when present.
	SettingsFilename = "settings.yaml"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	FFmpegPath() string
	FontsDir() string
	Headless() bool
}

// fileSettings mirrors the optional settings.yaml overrides.
type fileSettings struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	FFmpeg   string `yaml:"ffmpeg"`
	FontsDir string `yaml:"fonts_dir"`
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	ffmpeg   string
	fontsDir string
	headless bool
}

// New creates a new EnvConfig with defaults, settings.yaml values, and
// environment variable overrides, in that precedence order.
func New() (*EnvConfig, error) {
	// A .env next to the binary is a development convenience; a missing
	// file is not an error.
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
		ffmpeg:   "ffmpeg",
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if err := cfg.loadSettingsFile(); err != nil {
		return nil, err
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if ff := os.Getenv(EnvFFmpeg); ff != "" {
		cfg.ffmpeg = ff
	}

	if fd := os.Getenv(EnvFontsDir); fd != "" {
		cfg.fontsDir = fd
	}

	if h := os.Getenv(EnvHeadless); h == "1" || h == "true" {
		cfg.headless = true
	}

	return cfg, nil
}

func (c *EnvConfig) loadSettingsFile() error {
	path := filepath.Join(c.dataDir, SettingsFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fs fileSettings
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fs.Port != 0 {
		c.port = fs.Port
	}
	if fs.LogLevel != "" {
		c.logLevel = fs.LogLevel
	}
	if fs.FFmpeg != "" {
		c.ffmpeg = fs.FFmpeg
	}
	if fs.FontsDir != "" {
		c.fontsDir = fs.FontsDir
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// FFmpegPath returns the ffmpeg binary path or name to invoke.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

// FontsDir returns the directory holding subtitle font files.
func (c *EnvConfig) FontsDir() string {
	if c.fontsDir != "" {
		return c.fontsDir
	}
	return filepath.Join(c.dataDir, "fonts")
}

// Headless reports whether the system tray should be skipped.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
