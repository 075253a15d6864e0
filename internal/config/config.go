package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"ledcat/internal/artifacts"
	"ledcat/internal/cache"
	"ledcat/internal/decode"
	"ledcat/internal/sink"
)

// getConfigDir returns the config directory path.
// Uses LEDCAT_CONFIG_DIR env var if set, otherwise defaults to ~/.ledcat.
// This is computed dynamically to support test isolation.
func getConfigDir() string {
	if dir := os.Getenv("LEDCAT_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ledcat")
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	return getConfigDir()
}

// SettingsPath returns the settings file path
func SettingsPath() string {
	return filepath.Join(getConfigDir(), "settings.yaml")
}

// LockDir returns the directory holding sink lock files
func LockDir() string {
	return filepath.Join(getConfigDir(), "locks")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(getConfigDir(), 0700)
}

// InitConfigDir creates the config directory and writes the default settings
// file if none exists. Returns true if the settings file was created.
func InitConfigDir() (bool, error) {
	if err := EnsureConfigDir(); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	settingsPath := SettingsPath()
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, artifacts.GlobalSettings, 0600); err != nil {
			return false, fmt.Errorf("failed to create default settings: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// CacheSettings configures the frame cache
type CacheSettings struct {
	Enabled    *bool  `yaml:"enabled"`    // default: true (pointer to detect missing)
	Duplicates string `yaml:"duplicates"` // overwrite or keep-first
	File       string `yaml:"file"`       // snapshot path, empty disables persistence
}

// SinkSettings configures where frames go
type SinkSettings struct {
	Type string `yaml:"type"` // file or null
	Path string `yaml:"path"` // "-" is stdout
}

// UnmarshalYAML decodes sink settings over the current values. An unquoted
// `type: null` is a YAML null scalar; it selects the null sink instead of
// leaving the default in place.
func (s *SinkSettings) UnmarshalYAML(node *yaml.Node) error {
	type plain SinkSettings
	p := plain(*s)
	if err := node.Decode(&p); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Value == "type" && value.ShortTag() == "!!null" && strings.EqualFold(value.Value, "null") {
			p.Type = string(sink.KindNull)
		}
	}
	*s = SinkSettings(p)
	return nil
}

// Settings represents the ledcat settings file
type Settings struct {
	LogLevel       string        `yaml:"log_level"`       // trace, debug, info, warn, error
	FPS            int           `yaml:"fps"`             // 0 disables pacing
	Width          int           `yaml:"width"`           // frame width in pixels
	Height         int           `yaml:"height"`          // frame height in pixels
	PixelFormat    string        `yaml:"pixel_format"`    // e.g. "RGB u8"
	Raw            bool          `yaml:"raw"`             // inputs are raw frames
	Loop           bool          `yaml:"loop"`            // start over after the last source
	ReportInterval time.Duration `yaml:"report_interval"` // fps log interval, 0 disables
	Ignore         []string      `yaml:"ignore"`          // gitignore patterns for directory sources
	Cache          CacheSettings `yaml:"cache"`
	Sink           SinkSettings  `yaml:"sink"`
}

// ApplyDefaults fills zero-value fields with their defaults.
func (s *Settings) ApplyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.PixelFormat == "" {
		s.PixelFormat = decode.DefaultPixelFormat
	}
	if s.Cache.Enabled == nil {
		t := true
		s.Cache.Enabled = &t
	}
	if s.Cache.Duplicates == "" {
		s.Cache.Duplicates = cache.DuplicateOverwrite.String()
	}
	if s.Sink.Type == "" {
		s.Sink.Type = string(sink.KindFile)
	}
	if s.Sink.Path == "" {
		s.Sink.Path = sink.StdoutPath
	}
}

// CacheEnabled returns whether frame caching is enabled (defaults to true).
func (s *Settings) CacheEnabled() bool {
	if s.Cache.Enabled == nil {
		return true
	}
	return *s.Cache.Enabled
}

// SetCacheEnabled overrides the cache switch.
func (s *Settings) SetCacheEnabled(enabled bool) {
	s.Cache.Enabled = &enabled
}

// Level returns the parsed log level.
func (s *Settings) Level() (log.Level, error) {
	return log.ParseLevel(strings.ToLower(s.LogLevel))
}

// Validate checks values that do not depend on the command line.
func (s *Settings) Validate() error {
	if _, err := s.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if s.FPS < 0 {
		return fmt.Errorf("fps: must not be negative, got %d", s.FPS)
	}
	if s.Width < 0 || s.Height < 0 {
		return fmt.Errorf("dimensions: must not be negative, got %dx%d", s.Width, s.Height)
	}
	if s.ReportInterval < 0 {
		return fmt.Errorf("report_interval: must not be negative, got %s", s.ReportInterval)
	}
	if _, err := decode.ParsePixelFormat(s.PixelFormat); err != nil {
		return fmt.Errorf("pixel_format: %w", err)
	}
	if _, err := cache.ParseDuplicatePolicy(s.Cache.Duplicates); err != nil {
		return fmt.Errorf("cache.duplicates: %w", err)
	}
	switch sink.Kind(strings.ToLower(s.Sink.Type)) {
	case sink.KindFile, sink.KindNull:
	default:
		return fmt.Errorf("sink.type: unknown sink type %q", s.Sink.Type)
	}
	return nil
}

// loadDefaultSettings parses default settings from embedded artifact.
func loadDefaultSettings() Settings {
	var settings Settings
	if err := yaml.Unmarshal(artifacts.GlobalSettings, &settings); err != nil {
		panic("failed to parse embedded settings: " + err.Error())
	}
	return settings
}

// Load reads settings from path, or from SettingsPath() when path is empty.
// Values missing from the file keep their embedded defaults. A missing file
// at the default location yields the defaults; a missing explicit path is an error.
func Load(path string) (*Settings, error) {
	explicit := path != ""
	if !explicit {
		path = SettingsPath()
	}

	settings := loadDefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			settings.ApplyDefaults()
			return &settings, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	settings.ApplyDefaults()

	return &settings, nil
}

// Marshal renders settings as YAML.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
