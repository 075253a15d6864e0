package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"ledcat/internal/common"
)

func TestConfigDir(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("LEDCAT_CONFIG_DIR", "")

		dir := ConfigDir()
		assert.NotEmpty(t, dir)
		assert.True(t, strings.HasSuffix(dir, ".ledcat"), "should end with .ledcat")
	})

	t.Run("override with LEDCAT_CONFIG_DIR", func(t *testing.T) {
		t.Setenv("LEDCAT_CONFIG_DIR", "/tmp/test-ledcat-config")
		assert.Equal(t, "/tmp/test-ledcat-config", ConfigDir())
	})
}

func TestPathFunctions(t *testing.T) {
	t.Setenv("LEDCAT_CONFIG_DIR", t.TempDir())

	tests := []struct {
		name   string
		fn     func() string
		suffix string
	}{
		{"SettingsPath", SettingsPath, "settings.yaml"},
		{"LockDir", LockDir, "locks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.fn()
			assert.True(t, strings.HasSuffix(path, tt.suffix),
				"%s() = %q should end with %q", tt.name, path, tt.suffix)
			assert.True(t, strings.HasPrefix(path, ConfigDir()),
				"%s() = %q should be in config dir %q", tt.name, path, ConfigDir())
		})
	}
}

func TestInitConfigDir(t *testing.T) {
	t.Setenv("LEDCAT_CONFIG_DIR", filepath.Join(t.TempDir(), "cfg"))

	created, err := InitConfigDir()
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(ConfigDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	created, err = InitConfigDir()
	require.NoError(t, err)
	assert.False(t, created, "existing settings are left alone")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDCAT_CONFIG_DIR", t.TempDir())

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 25, s.FPS)
	assert.Equal(t, "RGB u8", s.PixelFormat)
	assert.Equal(t, time.Second, s.ReportInterval)
	assert.True(t, s.CacheEnabled())
	assert.Equal(t, "overwrite", s.Cache.Duplicates)
	assert.Equal(t, "file", s.Sink.Type)
	assert.Equal(t, "-", s.Sink.Path)
	assert.False(t, s.Loop)
	assert.False(t, s.Raw)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
log_level: debug
width: 16
height: 8
loop: true
cache:
  enabled: false
sink:
  type: null
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 16, s.Width)
	assert.Equal(t, 8, s.Height)
	assert.True(t, s.Loop)
	assert.False(t, s.CacheEnabled())
	assert.Equal(t, "null", s.Sink.Type)
	assert.Equal(t, 25, s.FPS, "unset keys keep their defaults")
	assert.Equal(t, "overwrite", s.Cache.Duplicates)
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: [1, 2"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	var s Settings
	s.ApplyDefaults()

	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, "RGB u8", s.PixelFormat)
	require.NotNil(t, s.Cache.Enabled)
	assert.True(t, *s.Cache.Enabled)
	assert.Equal(t, "overwrite", s.Cache.Duplicates)
	assert.Equal(t, "file", s.Sink.Type)
	assert.Equal(t, "-", s.Sink.Path)
}

func TestCacheEnabled(t *testing.T) {
	var s Settings
	assert.True(t, s.CacheEnabled(), "nil means enabled")

	s.SetCacheEnabled(false)
	assert.False(t, s.CacheEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		errIs  error
	}{
		{"defaults", func(*Settings) {}, nil},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }, nil},
		{"negative fps", func(s *Settings) { s.FPS = -1 }, nil},
		{"negative width", func(s *Settings) { s.Width = -3 }, nil},
		{"negative report interval", func(s *Settings) { s.ReportInterval = -time.Second }, nil},
		{"bad pixel format", func(s *Settings) { s.PixelFormat = "RGB u16" }, common.ErrUnsupportedFormat},
		{"bad duplicate policy", func(s *Settings) { s.Cache.Duplicates = "merge" }, nil},
		{"bad sink type", func(s *Settings) { s.Sink.Type = "udp" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadDefaultSettings()
			s.ApplyDefaults()
			tt.mutate(&s)

			err := s.Validate()
			if tt.name == "defaults" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
		})
	}
}

func TestLevel(t *testing.T) {
	s := Settings{LogLevel: "DEBUG"}
	lvl, err := s.Level()
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, lvl)
}

func TestMarshalRoundTrip(t *testing.T) {
	s := loadDefaultSettings()
	s.ApplyDefaults()
	s.Ignore = []string{"*.txt"}

	data, err := s.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "report_interval: 1s")

	var back Settings
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, s, back)
}

func TestLoadSinkType(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unquoted null", "sink:\n  type: null\n", "null"},
		{"capitalized null", "sink:\n  type: Null\n", "null"},
		{"quoted null", "sink:\n  type: \"null\"\n", "null"},
		{"file", "sink:\n  type: file\n", "file"},
		{"tilde keeps default", "sink:\n  type: ~\n", "file"},
		{"empty keeps default", "sink:\n  type:\n", "file"},
		{"path only", "sink:\n  path: /dev/spidev0.0\n", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0600))

			s, err := Load(path)
			require.NoError(t, err)
			require.NoError(t, s.Validate())
			assert.Equal(t, tt.want, s.Sink.Type)
		})
	}
}

func TestNullSinkSurvivesMarshal(t *testing.T) {
	s := loadDefaultSettings()
	s.ApplyDefaults()
	s.Sink.Type = "null"

	data, err := s.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, data, 0600))
	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "null", back.Sink.Type)
}
