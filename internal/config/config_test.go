package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Paths.App)
	assert.Equal(t, "dist", cfg.Paths.Dist)
	assert.Equal(t, "public", cfg.Paths.Public)
	assert.Equal(t, "html", cfg.Paths.Partials)
	assert.Equal(t, ModeProduction, cfg.Build.Mode)
	assert.True(t, cfg.Build.EmptyOutDir)
	assert.Equal(t, DefaultParallelism(), cfg.Build.Parallelism)
	assert.Equal(t, 100, cfg.Build.ChunkThreshold)
	assert.Equal(t, 30*time.Second, cfg.Build.ItemTimeout)
	assert.Equal(t, 64, cfg.Build.MaxIncludeDepth)
	assert.False(t, cfg.Optimize.Enabled)
	assert.Equal(t, 80, cfg.Optimize.JPEGQuality)
	assert.Equal(t, DefaultHTMLAliases(), cfg.Aliases.HTML)
	assert.Equal(t, "localhost:3000", cfg.Address())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(v *viper.Viper)
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name: "development mode",
			setup: func(v *viper.Viper) {
				v.Set("build.mode", ModeDevelopment)
				v.Set("optimize.enabled", true)
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Development())
				assert.False(t, cfg.OptimizeImages())
			},
		},
		{
			name: "production-min forces optimization",
			setup: func(v *viper.Viper) {
				v.Set("build.mode", ModeProductionMin)
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Optimize.Enabled)
				assert.True(t, cfg.OptimizeImages())
			},
		},
		{
			name: "production with optimize flag",
			setup: func(v *viper.Viper) {
				v.Set("optimize.enabled", true)
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.OptimizeImages())
			},
		},
		{
			name: "server settings",
			setup: func(v *viper.Viper) {
				v.Set("server.host", "0.0.0.0")
				v.Set("server.port", 8080)
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0:8080", cfg.Address())
			},
		},
		{
			name: "item timeout from string",
			setup: func(v *viper.Viper) {
				v.Set("build.item_timeout", "5s")
			},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Build.ItemTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SITEKIT_OPTIMIZE", "true")
	t.Setenv("SITEKIT_SERVER_PORT", "4000")
	t.Setenv("SITEKIT_BUILD_MODE", ModeDevelopment)

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.True(t, cfg.Optimize.Enabled)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, ModeDevelopment, cfg.Build.Mode)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sitekit.yml")
	content := `paths:
  app: src
  dist: out
build:
  parallelism: 2
  item_timeout: 1m
aliases:
  html:
    "@img": images
log:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.Paths.App)
	assert.Equal(t, "out", cfg.Paths.Dist)
	assert.Equal(t, 2, cfg.Build.Parallelism)
	assert.Equal(t, time.Minute, cfg.Build.ItemTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "images", cfg.Aliases.HTML["@img"])
	assert.Equal(t, "js", cfg.Aliases.HTML["@js"], "aliases missing from the file keep their defaults")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		field string
	}{
		{"unknown mode", "build.mode", "fast", "build.mode"},
		{"zero parallelism", "build.parallelism", 0, "build.parallelism"},
		{"zero threshold", "build.chunk_threshold", 0, "build.chunk_threshold"},
		{"negative timeout", "build.item_timeout", "-1s", "build.item_timeout"},
		{"zero depth", "build.max_include_depth", 0, "build.max_include_depth"},
		{"jpeg quality", "optimize.jpeg_quality", 101, "optimize.jpeg_quality"},
		{"png range", "optimize.png_quality_min", 0.9, "optimize.png_quality_min"},
		{"gif level", "optimize.gif_level", 9, "optimize.gif_level"},
		{"port range", "server.port", 70000, "server.port"},
		{"host injection", "server.host", "localhost; rm -rf /", "server.host"},
		{"log level", "log.level", "loud", "log.level"},
		{"log format", "log.format", "xml", "log.format"},
		{"dist equals app", "paths.dist", "app", "paths.dist"},
		{"traversal", "paths.dist", "../outside", "paths.dist"},
		{"nested partials", "paths.partials", "a/b", "paths.partials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			cfg, err := LoadFrom(v)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.field)

			var siteErr *siteerrors.SiteError
			require.ErrorAs(t, err, &siteErr)
			assert.Equal(t, siteerrors.ErrCodeConfigInvalid, siteErr.Code)
		})
	}
}

func TestValidateConfigWithDetails(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		result := ValidateConfigWithDetails(Default())
		assert.True(t, result.Valid)
		assert.False(t, result.HasErrors())
	})

	t.Run("privileged port is a warning", func(t *testing.T) {
		cfg := Default()
		cfg.Server.Port = 80

		result := ValidateConfigWithDetails(cfg)
		assert.True(t, result.Valid)
		require.True(t, result.HasWarnings())
		assert.Contains(t, result.String(), "server.port")
	})

	t.Run("aliases need the @ prefix", func(t *testing.T) {
		cfg := Default()
		cfg.Aliases.HTML["img"] = "img"

		result := ValidateConfigWithDetails(cfg)
		assert.False(t, result.Valid)
		assert.Contains(t, result.String(), "must start with '@'")
	})

	t.Run("errors carry suggestions", func(t *testing.T) {
		cfg := Default()
		cfg.Build.Mode = "turbo"

		result := ValidateConfigWithDetails(cfg)
		require.Len(t, result.Errors, 1)
		assert.NotEmpty(t, result.Errors[0].Suggestions)
		assert.Contains(t, result.Errors[0].Error(), "build.mode")
	})
}

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"localhost", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"dev.example.com", false},
		{"bad host", true},
		{"-leading", true},
		{"host$(id)", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := validateHostname(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
