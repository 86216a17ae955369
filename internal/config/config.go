// Package config provides configuration management for sitekit using Viper
// for loading from .sitekit.yml, SITEKIT_ environment variables and
// command-line flags.
//
// Defaults are registered with SetDefaults so every key is known to Viper;
// Load then unmarshals the merged settings and validates them.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Build modes.
const (
	ModeDevelopment   = "development"
	ModeProduction    = "production"
	ModeProductionMin = "production-min"
)

// EnvPrefix prefixes every environment override, e.g. SITEKIT_SERVER_PORT.
const EnvPrefix = "SITEKIT"

type Config struct {
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Build    BuildConfig    `mapstructure:"build" yaml:"build"`
	Optimize OptimizeConfig `mapstructure:"optimize" yaml:"optimize"`
	Aliases  AliasesConfig  `mapstructure:"aliases" yaml:"aliases"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// PathsConfig locates the project directories. App, Dist and Public are
// relative to Root unless absolute; Partials is the directory name bare
// include names resolve into.
type PathsConfig struct {
	Root     string `mapstructure:"root" yaml:"root"`
	App      string `mapstructure:"app" yaml:"app"`
	Dist     string `mapstructure:"dist" yaml:"dist"`
	Public   string `mapstructure:"public" yaml:"public"`
	Partials string `mapstructure:"partials" yaml:"partials"`
}

type BuildConfig struct {
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	EmptyOutDir     bool          `mapstructure:"empty_out_dir" yaml:"empty_out_dir"`
	Parallelism     int           `mapstructure:"parallelism" yaml:"parallelism"`
	ChunkThreshold  int           `mapstructure:"chunk_threshold" yaml:"chunk_threshold"`
	ItemTimeout     time.Duration `mapstructure:"item_timeout" yaml:"item_timeout"`
	MaxIncludeDepth int           `mapstructure:"max_include_depth" yaml:"max_include_depth"`
}

type OptimizeConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	External      bool    `mapstructure:"external" yaml:"external"`
	JPEGQuality   int     `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	PNGQualityMin float64 `mapstructure:"png_quality_min" yaml:"png_quality_min"`
	PNGQualityMax float64 `mapstructure:"png_quality_max" yaml:"png_quality_max"`
	GIFLevel      int     `mapstructure:"gif_level" yaml:"gif_level"`
}

type AliasesConfig struct {
	HTML map[string]string `mapstructure:"html" yaml:"html"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	LiveReload     bool     `mapstructure:"live_reload" yaml:"live_reload"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultParallelism leaves one CPU for the rest of the process.
func DefaultParallelism() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// DefaultHTMLAliases maps alias prefixes in page markup to output paths.
func DefaultHTMLAliases() map[string]string {
	return map[string]string{
		"@scss":   "scss",
		"@js":     "js",
		"@img":    "img",
		"@utils":  "js/utils",
		"@vendor": "vendor",
		"@files":  "files",
		"@fonts":  "fonts",
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Root:     ".",
			App:      "app",
			Dist:     "dist",
			Public:   "public",
			Partials: "html",
		},
		Build: BuildConfig{
			Mode:            ModeProduction,
			EmptyOutDir:     true,
			Parallelism:     DefaultParallelism(),
			ChunkThreshold:  100,
			ItemTimeout:     30 * time.Second,
			MaxIncludeDepth: 64,
		},
		Optimize: OptimizeConfig{
			JPEGQuality:   80,
			PNGQualityMin: 0.6,
			PNGQualityMax: 0.8,
			GIFLevel:      7,
		},
		Aliases: AliasesConfig{HTML: DefaultHTMLAliases()},
		Server: ServerConfig{
			Host:       "localhost",
			Port:       3000,
			LiveReload: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.root", d.Paths.Root)
	v.SetDefault("paths.app", d.Paths.App)
	v.SetDefault("paths.dist", d.Paths.Dist)
	v.SetDefault("paths.public", d.Paths.Public)
	v.SetDefault("paths.partials", d.Paths.Partials)

	v.SetDefault("build.mode", d.Build.Mode)
	v.SetDefault("build.empty_out_dir", d.Build.EmptyOutDir)
	v.SetDefault("build.parallelism", d.Build.Parallelism)
	v.SetDefault("build.chunk_threshold", d.Build.ChunkThreshold)
	v.SetDefault("build.item_timeout", d.Build.ItemTimeout)
	v.SetDefault("build.max_include_depth", d.Build.MaxIncludeDepth)

	v.SetDefault("optimize.enabled", d.Optimize.Enabled)
	v.SetDefault("optimize.external", d.Optimize.External)
	v.SetDefault("optimize.jpeg_quality", d.Optimize.JPEGQuality)
	v.SetDefault("optimize.png_quality_min", d.Optimize.PNGQualityMin)
	v.SetDefault("optimize.png_quality_max", d.Optimize.PNGQualityMax)
	v.SetDefault("optimize.gif_level", d.Optimize.GIFLevel)

	v.SetDefault("aliases.html", d.Aliases.HTML)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.live_reload", d.Server.LiveReload)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// BindEnv enables SITEKIT_<SECTION>_<KEY> overrides on v. SITEKIT_OPTIMIZE
// is accepted as a shorthand for SITEKIT_OPTIMIZE_ENABLED.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("optimize.enabled", EnvPrefix+"_OPTIMIZE_ENABLED", EnvPrefix+"_OPTIMIZE")
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode is LoadFrom without validation, for callers that report problems
// themselves through ValidateConfigWithDetails.
func Decode(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Viper replaces a map default wholesale when the file sets the key, so
	// aliases missing from the file keep their defaults.
	for name, target := range DefaultHTMLAliases() {
		if _, ok := config.Aliases.HTML[name]; !ok {
			if config.Aliases.HTML == nil {
				config.Aliases.HTML = make(map[string]string)
			}
			config.Aliases.HTML[name] = target
		}
	}

	if config.Build.Mode == ModeProductionMin {
		config.Optimize.Enabled = true
	}

	return &config, nil
}

// Development reports whether the build skips the bundle-close stages.
func (c *Config) Development() bool {
	return c.Build.Mode == ModeDevelopment
}

// OptimizeImages reports whether the image optimization stage runs.
func (c *Config) OptimizeImages() bool {
	return !c.Development() && (c.Optimize.Enabled || c.Build.Mode == ModeProductionMin)
}

// Address returns the dev server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
