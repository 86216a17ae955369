package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
)

// configFileEnv names a config file when --config is not given.
const configFileEnv = config.EnvPrefix + "_CONFIG_FILE"

// app is the state shared by one command tree. Each tree owns its Viper
// instance so flags bound by one command never leak into another.
type app struct {
	v       *viper.Viper
	cfgFile string
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the sitekit command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sitekit",
		Short: "Static site builder with HTML includes and a parallel asset pipeline",
		Long: `sitekit assembles a static site from HTML entry pages and partials.

Pages under app/ are expanded with @@include directives, aliases such as
@img/ are rewritten, resources are copied to dist/ and, in production builds,
images are optimized in parallel.

Quick Start:
  sitekit config init             Write a .sitekit.yml with the defaults
  sitekit build                   Build the site into dist/
  sitekit serve                   Build, watch and serve with live reload

Command Aliases:
  build (b), watch (w), serve (s)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is .sitekit.yml, can also use "+configFileEnv+")")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	a.bind(flags, map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})

	root.AddCommand(
		newBuildCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)

	return root
}

// initConfig selects the config file and enables environment overrides.
// Priority: --config, then SITEKIT_CONFIG_FILE, then .sitekit.yml in the
// working directory. Only the default file may be absent.
func (a *app) initConfig() error {
	config.BindEnv(a.v)

	switch {
	case a.cfgFile != "":
		a.v.SetConfigFile(a.cfgFile)
	case os.Getenv(configFileEnv) != "":
		a.v.SetConfigFile(os.Getenv(configFileEnv))
	default:
		a.v.AddConfigPath(".")
		a.v.SetConfigName(".sitekit")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// bind maps config keys to flag names. Commands bind their own flags when
// they run so two commands can share a key.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if flag := flags.Lookup(name); flag != nil {
			_ = a.v.BindPFlag(key, flag)
		}
	}
}

// load returns the validated configuration and a logger writing to the
// command's stderr.
func (a *app) load(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.LoadFrom(a.v)
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}
