package cmd

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Build, watch and serve the site with live reload",
		Long: `Build the site, serve it over HTTP and rebuild on every source change.
Browsers with the page open reload automatically after each rebuild.

Files missing from dist/ are served from app/ and public/, so a development
build that skips resource copying still renders completely.

Examples:
  sitekit serve                          # Serve on localhost:3000
  sitekit serve --port 8080 --open       # Custom port, open the browser
  sitekit serve --mode development       # Skip bundle-close stages on rebuild
  sitekit serve --no-reload              # Plain static server`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.bind(cmd.Flags(), buildFlagKeys)
			a.bind(cmd.Flags(), map[string]string{
				"server.host": "host",
				"server.port": "port",
				"server.open": "open",
			})
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}
			if noReload, _ := cmd.Flags().GetBool("no-reload"); noReload {
				cfg.Server.LiveReload = false
			}

			ctx := cmd.Context()
			builder := newBuilder(cmd, cfg, logger, quiet)
			report, err := build(ctx, builder, logger)
			renderTo(cmd.OutOrStdout(), report)
			if err != nil {
				logger.Warn(ctx, err, "initial build failed, serving anyway")
			}

			paths := builder.Paths()
			srv := server.New(cfg, logger, paths.Dist, paths.App, paths.Public)
			return serve(ctx, cfg, logger, srv, func(ctx context.Context) error {
				return watchSite(ctx, builder, logger, func(ctx context.Context) {
					if err := srv.Reload(ctx); err != nil {
						logger.Warn(ctx, err, "live reload broadcast failed")
					}
				})
			})
		},
	}

	addBuildFlags(cmd)
	flags := cmd.Flags()
	flags.String("host", "localhost", "host to bind to")
	flags.IntP("port", "p", 3000, "port to serve on")
	flags.Bool("open", false, "open the site in a browser")
	flags.Bool("no-reload", false, "disable live reload")
	flags.BoolVarP(&quiet, "quiet", "q", false, "don't print progress")

	return cmd
}

// serve runs the server next to watch until ctx is done or either fails.
func serve(ctx context.Context, cfg *config.Config, logger logging.Logger, srv *server.Server, watch func(context.Context) error) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(srv.Start)
	p.Go(watch)

	if cfg.Server.Open {
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			if err := server.OpenBrowser(srv.URL()); err != nil {
				logger.Warn(ctx, err, "could not open browser", "url", srv.URL())
			}
			return nil
		})
	}

	return p.Wait()
}
