package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/pipeline"
	"github.com/conneroisu/sitekit/internal/site"
)

func newBuildCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"b"},
		Short:   "Build the site into the output directory",
		Long: `Resolve @@include directives in every entry page under app/, rewrite
aliases and write the pages to dist/. Production builds then copy resources,
fix font and asset paths and, when enabled, optimize images.

Examples:
  sitekit build                        # Production build
  sitekit build --mode development     # Pages only, no bundle-close stages
  sitekit build --mode production-min  # Production build with image optimization
  sitekit build --optimize             # Same as SITEKIT_OPTIMIZE=true`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.bind(cmd.Flags(), buildFlagKeys)
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}

			builder := newBuilder(cmd, cfg, logger, quiet)
			report, err := build(cmd.Context(), builder, logger)
			renderTo(cmd.OutOrStdout(), report)
			return err
		},
	}

	addBuildFlags(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "don't print progress")

	return cmd
}

var buildFlagKeys = map[string]string{
	"build.mode":          "mode",
	"build.empty_out_dir": "empty-out-dir",
	"build.parallelism":   "parallelism",
	"optimize.enabled":    "optimize",
	"paths.root":          "root",
	"paths.dist":          "dist",
}

// addBuildFlags registers the flags build, watch and serve share.
func addBuildFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("mode", "m", config.ModeProduction, "build mode (development, production, production-min)")
	flags.Bool("empty-out-dir", true, "empty the output directory before building")
	flags.IntP("parallelism", "j", config.DefaultParallelism(), "number of concurrent workers")
	flags.Bool("optimize", false, "optimize images in production builds")
	flags.String("root", ".", "project root directory")
	flags.StringP("dist", "o", "dist", "output directory")
}

func newBuilder(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, quiet bool) *site.Builder {
	var progress pipeline.Reporter = pipeline.NopReporter{}
	if !quiet {
		progress = pipeline.NewLineReporter(cmd.ErrOrStderr())
	}
	return site.NewBuilder(cfg, site.WithLogger(logger), site.WithProgress(progress))
}

func build(ctx context.Context, builder *site.Builder, logger logging.Logger) (*site.Report, error) {
	paths := builder.Paths()
	op := logging.StartOperation(logger, "build")
	logger.Info(ctx, "building site", "app", paths.App, "dist", paths.Dist)

	report, err := builder.Build(ctx)
	if err != nil {
		op.EndWithError(ctx, err)
		return report, err
	}

	op.End(ctx, "pages", len(report.Pages))
	return report, nil
}

// renderTo writes a report when there is one.
func renderTo(w io.Writer, report *site.Report) {
	if report != nil {
		report.Render(w)
	}
}
