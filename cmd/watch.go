package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/site"
	"github.com/conneroisu/sitekit/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Build the site and rebuild when sources change",
		Long: `Build once, then watch app/ and public/ and rebuild whenever a page,
partial, stylesheet, script or resource changes. Changes are debounced so a
burst of saves triggers a single rebuild.

Examples:
  sitekit watch                     # Watch with the configured mode
  sitekit watch --mode development  # Fast rebuilds without bundle-close stages`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.bind(cmd.Flags(), buildFlagKeys)
			cfg, logger, err := a.load(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			builder := newBuilder(cmd, cfg, logger, quiet)
			report, err := build(ctx, builder, logger)
			renderTo(cmd.OutOrStdout(), report)
			if err != nil {
				logger.Warn(ctx, err, "initial build failed, watching anyway")
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Watching for changes... (Press Ctrl+C to stop)")
			return watchSite(ctx, builder, logger, nil)
		},
	}

	addBuildFlags(cmd)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "don't print progress")

	return cmd
}

// watchSite rebuilds with builder on every debounced batch of source changes
// until ctx is done. afterBuild, when set, runs after each rebuild.
func watchSite(ctx context.Context, builder *site.Builder, logger logging.Logger, afterBuild func(context.Context)) error {
	paths := builder.Paths()

	fw, err := watcher.NewFileWatcher(watcher.DefaultDebounce, logger)
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoTempFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.ExcludeDirFilter(paths.Dist))

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			logger.Debug(ctx, "source changed", "path", event.Path, "type", event.Type.String())
		}
		logger.Info(ctx, "rebuilding", "changed", len(events))

		report, err := builder.Build(ctx)
		if err != nil {
			logger.Error(ctx, err, "rebuild failed")
		} else {
			logger.Info(ctx, "rebuild finished", "pages", len(report.Pages), "elapsed", report.Elapsed)
		}

		if afterBuild != nil {
			afterBuild(ctx)
		}
		return nil
	})

	watched := 0
	for _, dir := range []string{paths.App, paths.Public} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.AddRecursive(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Debug(ctx, "watching", "dir", dir)
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("nothing to watch: neither %s nor %s exists", paths.App, paths.Public)
	}

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}

	<-ctx.Done()
	return nil
}
