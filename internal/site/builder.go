package site

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitekit/internal/config"
	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/include"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/pipeline"
	"github.com/conneroisu/sitekit/internal/validation"
)

// Builder runs the registered plugins over a project. A Builder may be
// reused for successive builds but not for concurrent ones.
type Builder struct {
	cfg      *config.Config
	paths    Paths
	logger   logging.Logger
	progress pipeline.Reporter
	defaults bool
	plugins  map[Hook][]Plugin
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger.WithComponent("site")
		}
	}
}

// WithProgress sets the reporter that receives pipeline progress.
func WithProgress(reporter pipeline.Reporter) Option {
	return func(b *Builder) {
		if reporter != nil {
			b.progress = reporter
		}
	}
}

// WithoutDefaults starts the builder with no plugins registered.
func WithoutDefaults() Option {
	return func(b *Builder) {
		b.defaults = false
	}
}

// NewBuilder creates a builder for cfg with the built-in plugins registered.
func NewBuilder(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		paths:    ResolvePaths(cfg.Paths),
		logger:   logging.NewNopLogger(),
		progress: pipeline.NopReporter{},
		defaults: true,
		plugins:  make(map[Hook][]Plugin),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.defaults {
		resolver := include.NewResolver(
			include.WithMaxDepth(cfg.Build.MaxIncludeDepth),
			include.WithPartialsDir(cfg.Paths.Partials),
			include.WithLogger(b.logger),
		)
		for _, p := range DefaultPlugins(resolver, cfg.Aliases.HTML) {
			// The built-ins are known to be valid.
			_ = b.Register(p)
		}
	}

	return b
}

// Paths returns the resolved project directories.
func (b *Builder) Paths() Paths { return b.paths }

// Register appends a plugin to its hook. Plugins bound to an unknown hook
// are rejected.
func (b *Builder) Register(p Plugin) error {
	if err := validatePlugin(p); err != nil {
		return err
	}
	b.plugins[p.Hook] = append(b.plugins[p.Hook], p)
	return nil
}

// Plugins returns the plugins registered for hook in execution order.
func (b *Builder) Plugins(hook Hook) []Plugin {
	return append([]Plugin(nil), b.plugins[hook]...)
}

// Build transforms every entry page into dist and, outside development
// mode, runs the close-bundle stages. Stage failures on individual items are
// recorded in the report; the returned error is non-nil when a page could not
// be transformed or a stage could not run at all. The report is returned in
// both cases.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	development := b.cfg.Development()
	report := &Report{Mode: b.cfg.Build.Mode}

	if err := validation.ValidatePath(b.paths.Dist); err != nil {
		return report, fmt.Errorf("output directory: %w", err)
	}

	if b.cfg.Build.EmptyOutDir {
		if err := CleanOutput(b.paths.Dist); err != nil {
			return report, err
		}
	}
	if err := os.MkdirAll(b.paths.Dist, 0o755); err != nil {
		return report, fmt.Errorf("creating output directory: %w", err)
	}

	pages, err := FindEntries(b.paths.App)
	if err != nil {
		return report, err
	}
	report.Pages = pages

	base := &Context{
		Config:   b.cfg,
		Paths:    b.paths,
		Logger:   b.logger,
		progress: b.progress,
		report:   report,
		mu:       &sync.Mutex{},
	}

	b.logger.Info(ctx, "building", "mode", b.cfg.Build.Mode, "pages", len(pages), "dist", b.paths.Dist)

	summary := pipeline.Run(ctx, pages, func(ctx context.Context, page *Page) pipeline.Result {
		return b.transform(ctx, base.forPage(page), development)
	}, base.PipelineOptions("pages"))
	base.Record("pages", summary)

	var errs []error
	for _, page := range report.FailedPages() {
		errs = append(errs, fmt.Errorf("%s: %w", page.Name, page.Err))
	}

	if !development {
		for _, p := range b.plugins[HookCloseBundle] {
			if !p.appliesTo(development) {
				continue
			}
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			b.logger.Debug(ctx, "running stage", "plugin", p.Name)
			if err := p.Run(ctx, base); err != nil {
				b.logger.Error(ctx, err, "stage failed", "plugin", p.Name)
				errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
			}
		}
	}

	report.Elapsed = time.Since(start)
	b.logger.Info(ctx, "build finished",
		"pages", len(report.Pages),
		"failed_pages", len(report.FailedPages()),
		"failed_items", report.FailedItems(),
		"elapsed", report.Elapsed)

	return report, stderrors.Join(errs...)
}

// transform runs the transform-html plugins over one page and writes it.
func (b *Builder) transform(ctx context.Context, pc *Context, development bool) pipeline.Result {
	page := pc.Page
	res := pipeline.Result{Item: page.Name}

	data, err := os.ReadFile(page.Entry)
	if err != nil {
		page.Err = err
		res.Err = siteerrors.ErrItemFailed(page.Entry, err)
		return res
	}
	page.HTML = string(data)
	res.OriginalSize = int64(len(data))

	for _, p := range b.plugins[HookTransformHTML] {
		if !p.appliesTo(development) {
			continue
		}
		if err := p.Run(ctx, pc); err != nil {
			pc.Logger.Error(ctx, err, "page transform failed", "plugin", p.Name)
			page.Err = err
			res.Err = siteerrors.ErrItemFailed(page.Entry, err)
			return res
		}
	}

	for _, diag := range page.Diagnostics {
		pc.Logger.Warn(ctx, diag, "page resolved with warnings")
	}

	page.Output = filepath.Join(b.paths.Dist, page.Name)
	if err := os.MkdirAll(filepath.Dir(page.Output), 0o755); err != nil {
		page.Err = err
		res.Err = siteerrors.ErrItemFailed(page.Entry, err)
		return res
	}
	if err := os.WriteFile(page.Output, []byte(page.HTML), 0o644); err != nil {
		page.Err = err
		res.Err = siteerrors.ErrItemFailed(page.Entry, err)
		return res
	}

	res.Success = true
	res.NewSize = int64(len(page.HTML))
	return res
}

// FindEntries returns a page for every .html file directly inside app,
// sorted by name.
func FindEntries(app string) ([]*Page, error) {
	entries, err := os.ReadDir(app)
	if err != nil {
		return nil, fmt.Errorf("reading app directory: %w", err)
	}

	var pages []*Page
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), ".html") {
			continue
		}
		pages = append(pages, &Page{
			Name:  entry.Name(),
			Entry: filepath.Join(app, entry.Name()),
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages, nil
}

// CleanOutput empties dist, keeping the directory itself. A missing dist is
// not an error.
func CleanOutput(dist string) error {
	entries, err := os.ReadDir(dist)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading output directory: %w", err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dist, entry.Name())); err != nil {
			return fmt.Errorf("cleaning output directory: %w", err)
		}
	}
	return nil
}
