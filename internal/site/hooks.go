// Package site orchestrates a build: it resolves the HTML entry documents of
// the app directory into dist, then runs the post-bundle stages that mirror
// resource directories, fix up the emitted HTML and CSS and optimize images.
//
// Every stage is a Plugin bound to one of a closed set of lifecycle hooks.
// The built-in plugins are registered by NewBuilder; callers may add their own
// with Register.
package site

import (
	"context"
	"sync"

	"github.com/conneroisu/sitekit/internal/config"
	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
	"github.com/conneroisu/sitekit/internal/pipeline"
)

// Hook names a point in the build lifecycle.
type Hook string

const (
	// HookTransformHTML runs once per entry document, before it is written
	// to dist. Plugins edit Context.Page.HTML.
	HookTransformHTML Hook = "transformHtml"
	// HookCloseBundle runs once after every page has been written.
	HookCloseBundle Hook = "closeBundle"
)

// Hooks lists every recognized hook in execution order.
func Hooks() []Hook {
	return []Hook{HookTransformHTML, HookCloseBundle}
}

func (h Hook) valid() bool {
	return h == HookTransformHTML || h == HookCloseBundle
}

// ApplyMode restricts a plugin to some build modes.
type ApplyMode string

const (
	// ApplyAlways runs the plugin in every mode.
	ApplyAlways ApplyMode = ""
	// ApplyBuild skips the plugin in development mode.
	ApplyBuild ApplyMode = "build"
	// ApplyServe runs the plugin in development mode only.
	ApplyServe ApplyMode = "serve"
)

// Plugin is one build stage.
type Plugin struct {
	Name  string
	Hook  Hook
	Apply ApplyMode
	Run   func(ctx context.Context, pc *Context) error
}

func (p Plugin) appliesTo(development bool) bool {
	switch p.Apply {
	case ApplyBuild:
		return !development
	case ApplyServe:
		return development
	default:
		return true
	}
}

// Context is passed to every plugin run.
type Context struct {
	Config *config.Config
	Paths  Paths
	Logger logging.Logger
	// Page is the document being transformed. It is nil for close-bundle
	// plugins.
	Page *Page

	progress pipeline.Reporter
	report   *Report
	mu       *sync.Mutex
}

// PipelineOptions returns the pipeline settings for a stage named label.
func (c *Context) PipelineOptions(label string) pipeline.Options {
	return pipeline.Options{
		Parallelism: c.Config.Build.Parallelism,
		Threshold:   c.Config.Build.ChunkThreshold,
		ItemTimeout: c.Config.Build.ItemTimeout,
		Progress:    c.progress,
		Label:       label,
		Logger:      c.Logger,
	}
}

// Record adds a stage summary to the build report.
func (c *Context) Record(stage string, summary pipeline.Summary) {
	if c.report == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Stages = append(c.report.Stages, Stage{Name: stage, Summary: summary})
}

// forPage returns a copy of c bound to page.
func (c *Context) forPage(page *Page) *Context {
	pc := *c
	pc.Page = page
	pc.Logger = c.Logger.With("page", page.Name)
	return &pc
}

// validatePlugin checks a plugin before registration.
func validatePlugin(p Plugin) error {
	if !p.Hook.valid() {
		return siteerrors.ErrUnknownHookName(p.Name, string(p.Hook))
	}
	if p.Run == nil {
		return siteerrors.NewValidationError(siteerrors.ErrCodeConfigInvalid, "plugin has no run function").
			WithContext("plugin", p.Name)
	}
	return nil
}
