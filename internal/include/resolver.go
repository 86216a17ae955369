// Package include resolves @@include directives in HTML documents.
//
// A directive has the form
//
//	@@include('path/to/partial.html', {"key": "value"})
//
// and is replaced by the content of the target file after that file's own
// directives have been resolved. Tokens of the form @@key in the target are
// then substituted from the call-site parameters and from named slots
// (@@NAME ... -@@NAME) written after the call. Content of <pre><code> blocks
// is protected from all of this by the escape guard in guard.go.
package include

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
	"github.com/conneroisu/sitekit/internal/logging"
)

const (
	// DefaultMaxDepth bounds the include nesting depth.
	DefaultMaxDepth = 64
	// DefaultPartialsDir is where bare include names are looked up.
	DefaultPartialsDir = "html"

	directiveOpen = "@@include("
)

var directivePattern = regexp.MustCompile(`@@include\(\s*['"]([^'"]+)['"]\s*(?:,\s*(\{[^}]*\}))?\s*\)`)

// FileReader reads include targets. os.ReadFile satisfies it through
// FileReaderFunc.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// FileReaderFunc adapts a function to FileReader.
type FileReaderFunc func(path string) ([]byte, error)

// ReadFile implements FileReader.
func (f FileReaderFunc) ReadFile(path string) ([]byte, error) { return f(path) }

// Resolver expands @@include directives. A Resolver holds no per-document
// state and may be shared between goroutines.
type Resolver struct {
	reader      FileReader
	logger      logging.Logger
	maxDepth    int
	partialsDir string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets the maximum include nesting depth.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for recovered failures.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger.WithComponent("include")
		}
	}
}

// WithReader replaces the filesystem reader.
func WithReader(reader FileReader) Option {
	return func(r *Resolver) {
		if reader != nil {
			r.reader = reader
		}
	}
}

// WithPartialsDir sets the directory name bare include names resolve into.
func WithPartialsDir(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.partialsDir = name
		}
	}
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		reader:      FileReaderFunc(os.ReadFile),
		logger:      logging.NewNopLogger(),
		maxDepth:    DefaultMaxDepth,
		partialsDir: DefaultPartialsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of resolving one document.
type Result struct {
	// Output is the resolved document. It is still guarded when the input was.
	Output string
	// Included lists every target path read, in resolution order.
	Included []string
	// Diagnostics holds the recovered failures (missing targets, bad params).
	Diagnostics []error
}

// state is the per-document bookkeeping threaded through the recursion.
type state struct {
	origin   string
	stack    []string
	included []string
	diags    *siteerrors.Collector
}

// Resolve expands every directive in an already guarded document. Relative
// targets resolve against currentDir, which defaults to the directory of
// originFile. The only error returned is a cyclic include or a cancelled
// context; every other failure is replaced by an HTML comment in place.
func (r *Resolver) Resolve(ctx context.Context, document, currentDir, originFile string) (string, error) {
	res, err := r.ResolveDocument(ctx, document, currentDir, originFile)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// ResolveDocument is Resolve that also reports what was included and which
// failures were recovered.
func (r *Resolver) ResolveDocument(ctx context.Context, document, currentDir, originFile string) (*Result, error) {
	if currentDir == "" {
		currentDir = filepath.Dir(originFile)
	}

	st := &state{
		origin: originFile,
		diags:  siteerrors.NewCollector(),
	}
	if originFile != "" {
		st.stack = append(st.stack, filepath.Clean(originFile))
	}

	out, err := r.resolve(ctx, document, currentDir, st)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output:      out,
		Included:    st.included,
		Diagnostics: st.diags.Errors(),
	}, nil
}

// ResolveFile reads an entry document, guards it, resolves it and restores
// the guarded regions.
func (r *Resolver) ResolveFile(ctx context.Context, path string) (*Result, error) {
	data, err := r.reader.ReadFile(path)
	if err != nil {
		return nil, siteerrors.NewIOError(siteerrors.ErrCodeIncludeRead, "reading entry document", err).
			WithLocation(path, 0)
	}

	return r.ResolveString(ctx, string(data), path)
}

// ResolveString guards an unguarded document, resolves it relative to the
// directory of originFile and restores the guarded regions.
func (r *Resolver) ResolveString(ctx context.Context, document, originFile string) (*Result, error) {
	res, err := r.ResolveDocument(ctx, Escape(document), "", originFile)
	if err != nil {
		return nil, err
	}

	out, failures := UnescapeChecked(res.Output)
	for _, failure := range failures {
		r.logger.Warn(ctx, failure, "guarded region left encoded", "file", originFile)
		res.Diagnostics = append(res.Diagnostics, failure)
	}
	res.Output = out

	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, document, currentDir string, st *state) (string, error) {
	segments := Split(document)
	for i := range segments {
		if segments[i].Guarded || !strings.Contains(segments[i].Text, directiveOpen) {
			continue
		}
		text, err := r.resolveSpan(ctx, segments[i].Text, currentDir, st)
		if err != nil {
			return "", err
		}
		segments[i].Text = text
	}
	return Join(segments), nil
}

// resolveSpan expands the directives of one unguarded span left to right.
// The cursor always moves past spliced content, so replacement text is never
// rescanned at this level.
func (r *Resolver) resolveSpan(ctx context.Context, span, currentDir string, st *state) (string, error) {
	cursor := 0
	for cursor < len(span) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		loc := directivePattern.FindStringSubmatchIndex(span[cursor:])
		if loc == nil {
			break
		}
		start, end := cursor+loc[0], cursor+loc[1]
		target := span[cursor+loc[2] : cursor+loc[3]]
		var rawParams string
		if loc[4] >= 0 {
			rawParams = span[cursor+loc[4] : cursor+loc[5]]
		}

		// The slot-capture window runs up to the next directive.
		windowEnd := len(span)
		if next := strings.Index(span[end:], directiveOpen); next >= 0 {
			windowEnd = end + next
		}
		window := span[end:windowEnd]
		slots := ExtractSlots(window)
		if len(slots) > 0 {
			window = RemoveSlots(window)
		}

		params, err := ParseParams(rawParams)
		if err != nil {
			diag := siteerrors.ErrIncludeParams(target, err)
			st.diags.Add(diag)
			r.logger.Warn(ctx, err, "malformed include parameters, using none",
				"target", target, "origin", st.origin)
			params = Params{}
		}

		replacement, err := r.include(ctx, target, Merge(params, slots), currentDir, st)
		if err != nil {
			return "", err
		}

		span = span[:start] + replacement + window + span[windowEnd:]
		cursor = start + len(replacement) + len(window)
	}

	return span, nil
}

// include reads one target, resolves its own directives with the target's
// directory as the new base, then substitutes params into the result.
func (r *Resolver) include(ctx context.Context, target string, params Params, currentDir string, st *state) (string, error) {
	fullPath := r.targetPath(target, currentDir)

	if len(st.stack) > r.maxDepth || onStack(st.stack, fullPath) {
		chain := append(append([]string{}, st.stack...), fullPath)
		err := siteerrors.ErrCyclicIncludeChain(chain, r.maxDepth)
		r.logger.Error(ctx, err, "cyclic include", "origin", st.origin)
		return "", err
	}

	data, err := r.reader.ReadFile(fullPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			st.diags.Add(siteerrors.ErrIncludeNotFound(fullPath))
			r.logger.Warn(ctx, err, "include not found", "target", fullPath, "origin", st.origin)
			return fmt.Sprintf("<!-- sitekit: include not found: %s -->", target), nil
		}
		st.diags.Add(siteerrors.ErrIncludeRead(fullPath, err))
		r.logger.Warn(ctx, err, "include could not be read", "target", fullPath, "origin", st.origin)
		return fmt.Sprintf("<!-- sitekit: include failed: %s -->", target), nil
	}
	st.included = append(st.included, fullPath)

	st.stack = append(st.stack, fullPath)
	resolved, err := r.resolve(ctx, Escape(string(data)), filepath.Dir(fullPath), st)
	st.stack = st.stack[:len(st.stack)-1]
	if err != nil {
		return "", err
	}

	return Substitute(resolved, params), nil
}

// targetPath applies the partials convention: a bare file name used outside
// a partials directory resolves into <currentDir>/<partialsDir>/.
func (r *Resolver) targetPath(target, currentDir string) string {
	adjusted := target
	if !strings.ContainsAny(target, `/\`) && !filepath.IsAbs(target) && !hasSegment(currentDir, r.partialsDir) {
		adjusted = filepath.Join(r.partialsDir, target)
	}
	if filepath.IsAbs(adjusted) {
		return filepath.Clean(adjusted)
	}
	return filepath.Join(currentDir, adjusted)
}

func hasSegment(dir, segment string) bool {
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func onStack(stack []string, path string) bool {
	for _, p := range stack {
		if p == path {
			return true
		}
	}
	return false
}
