package include

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

// writeTree creates files below a fresh temp dir and returns the dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func resolveFile(t *testing.T, root, name string, opts ...Option) *Result {
	t.Helper()
	res, err := NewResolver(opts...).ResolveFile(context.Background(), filepath.Join(root, name))
	require.NoError(t, err)
	return res
}

func TestResolveFile(t *testing.T) {
	testCases := []struct {
		name     string
		files    map[string]string
		expected string
	}{
		{
			name: "params",
			files: map[string]string{
				"index.html":       `<p>@@include('header.html', {"title":"Hi"})</p>`,
				"html/header.html": `<h1>@@title</h1>`,
			},
			expected: `<p><h1>Hi</h1></p>`,
		},
		{
			name: "slot",
			files: map[string]string{
				"index.html":     "@@include('card.html')\n@@body\nSlot content\n-@@body",
				"html/card.html": `<div>@@body</div>`,
			},
			expected: `<div>Slot content</div>`,
		},
		{
			name: "hyphenated slot and param names",
			files: map[string]string{
				"index.html":     "@@include('hero.html', {\"cta-label\":\"Go\"})\n@@hero-title\nWelcome\n-@@hero-title",
				"html/hero.html": `<h1>@@hero-title</h1><a>@@cta-label</a>`,
			},
			expected: `<h1>Welcome</h1><a>Go</a>`,
		},
		{
			name: "missing target",
			files: map[string]string{
				"index.html": `@@include('missing.html')`,
			},
			expected: `<!-- sitekit: include not found: missing.html -->`,
		},
		{
			name: "slot wins over param",
			files: map[string]string{
				"index.html":  `@@include('t.html', {"name":"param"}) @@name slot -@@name`,
				"html/t.html": `[@@name]`,
			},
			expected: `[slot]`,
		},
		{
			name: "inner includes resolve before outer substitution",
			files: map[string]string{
				"index.html":      `@@include('outer.html', {"x":"outer"})`,
				"html/outer.html": `<section>@@include('inner.html', {"x":"inner"}) @@x</section>`,
				"html/inner.html": `<b>@@x</b>`,
			},
			expected: `<section><b>inner</b> outer</section>`,
		},
		{
			name: "two includes in one span",
			files: map[string]string{
				"index.html":  `@@include('a.html', {"v":"1"})|@@include('a.html', {"v":"2"})`,
				"html/a.html": `<i>@@v</i>`,
			},
			expected: `<i>1</i>|<i>2</i>`,
		},
		{
			name: "explicit relative path",
			files: map[string]string{
				"index.html":           `@@include('./parts/nav.html')`,
				"parts/nav.html":       `<nav>@@include('item.html')</nav>`,
				"parts/html/item.html": `<a>item</a>`,
			},
			expected: `<nav><a>item</a></nav>`,
		},
		{
			name: "code blocks are never expanded",
			files: map[string]string{
				"index.html":  "<pre><code>@@include('a.html')</code></pre>@@include('a.html')",
				"html/a.html": `A`,
			},
			expected: "<pre><code>@@include('a.html')</code></pre>A",
		},
		{
			name: "partial code blocks survive",
			files: map[string]string{
				"index.html":  `@@include('a.html', {"k":"v"})`,
				"html/a.html": `@@k<pre><code>@@k</code></pre>`,
			},
			expected: `v<pre><code>@@k</code></pre>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := writeTree(t, tc.files)
			res := resolveFile(t, root, "index.html")
			assert.Equal(t, tc.expected, res.Output)
		})
	}
}

func TestResolvePartialsDirResolvesBareNames(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":  `@@include('a.html')`,
		"html/a.html": `a(@@include('b.html'))`,
		"html/b.html": `b`,
	})

	res := resolveFile(t, root, "index.html")

	assert.Equal(t, "a(b)", res.Output)
	assert.Equal(t, []string{
		filepath.Join(root, "html", "a.html"),
		filepath.Join(root, "html", "b.html"),
	}, res.Included)
}

func TestResolveMissingTargetIsDiagnostic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `<main>@@include('nope.html')</main>`,
	})

	res := resolveFile(t, root, "index.html")

	require.Len(t, res.Diagnostics, 1)
	assert.True(t, errors.Is(res.Diagnostics[0], siteerrors.ErrIncludeMissing))
	assert.Contains(t, res.Output, "include not found: nope.html")
	assert.Empty(t, res.Included)
}

func TestResolveMalformedParams(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":  `@@include('t.html', {bad json}) after`,
		"html/t.html": `[@@x]`,
	})

	res := resolveFile(t, root, "index.html")

	assert.Equal(t, "[] after", res.Output)
	require.Len(t, res.Diagnostics, 1)

	var siteErr *siteerrors.SiteError
	require.ErrorAs(t, res.Diagnostics[0], &siteErr)
	assert.Equal(t, siteerrors.ErrCodeIncludeParams, siteErr.Code)
}

func TestResolveCyclicInclude(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":  `@@include('a.html')`,
		"html/a.html": `@@include('b.html')`,
		"html/b.html": `@@include('a.html')`,
	})

	_, err := NewResolver().ResolveFile(context.Background(), filepath.Join(root, "index.html"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, siteerrors.ErrCyclicInclude))
	assert.Contains(t, err.Error(), "a.html")
}

func TestResolveSelfInclude(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html": `x @@include('./index.html')`,
	})

	_, err := NewResolver().ResolveFile(context.Background(), filepath.Join(root, "index.html"))

	assert.True(t, errors.Is(err, siteerrors.ErrCyclicInclude))
}

func TestResolveMaxDepth(t *testing.T) {
	files := map[string]string{"index.html": `@@include('p0.html')`}
	for i := 0; i < 6; i++ {
		files[fmt.Sprintf("html/p%d.html", i)] = fmt.Sprintf(`@@include('p%d.html')`, i+1)
	}
	files["html/p6.html"] = "leaf"
	root := writeTree(t, files)

	_, err := NewResolver(WithMaxDepth(3)).ResolveFile(context.Background(), filepath.Join(root, "index.html"))
	assert.True(t, errors.Is(err, siteerrors.ErrCyclicInclude))

	res := resolveFile(t, root, "index.html", WithMaxDepth(10))
	assert.Equal(t, "leaf", res.Output)
}

func TestResolveIsDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":       "<body>@@include('header.html', {\"t\":\"T\"})\n@@include('card.html')@@body b -@@body</body>",
		"html/header.html": `<h1>@@t</h1>`,
		"html/card.html":   `<div>@@body</div>`,
	})

	first := resolveFile(t, root, "index.html")
	second := resolveFile(t, root, "index.html")

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, "<body><h1>T</h1>\n<div>b</div></body>", first.Output)
}

func TestResolveWithReader(t *testing.T) {
	files := map[string]string{
		filepath.Join("site", "html", "nav.html"): `<nav>@@label</nav>`,
	}
	reads := 0
	reader := FileReaderFunc(func(path string) ([]byte, error) {
		reads++
		content, ok := files[path]
		if !ok {
			return nil, fs.ErrNotExist
		}
		return []byte(content), nil
	})

	out, err := NewResolver(WithReader(reader)).Resolve(context.Background(),
		`@@include('nav.html', {"label":"Home"})@@include('nav.html', {"label":"About"})`,
		"site", filepath.Join("site", "index.html"))

	require.NoError(t, err)
	assert.Equal(t, "<nav>Home</nav><nav>About</nav>", out)
	assert.Equal(t, 2, reads, "targets are re-read for every directive")
}

func TestResolveReadFailureIsLocalized(t *testing.T) {
	reader := FileReaderFunc(func(path string) ([]byte, error) {
		return nil, errors.New("permission denied")
	})

	res, err := NewResolver(WithReader(reader)).ResolveDocument(context.Background(),
		`a @@include('x.html') b`, "site", "")

	require.NoError(t, err)
	assert.Equal(t, "a <!-- sitekit: include failed: x.html --> b", res.Output)
	require.Len(t, res.Diagnostics, 1)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver().Resolve(ctx, `@@include('a.html')`, t.TempDir(), "")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveFileMissingEntry(t *testing.T) {
	_, err := NewResolver().ResolveFile(context.Background(), filepath.Join(t.TempDir(), "absent.html"))

	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
