package include

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeEncodesCodeContent(t *testing.T) {
	input := "<p>intro</p>\n<pre class=\"x\">\n  <code data-lang=\"html\">@@include('a.html')</code>\n</pre>"

	escaped := Escape(input)

	assert.NotContains(t, escaped, "@@include")
	assert.Contains(t, escaped, "<pre class=\"x\">\n  <code data-lang=\"html\">"+IgnoreStart)
	assert.Contains(t, escaped, IgnoreEnd+"</code>\n</pre>")
	payload := base64.StdEncoding.EncodeToString([]byte("@@include('a.html')"))
	assert.Contains(t, escaped, payload)
}

func TestEscapeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"no code blocks", "<div>@@title</div>"},
		{"empty", ""},
		{"empty code", "<pre><code></code></pre>"},
		{"uppercase tags", "<PRE><CODE>x < y && y > z</CODE></PRE>"},
		{"multiline", "<pre>\n<code>\nline 1\nline 2\n</code>\n</pre>"},
		{"two blocks", "<pre><code>a</code></pre> mid <pre><code>b@@c</code></pre>"},
		{"unicode", "<pre><code>привет — 世界</code></pre>"},
		{"code without pre", "<code>@@inline</code>"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.input, Unescape(Escape(tc.input)))
		})
	}
}

func TestUnescapeBadPayload(t *testing.T) {
	input := "<pre><code>" + IgnoreStart + "***not base64***" + IgnoreEnd + "</code></pre>"

	out, failures := UnescapeChecked(input)

	require.Len(t, failures, 1)
	assert.Equal(t, "<pre><code>***not base64***</code></pre>", out)
	assert.NotPanics(t, func() { Unescape(input) })
}

func TestSplitAndJoin(t *testing.T) {
	escaped := Escape("head <pre><code>x</code></pre> tail <pre><code>y</code></pre>")

	segments := Split(escaped)
	require.Len(t, segments, 5)

	guarded := 0
	for _, s := range segments {
		if s.Guarded {
			guarded++
			assert.True(t, strings.HasPrefix(s.Text, IgnoreStart))
			assert.True(t, strings.HasSuffix(s.Text, IgnoreEnd))
		}
	}
	assert.Equal(t, 2, guarded)
	assert.Equal(t, escaped, Join(segments))
}

func TestMapUnguarded(t *testing.T) {
	escaped := Escape("A <pre><code>A</code></pre> A")

	out := Unescape(MapUnguarded(escaped, func(s string) string {
		return strings.ReplaceAll(s, "A", "B")
	}))

	assert.Equal(t, "B <pre><code>A</code></pre> B", out)
}

func TestGuard(t *testing.T) {
	shout := Guard(func(s string) (string, error) {
		return strings.ReplaceAll(s, "text", "TEXT"), nil
	})

	out, err := shout("<pre><code>text</code></pre>text")
	require.NoError(t, err)
	assert.Equal(t, "<pre><code>text</code></pre>TEXT", out)
}
