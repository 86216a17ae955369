package include

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected Params
		wantErr  bool
	}{
		{name: "empty", raw: "", expected: Params{}},
		{name: "strings", raw: `{"title":"Hi","lang":"en"}`, expected: Params{"title": "Hi", "lang": "en"}},
		{name: "escaped string", raw: `{"q":"say \"hi\""}`, expected: Params{"q": `say "hi"`}},
		{name: "number keeps its text", raw: `{"n": 1.50}`, expected: Params{"n": "1.50"}},
		{name: "bool", raw: `{"on": true}`, expected: Params{"on": "true"}},
		{name: "null is empty", raw: `{"gone": null}`, expected: Params{"gone": ""}},
		{name: "malformed", raw: `{title: Hi}`, wantErr: true},
		{name: "not an object", raw: `null`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params, err := ParseParams(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				assert.Empty(t, params)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, params)
		})
	}
}

func TestMergeLaterWins(t *testing.T) {
	base := Params{"a": "1", "b": "2"}

	merged := Merge(base, map[string]string{"b": "slot"}, map[string]string{"c": "3"})

	assert.Equal(t, Params{"a": "1", "b": "slot", "c": "3"}, merged)
	assert.Equal(t, "2", base["b"], "base must not be modified")
}

func TestSubstitute(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		params   Params
		expected string
	}{
		{"simple", "<h1>@@title</h1>", Params{"title": "Hi"}, "<h1>Hi</h1>"},
		{"unknown token deleted", "<h1>@@title</h1>@@missing", Params{"title": "Hi"}, "<h1>Hi</h1>"},
		{"word boundary", "@@titles @@title", Params{"title": "T"}, " T"},
		{"call syntax untouched", "@@fn(x) @@include('a.html')", Params{"fn": "no"}, "@@fn(x) @@include('a.html')"},
		{"values are not rescanned", "@@a", Params{"a": "@@b", "b": "x"}, "@@b"},
		{"no tokens", "plain", Params{"a": "b"}, "plain"},
		{"hyphenated name", "<h2>@@hero-title</h2>", Params{"hero": "no", "hero-title": "Welcome"}, "<h2>Welcome</h2>"},
		{"hyphenated name does not match its prefix", "@@hero-title", Params{"hero": "no"}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Substitute(tc.text, tc.params))
		})
	}
}

func TestSubstituteSkipsGuardedCode(t *testing.T) {
	escaped := Escape("@@name <pre><code>@@name</code></pre>")

	out := Unescape(Substitute(escaped, Params{"name": "N"}))

	assert.Equal(t, "N <pre><code>@@name</code></pre>", out)
}
