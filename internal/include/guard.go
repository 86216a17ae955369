package include

import (
	"encoding/base64"
	"regexp"
	"strings"

	siteerrors "github.com/conneroisu/sitekit/internal/errors"
)

// Sentinels fencing a guarded region. The payload between them is standard
// base64, whose alphabet never contains '<'.
const (
	IgnoreStart = "<!-- SITEKIT_IGNORE_START -->"
	IgnoreEnd   = "<!-- SITEKIT_IGNORE_END -->"
)

var (
	codeBlockPattern = regexp.MustCompile(`(?is)(<pre[^>]*>)(\s*)(<code[^>]*>)(.*?)(</code>)(\s*)(</pre>)`)
	guardedPattern   = regexp.MustCompile(regexp.QuoteMeta(IgnoreStart) + `([^<]*)` + regexp.QuoteMeta(IgnoreEnd))
)

// Segment is a contiguous piece of guarded text. Guarded segments hold a
// complete sentinel-fenced region and must be passed through untouched.
type Segment struct {
	Text    string
	Guarded bool
}

// Escape encodes the content of every <pre><code> block so directive scanning
// and substitution never see it. Tag markup and surrounding whitespace are
// kept byte for byte.
func Escape(html string) string {
	matches := codeBlockPattern.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html
	}

	var b strings.Builder
	b.Grow(len(html) + len(matches)*(len(IgnoreStart)+len(IgnoreEnd)))

	last := 0
	for _, m := range matches {
		// m[8]:m[9] is the code content group.
		b.WriteString(html[last:m[8]])
		b.WriteString(IgnoreStart)
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(html[m[8]:m[9]])))
		b.WriteString(IgnoreEnd)
		last = m[9]
	}
	b.WriteString(html[last:])

	return b.String()
}

// Unescape restores every guarded region to its original content. A payload
// that does not decode is left in place without its sentinels.
func Unescape(html string) string {
	out, _ := UnescapeChecked(html)
	return out
}

// UnescapeChecked is Unescape that also reports payloads that failed to
// decode, so callers can log them.
func UnescapeChecked(html string) (string, []error) {
	var failures []error
	out := guardedPattern.ReplaceAllStringFunc(html, func(match string) string {
		payload := match[len(IgnoreStart) : len(match)-len(IgnoreEnd)]
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			failures = append(failures, siteerrors.ErrGuardDecode(err))
			return payload
		}
		return string(decoded)
	})
	return out, failures
}

// Split cuts guarded text into alternating unguarded and guarded segments.
// Joining the segment texts in order yields the input.
func Split(html string) []Segment {
	matches := guardedPattern.FindAllStringIndex(html, -1)
	segments := make([]Segment, 0, 2*len(matches)+1)

	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, Segment{Text: html[last:m[0]]})
		}
		segments = append(segments, Segment{Text: html[m[0]:m[1]], Guarded: true})
		last = m[1]
	}
	if last < len(html) {
		segments = append(segments, Segment{Text: html[last:]})
	}

	return segments
}

// Join concatenates segments back into a single string.
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// MapUnguarded applies fn to every unguarded segment of html.
func MapUnguarded(html string, fn func(string) string) string {
	segments := Split(html)
	for i := range segments {
		if !segments[i].Guarded {
			segments[i].Text = fn(segments[i].Text)
		}
	}
	return Join(segments)
}

// Guard wraps an HTML processor so that code blocks are escaped before it
// runs and restored afterwards.
func Guard(process func(string) (string, error)) func(string) (string, error) {
	return func(html string) (string, error) {
		out, err := process(Escape(html))
		if err != nil {
			return "", err
		}
		return Unescape(out), nil
	}
}
