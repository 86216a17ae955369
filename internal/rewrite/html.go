package rewrite

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/sitekit/internal/include"
)

const (
	bundledScriptTag     = `<script defer src="js/app.js"></script>`
	bundledStylesheetTag = `<link rel="stylesheet" href="css/app.css">`
)

var (
	bundledScriptPath = regexp.MustCompile(`(^|/)js/[^"]*\.js`)
	bundledStylePath  = regexp.MustCompile(`(^|/)(css/[^"]*\.css|scss/[^"]*\.scss$)`)
	dotSlashPattern   = regexp.MustCompile(`(src|href)=["']\./([^"']+)["']`)
	fontURLPattern    = regexp.MustCompile(`url\(['"]?/fonts/([^'")]+)['"]?\)`)
)

// ProcessHTML normalises a built page: script tags that load the bundle
// collapse to a single deferred js/app.js tag, stylesheet links to
// css/app.css, crossorigin and type="module" attributes are dropped, and
// root-relative background urls in inline styles become relative. Every
// other token is written back byte for byte.
func ProcessHTML(doc string) (string, error) {
	var out strings.Builder
	out.Grow(len(doc))

	z := html.NewTokenizer(strings.NewReader(include.Escape(doc)))
	inBundledScript := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			break
		}
		// Token lower-cases names inside the tokenizer's buffer, so keep a copy.
		raw := append([]byte(nil), z.Raw()...)

		// The body and end tag of a bundled script go with its start tag.
		if inBundledScript {
			if tt == html.TextToken {
				continue
			}
			inBundledScript = false
			if tt == html.EndTagToken && isTag(raw, "script") {
				continue
			}
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		tok := z.Token()
		switch {
		case tok.Data == "script" && bundled(attr(tok, "src"), bundledScriptPath):
			out.WriteString(bundledScriptTag)
			inBundledScript = tt == html.StartTagToken
		case tok.Data == "link" && bundled(attr(tok, "href"), bundledStylePath):
			out.WriteString(bundledStylesheetTag)
		case hasDroppedAttr(tok):
			out.WriteString(renderTag(tok, tt))
		default:
			out.Write(raw)
		}
	}

	result := include.MapUnguarded(out.String(), func(span string) string {
		return rewriteStyleURLs(span, nil)
	})
	return include.Unescape(result), nil
}

// StripDotSlash removes the ./ prefix from src and href values.
func StripDotSlash(doc string) string {
	out := include.MapUnguarded(include.Escape(doc), func(span string) string {
		return dotSlashPattern.ReplaceAllString(span, `$1="$2"`)
	})
	return include.Unescape(out)
}

// FixFontPaths points root-relative /fonts/ urls in a stylesheet at the
// fonts directory next to the css directory.
func FixFontPaths(css string) string {
	return fontURLPattern.ReplaceAllString(css, `url("../fonts/$1")`)
}

func isTag(raw []byte, name string) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(bytes.TrimPrefix(raw, []byte("<")), []byte("/")), " ")
	return len(trimmed) >= len(name) && strings.EqualFold(string(trimmed[:len(name)]), name)
}

// bundled reports whether ref is a local asset path matching pattern.
// Absolute and protocol-relative urls are external and never match.
func bundled(ref string, pattern *regexp.Regexp) bool {
	if ref == "" || strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
		return false
	}
	return pattern.MatchString(ref)
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func droppedAttr(a html.Attribute) bool {
	return a.Key == "crossorigin" || (a.Key == "type" && a.Val == "module")
}

func hasDroppedAttr(tok html.Token) bool {
	for _, a := range tok.Attr {
		if droppedAttr(a) {
			return true
		}
	}
	return false
}

// renderTag writes tok back without the dropped attributes. Valueless
// attributes stay valueless.
func renderTag(tok html.Token, tt html.TokenType) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tok.Data)
	for _, a := range tok.Attr {
		if droppedAttr(a) {
			continue
		}
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		if a.Val != "" {
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(a.Val))
			b.WriteByte('"')
		}
	}
	if tt == html.SelfClosingTagToken {
		b.WriteString(" /")
	}
	b.WriteByte('>')
	return b.String()
}
