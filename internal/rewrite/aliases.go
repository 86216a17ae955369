// Package rewrite holds the text transforms applied to built pages and
// stylesheets: alias expansion, asset path normalisation and tag cleanup.
// HTML transforms leave <pre><code> content untouched.
package rewrite

import (
	"regexp"
	"strings"

	"github.com/conneroisu/sitekit/internal/include"
)

var (
	absoluteAttrPattern = regexp.MustCompile(`(href|src)=["']/([^"']+)["']`)
	aliasAttrPattern    = regexp.MustCompile(`(src|href|url|poster|data-src|data-background|srcset)=["'](@[\w-]+)/([^"']+)["']`)
	srcsetPattern       = regexp.MustCompile(`srcset=["']([^"']+)["']`)
	srcsetAliasPattern  = regexp.MustCompile(`(^|[\s,])(@[\w-]+)/`)
	styleAttrPattern    = regexp.MustCompile(`style=("[^"]*"|'[^']*')`)
	backgroundURL       = regexp.MustCompile(`(background(?:-image)?\s*:[^;]*?url\(\s*['"]?)([^'")\s]+)`)
)

// RewriteAliases expands alias prefixes such as @img/ in asset attributes,
// srcset lists and inline background urls, and makes root-relative src and
// href values relative. Unknown aliases are left as written.
func RewriteAliases(html string, aliases map[string]string) string {
	out := include.MapUnguarded(include.Escape(html), func(span string) string {
		span = absoluteAttrPattern.ReplaceAllStringFunc(span, func(m string) string {
			sub := absoluteAttrPattern.FindStringSubmatch(m)
			if strings.HasPrefix(sub[2], "/") {
				return m
			}
			return sub[1] + `="` + sub[2] + `"`
		})

		span = aliasAttrPattern.ReplaceAllStringFunc(span, func(m string) string {
			sub := aliasAttrPattern.FindStringSubmatch(m)
			target, ok := aliases[sub[2]]
			if !ok {
				return m
			}
			return sub[1] + `="` + target + "/" + sub[3] + `"`
		})

		span = srcsetPattern.ReplaceAllStringFunc(span, func(m string) string {
			content := srcsetPattern.FindStringSubmatch(m)[1]
			content = srcsetAliasPattern.ReplaceAllStringFunc(content, func(a string) string {
				sub := srcsetAliasPattern.FindStringSubmatch(a)
				if target, ok := aliases[sub[2]]; ok {
					return sub[1] + target + "/"
				}
				return a
			})
			return `srcset="` + content + `"`
		})

		return rewriteStyleURLs(span, aliases)
	})
	return include.Unescape(out)
}

// rewriteStyleURLs rewrites background and background-image urls inside
// style attributes: aliases are expanded and root-relative paths lose their
// leading slash.
func rewriteStyleURLs(html string, aliases map[string]string) string {
	return styleAttrPattern.ReplaceAllStringFunc(html, func(attr string) string {
		return backgroundURL.ReplaceAllStringFunc(attr, func(m string) string {
			sub := backgroundURL.FindStringSubmatch(m)
			return sub[1] + rewriteURL(sub[2], aliases)
		})
	})
}

func rewriteURL(u string, aliases map[string]string) string {
	switch {
	case strings.HasPrefix(u, "@"):
		name, rest, found := strings.Cut(u, "/")
		if target, ok := aliases[name]; ok && found {
			return target + "/" + rest
		}
	case strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//"):
		return u[1:]
	}
	return u
}
