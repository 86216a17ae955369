package include

import (
	"regexp"
	"strings"
)

// tokenPattern matches an @@name token. Names may contain hyphens, and the
// greedy match ends where the name does.
var tokenPattern = regexp.MustCompile(`@@([A-Za-z_][A-Za-z0-9_-]*)`)

// reservedName can never open a slot or be substituted as a parameter.
const reservedName = "include"

type slotSpan struct {
	name         string
	start, end   int // whole pair, including the opening and closing markers
	contentStart int
	contentEnd   int
}

// findSlots returns the complete slot pairs in text, leftmost first. A pair
// is an opening @@NAME (not preceded by '-') followed by the first closing
// -@@NAME that ends on a word boundary. Pairs never overlap: scanning resumes
// after each closing marker.
func findSlots(text string) []slotSpan {
	var spans []slotSpan

	pos := 0
	for pos < len(text) {
		loc := tokenPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		name := text[pos+loc[2] : pos+loc[3]]

		if name == reservedName || (start > 0 && text[start-1] == '-') {
			pos = end
			continue
		}

		closeStart, closeEnd, ok := findClose(text, end, name)
		if !ok {
			pos = end
			continue
		}

		spans = append(spans, slotSpan{
			name:         name,
			start:        start,
			end:          closeEnd,
			contentStart: end,
			contentEnd:   closeStart,
		})
		pos = closeEnd
	}

	return spans
}

func findClose(text string, from int, name string) (int, int, bool) {
	marker := "-@@" + name
	for from < len(text) {
		idx := strings.Index(text[from:], marker)
		if idx < 0 {
			return 0, 0, false
		}
		start := from + idx
		end := start + len(marker)
		if end == len(text) || !isNameByte(text[end]) {
			return start, end, true
		}
		from = end
	}
	return 0, 0, false
}

// isNameByte reports whether c can continue a slot or parameter name.
func isNameByte(c byte) bool {
	return c == '_' || c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ExtractSlots returns the content of every named slot in text, trimmed of
// surrounding whitespace. When a name is used by more than one pair the
// first pair wins.
func ExtractSlots(text string) map[string]string {
	spans := findSlots(text)
	slots := make(map[string]string, len(spans))
	for _, s := range spans {
		if _, seen := slots[s.name]; seen {
			continue
		}
		slots[s.name] = strings.TrimSpace(text[s.contentStart:s.contentEnd])
	}
	return slots
}

// RemoveSlots strips every complete slot pair from text together with the
// whitespace directly in front of its opening marker. It repeats until no
// pair remains, so RemoveSlots(RemoveSlots(t)) == RemoveSlots(t).
func RemoveSlots(text string) string {
	for {
		spans := findSlots(text)
		if len(spans) == 0 {
			return text
		}

		var b strings.Builder
		b.Grow(len(text))
		last := 0
		for _, s := range spans {
			start := s.start
			for start > last && isSpace(text[start-1]) {
				start--
			}
			b.WriteString(text[last:start])
			last = s.end
		}
		b.WriteString(text[last:])
		text = b.String()
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
