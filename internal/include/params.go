package include

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Params maps @@key tokens to their replacement text.
type Params map[string]string

// ParseParams decodes the JSON object of an include call. Values must be
// scalars or they are kept as their raw JSON text; null becomes "".
func ParseParams(raw string) (Params, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Params{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var values map[string]json.RawMessage
	if err := dec.Decode(&values); err != nil {
		return Params{}, err
	}
	if values == nil {
		return Params{}, fmt.Errorf("include parameters must be a JSON object")
	}

	params := make(Params, len(values))
	for key, value := range values {
		params[key] = rawToString(value)
	}
	return params, nil
}

func rawToString(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return ""
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// Merge returns a new Params holding base overlaid with every override.
// Later maps win on key collisions.
func Merge(base Params, overrides ...map[string]string) Params {
	merged := make(Params, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			merged[k] = v
		}
	}
	return merged
}

// Substitute replaces every @@key token in the unguarded parts of text with
// its value. Tokens followed by '(' and the reserved @@include are left alone;
// tokens with no matching key are deleted. Replacement values are not
// rescanned.
func Substitute(text string, params Params) string {
	return MapUnguarded(text, func(span string) string {
		return substituteSpan(span, params)
	})
}

func substituteSpan(span string, params Params) string {
	matches := tokenPattern.FindAllStringSubmatchIndex(span, -1)
	if len(matches) == 0 {
		return span
	}

	var b strings.Builder
	b.Grow(len(span))
	last := 0
	for _, m := range matches {
		if (m[1] < len(span) && span[m[1]] == '(') || span[m[2]:m[3]] == reservedName {
			continue
		}
		b.WriteString(span[last:m[0]])
		b.WriteString(params[span[m[2]:m[3]]])
		last = m[1]
	}
	b.WriteString(span[last:])

	return b.String()
}
