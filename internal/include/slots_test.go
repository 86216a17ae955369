package include

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractSlots(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "single slot",
			input:    "\n@@body\nSlot content\n-@@body",
			expected: map[string]string{"body": "Slot content"},
		},
		{
			name:     "two slots",
			input:    "@@title Hello -@@title @@footer <small>bye</small> -@@footer",
			expected: map[string]string{"title": "Hello", "footer": "<small>bye</small>"},
		},
		{
			name:     "mismatched names",
			input:    "@@a content -@@b",
			expected: map[string]string{},
		},
		{
			name:     "closing marker must end on a word boundary",
			input:    "@@a one -@@ab two -@@a",
			expected: map[string]string{"a": "one -@@ab two"},
		},
		{
			name:     "duplicate name keeps the first pair",
			input:    "@@x first -@@x @@x second -@@x",
			expected: map[string]string{"x": "first"},
		},
		{
			name:     "hyphenated name",
			input:    "@@hero-title Hello -@@hero-title",
			expected: map[string]string{"hero-title": "Hello"},
		},
		{
			name:     "hyphenated closer does not close its prefix",
			input:    "@@hero x -@@hero-title y -@@hero",
			expected: map[string]string{"hero": "x -@@hero-title y"},
		},
		{
			name:     "include is never a slot",
			input:    "@@include x -@@include",
			expected: map[string]string{},
		},
		{
			name:     "no slots",
			input:    "<div>@@title</div>",
			expected: map[string]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractSlots(tc.input))
		})
	}
}

func TestRemoveSlots(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips pair and leading whitespace", "\n@@body\nSlot content\n-@@body", ""},
		{"keeps surrounding text", "<p>Hello @@name x -@@name world</p>", "<p>Hello world</p>"},
		{"removes duplicates too", "a @@x 1 -@@x b @@x 2 -@@x c", "a b c"},
		{"no slots unchanged", "\n</section>\n", "\n</section>\n"},
		{"hyphenated pair removed whole", "@@hero-title Hello -@@hero-title", ""},
		{"unmatched opener unchanged", "@@open but never closed", "@@open but never closed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := RemoveSlots(tc.input)
			assert.Equal(t, tc.expected, out)
			assert.Equal(t, out, RemoveSlots(out))
		})
	}
}

func TestRemoveSlotsReachesFixpoint(t *testing.T) {
	// Removing the inner pair (and the space before it) turns "-" + "@@b"
	// into a closing marker for the opener at the start.
	input := "@@b q - @@a x -@@a@@b"

	assert.Equal(t, map[string]string{"a": "x"}, ExtractSlots(input))
	assert.Equal(t, "", RemoveSlots(input))
}
