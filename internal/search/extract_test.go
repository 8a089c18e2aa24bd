package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
		{
			name:    "plain text passes through",
			content: "just a plain description",
			want:    "just a plain description",
		},
		{
			name:    "flat block",
			content: `{"type":"paragraph","text":"hello world"}`,
			want:    "hello world",
		},
		{
			name: "nested children",
			content: `{"blocks":[
				{"type":"heading","text":"Intro"},
				{"type":"paragraph","children":[{"text":"deeply"},{"text":"nested"}]}
			]}`,
			want: "Intro deeply nested",
		},
		{
			name:    "array root",
			content: `[{"text":"one"},{"content":[{"text":"two"}]}]`,
			want:    "one two",
		},
		{
			name:    "metadata strings are not content",
			content: `{"type":"image","url":"https://example.com/x.png","text":"caption"}`,
			want:    "caption",
		},
		{
			name:    "malformed JSON yields empty",
			content: `{"blocks": [truncated`,
			want:    "",
		},
		{
			name:    "structure without text nodes",
			content: `{"blocks":[{"type":"divider"},{"type":"spacer","depth":3}]}`,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.content))
		})
	}
}
