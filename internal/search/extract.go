package search

import (
	"encoding/json"
	"strings"
)

// ExtractText pulls searchable plain text out of a rich content document.
// Rich content is a JSON tree of blocks; text lives in "text" string values
// at any depth. Extraction never fails: content that is not valid JSON, or
// an arbitrarily nested structure with no text nodes, yields "". Plain
// string content is returned as-is.
func ExtractText(content string) string {
	if content == "" {
		return ""
	}

	var root any
	if err := json.Unmarshal([]byte(content), &root); err != nil {
		// Not structured content; treat as raw text.
		if looksLikeJSON(content) {
			return ""
		}
		return content
	}

	var parts []string
	collectText(root, &parts)
	return strings.Join(parts, " ")
}

func collectText(node any, parts *[]string) {
	switch v := node.(type) {
	case string:
		if v != "" {
			*parts = append(*parts, v)
		}
	case []any:
		for _, child := range v {
			collectText(child, parts)
		}
	case map[string]any:
		// Only "text" values are content; other string fields are node
		// metadata (types, ids, marks) and would pollute the index.
		if text, ok := v["text"].(string); ok && text != "" {
			*parts = append(*parts, text)
		}
		for _, key := range []string{"children", "content", "blocks"} {
			if child, ok := v[key]; ok {
				collectText(child, parts)
			}
		}
	}
}

func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
