package format

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alexgetty/roux/internal/nodeid"
)

// reservedFrontmatterKeys are pulled out into dedicated NodeDraft fields and
// therefore excluded from Properties.
var reservedFrontmatterKeys = map[string]bool{
	"id":    true,
	"title": true,
	"tags":  true,
}

// MarkdownReader parses markdown files with optional YAML frontmatter and
// wiki-style [[links]].
type MarkdownReader struct{}

// NewMarkdownReader constructs the default markdown reader.
func NewMarkdownReader() *MarkdownReader { return &MarkdownReader{} }

// Extensions implements Reader.
func (m *MarkdownReader) Extensions() []string { return []string{".md", ".markdown"} }

// Parse implements Reader. Missing, empty, or malformed frontmatter never
// causes an error — it simply yields zero-value defaults.
func (m *MarkdownReader) Parse(data []byte, ctx ParseContext) (ParseResult, error) {
	fm, body := splitFrontmatter(data)

	raw := map[string]any{}
	if len(fm) > 0 {
		// Malformed YAML is swallowed: the file is still indexed with
		// default metadata rather than rejected.
		_ = yaml.Unmarshal(fm, &raw)
	}

	draft := NodeDraft{
		Content:    body,
		Properties: map[string]any{},
	}

	if idVal, ok := raw["id"]; ok {
		if s, ok := idVal.(string); ok {
			draft.ID = s
		}
	}

	if titleVal, ok := raw["title"]; ok {
		if s, ok := titleVal.(string); ok && strings.TrimSpace(s) != "" {
			draft.Title = s
		}
	}
	if draft.Title == "" {
		draft.Title = deriveTitle(ctx.RelativePath)
	}

	if tagsVal, ok := raw["tags"]; ok {
		draft.Tags = extractTags(tagsVal)
	}

	for k, v := range raw {
		if reservedFrontmatterKeys[k] {
			continue
		}
		draft.Properties[k] = v
	}

	draft.RawLinks = extractWikiLinks(string(body))

	return ParseResult{
		Draft:        draft,
		NeedsIDWrite: !nodeid.IsValid(draft.ID),
	}, nil
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from the
// remaining body. If no well-formed delimiter pair is found at the start of
// the file, the entire input is treated as body.
func splitFrontmatter(data []byte) (frontmatter, body []byte) {
	const delim = "---"
	text := string(data)

	if !strings.HasPrefix(strings.TrimLeft(text, "﻿"), delim) {
		return nil, data
	}
	text = strings.TrimPrefix(text, "﻿")

	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r\n") != delim {
		return nil, data
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r\n") == delim {
			fm := strings.Join(lines[1:i], "")
			rest := strings.Join(lines[i+1:], "")
			return []byte(fm), []byte(rest)
		}
	}
	// Unterminated frontmatter block: treat the whole file as body.
	return nil, data
}

// extractTags keeps only string entries from a YAML sequence, preserving
// order and allowing duplicates.
func extractTags(v any) []string {
	seq, ok := v.([]any)
	if !ok {
		return nil
	}
	var tags []string
	for _, item := range seq {
		if s, ok := item.(string); ok {
			tags = append(tags, strings.ToLower(s))
		}
	}
	return tags
}

// deriveTitle turns a filename like "my-derived-title.md" into "My Derived
// Title": strip the extension, split on dashes/underscores/spaces, title-case
// each word.
func deriveTitle(relPath string) string {
	base := filepath.Base(relPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i, f := range fields {
		if f == "" {
			continue
		}
		runes := []rune(f)
		runes[0] = toUpperRune(runes[0])
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
