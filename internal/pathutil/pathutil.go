// Package pathutil canonicalizes file paths and wiki-link targets so that
// identity comparisons across the cache, resolver, and watcher agree on a
// single normal form.
package pathutil

import "strings"

// NormalizePath canonicalizes a file system path for id-equivalence
// comparisons: backslashes become forward slashes and the whole string is
// lowercased. The extension is left intact.
func NormalizePath(raw string) string {
	s := strings.ReplaceAll(raw, `\`, "/")
	return strings.ToLower(s)
}

// NormalizeLinkTarget canonicalizes raw wiki-link text into the form used as
// a resolver lookup key: trim outer whitespace, drop an alias
// (`[[target|alias]]`) and a trailing `#fragment`, convert slashes, lowercase,
// and append ".md" when the result has no recognizable file extension.
//
// Whitespace-only input normalizes to ".md" — a documented quirk inherited
// from the extension-inference rule rather than a special case.
func NormalizeLinkTarget(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "|"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "#"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	s = strings.ReplaceAll(s, `\`, "/")
	s = strings.ToLower(s)

	if !HasFileExtension(s) {
		s += ".md"
	}
	return s
}

// HasFileExtension reports whether s ends in a "." followed by 1-4
// characters containing at least one letter, where that trailing segment is
// not purely numeric (so "archive.2024" is not treated as having an
// extension, but "notes.md" and "file.a1" are).
func HasFileExtension(s string) bool {
	idx := strings.LastIndex(s, ".")
	if idx < 0 || idx == len(s)-1 {
		return false
	}
	ext := s[idx+1:]
	if len(ext) < 1 || len(ext) > 4 {
		return false
	}
	hasLetter := false
	allDigits := true
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLetter = true
			allDigits = false
		} else if r < '0' || r > '9' {
			allDigits = false
		}
	}
	return hasLetter && !allDigits
}

// SpaceDashVariant returns the "other" form of s when it contains exactly
// one of spaces or dashes (never both): spaces swapped for dashes, or dashes
// swapped for spaces. Returns "", false when s contains neither, both, or
// the swap would be a no-op.
func SpaceDashVariant(s string) (string, bool) {
	hasSpace := strings.Contains(s, " ")
	hasDash := strings.Contains(s, "-")
	switch {
	case hasSpace && !hasDash:
		return strings.ReplaceAll(s, " ", "-"), true
	case hasDash && !hasSpace:
		return strings.ReplaceAll(s, "-", " "), true
	default:
		return "", false
	}
}
