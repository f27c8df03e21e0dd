package format

import "strings"

// ExtractWikiLinks is the exported form of extractWikiLinks, for callers
// that already hold a body outside of a Parse call (e.g. the orchestrator
// re-extracting links after a programmatic content edit).
func ExtractWikiLinks(body string) []string {
	return extractWikiLinks(body)
}

// extractWikiLinks returns the raw (un-normalized) target text of every
// [[target]] or [[target|alias]] wiki link in body, skipping fenced code
// blocks, inline code spans, and escaped \[[...]] occurrences.
func extractWikiLinks(body string) []string {
	var links []string
	inFence := false
	var fenceMarker string

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if marker, isDelim := fenceDelimiter(trimmed); isDelim {
			switch {
			case !inFence:
				inFence = true
				fenceMarker = marker
			case strings.HasPrefix(trimmed, fenceMarker):
				inFence = false
				fenceMarker = ""
			}
			continue
		}
		if inFence {
			continue
		}
		links = append(links, extractWikiLinksFromLine(line)...)
	}
	return links
}

// fenceDelimiter reports whether trimmed opens or closes a fenced code
// block (``` or ~~~, 3 or more characters), returning the fence character
// run used to detect the matching close.
func fenceDelimiter(trimmed string) (marker string, ok bool) {
	for _, ch := range []byte{'`', '~'} {
		run := 0
		for run < len(trimmed) && trimmed[run] == ch {
			run++
		}
		if run >= 3 {
			return trimmed[:run], true
		}
	}
	return "", false
}

// extractWikiLinksFromLine scans a single line for [[target]] occurrences,
// respecting inline code spans and escaped brackets. Links are not expected
// to span multiple lines.
func extractWikiLinksFromLine(line string) []string {
	var links []string
	i := 0
	n := len(line)

	for i < n {
		if line[i] == '`' {
			j := i
			for j < n && line[j] == '`' {
				j++
			}
			fence := line[i:j]
			if closeIdx := strings.Index(line[j:], fence); closeIdx >= 0 {
				i = j + closeIdx + len(fence)
				continue
			}
			// Unterminated code span: the remainder of the line is code.
			break
		}

		if strings.HasPrefix(line[i:], `\[[`) {
			// Escaped opening: skip the backslash and brackets literally,
			// never treating this occurrence as a link.
			i += 3
			continue
		}

		if strings.HasPrefix(line[i:], "[[") {
			rest := line[i+2:]
			end := strings.Index(rest, "]]")
			if end < 0 {
				break
			}
			links = append(links, rest[:end])
			i = i + 2 + end + 2
			continue
		}

		i++
	}

	return links
}
