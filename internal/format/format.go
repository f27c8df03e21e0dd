// Package format dispatches raw file bytes to a parser keyed by extension
// and turns the result into a NodeDraft — the not-yet-resolved projection of
// one source file before the id module and link resolver touch it.
package format

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrExtensionAlreadyRegistered is returned when a reader's extension set
// overlaps one already claimed by another reader. Registration is
// all-or-nothing: a reader either claims every one of its extensions or
// none of them.
var ErrExtensionAlreadyRegistered = fmt.Errorf("extension already registered")

// NodeDraft is the not-yet-resolved projection of one source file: its
// frontmatter and body, parsed, but with links still in raw link-text form.
type NodeDraft struct {
	ID         string
	Title      string
	Content    []byte
	Tags       []string
	Properties map[string]any
	RawLinks   []string
}

// ParseContext carries the file-system facts a reader needs beyond the raw
// bytes: where the file lives and when it was last modified.
type ParseContext struct {
	AbsolutePath string
	RelativePath string
	Extension    string
	ModTime      time.Time
}

// ParseResult is what a reader hands back to the registry.
type ParseResult struct {
	Draft NodeDraft
	// NeedsIDWrite is true when the parsed id is absent or malformed and the
	// orchestrator must assign a fresh one and rewrite the file's
	// frontmatter.
	NeedsIDWrite bool
}

// Reader parses one file format into a NodeDraft. A Reader may claim
// multiple extensions (e.g. ".md" and ".markdown").
type Reader interface {
	Extensions() []string
	Parse(data []byte, ctx ParseContext) (ParseResult, error)
}

// Registry dispatches parse requests to the Reader registered for a file's
// lowercased extension.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]Reader
}

// NewRegistry returns an empty registry. Use Register to add readers, or
// NewDefaultRegistry for the built-in markdown reader pre-registered.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// NewDefaultRegistry returns a registry with the default markdown reader
// already registered for ".md" and ".markdown".
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// The default reader can never fail to register into an empty registry.
	_ = r.Register(NewMarkdownReader())
	return r
}

// Register adds reader under all of its extensions. If any extension is
// already claimed by a different reader, registration fails atomically and
// no extension is added.
func (r *Registry) Register(reader Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := reader.Extensions()
	for _, ext := range exts {
		key := strings.ToLower(ext)
		if _, exists := r.readers[key]; exists {
			return fmt.Errorf("%w: %s", ErrExtensionAlreadyRegistered, key)
		}
	}
	for _, ext := range exts {
		r.readers[strings.ToLower(ext)] = reader
	}
	return nil
}

// Extensions returns every extension currently dispatched, lowercased.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		out = append(out, ext)
	}
	return out
}

// Supports reports whether ext (with or without a leading dot) has a
// registered reader.
func (r *Registry) Supports(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.readers[strings.ToLower(normalizeExt(ext))]
	return ok
}

// Parse dispatches to the reader registered for ctx.Extension.
func (r *Registry) Parse(data []byte, ctx ParseContext) (ParseResult, error) {
	r.mu.RLock()
	reader, ok := r.readers[strings.ToLower(normalizeExt(ctx.Extension))]
	r.mu.RUnlock()
	if !ok {
		return ParseResult{}, fmt.Errorf("no reader registered for extension %q", ctx.Extension)
	}
	return reader.Parse(data, ctx)
}

func normalizeExt(ext string) string {
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
