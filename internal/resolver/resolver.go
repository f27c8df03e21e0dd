// Package resolver builds the title/filename index over the current node
// set and resolves raw wiki-link text to node ids, with deterministic
// tie-break and a space/dash fallback — the C5 component of the design.
package resolver

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/alexgetty/roux/internal/node"
	"github.com/alexgetty/roux/internal/pathutil"
)

// bareKeyCacheSize bounds the per-process lookup cache the same way the
// teacher bounds its gitignore matcher cache.
const bareKeyCacheSize = 4096

// Index maps a lowercased title or filename key to every node id that
// claims it, sorted lexicographically for deterministic tie-break.
type Index struct {
	byKey map[string][]string
	cache *lru.Cache[string, []string]
}

// Build constructs an Index over nodes. Keys come from each node's title
// and, when it differs from the title under case folding, the filename
// derived from its source path. Nodes with neither a usable title nor a
// source path are skipped with a one-time warning.
func Build(nodes []*node.Node) *Index {
	byKey := make(map[string][]string)
	add := func(key, id string) {
		if key == "" {
			return
		}
		byKey[key] = append(byKey[key], id)
	}

	for _, n := range nodes {
		titleKey := strings.ToLower(strings.TrimSpace(n.Title))
		pathKey := ""
		if n.SourceRef != nil && n.SourceRef.Path != "" {
			base := filepath.Base(n.SourceRef.Path)
			base = strings.TrimSuffix(base, filepath.Ext(base))
			pathKey = strings.ToLower(base)
		}

		if titleKey == "" && pathKey == "" {
			slog.Warn("resolver_unindexable_node", slog.String("node_id", n.ID))
			continue
		}

		add(titleKey, n.ID)
		if pathKey != "" && pathKey != titleKey {
			add(pathKey, n.ID)
		}
	}

	for key, ids := range byKey {
		sort.Strings(ids)
		byKey[key] = ids
	}

	cache, _ := lru.New[string, []string](bareKeyCacheSize)
	return &Index{byKey: byKey, cache: cache}
}

// lookup returns the sorted id list for key, via the bounded cache.
func (idx *Index) lookup(key string) ([]string, bool) {
	if ids, ok := idx.cache.Get(key); ok {
		return ids, len(ids) > 0
	}
	ids, ok := idx.byKey[key]
	idx.cache.Add(key, ids)
	return ids, ok
}

// Resolution is the outcome of resolving one raw link target.
type Resolution struct {
	// Target is the normalized link text as given (already ending in an
	// extension); used verbatim when nothing else resolves it, so the
	// orchestrator can mint a ghost id for it.
	Target string
	// ID is the resolved node id, or "" when the target could not be
	// resolved to an existing node (the caller mints a ghost for Target).
	ID string
}

// ResolveLinks resolves each normalized raw target against idx and
// validIDs, per spec §4.5: a literal valid-id match wins outright; else the
// bare key (target minus extension and fragment) is looked up, falling
// back to its space/dash variant; ambiguous matches take the
// lexicographically smallest id and log a warning naming every candidate.
// Partial paths (containing "/") are never path-suffix matched — they
// either hit the index as a literal key or remain unresolved.
func ResolveLinks(rawTargets []string, idx *Index, validIDs map[string]bool) []Resolution {
	out := make([]Resolution, len(rawTargets))
	for i, target := range rawTargets {
		out[i] = Resolution{Target: target}

		if validIDs[target] {
			out[i].ID = target
			continue
		}

		bare := bareKey(target)
		if ids, ok := idx.lookup(bare); ok {
			out[i].ID = pickAndWarn(ids, target)
			continue
		}

		if variant, hasVariant := pathutil.SpaceDashVariant(bare); hasVariant {
			if ids, ok := idx.lookup(variant); ok {
				out[i].ID = pickAndWarn(ids, target)
				continue
			}
		}
		// Unresolved: caller mints a ghost id for out[i].Target.
	}
	return out
}

// bareKey strips any in-string fragment and the trailing extension from an
// already-normalized link target.
func bareKey(target string) string {
	s := target
	if idx := strings.Index(s, "#"); idx >= 0 {
		s = s[:idx]
	}
	ext := filepath.Ext(s)
	return strings.TrimSuffix(s, ext)
}

func pickAndWarn(ids []string, target string) string {
	if len(ids) > 1 {
		slog.Warn("resolver_ambiguous_wikilink",
			slog.String("target", target),
			slog.Any("candidates", ids),
		)
	}
	return ids[0]
}
