// Package cache is the single embedded SQL persistence layer: node
// metadata, source-path tracking, and precomputed centrality. It is the
// cache store described as C4 in the design — every other component reads
// and writes the graph exclusively through this interface.
package cache

import (
	"context"
	"time"

	"github.com/alexgetty/roux/internal/node"
)

// ListFilter narrows a ListNodes call.
type ListFilter struct {
	Tag  string // case-insensitive exact tag match, empty = no filter
	Path string // case-insensitive path substring match, empty = no filter
}

// ListOptions paginates a ListNodes call.
type ListOptions struct {
	Limit  int // clamped to [1, 1000], default 100
	Offset int // clamped to >= 0
}

// ListEntry is the trimmed shape ListNodes returns per match.
type ListEntry struct {
	ID    string
	Title string
}

// ListResult is the page plus the total match count across the whole
// filtered set, independent of the requested slice.
type ListResult struct {
	Nodes []ListEntry
	Total int
}

// ResolveStrategy selects how ResolveNodes matches free-text names to node
// ids.
type ResolveStrategy string

const (
	StrategyExact    ResolveStrategy = "exact"
	StrategyFuzzy    ResolveStrategy = "fuzzy"
	StrategySemantic ResolveStrategy = "semantic"
)

// ResolveOptions configures a ResolveNodes call.
type ResolveOptions struct {
	Strategy  ResolveStrategy
	Threshold float64 // inclusive lower bound for fuzzy matches, default 0.7
	Tag       string  // optional additional filter
	Path      string  // optional additional filter
}

// ResolveMatch is the per-input-name result of ResolveNodes. Match is nil
// and Score is 0 when nothing cleared the threshold.
type ResolveMatch struct {
	Name  string
	Match *ListEntry
	Score float64
}

// TrackedPath is one row of the source-tracking index: the node currently
// backed by a given on-disk path.
type TrackedPath struct {
	NodeID       string
	LastModified time.Time
}

// Store is the C4 cache contract: CRUD over nodes plus the
// tag/list/resolve/centrality query surface. All parameters are bound via
// parameterized statements by every implementation — string concatenation
// into SQL text is never used.
type Store interface {
	UpsertNode(ctx context.Context, n *node.Node, sourceType, path string, mtime time.Time) error
	GetNode(ctx context.Context, id string) (*node.Node, error)
	GetNodes(ctx context.Context, ids []string) ([]*node.Node, error)
	GetAllNodes(ctx context.Context) ([]*node.Node, error)
	DeleteNode(ctx context.Context, id string) error

	GetNodeByPath(ctx context.Context, path string) (*node.Node, error)
	GetModifiedTime(ctx context.Context, path string) (time.Time, bool, error)
	GetAllTrackedPaths(ctx context.Context) (map[string]TrackedPath, error)

	ResolveTitles(ctx context.Context, ids []string) (map[string]string, error)
	SearchByTags(ctx context.Context, tags []string, mode string, limit int) ([]*node.Node, error)
	ListNodes(ctx context.Context, filter ListFilter, opts ListOptions) (ListResult, error)
	ResolveNodes(ctx context.Context, names []string, opts ResolveOptions) ([]ResolveMatch, error)
	NodesExist(ctx context.Context, ids []string) (map[string]bool, error)

	StoreCentrality(ctx context.Context, c *node.Centrality) error
	GetCentrality(ctx context.Context, id string) (*node.Centrality, error)

	Clear(ctx context.Context) error
	Close() error
}
