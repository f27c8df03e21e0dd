// Package dispatch is the C9 query/command dispatcher: a thin,
// total-function validation layer in front of the orchestrator. It shapes
// every response into the structs this package exports, turns argument
// mistakes into apierr.CodeInvalidParams, and enforces link integrity on
// rename. It never touches the filesystem or the cache directly — all of
// that goes through internal/docstore, internal/graph, and internal/cache.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"unicode/utf8"

	"github.com/alexgetty/roux/internal/apierr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/docstore"
	"github.com/alexgetty/roux/internal/graph"
	"github.com/alexgetty/roux/internal/node"
	"github.com/alexgetty/roux/internal/vector"
)

// Content truncation limits per §4.9: a node fetched directly gets the most
// room, list-style results get a preview, and neighbor entries get a
// snippet.
const (
	truncatePrimary  = 10_000
	truncateList     = 500
	truncateNeighbor = 200

	// MaxNeighbors bounds the per-direction neighbor count handleGetNode
	// returns at depth=1; the full in/out counts are reported alongside
	// regardless of truncation.
	MaxNeighbors = 20

	truncationSuffix = "... [truncated]"
)

// LinkRef is the {id, title} shape every node response's links field uses.
type LinkRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NodeResponse is the base node shape every read operation returns.
type NodeResponse struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Content    string         `json:"content,omitempty"`
	Tags       []string       `json:"tags"`
	Links      []LinkRef      `json:"links"`
	Properties map[string]any `json:"properties"`
}

// NodeWithContextResponse is handleGetNode's depth=1 shape: the node plus
// its truncated neighbor lists and full in/out counts.
type NodeWithContextResponse struct {
	NodeResponse
	IncomingNeighbors []NodeResponse `json:"incomingNeighbors"`
	OutgoingNeighbors []NodeResponse `json:"outgoingNeighbors"`
	IncomingCount     int            `json:"incomingCount"`
	OutgoingCount     int            `json:"outgoingCount"`
}

// SearchResult is one vector-search match, the node shaped as a list entry
// plus its distance-derived score.
type SearchResult struct {
	NodeResponse
	Score float64 `json:"score"`
}

// HubResponse is one entry of a hub-ranking query.
type HubResponse struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// PathResponse is the shortest path between two nodes, or a nil Path when
// none exists.
type PathResponse struct {
	Path   []string `json:"path"`
	Length int      `json:"length"`
}

// DeleteResponse confirms a delete.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the wire shape an apierr.Error is rendered into.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewErrorResponse shapes err into the dispatcher's error wire format.
func NewErrorResponse(err error) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = string(apierr.CodeOf(err))
	resp.Error.Message = err.Error()
	return resp
}

// Dispatcher validates arguments, invokes the orchestrator and its
// collaborators, and shapes their results into this package's response
// structs. It holds no state of its own beyond the circuit breaker guarding
// vector-provider calls.
type Dispatcher struct {
	store   cache.Store
	graph   *graph.Engine
	docs    *docstore.DocStore
	vector  vector.Provider
	breaker *apierr.CircuitBreaker
}

// New builds a Dispatcher over the given collaborators. vec may be nil, in
// which case search and semantic resolution always report PROVIDER_ERROR.
func New(store cache.Store, g *graph.Engine, docs *docstore.DocStore, vec vector.Provider) *Dispatcher {
	if vec == nil {
		vec = vector.NoopProvider{}
	}
	return &Dispatcher{
		store:   store,
		graph:   g,
		docs:    docs,
		vector:  vec,
		breaker: apierr.NewCircuitBreaker("vector-provider"),
	}
}

// truncate cuts s to at most limit runes, appending truncationSuffix when it
// does. Operating on runes rather than bytes means a truncation point never
// lands inside a multi-byte UTF-8 sequence.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncationSuffix
}

func toNodeResponse(n *node.Node, contentLimit int, titles map[string]string) NodeResponse {
	resp := NodeResponse{
		ID:         n.ID,
		Title:      n.Title,
		Tags:       n.Tags,
		Properties: n.Properties,
	}
	if contentLimit > 0 {
		resp.Content = truncate(string(n.Content), contentLimit)
	}
	resp.Links = make([]LinkRef, 0, len(n.OutgoingLinks))
	for _, id := range n.OutgoingLinks {
		resp.Links = append(resp.Links, LinkRef{ID: id, Title: titles[id]})
	}
	return resp
}

func (d *Dispatcher) linkTitles(ctx context.Context, n *node.Node) (map[string]string, error) {
	if len(n.OutgoingLinks) == 0 {
		return nil, nil
	}
	return d.store.ResolveTitles(ctx, n.OutgoingLinks)
}

// GetNode returns id's node, or id's node plus up to MaxNeighbors
// in/out neighbors (truncated) and full in/out counts when depth is 1.
func (d *Dispatcher) GetNode(ctx context.Context, id string, depth int) (any, error) {
	if id == "" {
		return nil, apierr.New(apierr.CodeInvalidParams, "id is required")
	}
	if depth != 0 && depth != 1 {
		return nil, apierr.New(apierr.CodeInvalidParams, "depth must be 0 or 1")
	}

	n, err := d.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apierr.New(apierr.CodeNodeNotFound, fmt.Sprintf("node %s not found", id))
	}

	titles, err := d.linkTitles(ctx, n)
	if err != nil {
		return nil, err
	}
	base := toNodeResponse(n, truncatePrimary, titles)

	if depth == 0 {
		return base, nil
	}

	in, err := d.graph.GetNeighbors(ctx, id, graph.DirectionIn, MaxNeighbors)
	if err != nil {
		return nil, err
	}
	out, err := d.graph.GetNeighbors(ctx, id, graph.DirectionOut, MaxNeighbors)
	if err != nil {
		return nil, err
	}

	resp := NodeWithContextResponse{
		NodeResponse:      base,
		IncomingNeighbors: make([]NodeResponse, 0, len(in)),
		OutgoingNeighbors: make([]NodeResponse, 0, len(out)),
		IncomingCount:     d.graph.InCount(id),
		OutgoingCount:     d.graph.OutCount(id),
	}
	for _, nb := range in {
		nbTitles, err := d.linkTitles(ctx, nb)
		if err != nil {
			return nil, err
		}
		resp.IncomingNeighbors = append(resp.IncomingNeighbors, toNodeResponse(nb, truncateNeighbor, nbTitles))
	}
	for _, nb := range out {
		nbTitles, err := d.linkTitles(ctx, nb)
		if err != nil {
			return nil, err
		}
		resp.OutgoingNeighbors = append(resp.OutgoingNeighbors, toNodeResponse(nb, truncateNeighbor, nbTitles))
	}
	return resp, nil
}

// GetNeighbors returns id's neighbors in the given direction, as list-style
// (truncateList) node responses.
func (d *Dispatcher) GetNeighbors(ctx context.Context, id string, direction graph.Direction, limit int) ([]NodeResponse, error) {
	if id == "" {
		return nil, apierr.New(apierr.CodeInvalidParams, "id is required")
	}
	switch direction {
	case graph.DirectionIn, graph.DirectionOut, graph.DirectionBoth:
	default:
		return nil, apierr.New(apierr.CodeInvalidParams, "direction must be in, out, or both")
	}
	if limit <= 0 {
		limit = MaxNeighbors
	}

	neighbors, err := d.graph.GetNeighbors(ctx, id, direction, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NodeResponse, 0, len(neighbors))
	for _, n := range neighbors {
		titles, err := d.linkTitles(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, toNodeResponse(n, truncateList, titles))
	}
	return out, nil
}

// Path returns the shortest path between source and target, or a nil Path
// when none exists.
func (d *Dispatcher) Path(source, target string) (PathResponse, error) {
	if source == "" || target == "" {
		return PathResponse{}, apierr.New(apierr.CodeInvalidParams, "source and target are required")
	}
	path := d.graph.FindPath(source, target)
	return PathResponse{Path: path, Length: len(path)}, nil
}

// Hubs returns the top-limit nodes by metric.
func (d *Dispatcher) Hubs(metric graph.Metric, limit int) ([]HubResponse, error) {
	switch metric {
	case graph.MetricInDegree, graph.MetricOutDegree, graph.MetricPageRank:
	default:
		return nil, apierr.New(apierr.CodeInvalidParams, "metric must be in_degree, out_degree, or pagerank")
	}
	if limit <= 0 {
		return nil, apierr.New(apierr.CodeInvalidParams, "limit must be positive")
	}

	hubs := d.graph.GetHubs(metric, limit)
	ids := make([]string, len(hubs))
	for i, h := range hubs {
		ids[i] = h.ID
	}
	titles, err := d.store.ResolveTitles(context.Background(), ids)
	if err != nil {
		return nil, err
	}
	out := make([]HubResponse, len(hubs))
	for i, h := range hubs {
		out[i] = HubResponse{ID: h.ID, Title: titles[h.ID], Score: h.Score}
	}
	return out, nil
}

// SearchByTags returns nodes matching tags under the given mode ("any" or
// "all"), as list-style node responses.
func (d *Dispatcher) SearchByTags(ctx context.Context, tags []string, mode string, limit int) ([]NodeResponse, error) {
	if len(tags) == 0 {
		return nil, apierr.New(apierr.CodeInvalidParams, "tags is required")
	}
	if mode != "any" && mode != "all" {
		return nil, apierr.New(apierr.CodeInvalidParams, "mode must be any or all")
	}

	nodes, err := d.store.SearchByTags(ctx, tags, mode, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		titles, err := d.linkTitles(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, toNodeResponse(n, truncateList, titles))
	}
	return out, nil
}

// ListResponse is the paginated listNodes shape.
type ListResponse struct {
	Nodes []cache.ListEntry `json:"nodes"`
	Total int               `json:"total"`
}

// ListNodes pages over the id/title index, optionally filtered by tag
// and/or path substring.
func (d *Dispatcher) ListNodes(ctx context.Context, filter cache.ListFilter, opts cache.ListOptions) (ListResponse, error) {
	result, err := d.store.ListNodes(ctx, filter, opts)
	if err != nil {
		return ListResponse{}, err
	}
	return ListResponse{Nodes: result.Nodes, Total: result.Total}, nil
}

// Random returns one pseudo-randomly chosen node from the full index, or
// NODE_NOT_FOUND when the vault is empty.
func (d *Dispatcher) Random(ctx context.Context) (NodeResponse, error) {
	all, err := d.store.GetAllNodes(ctx)
	if err != nil {
		return NodeResponse{}, err
	}
	if len(all) == 0 {
		return NodeResponse{}, apierr.New(apierr.CodeNodeNotFound, "vault is empty")
	}
	n := all[rand.Intn(len(all))]
	titles, err := d.linkTitles(ctx, n)
	if err != nil {
		return NodeResponse{}, err
	}
	return toNodeResponse(n, truncatePrimary, titles), nil
}

// ResolveNodes resolves free-text names to node ids under the given
// strategy. A semantic request without an embedding-capable provider fails
// with PROVIDER_ERROR rather than silently falling back to fuzzy matching.
func (d *Dispatcher) ResolveNodes(ctx context.Context, names []string, opts cache.ResolveOptions) ([]cache.ResolveMatch, error) {
	if len(names) == 0 {
		return nil, apierr.New(apierr.CodeInvalidParams, "names is required")
	}
	switch opts.Strategy {
	case cache.StrategyExact, cache.StrategyFuzzy:
	case cache.StrategySemantic:
		if d.vector.GetModel() == "" {
			return nil, apierr.New(apierr.CodeProviderError, "semantic resolution requires an embedding-capable vector provider")
		}
	default:
		return nil, apierr.New(apierr.CodeInvalidParams, "strategy must be exact, fuzzy, or semantic")
	}
	return d.store.ResolveNodes(ctx, names, opts)
}

// Search runs a vector nearest-neighbor search. The caller supplies an
// already-embedded query vector; embedding text is outside this package's
// contract with the provider.
func (d *Dispatcher) Search(ctx context.Context, queryVector []float32, k int) ([]SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, apierr.New(apierr.CodeInvalidParams, "queryVector is required")
	}
	if k <= 0 {
		k = 10
	}
	if d.vector.GetModel() == "" {
		return nil, apierr.New(apierr.CodeProviderError, "search requires an embedding-capable vector provider")
	}

	var matches []vector.Match
	if err := d.breaker.Execute(func() error {
		var searchErr error
		matches, searchErr = d.vector.Search(ctx, queryVector, k)
		return searchErr
	}); err != nil {
		return nil, apierr.Wrap(apierr.CodeProviderError, "vector search failed", err)
	}

	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		n, err := d.store.GetNode(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		titles, err := d.linkTitles(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, SearchResult{
			NodeResponse: toNodeResponse(n, truncateList, titles),
			Score:        1 - m.Distance,
		})
	}
	return out, nil
}

// CreateNode validates and stores a new node, delegating persistence,
// link resolution, and graph rebuild to the orchestrator.
func (d *Dispatcher) CreateNode(ctx context.Context, n *node.Node) (NodeResponse, error) {
	if n == nil || n.Title == "" {
		return NodeResponse{}, apierr.New(apierr.CodeInvalidParams, "title is required")
	}
	stored, err := d.docs.CreateNode(ctx, n)
	if err != nil {
		return NodeResponse{}, err
	}
	titles, err := d.linkTitles(ctx, stored)
	if err != nil {
		return NodeResponse{}, err
	}
	return toNodeResponse(stored, truncatePrimary, titles), nil
}

// UpdateNode applies patch to id. A title change is refused with
// LINK_INTEGRITY when other nodes already link to id, unless the new title
// equals the current one.
func (d *Dispatcher) UpdateNode(ctx context.Context, id string, patch docstore.NodePatch) (NodeResponse, error) {
	if id == "" {
		return NodeResponse{}, apierr.New(apierr.CodeInvalidParams, "id is required")
	}

	if patch.Title != nil && d.graph.InCount(id) > 0 {
		current, err := d.store.GetNode(ctx, id)
		if err != nil {
			return NodeResponse{}, err
		}
		if current == nil {
			return NodeResponse{}, apierr.New(apierr.CodeNodeNotFound, fmt.Sprintf("node %s not found", id))
		}
		if *patch.Title != current.Title {
			return NodeResponse{}, apierr.New(apierr.CodeLinkIntegrity,
				fmt.Sprintf("node %s has incoming links; rename would break them", id))
		}
	}

	updated, err := d.docs.UpdateNode(ctx, id, patch)
	if err != nil {
		return NodeResponse{}, err
	}
	titles, err := d.linkTitles(ctx, updated)
	if err != nil {
		return NodeResponse{}, err
	}
	return toNodeResponse(updated, truncatePrimary, titles), nil
}

// DeleteNode removes id and everything it owns.
func (d *Dispatcher) DeleteNode(ctx context.Context, id string) (DeleteResponse, error) {
	if id == "" {
		return DeleteResponse{}, apierr.New(apierr.CodeInvalidParams, "id is required")
	}
	if err := d.docs.DeleteNode(ctx, id); err != nil {
		return DeleteResponse{}, err
	}
	return DeleteResponse{Deleted: true}, nil
}
