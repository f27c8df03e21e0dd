// Package graph maintains the in-memory directed link graph derived from
// the cache's (node id -> outgoing links) pairs, and answers neighbor,
// shortest-path, and hub-ranking queries over it — the C6 component.
package graph

import (
	"context"
	"sort"
	"time"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/node"
)

// Direction selects which edges GetNeighbors follows.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// Metric selects the ranking used by GetHubs.
type Metric string

const (
	MetricInDegree  Metric = "in_degree"
	MetricOutDegree Metric = "out_degree"
	MetricPageRank  Metric = "pagerank"
)

// Hub is one ranked entry returned by GetHubs.
type Hub struct {
	ID    string
	Score float64
}

// Graph is an immutable snapshot of adjacency; Engine swaps a new one in
// atomically after each rebuild so concurrent readers never see a partial
// graph.
type Graph struct {
	out map[string][]string
	in  map[string][]string
}

// Engine owns the current graph snapshot and the cache it is derived from
// and persists centrality back into.
type Engine struct {
	store   cache.Store
	current *Graph
}

// NewEngine returns an Engine with no graph built yet; GetNeighbors,
// FindPath, and GetHubs degrade gracefully (empty results, never an error)
// until Rebuild is called at least once.
func NewEngine(store cache.Store) *Engine {
	return &Engine{store: store}
}

// Rebuild derives a fresh graph from every node currently in the cache and
// swaps it in atomically, then persists in/out degree and pagerank for
// every node.
func (e *Engine) Rebuild(ctx context.Context) error {
	nodes, err := e.store.GetAllNodes(ctx)
	if err != nil {
		return err
	}

	g := &Graph{
		out: make(map[string][]string, len(nodes)),
		in:  make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		g.out[n.ID] = append([]string(nil), n.OutgoingLinks...)
		if _, ok := g.in[n.ID]; !ok {
			g.in[n.ID] = nil
		}
		for _, target := range n.OutgoingLinks {
			g.in[target] = append(g.in[target], n.ID)
		}
	}

	e.current = g

	ranks := pagerank(g)
	now := time.Now()
	for _, n := range nodes {
		c := &node.Centrality{
			NodeID:     n.ID,
			InDegree:   len(g.in[n.ID]),
			OutDegree:  len(g.out[n.ID]),
			PageRank:   ranks[n.ID],
			ComputedAt: now,
		}
		if err := e.store.StoreCentrality(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// GetNeighbors returns the neighbor nodes of id in the requested direction,
// deduplicated for "both", truncated to limit (0 = unlimited). Returns an
// empty slice, never an error, when the graph has not been built yet or id
// is unknown.
func (e *Engine) GetNeighbors(ctx context.Context, id string, direction Direction, limit int) ([]*node.Node, error) {
	if e.current == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var ids []string
	collect := func(list []string) {
		for _, nid := range list {
			if !seen[nid] {
				seen[nid] = true
				ids = append(ids, nid)
			}
		}
	}

	switch direction {
	case DirectionIn:
		collect(e.current.in[id])
	case DirectionOut:
		collect(e.current.out[id])
	default:
		collect(e.current.out[id])
		collect(e.current.in[id])
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return e.store.GetNodes(ctx, ids)
}

// InCount and OutCount report full neighbor counts, unaffected by any
// truncation GetNeighbors applies.
func (e *Engine) InCount(id string) int {
	if e.current == nil {
		return 0
	}
	return len(e.current.in[id])
}

func (e *Engine) OutCount(id string) int {
	if e.current == nil {
		return 0
	}
	return len(e.current.out[id])
}

// FindPath runs BFS from source to target and returns the shortest node-id
// sequence including both endpoints. Returns nil when either endpoint is
// unknown, they are unreachable from each other, or the graph is unbuilt.
// A source equal to target returns a length-1 path when source is a known
// node.
func (e *Engine) FindPath(source, target string) []string {
	if e.current == nil {
		return nil
	}
	if _, ok := e.current.out[source]; !ok {
		if _, ok := e.current.in[source]; !ok {
			return nil
		}
	}
	if source == target {
		return []string{source}
	}

	visited := map[string]bool{source: true}
	prev := map[string]string{}
	queue := []string{source}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range e.current.out[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == target {
				return reconstructPath(prev, source, target)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstructPath(prev map[string]string, source, target string) []string {
	path := []string{target}
	cur := target
	for cur != source {
		cur = prev[cur]
		path = append(path, cur)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// GetHubs returns the top-limit node ids ranked by metric, ties broken by
// id. Empty when the graph has not been built.
func (e *Engine) GetHubs(metric Metric, limit int) []Hub {
	if e.current == nil {
		return nil
	}

	ranks := pagerank(e.current)

	ids := make([]string, 0, len(e.current.out))
	for id := range e.current.out {
		ids = append(ids, id)
	}

	score := func(id string) float64 {
		switch metric {
		case MetricInDegree:
			return float64(len(e.current.in[id]))
		case MetricOutDegree:
			return float64(len(e.current.out[id]))
		default:
			return ranks[id]
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		si, sj := score(ids[i]), score(ids[j])
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	hubs := make([]Hub, len(ids))
	for i, id := range ids {
		hubs[i] = Hub{ID: id, Score: score(id)}
	}
	return hubs
}

// pagerank runs a fixed-iteration power-iteration pagerank with damping
// 0.85, early-exiting when scores stop moving meaningfully.
func pagerank(g *Graph) map[string]float64 {
	n := len(g.out)
	if n == 0 {
		return map[string]float64{}
	}

	const damping = 0.85
	const maxIterations = 20
	const convergence = 1e-6

	ranks := make(map[string]float64, n)
	init := 1.0 / float64(n)
	for id := range g.out {
		ranks[id] = init
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make(map[string]float64, n)
		base := (1 - damping) / float64(n)
		for id := range g.out {
			next[id] = base
		}

		var danglingMass float64
		for id, outLinks := range g.out {
			if len(outLinks) == 0 {
				danglingMass += ranks[id]
				continue
			}
			share := damping * ranks[id] / float64(len(outLinks))
			for _, target := range outLinks {
				if _, ok := next[target]; !ok {
					// Link to a node absent from this snapshot (should
					// not happen once ghosts are materialized, but keep
					// the walk well-defined if it does).
					continue
				}
				next[target] += share
			}
		}
		if danglingMass > 0 {
			redistribute := damping * danglingMass / float64(n)
			for id := range next {
				next[id] += redistribute
			}
		}

		delta := 0.0
		for id := range next {
			diff := next[id] - ranks[id]
			if diff < 0 {
				diff = -diff
			}
			delta += diff
		}
		ranks = next
		if delta < convergence {
			break
		}
	}

	return ranks
}
