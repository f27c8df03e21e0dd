package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alexgetty/roux/internal/node"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGetNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := &node.Node{
		ID:            "abcDEF123456",
		Title:         "Test Note",
		Content:       []byte("body"),
		Tags:          []string{"Test", "Example"},
		Properties:    map[string]any{"author": "Ada"},
		OutgoingLinks: []string{"xyz987654321"},
	}
	if err := s.UpsertNode(ctx, n, "file", "notes/test-note.md", time.Unix(100, 0)); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	got, err := s.GetNode(ctx, n.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got == nil {
		t.Fatal("expected node, got nil")
	}
	if got.Title != "Test Note" || len(got.Tags) != 2 {
		t.Errorf("got = %+v", got)
	}
	if got.SourceRef == nil || got.SourceRef.Path != "notes/test-note.md" {
		t.Errorf("source ref = %+v", got.SourceRef)
	}
	if got.Properties["author"] != "Ada" {
		t.Errorf("properties = %v", got.Properties)
	}
}

func TestGetNodeByPathCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := &node.Node{ID: "abcDEF123456", Title: "T"}
	if err := s.UpsertNode(ctx, n, "file", "Notes/Test.md", time.Now()); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	got, err := s.GetNodeByPath(ctx, "notes/test.md")
	if err != nil {
		t.Fatalf("GetNodeByPath: %v", err)
	}
	if got == nil || got.ID != n.ID {
		t.Errorf("expected case-insensitive match, got %+v", got)
	}
}

func TestDeleteNodeCascadesCentrality(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := &node.Node{ID: "abcDEF123456", Title: "T"}
	if err := s.UpsertNode(ctx, n, "file", "x.md", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreCentrality(ctx, &node.Centrality{NodeID: n.ID, InDegree: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNode(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	c, err := s.GetCentrality(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected cascaded centrality delete, got %+v", c)
	}
}

func TestSearchByTagsModes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUpsert(t, s, "aaaaaaaaaaaa", "A", []string{"go", "test"})
	mustUpsert(t, s, "bbbbbbbbbbbb", "B", []string{"go"})
	mustUpsert(t, s, "cccccccccccc", "C", []string{"test"})

	any1, err := s.SearchByTags(ctx, []string{"GO"}, "any", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(any1) != 2 {
		t.Errorf("any(go) = %d results, want 2", len(any1))
	}

	all, err := s.SearchByTags(ctx, []string{"go", "test"}, "all", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != "aaaaaaaaaaaa" {
		t.Errorf("all(go,test) = %+v", all)
	}
}

func TestListNodesPaginationAndTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustUpsert(t, s, idFor(i), "Node", nil)
	}
	res, err := s.ListNodes(ctx, ListFilter{}, ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 5 || len(res.Nodes) != 2 {
		t.Errorf("got total=%d len=%d", res.Total, len(res.Nodes))
	}
}

func TestListNodesPathFilterCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := &node.Node{ID: "abcDEF123456", Title: "T"}
	if err := s.UpsertNode(ctx, n, "file", "Notes/SubDir/Page.md", time.Now()); err != nil {
		t.Fatal(err)
	}
	res, err := s.ListNodes(ctx, ListFilter{Path: "subdir"}, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Errorf("expected case-insensitive path match, got total=%d", res.Total)
	}
}

func TestResolveNodesExactAndFuzzy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUpsert(t, s, "aaaaaaaaaaaa", "Project Plan", nil)

	exact, err := s.ResolveNodes(ctx, []string{"project plan", "missing"}, ResolveOptions{Strategy: StrategyExact})
	if err != nil {
		t.Fatal(err)
	}
	if exact[0].Match == nil || exact[0].Score != 1 {
		t.Errorf("exact match failed: %+v", exact[0])
	}
	if exact[1].Match != nil {
		t.Errorf("expected no match for 'missing', got %+v", exact[1])
	}

	fuzzy, err := s.ResolveNodes(ctx, []string{"Project Pln"}, ResolveOptions{Strategy: StrategyFuzzy, Threshold: 0.8})
	if err != nil {
		t.Fatal(err)
	}
	if fuzzy[0].Match == nil {
		t.Errorf("expected fuzzy match above threshold, got %+v", fuzzy[0])
	}
}

func TestNodesExistCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustUpsert(t, s, "aaaaaaaaaaaa", "A", nil)

	exists, err := s.NodesExist(ctx, []string{"AAAAAAAAAAAA", "bbbbbbbbbbbb"})
	if err != nil {
		t.Fatal(err)
	}
	if !exists["aaaaaaaaaaaa"] {
		t.Errorf("expected aaaaaaaaaaaa to exist")
	}
	if exists["bbbbbbbbbbbb"] {
		t.Errorf("expected bbbbbbbbbbbb to not exist")
	}
}

func TestCorruptJSONSurfacesAsError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO nodes (id, title, tags_json, links_json, properties_json) VALUES (?, ?, ?, ?, ?)`,
		"aaaaaaaaaaaa", "Bad", "not json", "[]", "{}"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetNode(ctx, "aaaaaaaaaaaa"); err == nil {
		t.Errorf("expected corrupt JSON to surface as an error")
	}
}

func mustUpsert(t *testing.T, s *SQLiteStore, id, title string, tags []string) {
	t.Helper()
	n := &node.Node{ID: id, Title: title, Tags: tags}
	if err := s.UpsertNode(context.Background(), n, "", "", time.Time{}); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func idFor(i int) string {
	s := "node" + string(rune('a'+i))
	for len(s) < 12 {
		s += "0"
	}
	return s
}
