// Package docstore is the orchestrator (C8): it owns the full sync and
// incremental-batch pipelines that keep the cache, the resolver's index,
// and the in-memory graph consistent with the files on disk, plus the
// create/update/delete API surface used directly by callers.
package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/alexgetty/roux/internal/apierr"
	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/format"
	"github.com/alexgetty/roux/internal/graph"
	"github.com/alexgetty/roux/internal/node"
	"github.com/alexgetty/roux/internal/nodeid"
	"github.com/alexgetty/roux/internal/pathutil"
	"github.com/alexgetty/roux/internal/resolver"
	"github.com/alexgetty/roux/internal/vector"
	"github.com/alexgetty/roux/internal/watcher"
)

// DefaultPendingUnlinkTTL is the time a deleted node's id stays reclaimable
// as a rename target before its vector entry is dropped.
const DefaultPendingUnlinkTTL = 5 * time.Second

// Pauser is the subset of *watcher.Watcher the orchestrator uses to
// suppress the change event its own frontmatter writebacks would
// otherwise generate.
type Pauser interface {
	Pause()
	Resume()
}

// Config wires a DocStore to its collaborators.
type Config struct {
	Root             string
	Registry         *format.Registry
	Store            cache.Store
	Graph            *graph.Engine
	Vector           vector.Provider
	Watcher          Pauser // optional
	PendingUnlinkTTL time.Duration
	OnChange         func(ids []string)
}

// pendingUnlink is ephemeral state letting a later add within the TTL
// reclaim an id as a rename instead of a delete.
type pendingUnlink struct {
	nodeID       string
	lastKnownPath string
	deadline      time.Time
}

// DocStore is the C8 orchestrator. All state transitions on the cache,
// source tracking, pending-unlink table, and in-memory graph run under a
// single mutex: one logical executor, per the concurrency model.
type DocStore struct {
	root     string
	registry *format.Registry
	store    cache.Store
	graph    *graph.Engine
	vector   vector.Provider
	watcher  Pauser
	ttl      time.Duration
	onChange func(ids []string)

	mu      sync.Mutex
	pending map[string]*pendingUnlink // keyed by node id
}

// New constructs a DocStore. Vector defaults to vector.NoopProvider{} when
// unset.
func New(cfg Config) *DocStore {
	if cfg.PendingUnlinkTTL <= 0 {
		cfg.PendingUnlinkTTL = DefaultPendingUnlinkTTL
	}
	if cfg.Vector == nil {
		cfg.Vector = vector.NoopProvider{}
	}
	return &DocStore{
		root:     cfg.Root,
		registry: cfg.Registry,
		store:    cfg.Store,
		graph:    cfg.Graph,
		vector:   cfg.Vector,
		watcher:  cfg.Watcher,
		ttl:      cfg.PendingUnlinkTTL,
		onChange: cfg.OnChange,
		pending:  make(map[string]*pendingUnlink),
	}
}

type pendingWrite struct {
	absPath string
	id      string
}

// Sync performs a full reconciliation of the cache against the files on
// disk. Concurrent Sync/HandleWatcherBatch calls serialize against each
// other via mu.
func (d *DocStore) Sync(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tracked, err := d.store.GetAllTrackedPaths(ctx)
	if err != nil {
		return fmt.Errorf("load tracked paths: %w", err)
	}

	type parsed struct {
		id       string
		relPath  string
		draft    format.NodeDraft
		mtime    time.Time
		rawLinks []string
	}

	seenPaths := make(map[string]bool, len(tracked))
	claimed := make(map[string]string) // id -> relPath, seeded from every tracked path
	for path, t := range tracked {
		claimed[t.NodeID] = path
	}

	var newlyParsed []parsed
	var writebacks []pendingWrite

	err = filepath.WalkDir(d.root, func(absPath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			slog.Warn("sync_enumerate_error", slog.String("path", absPath), slog.String("error", walkErr.Error()))
			return nil
		}
		if entry.IsDir() {
			if entry.Name() != "." && watcher.DefaultExcludedDirs()[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type()&os.ModeSymlink != 0 {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(absPath))
		if !d.registry.Supports(ext) {
			return nil
		}

		relRaw, relErr := filepath.Rel(d.root, absPath)
		if relErr != nil {
			return nil
		}
		relPath := pathutil.NormalizePath(toForwardSlash(relRaw))
		seenPaths[relPath] = true

		info, infoErr := entry.Info()
		if infoErr != nil {
			if errors.Is(infoErr, fs.ErrNotExist) {
				return nil
			}
			slog.Warn("sync_stat_error", slog.String("path", relPath), slog.String("error", infoErr.Error()))
			return nil
		}
		mtime := info.ModTime()

		if t, ok := tracked[relPath]; ok && t.LastModified.Equal(mtime) {
			return nil // cached and unchanged, skip re-parse
		}

		data, readErr := os.ReadFile(absPath)
		if readErr != nil {
			if errors.Is(readErr, fs.ErrNotExist) {
				return nil
			}
			slog.Warn("sync_read_error", slog.String("path", relPath), slog.String("error", readErr.Error()))
			return nil
		}

		result, parseErr := d.registry.Parse(data, format.ParseContext{
			AbsolutePath: absPath,
			RelativePath: relPath,
			Extension:    ext,
			ModTime:      mtime,
		})
		if parseErr != nil {
			slog.Warn("sync_parse_error", slog.String("path", relPath), slog.String("error", parseErr.Error()))
			return nil
		}

		id := result.Draft.ID
		if result.NeedsIDWrite {
			fresh, genErr := nodeid.Generate()
			if genErr != nil {
				slog.Warn("sync_id_generate_error", slog.String("path", relPath), slog.String("error", genErr.Error()))
				return nil
			}
			id = fresh
			writebacks = append(writebacks, pendingWrite{absPath: absPath, id: id})
		} else if existingPath, ok := claimed[id]; ok && existingPath != relPath {
			slog.Warn("sync_duplicate_id", slog.String("id", id), slog.String("path", relPath), slog.String("existing_path", existingPath))
			return nil
		}
		claimed[id] = relPath

		newlyParsed = append(newlyParsed, parsed{
			id:       id,
			relPath:  relPath,
			draft:    result.Draft,
			mtime:    mtime,
			rawLinks: result.Draft.RawLinks,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerate root: %w", err)
	}

	// Upsert every newly parsed or changed node, without resolved links yet.
	for _, p := range newlyParsed {
		n := &node.Node{
			ID:         p.id,
			Title:      p.draft.Title,
			Content:    p.draft.Content,
			Tags:       p.draft.Tags,
			Properties: p.draft.Properties,
		}
		if err := d.store.UpsertNode(ctx, n, "file", p.relPath, p.mtime); err != nil {
			slog.Warn("sync_upsert_error", slog.String("path", p.relPath), slog.String("error", err.Error()))
		}
	}

	// Remove cache entries whose tracked path vanished and whose id did not
	// migrate to a new claimed path.
	for path, t := range tracked {
		if seenPaths[path] {
			continue
		}
		if claimed[t.NodeID] != path {
			continue // id migrated elsewhere this run, not a real deletion
		}
		if err := d.store.DeleteNode(ctx, t.NodeID); err != nil {
			slog.Warn("sync_delete_error", slog.String("id", t.NodeID), slog.String("error", err.Error()))
		}
		_ = d.vector.Delete(ctx, t.NodeID)
	}

	touchedIDs := make([]string, 0, len(newlyParsed))
	for _, p := range newlyParsed {
		touchedIDs = append(touchedIDs, p.id)
	}
	rawLinksByID := make(map[string][]string, len(newlyParsed))
	for _, p := range newlyParsed {
		rawLinksByID[p.id] = p.rawLinks
	}

	if err := d.resolveAndRebuild(ctx, touchedIDs, rawLinksByID); err != nil {
		return err
	}

	for _, w := range writebacks {
		d.writeback(w.absPath, w.id)
	}

	return nil
}

// HandleWatcherBatch applies one coalesced batch of filesystem events.
func (d *DocStore) HandleWatcherBatch(ctx context.Context, batch map[string]watcher.EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	touched := make(map[string]bool)
	rawLinksByID := make(map[string][]string)
	var writebacks []pendingWrite

	for relPath, ev := range batch {
		ext := strings.ToLower(filepath.Ext(relPath))
		if !d.registry.Supports(ext) {
			continue
		}
		relPath = pathutil.NormalizePath(relPath)

		switch ev {
		case watcher.EventAdd, watcher.EventChange:
			id, rawLinks, write, err := d.applyAddOrChange(ctx, relPath, ext)
			if err != nil {
				slog.Warn("batch_apply_error", slog.String("path", relPath), slog.String("error", err.Error()))
				continue
			}
			touched[id] = true
			rawLinksByID[id] = rawLinks
			if write != nil {
				writebacks = append(writebacks, *write)
			}
		case watcher.EventUnlink:
			if id := d.applyUnlink(ctx, relPath); id != "" {
				touched[id] = true
			}
		}
	}

	for id := range d.sweepExpiredPendingUnlinks(ctx) {
		touched[id] = true
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}

	if err := d.resolveAndRebuild(ctx, ids, rawLinksByID); err != nil {
		slog.Warn("batch_resolve_error", slog.String("error", err.Error()))
	}

	for _, w := range writebacks {
		d.writeback(w.absPath, w.id)
	}

	if d.onChange != nil && len(ids) > 0 {
		d.onChange(ids)
	}
}

func (d *DocStore) applyAddOrChange(ctx context.Context, relPath, ext string) (id string, rawLinks []string, write *pendingWrite, err error) {
	absPath := filepath.Join(d.root, filepath.FromSlash(relPath))
	data, readErr := os.ReadFile(absPath)
	if readErr != nil {
		return "", nil, nil, readErr
	}

	info, statErr := os.Stat(absPath)
	if statErr != nil {
		return "", nil, nil, statErr
	}

	result, parseErr := d.registry.Parse(data, format.ParseContext{
		AbsolutePath: absPath,
		RelativePath: relPath,
		Extension:    ext,
		ModTime:      info.ModTime(),
	})
	if parseErr != nil {
		return "", nil, nil, parseErr
	}

	id = result.Draft.ID
	if result.NeedsIDWrite {
		fresh, genErr := nodeid.Generate()
		if genErr != nil {
			return "", nil, nil, genErr
		}
		id = fresh
		write = &pendingWrite{absPath: absPath, id: id}
	}

	if pu, ok := d.pending[id]; ok && time.Now().Before(pu.deadline) {
		// Rename match: reuse the id, do not call vector.Delete.
		delete(d.pending, id)
	}

	if existing, getErr := d.store.GetNodeByPath(ctx, relPath); getErr == nil && existing != nil && existing.ID != id {
		// Path collision: another node owns this path under a different id.
		if delErr := d.store.DeleteNode(ctx, existing.ID); delErr != nil {
			slog.Warn("path_collision_delete_error", slog.String("id", existing.ID), slog.String("error", delErr.Error()))
		}
		go func(staleID string) {
			if err := d.vector.Delete(context.Background(), staleID); err != nil {
				slog.Warn("path_collision_vector_delete_error", slog.String("id", staleID), slog.String("error", err.Error()))
			}
		}(existing.ID)
	}

	n := &node.Node{
		ID:         id,
		Title:      result.Draft.Title,
		Content:    result.Draft.Content,
		Tags:       result.Draft.Tags,
		Properties: result.Draft.Properties,
	}
	if err := d.store.UpsertNode(ctx, n, "file", relPath, info.ModTime()); err != nil {
		return "", nil, nil, err
	}

	return id, result.Draft.RawLinks, write, nil
}

func (d *DocStore) applyUnlink(ctx context.Context, relPath string) string {
	existing, err := d.store.GetNodeByPath(ctx, relPath)
	if err != nil || existing == nil {
		return ""
	}

	d.pending[existing.ID] = &pendingUnlink{
		nodeID:        existing.ID,
		lastKnownPath: relPath,
		deadline:      time.Now().Add(d.ttl),
	}
	if err := d.store.DeleteNode(ctx, existing.ID); err != nil {
		slog.Warn("unlink_delete_error", slog.String("id", existing.ID), slog.String("error", err.Error()))
	}
	return existing.ID
}

// sweepExpiredPendingUnlinks drops vector entries for pending unlinks whose
// TTL passed with no rename claiming them, returning the set of ids swept.
func (d *DocStore) sweepExpiredPendingUnlinks(ctx context.Context) map[string]bool {
	swept := make(map[string]bool)
	now := time.Now()
	for id, pu := range d.pending {
		if now.Before(pu.deadline) {
			continue
		}
		if err := d.vector.Delete(ctx, id); err != nil {
			slog.Warn("pending_unlink_vector_delete_error", slog.String("id", id), slog.String("error", err.Error()))
		}
		delete(d.pending, id)
		swept[id] = true
	}
	return swept
}

// resolveAndRebuild re-resolves the raw links of touched nodes against the
// current node set, mints/GCs ghosts, and rebuilds the graph.
func (d *DocStore) resolveAndRebuild(ctx context.Context, touchedIDs []string, rawLinksByID map[string][]string) error {
	all, err := d.store.GetAllNodes(ctx)
	if err != nil {
		return fmt.Errorf("load nodes for resolution: %w", err)
	}

	idx := resolver.Build(all)
	validIDs := make(map[string]bool, len(all))
	for _, n := range all {
		validIDs[n.ID] = true
	}

	ghostsNeeded := make(map[string]string) // id -> title
	for _, id := range touchedIDs {
		rawLinks, ok := rawLinksByID[id]
		if !ok {
			continue
		}
		normalized := make([]string, len(rawLinks))
		for i, raw := range rawLinks {
			normalized[i] = pathutil.NormalizeLinkTarget(raw)
		}
		resolutions := resolver.ResolveLinks(normalized, idx, validIDs)
		resolvedIDs := make([]string, 0, len(resolutions))
		for _, r := range resolutions {
			if r.ID != "" {
				resolvedIDs = append(resolvedIDs, r.ID)
				continue
			}
			ghostID := nodeid.Ghost(r.Target)
			resolvedIDs = append(resolvedIDs, ghostID)
			ghostsNeeded[ghostID] = r.Target
			validIDs[ghostID] = true
		}

		n, getErr := d.store.GetNode(ctx, id)
		if getErr != nil || n == nil {
			continue
		}
		n.OutgoingLinks = resolvedIDs
		srcType, srcPath, srcMtime := "", "", time.Time{}
		if n.SourceRef != nil {
			srcType, srcPath, srcMtime = n.SourceRef.Type, n.SourceRef.Path, n.SourceRef.LastModified
		}
		if err := d.store.UpsertNode(ctx, n, srcType, srcPath, srcMtime); err != nil {
			slog.Warn("resolve_upsert_error", slog.String("id", id), slog.String("error", err.Error()))
		}
	}

	for ghostID, title := range ghostsNeeded {
		existing, _ := d.store.GetNode(ctx, ghostID)
		if existing != nil {
			continue
		}
		ghost := &node.Node{ID: ghostID, Title: title}
		if err := d.store.UpsertNode(ctx, ghost, "", "", time.Time{}); err != nil {
			slog.Warn("ghost_upsert_error", slog.String("id", ghostID), slog.String("error", err.Error()))
		}
	}

	if err := d.gcOrphanedGhosts(ctx); err != nil {
		slog.Warn("ghost_gc_error", slog.String("error", err.Error()))
	}

	if d.graph != nil {
		if err := d.graph.Rebuild(ctx); err != nil {
			return fmt.Errorf("rebuild graph: %w", err)
		}
	}
	return nil
}

// gcOrphanedGhosts deletes any ghost node no real node currently points to.
func (d *DocStore) gcOrphanedGhosts(ctx context.Context) error {
	all, err := d.store.GetAllNodes(ctx)
	if err != nil {
		return err
	}

	referenced := make(map[string]bool)
	for _, n := range all {
		for _, link := range n.OutgoingLinks {
			referenced[link] = true
		}
	}

	for _, n := range all {
		if nodeid.IsGhost(n.ID) && !referenced[n.ID] {
			if err := d.store.DeleteNode(ctx, n.ID); err != nil {
				slog.Warn("ghost_delete_error", slog.String("id", n.ID), slog.String("error", err.Error()))
			}
		}
	}
	return nil
}

// writeback rewrites absPath's frontmatter to carry id as its first field,
// suppressing the watcher's own change event for the write via pause/resume.
func (d *DocStore) writeback(absPath, id string) {
	if d.watcher != nil {
		d.watcher.Pause()
		defer d.watcher.Resume()
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		slog.Warn("writeback_read_error", slog.String("path", absPath), slog.String("error", err.Error()))
		return
	}

	updated := insertIDFrontmatter(data, id)
	if err := os.WriteFile(absPath, updated, 0o644); err != nil {
		slog.Warn("writeback_write_error", slog.String("path", absPath), slog.String("error", err.Error()))
	}
}

// lookupNodeCaseInsensitive resolves id the way every mutation entry point
// requires: an exact match first, falling back to a case-insensitive scan
// of the full node set. Returns nil, nil when nothing matches.
func (d *DocStore) lookupNodeCaseInsensitive(ctx context.Context, id string) (*node.Node, error) {
	if n, err := d.store.GetNode(ctx, id); err == nil && n != nil {
		return n, nil
	}

	all, err := d.store.GetAllNodes(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if strings.EqualFold(n.ID, id) {
			return n, nil
		}
	}
	return nil, nil
}

// CreateNode validates and stores a programmatically created node: ids
// outside the source root are rejected (path traversal), as are
// pre-existing ids; a missing id is assigned.
func (d *DocStore) CreateNode(ctx context.Context, n *node.Node) (*node.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n.SourceRef != nil && n.SourceRef.Path != "" {
		if isPathTraversal(n.SourceRef.Path) {
			return nil, apierr.New(apierr.CodeInvalidParams, "sourceRef.path escapes the vault root")
		}
	}

	if n.ID != "" {
		existing, err := d.lookupNodeCaseInsensitive(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apierr.New(apierr.CodeNodeExists, fmt.Sprintf("node %s already exists", n.ID))
		}
	} else {
		fresh, err := nodeid.Generate()
		if err != nil {
			return nil, err
		}
		n.ID = fresh
	}

	rawLinks := format.ExtractWikiLinks(string(n.Content))

	sourceType, path, mtime := "", "", time.Time{}
	if n.SourceRef != nil {
		sourceType, path, mtime = n.SourceRef.Type, n.SourceRef.Path, n.SourceRef.LastModified
	}
	if err := d.store.UpsertNode(ctx, n, sourceType, path, mtime); err != nil {
		return nil, err
	}

	if err := d.resolveAndRebuild(ctx, []string{n.ID}, map[string][]string{n.ID: rawLinks}); err != nil {
		return nil, err
	}

	return d.store.GetNode(ctx, n.ID)
}

// NodePatch carries only the fields explicitly present in an update call.
type NodePatch struct {
	Title      *string
	Content    []byte
	HasContent bool
	Tags       []string
	HasTags    bool
	Properties map[string]any
	HasProps   bool
}

// UpdateNode merges patch into the node identified by id (case-insensitive)
// and re-resolves its links when content changed.
func (d *DocStore) UpdateNode(ctx context.Context, id string, patch NodePatch) (*node.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookupNodeCaseInsensitive(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apierr.New(apierr.CodeNodeNotFound, fmt.Sprintf("node %s not found", id))
	}

	contentChanged := false
	if patch.Title != nil {
		n.Title = *patch.Title
	}
	if patch.HasContent {
		n.Content = patch.Content
		contentChanged = true
	}
	if patch.HasTags {
		n.Tags = patch.Tags
	}
	if patch.HasProps {
		n.Properties = patch.Properties
	}

	sourceType, path, mtime := "", "", time.Time{}
	if n.SourceRef != nil {
		sourceType, path, mtime = n.SourceRef.Type, n.SourceRef.Path, n.SourceRef.LastModified
	}
	if err := d.store.UpsertNode(ctx, n, sourceType, path, mtime); err != nil {
		return nil, err
	}

	if contentChanged {
		rawLinks := format.ExtractWikiLinks(string(n.Content))
		if err := d.resolveAndRebuild(ctx, []string{n.ID}, map[string][]string{n.ID: rawLinks}); err != nil {
			return nil, err
		}
	} else if d.graph != nil {
		if err := d.graph.Rebuild(ctx); err != nil {
			return nil, err
		}
	}

	return d.store.GetNode(ctx, n.ID)
}

// DeleteNode removes id's backing file (if any), its cache and centrality
// rows, its vector entry, GCs any ghosts it orphaned, and rebuilds the
// graph.
func (d *DocStore) DeleteNode(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.lookupNodeCaseInsensitive(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return apierr.New(apierr.CodeNodeNotFound, fmt.Sprintf("node %s not found", id))
	}

	if n.SourceRef != nil && n.SourceRef.Path != "" {
		absPath := filepath.Join(d.root, filepath.FromSlash(n.SourceRef.Path))
		if rmErr := os.Remove(absPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			slog.Warn("delete_file_error", slog.String("path", absPath), slog.String("error", rmErr.Error()))
		}
	}

	if err := d.store.DeleteNode(ctx, n.ID); err != nil {
		return err
	}
	if err := d.vector.Delete(ctx, n.ID); err != nil {
		slog.Warn("delete_vector_error", slog.String("id", n.ID), slog.String("error", err.Error()))
	}

	if err := d.gcOrphanedGhosts(ctx); err != nil {
		slog.Warn("ghost_gc_error", slog.String("error", err.Error()))
	}
	if d.graph != nil {
		if err := d.graph.Rebuild(ctx); err != nil {
			return err
		}
	}
	return nil
}

// isPathTraversal reports whether relPath, once joined to the root and
// cleaned, would escape it.
func isPathTraversal(relPath string) bool {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(cleaned) {
		return true
	}
	return strings.HasPrefix(cleaned, "..")
}

func toForwardSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// insertIDFrontmatter places `id: <id>` as the first field of data's YAML
// frontmatter block, creating the block if absent, leaving the remainder
// byte-for-byte untouched.
func insertIDFrontmatter(data []byte, id string) []byte {
	idLine := []byte("id: " + id + "\n")

	trimmed := data
	if bytes.HasPrefix(trimmed, []byte("\xef\xbb\xbf")) {
		trimmed = trimmed[3:]
	}

	if bytes.HasPrefix(trimmed, []byte("---")) {
		rest := trimmed[3:]
		if idx := bytes.Index(rest, []byte("\n")); idx >= 0 {
			after := rest[idx+1:]
			var out bytes.Buffer
			out.WriteString("---\n")
			out.Write(idLine)
			out.Write(after)
			return out.Bytes()
		}
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(idLine)
	out.WriteString("---\n\n")
	out.Write(data)
	return out.Bytes()
}
