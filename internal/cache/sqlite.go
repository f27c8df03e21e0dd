package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, no cgo

	"github.com/alexgetty/roux/internal/node"
)

// SQLiteStore implements Store on a single embedded SQLite database file.
// Matches the teacher's sqlite_bm25.go pattern: WAL mode for concurrent
// readers, an advisory flock guarding concurrent writers, and an
// integrity check performed before the file is reused across runs.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	lock   *flock.Flock
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	content        BLOB,
	tags_json      TEXT NOT NULL DEFAULT '[]',
	links_json     TEXT NOT NULL DEFAULT '[]',
	properties_json TEXT NOT NULL DEFAULT '{}',
	source_type    TEXT,
	source_path    TEXT,
	source_mtime   INTEGER
);

CREATE INDEX IF NOT EXISTS idx_nodes_source_path ON nodes(source_path);

CREATE TABLE IF NOT EXISTS node_tags (
	node_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	tag_lower TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_node_tags_tag ON node_tags(tag_lower);
CREATE INDEX IF NOT EXISTS idx_node_tags_node ON node_tags(node_id);

CREATE TABLE IF NOT EXISTS centrality (
	node_id     TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
	in_degree   INTEGER NOT NULL DEFAULT 0,
	out_degree  INTEGER NOT NULL DEFAULT 0,
	pagerank    REAL NOT NULL DEFAULT 0,
	computed_at INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (creating if absent) the SQLite cache at path. An empty path
// opens an in-memory database, for tests.
func Open(path string) (*SQLiteStore, error) {
	var dsn string
	var lk *flock.Flock

	if path == "" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		if err := validateIntegrity(path); err != nil {
			// Corrupt cache cells are not auto-wiped (spec §7): surface
			// the error so the operator can decide to wipe and re-sync.
			return nil, fmt.Errorf("cache integrity check failed for %s: %w", path, err)
		}
		lk = flock.New(path + ".lock")
		locked, err := lk.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock cache file: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("cache file %s is locked by another process", path)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if path != "" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			if lk != nil {
				_ = lk.Unlock()
			}
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, lock: lk, path: path}, nil
}

// validateIntegrity runs a quick PRAGMA integrity_check against an existing
// database file before it is reopened for writing, mirroring the teacher's
// pre-open corruption check.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database reports corruption: %s", result)
	}
	return nil
}

// Close releases the database handle and advisory lock. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

func (s *SQLiteStore) UpsertNode(ctx context.Context, n *node.Node, sourceType, path string, mtime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tagsJSON, err := json.Marshal(orEmptyStrings(n.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	linksJSON, err := json.Marshal(orEmptyStrings(n.OutgoingLinks))
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	props := n.Properties
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	var sourcePath *string
	var sourceMtime *int64
	if path != "" {
		sourcePath = &path
		ms := mtime.UnixNano()
		sourceMtime = &ms
	}
	var sourceTypePtr *string
	if sourceType != "" {
		sourceTypePtr = &sourceType
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, title, content, tags_json, links_json, properties_json, source_type, source_path, source_mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, content=excluded.content, tags_json=excluded.tags_json,
			links_json=excluded.links_json, properties_json=excluded.properties_json,
			source_type=excluded.source_type, source_path=excluded.source_path, source_mtime=excluded.source_mtime
	`, n.ID, n.Title, n.Content, string(tagsJSON), string(linksJSON), string(propsJSON), sourceTypePtr, sourcePath, sourceMtime)
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_tags WHERE node_id = ?`, n.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range n.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO node_tags (node_id, tag_lower) VALUES (?, ?)`,
			n.ID, strings.ToLower(tag)); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	return tx.Commit()
}

func orEmptyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *SQLiteStore) scanNode(row interface {
	Scan(dest ...any) error
}) (*node.Node, error) {
	var id, title string
	var content []byte
	var tagsJSON, linksJSON, propsJSON string
	var sourceType, sourcePath sql.NullString
	var sourceMtime sql.NullInt64

	if err := row.Scan(&id, &title, &content, &tagsJSON, &linksJSON, &propsJSON, &sourceType, &sourcePath, &sourceMtime); err != nil {
		return nil, err
	}

	n := &node.Node{ID: id, Title: title, Content: content}

	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, fmt.Errorf("corrupt tags_json for node %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &n.OutgoingLinks); err != nil {
		return nil, fmt.Errorf("corrupt links_json for node %s: %w", id, err)
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return nil, fmt.Errorf("corrupt properties_json for node %s: %w", id, err)
	}
	n.Properties = props

	if sourcePath.Valid {
		ref := &node.SourceRef{Type: sourceType.String, Path: sourcePath.String}
		if sourceMtime.Valid {
			ref.LastModified = time.Unix(0, sourceMtime.Int64)
		}
		n.SourceRef = ref
	}

	return n, nil
}

const nodeColumns = "id, title, content, tags_json, links_json, properties_json, source_type, source_path, source_mtime"

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := s.scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

func (s *SQLiteStore) GetNodes(ctx context.Context, ids []string) ([]*node.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := inClauseQuery(`SELECT `+nodeColumns+` FROM nodes WHERE id IN (%s)`, ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get nodes: %w", err)
	}
	defer rows.Close()

	var out []*node.Node
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetAllNodes(ctx context.Context) ([]*node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("get all nodes: %w", err)
	}
	defer rows.Close()

	var out []*node.Node
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete node %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetNodeByPath(ctx context.Context, path string) (*node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE LOWER(source_path) = LOWER(?)`, path)
	n, err := s.scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node by path %s: %w", path, err)
	}
	return n, nil
}

func (s *SQLiteStore) GetModifiedTime(ctx context.Context, path string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var mtime sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT source_mtime FROM nodes WHERE LOWER(source_path) = LOWER(?)`, path).Scan(&mtime)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get modified time %s: %w", path, err)
	}
	if !mtime.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(0, mtime.Int64), true, nil
}

func (s *SQLiteStore) GetAllTrackedPaths(ctx context.Context) (map[string]TrackedPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT source_path, id, source_mtime FROM nodes WHERE source_path IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("get tracked paths: %w", err)
	}
	defer rows.Close()

	out := make(map[string]TrackedPath)
	for rows.Next() {
		var path, id string
		var mtime sql.NullInt64
		if err := rows.Scan(&path, &id, &mtime); err != nil {
			return nil, fmt.Errorf("scan tracked path: %w", err)
		}
		tp := TrackedPath{NodeID: id}
		if mtime.Valid {
			tp.LastModified = time.Unix(0, mtime.Int64)
		}
		out[path] = tp
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ResolveTitles(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := inClauseQuery(`SELECT id, title FROM nodes WHERE id IN (%s)`, ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve titles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		out[id] = title
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SearchByTags(ctx context.Context, tags []string, mode string, limit int) ([]*node.Node, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}

	var query string
	args := make([]any, 0, len(lowered)+1)
	placeholders := placeholderList(len(lowered))
	for _, t := range lowered {
		args = append(args, t)
	}

	switch mode {
	case "all":
		query = fmt.Sprintf(`
			SELECT %s FROM nodes WHERE id IN (
				SELECT node_id FROM node_tags WHERE tag_lower IN (%s)
				GROUP BY node_id HAVING COUNT(DISTINCT tag_lower) = ?
			)`, nodeColumns, placeholders)
		args = append(args, len(lowered))
	default: // "any"
		query = fmt.Sprintf(`
			SELECT %s FROM nodes WHERE id IN (
				SELECT DISTINCT node_id FROM node_tags WHERE tag_lower IN (%s)
			)`, nodeColumns, placeholders)
	}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search by tags: %w", err)
	}
	defer rows.Close()

	var out []*node.Node
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListNodes(ctx context.Context, filter ListFilter, opts ListOptions) (ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var where []string
	var args []any

	if filter.Tag != "" {
		where = append(where, `id IN (SELECT node_id FROM node_tags WHERE tag_lower = ?)`)
		args = append(args, strings.ToLower(filter.Tag))
	}
	if filter.Path != "" {
		// Case-insensitive substring match, enforced in Go-visible SQL via
		// LOWER() on both sides: correctness does not depend on the
		// database's default LIKE collation.
		where = append(where, `LOWER(source_path) LIKE '%' || LOWER(?) || '%'`)
		args = append(args, filter.Path)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM nodes %s`, whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count nodes: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT id, title FROM nodes %s ORDER BY id LIMIT ? OFFSET ?`, whereClause)
	listArgs := append(append([]any{}, args...), limit, offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var e ListEntry
		if err := rows.Scan(&e.ID, &e.Title); err != nil {
			return ListResult{}, fmt.Errorf("scan list entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{Nodes: entries, Total: total}, nil
}

func (s *SQLiteStore) ResolveNodes(ctx context.Context, names []string, opts ResolveOptions) ([]ResolveMatch, error) {
	if opts.Threshold == 0 {
		opts.Threshold = 0.7
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if opts.Tag != "" {
		where = append(where, `id IN (SELECT node_id FROM node_tags WHERE tag_lower = ?)`)
		args = append(args, strings.ToLower(opts.Tag))
	}
	if opts.Path != "" {
		where = append(where, `LOWER(source_path) LIKE '%' || LOWER(?) || '%'`)
		args = append(args, opts.Path)
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, title FROM nodes %s`, whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("resolve nodes candidate scan: %w", err)
	}
	var candidates []ListEntry
	for rows.Next() {
		var e ListEntry
		if err := rows.Scan(&e.ID, &e.Title); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, e)
	}
	closeErr := rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	out := make([]ResolveMatch, len(names))
	for i, name := range names {
		out[i] = ResolveMatch{Name: name}

		switch opts.Strategy {
		case StrategyExact:
			for _, c := range candidates {
				if strings.EqualFold(c.Title, name) {
					entry := c
					out[i].Match = &entry
					out[i].Score = 1
					break
				}
			}
		case StrategyFuzzy:
			best := -1.0
			var bestEntry ListEntry
			for _, c := range candidates {
				score := jaroWinkler(c.Title, name)
				if score > best {
					best = score
					bestEntry = c
				}
			}
			if best >= opts.Threshold {
				entry := bestEntry
				out[i].Match = &entry
				out[i].Score = best
			}
		case StrategySemantic:
			// Unsupported at the cache layer: the caller (dispatcher) is
			// responsible for routing semantic resolution to an injected
			// embedding provider when one is available.
		}
	}
	return out, nil
}

func (s *SQLiteStore) NodesExist(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[strings.ToLower(id)] = false
	}
	if len(ids) == 0 {
		return out, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := inClauseQueryLower(`SELECT id FROM nodes WHERE LOWER(id) IN (%s)`, ids)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nodes exist: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out[strings.ToLower(id)] = true
	}
	return out, rows.Err()
}

func (s *SQLiteStore) StoreCentrality(ctx context.Context, c *node.Centrality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO centrality (node_id, in_degree, out_degree, pagerank, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			in_degree=excluded.in_degree, out_degree=excluded.out_degree,
			pagerank=excluded.pagerank, computed_at=excluded.computed_at
	`, c.NodeID, c.InDegree, c.OutDegree, c.PageRank, c.ComputedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("store centrality for %s: %w", c.NodeID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCentrality(ctx context.Context, id string) (*node.Centrality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c node.Centrality
	var computedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT node_id, in_degree, out_degree, pagerank, computed_at FROM centrality WHERE node_id = ?`, id).
		Scan(&c.NodeID, &c.InDegree, &c.OutDegree, &c.PageRank, &computedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get centrality for %s: %w", id, err)
	}
	c.ComputedAt = time.Unix(0, computedAt)
	return &c, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM node_tags`); err != nil {
		return fmt.Errorf("clear node_tags: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM centrality`); err != nil {
		return fmt.Errorf("clear centrality: %w", err)
	}
	return nil
}

func placeholderList(n int) string {
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return strings.Join(placeholders, ", ")
}

func inClauseQuery(template string, ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(template, placeholderList(len(ids))), args
}

func inClauseQueryLower(template string, ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = strings.ToLower(id)
	}
	return fmt.Sprintf(template, placeholderList(len(ids))), args
}
