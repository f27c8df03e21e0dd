package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexgetty/roux/internal/cache"
	"github.com/alexgetty/roux/internal/config"
	"github.com/alexgetty/roux/internal/dispatch"
	"github.com/alexgetty/roux/internal/docstore"
	"github.com/alexgetty/roux/internal/format"
	"github.com/alexgetty/roux/internal/graph"
	"github.com/alexgetty/roux/internal/vector"
	"github.com/alexgetty/roux/internal/watcher"
)

// app bundles the collaborators every vault-scoped command wires together:
// cache store, graph engine, orchestrator, vector provider, and the
// dispatcher fronting all of them.
type app struct {
	root  string
	cfg   *config.Config
	store *cache.SQLiteStore
	graph *graph.Engine
	docs  *docstore.DocStore
	vec   vector.Provider
	disp  *dispatch.Dispatcher
}

// Close releases the cache handle and any vector provider resources.
func (a *app) Close() error {
	if a.vec != nil {
		_ = a.vec.Close()
	}
	return a.store.Close()
}

// openApp resolves the vault root, loads its config, opens the cache, and
// rebuilds the in-memory graph before wiring a docstore and dispatcher
// over the result.
func openApp(ctx context.Context, vaultRoot string) (*app, error) {
	root, err := resolveVaultRoot(vaultRoot)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigAt(root)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.CacheDBPath())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	g := graph.NewEngine(store)
	if err := g.Rebuild(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("rebuild graph: %w", err)
	}

	vec := buildVectorProvider(cfg)
	a := &app{root: root, cfg: cfg, store: store, graph: g, vec: vec}
	a.buildDocstore(nil)
	return a, nil
}

// buildDocstore (re)builds the docstore and dispatcher over a's existing
// collaborators. pauser is the watcher to suppress during frontmatter
// writebacks, or nil for one-shot commands with no watcher running.
func (a *app) buildDocstore(pauser docstore.Pauser) {
	registry := format.NewDefaultRegistry()
	a.docs = docstore.New(docstore.Config{
		Root:             a.root,
		Registry:         registry,
		Store:            a.store,
		Graph:            a.graph,
		Vector:           a.vec,
		Watcher:          pauser,
		PendingUnlinkTTL: a.cfg.PendingUnlinkTTLDuration(),
	})
	a.disp = dispatch.New(a.store, a.graph, a.docs, a.vec)
}

// newWatcher builds a *watcher.Watcher over the vault root, applies each
// flushed batch through the docstore, and rebuilds the graph. The
// docstore is rebuilt with the watcher wired in as a Pauser so its own
// frontmatter writebacks don't re-trigger a watch event.
func (a *app) newWatcher(ctx context.Context) *watcher.Watcher {
	extensions := make(map[string]bool, len(a.cfg.Vault.Extensions))
	for _, ext := range a.cfg.Vault.Extensions {
		extensions[ext] = true
	}
	excluded := make(map[string]bool, len(a.cfg.Vault.ExcludedDirs))
	for _, dir := range a.cfg.Vault.ExcludedDirs {
		excluded[dir] = true
	}

	w := watcher.New(watcher.Config{
		Root:             a.root,
		Extensions:       extensions,
		ExcludedDirs:     excluded,
		DebounceInterval: time.Duration(a.cfg.Watcher.DebounceMS) * time.Millisecond,
		OnBatch: func(batch map[string]watcher.EventType) {
			a.docs.HandleWatcherBatch(ctx, batch)
			if err := a.graph.Rebuild(ctx); err != nil {
				slog.Warn("watch_graph_rebuild_error", slog.String("error", err.Error()))
			}
		},
	})
	a.buildDocstore(w)
	return w
}

// buildVectorProvider selects a Provider from cfg.Vector.Backend.
// "none" (the default) runs with vector.NoopProvider.
func buildVectorProvider(cfg *config.Config) vector.Provider {
	if !strings.EqualFold(cfg.Vector.Backend, "http") {
		return vector.NoopProvider{}
	}
	timeout, err := time.ParseDuration(cfg.Vector.RequestTimeout)
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}
	return vector.NewHTTPProvider(vector.HTTPProviderConfig{
		BaseURL: cfg.Vector.Endpoint,
		Model:   cfg.Vector.Model,
		Timeout: timeout,
	})
}

// resolveVaultRoot returns explicit as an absolute path when given,
// otherwise discovers the vault root from the current working directory.
func resolveVaultRoot(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if root, err := config.FindVaultRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

// statFile returns path's size in bytes.
func statFile(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// loadConfigAt loads the effective configuration for root.
func loadConfigAt(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
