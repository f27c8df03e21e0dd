// Package watcher wraps an OS recursive filesystem watcher behind a small
// state machine that filters, coalesces, and debounces events into batches
// — the C7 component.
package watcher

import (
	"errors"
	"time"
)

// EventType is the coalesced effect of one or more raw filesystem events
// for a single path within a debounce window.
type EventType string

const (
	EventAdd    EventType = "add"
	EventChange EventType = "change"
	EventUnlink EventType = "unlink"
)

// State is a watcher lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// ErrAlreadyWatching is returned by Start when the watcher is already
// active or paused.
var ErrAlreadyWatching = errors.New("watcher: already watching")

// BatchHandler receives one coalesced batch of relative-path events.
// Forward slashes are used in every path regardless of host OS. A panic in
// the handler is recovered and logged by the watcher, which keeps running.
type BatchHandler func(batch map[string]EventType)

// Config configures a Watcher.
type Config struct {
	// Root is the directory to watch recursively.
	Root string

	// Extensions is the set of lowercased, dot-prefixed extensions
	// (e.g. ".md") that produce events. Dotfiles and extensionless files
	// are always dropped regardless of this set.
	Extensions map[string]bool

	// ExcludedDirs is the fixed set of directory names never descended
	// into or watched: .roux, node_modules, .git, .obsidian by default.
	ExcludedDirs map[string]bool

	// DebounceInterval is the coalescing window. Default 1000ms.
	DebounceInterval time.Duration

	// OnBatch is invoked once per flushed, non-empty batch.
	OnBatch BatchHandler
}

// DefaultExcludedDirs is the fixed excluded-directory set from the design.
func DefaultExcludedDirs() map[string]bool {
	return map[string]bool{
		".roux":       true,
		"node_modules": true,
		".git":        true,
		".obsidian":   true,
	}
}

// WithDefaults fills zero-valued fields with their defaults.
func (c Config) WithDefaults() Config {
	if c.DebounceInterval == 0 {
		c.DebounceInterval = 1000 * time.Millisecond
	}
	if c.ExcludedDirs == nil {
		c.ExcludedDirs = DefaultExcludedDirs()
	}
	return c
}
