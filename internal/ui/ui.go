// Package ui provides terminal output components for the sync progress
// display and the roux stats command: a plain-text renderer
// (the only renderer — Non-goal per spec: no interactive UI) plus shared
// formatting helpers.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies which phase of a sync/watch run is in progress, mirroring
// the pipeline spec §4.8.1 describes: enumerate+parse, resolve links, and
// rebuild the graph.
type Stage int

const (
	// StageScanning enumerates and parses files under the vault root.
	StageScanning Stage = iota
	// StageResolving resolves raw link text to node ids and mints ghosts.
	StageResolving
	// StageGraph rebuilds the in-memory adjacency and persists centrality.
	StageGraph
	// StageComplete indicates the run finished.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageResolving:
		return "Resolving"
	case StageGraph:
		return "Graph"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag used in plain-text progress lines.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageResolving:
		return "RESOLVE"
	case StageGraph:
		return "GRAPH"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage       Stage
	Current     int
	Total       int
	CurrentFile string
	Message     string
}

// ErrorEvent represents an error or warning encountered during a run.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each sync stage.
type StageTimings struct {
	Scan    time.Duration // enumerate + parse changed files
	Resolve time.Duration // link resolution + ghost GC
	Graph   time.Duration // adjacency rebuild + centrality persistence
}

// ProviderInfo reports the configured vector provider, if any.
type ProviderInfo struct {
	Model string // empty when no embedding capability is configured
}

// CompletionStats contains final sync statistics.
type CompletionStats struct {
	Files    int
	Nodes    int
	Ghosts   int
	Duration time.Duration
	Errors   int
	Warnings int
	Stages   StageTimings
	Provider ProviderInfo
}

// Renderer defines the interface for progress display.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	ProjectDir string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output (always true today — kept for
// call-site symmetry with the teacher's NewConfig option pattern).
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables ANSI color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithProjectDir sets the vault root path to display in the header.
func WithProjectDir(dir string) ConfigOption {
	return func(c *Config) { c.ProjectDir = dir }
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the plain-text renderer. There is only one renderer
// implementation: an interactive TUI is out of scope for this engine (spec
// §1 names UI as an external collaborator), but the constructor keeps the
// config-driven shape the CLI expects so call sites read the same as the
// teacher's NewRenderer dispatch.
func NewRenderer(cfg Config) Renderer {
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
