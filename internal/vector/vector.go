// Package vector defines the narrow external vector/embedding provider
// contract the orchestrator consumes, per the design's "only
// store/search/delete/hasEmbedding/getModel is consumed" boundary. Provider
// internals (which model, which ANN index) are out of scope; this package
// only ships the contract, a no-op default, and an HTTP adapter for talking
// to an externally-run provider.
package vector

import "context"

// Match is one nearest-neighbor result from Search.
type Match struct {
	ID       string
	Distance float64
}

// Provider is the full surface the orchestrator may call. Capability is
// the dispatcher's INVALID_PARAMS/PROVIDER_ERROR routing: GetModel
// returning "" means no embedding capability is configured.
type Provider interface {
	// Store upserts the vector for id under the given model name.
	Store(ctx context.Context, id string, vec []float32, model string) error

	// Search returns up to k nearest matches to vec.
	Search(ctx context.Context, vec []float32, k int) ([]Match, error)

	// Delete removes any stored vector for id. Best-effort: callers log
	// and continue on failure rather than aborting a cache mutation.
	Delete(ctx context.Context, id string) error

	// HasEmbedding reports whether id currently has a stored vector.
	HasEmbedding(ctx context.Context, id string) (bool, error)

	// GetModel returns the active embedding model name, or "" when no
	// embedding capability is configured.
	GetModel() string

	// Close disposes provider resources. Idempotent.
	Close() error
}

// NoopProvider is the zero-configuration default: it has no embedding
// capability, so GetModel returns "" and every call is a harmless no-op.
// The orchestrator and dispatcher both treat "" from GetModel as "route to
// PROVIDER_ERROR for search, skip embedding calls on write."
type NoopProvider struct{}

var _ Provider = NoopProvider{}

func (NoopProvider) Store(context.Context, string, []float32, string) error { return nil }
func (NoopProvider) Search(context.Context, []float32, int) ([]Match, error) { return nil, nil }
func (NoopProvider) Delete(context.Context, string) error                    { return nil }
func (NoopProvider) HasEmbedding(context.Context, string) (bool, error)      { return false, nil }
func (NoopProvider) GetModel() string                                       { return "" }
func (NoopProvider) Close() error                                           { return nil }
