package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to an externally-run vector service over a small JSON
// protocol, pooling connections the way the teacher's Ollama embedder
// client does.
type HTTPProvider struct {
	client    *http.Client
	baseURL   string
	modelName string
}

var _ Provider = (*HTTPProvider)(nil)

// HTTPProviderConfig configures an HTTPProvider.
type HTTPProviderConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// PoolSize bounds idle/concurrent connections to the provider host.
	PoolSize int
}

// NewHTTPProvider builds an HTTPProvider; Timeout and PoolSize fall back to
// sane defaults (30s, 8 connections) when unset.
func NewHTTPProvider(cfg HTTPProviderConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	return &HTTPProvider{
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		modelName: cfg.Model,
	}
}

func (p *HTTPProvider) GetModel() string { return p.modelName }

func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type storeRequest struct {
	ID     string    `json:"id"`
	Vector []float32 `json:"vector"`
	Model  string    `json:"model"`
}

func (p *HTTPProvider) Store(ctx context.Context, id string, vec []float32, model string) error {
	return p.postJSON(ctx, "/store", storeRequest{ID: id, Vector: vec, Model: model}, nil)
}

type searchRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type searchResponse struct {
	Matches []Match `json:"matches"`
}

func (p *HTTPProvider) Search(ctx context.Context, vec []float32, k int) ([]Match, error) {
	var resp searchResponse
	if err := p.postJSON(ctx, "/search", searchRequest{Vector: vec, K: k}, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

type deleteRequest struct {
	ID string `json:"id"`
}

func (p *HTTPProvider) Delete(ctx context.Context, id string) error {
	return p.postJSON(ctx, "/delete", deleteRequest{ID: id}, nil)
}

type hasEmbeddingResponse struct {
	Exists bool `json:"exists"`
}

func (p *HTTPProvider) HasEmbedding(ctx context.Context, id string) (bool, error) {
	var resp hasEmbeddingResponse
	if err := p.postJSON(ctx, "/has", deleteRequest{ID: id}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (p *HTTPProvider) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call provider %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("provider %s returned %d: %s", path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response from %s: %w", path, err)
	}
	return nil
}
