package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNoopProviderHasNoCapability(t *testing.T) {
	var p NoopProvider
	if p.GetModel() != "" {
		t.Errorf("expected empty model name")
	}
	matches, err := p.Search(context.Background(), []float32{0.1}, 5)
	if err != nil || matches != nil {
		t.Errorf("expected nil, nil from noop search, got %v, %v", matches, err)
	}
	if has, err := p.HasEmbedding(context.Background(), "x"); has || err != nil {
		t.Errorf("expected false, nil from noop HasEmbedding")
	}
}

func TestHTTPProviderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/store":
			w.WriteHeader(http.StatusOK)
		case "/search":
			_ = json.NewEncoder(w).Encode(searchResponse{Matches: []Match{{ID: "abc", Distance: 0.1}}})
		case "/delete":
			w.WriteHeader(http.StatusOK)
		case "/has":
			_ = json.NewEncoder(w).Encode(hasEmbeddingResponse{Exists: true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{BaseURL: srv.URL, Model: "test-model"})
	defer p.Close()

	if p.GetModel() != "test-model" {
		t.Errorf("GetModel = %q", p.GetModel())
	}
	if err := p.Store(context.Background(), "abc", []float32{0.1, 0.2}, "test-model"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	matches, err := p.Search(context.Background(), []float32{0.1, 0.2}, 1)
	if err != nil || len(matches) != 1 || matches[0].ID != "abc" {
		t.Fatalf("Search: %v, %v", matches, err)
	}
	if err := p.Delete(context.Background(), "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	has, err := p.HasEmbedding(context.Background(), "abc")
	if err != nil || !has {
		t.Fatalf("HasEmbedding: %v, %v", has, err)
	}
}

func TestHTTPProviderSurfacesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPProviderConfig{BaseURL: srv.URL})
	if err := p.Store(context.Background(), "abc", nil, "m"); err == nil {
		t.Errorf("expected error on non-200 response")
	}
}
