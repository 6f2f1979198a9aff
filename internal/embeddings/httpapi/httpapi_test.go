package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresURL(t *testing.T) {
	_, err := New(map[string]string{}, nil)
	if err == nil {
		t.Error("expected error when url option is missing")
	}
}

func TestNewRejectsMetadataAddress(t *testing.T) {
	_, err := New(map[string]string{"url": "http://169.254.169.254/embed"}, nil)
	if err == nil {
		t.Error("expected error for cloud metadata address")
	}
}

func TestEmbedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p, err := New(map[string]string{"url": srv.URL}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	vec, ok, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
	if p.Dimension() != 3 {
		t.Errorf("Dimension() = %d, want 3", p.Dimension())
	}
}

func TestEmbedDegradesOn5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(map[string]string{"url": srv.URL}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	vec, ok, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected nil error on degrade, got %v", err)
	}
	if ok || vec != nil {
		t.Error("expected unavailable on 5xx, never an error")
	}
}

func TestEmbedDegradesOnConnectFailure(t *testing.T) {
	p, err := New(map[string]string{"url": "http://127.0.0.1:1"}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	vec, ok, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected nil error on degrade, got %v", err)
	}
	if ok || vec != nil {
		t.Error("expected unavailable on connect failure")
	}
}
