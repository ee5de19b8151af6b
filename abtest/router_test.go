package abtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rushteam/rankproxy/core"
)

func newRegistry(t *testing.T, defaultURL string, mappings map[string]core.Endpoint) *Registry {
	t.Helper()
	registry, err := NewRegistry(core.Endpoint{Name: "default", URL: defaultURL}, mappings, nil)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	return registry
}

func TestRouter_RouteToMappedEndpoint(t *testing.T) {
	var variantHit, defaultHit bool
	variant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		variantHit = true
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"b", "a"}})
	}))
	defer variant.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHit = true
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a", "b"}})
	}))
	defer fallback.Close()

	registry := newRegistry(t, fallback.URL, map[string]core.Endpoint{
		"user_a": {Name: "variant", URL: variant.URL},
	})
	router := NewRouter(registry)

	result, err := router.Route(context.Background(), "user_a", []byte(`{"ids":["a","b"]}`))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if !variantHit || defaultHit {
		t.Errorf("expected variant endpoint to serve the request")
	}
	if result.Endpoint != variant.URL {
		t.Errorf("result endpoint = %s, want %s", result.Endpoint, variant.URL)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("unexpected status: %d", result.StatusCode)
	}
}

func TestRouter_UnmappedClientUsesDefault(t *testing.T) {
	var defaultHit bool
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHit = true
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a"}})
	}))
	defer fallback.Close()

	registry := newRegistry(t, fallback.URL, nil)
	router := NewRouter(registry)

	result, err := router.Route(context.Background(), "nobody", []byte(`{"ids":["a"]}`))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if !defaultHit {
		t.Error("expected default endpoint to serve unmapped client")
	}
	if result.Endpoint != fallback.URL {
		t.Errorf("result endpoint = %s, want %s", result.Endpoint, fallback.URL)
	}
}

func TestRouter_NonSuccessStatusReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"variant down"}`))
	}))
	defer srv.Close()

	registry := newRegistry(t, srv.URL, nil)
	router := NewRouter(registry)

	result, err := router.Route(context.Background(), "user", []byte(`{}`))
	if err != nil {
		t.Fatalf("non-success status must not be an error: %v", err)
	}
	if result.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", result.StatusCode)
	}
	if string(result.Body) != `{"error":"variant down"}` {
		t.Errorf("raw body must pass through, got %s", result.Body)
	}
}

func TestRouter_TransportFailureAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // 连接拒绝

	registry := newRegistry(t, srv.URL, nil)
	router := NewRouter(registry, WithRouterRetries(1), WithRouterTimeout(time.Second))

	_, err := router.Route(context.Background(), "user", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !core.IsUnavailable(err) {
		t.Errorf("expected UNAVAILABLE domain error, got %v", err)
	}
}

func TestRouter_RetriesTransportFailures(t *testing.T) {
	attempts := 0
	// 前两次模拟传输失败：直接挂断连接；第三次成功
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijacking unsupported")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a"}})
	}))
	defer srv.Close()

	registry := newRegistry(t, srv.URL, nil)
	router := NewRouter(registry, WithRouterRetries(2))

	result, err := router.Route(context.Background(), "user", []byte(`{}`))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("unexpected status: %d", result.StatusCode)
	}
}
