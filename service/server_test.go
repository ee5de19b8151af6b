package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rushteam/rankproxy/abtest"
	"github.com/rushteam/rankproxy/core"
	"github.com/rushteam/rankproxy/reorder"
	"github.com/rushteam/rankproxy/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubRepository struct {
	err error
}

func (r *stubRepository) SelectAll(ctx context.Context, query core.AnimalQuery) ([]core.Animal, error) {
	if r.err != nil {
		return nil, r.err
	}
	animals := make([]core.Animal, 0, len(query.IDs))
	for _, id := range query.IDs {
		animals = append(animals, core.Animal{ID: id})
	}
	return animals, nil
}

type stubPredictor struct {
	err     error
	reverse bool
}

func (p *stubPredictor) Predict(ctx context.Context, req *core.RankRequest, rows []core.FeatureRow) ([]core.Prediction, error) {
	if p.err != nil {
		return nil, p.err
	}
	ids := append([]string(nil), req.IDs...)
	if p.reverse {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	predictions := make([]core.Prediction, 0, len(ids))
	for i, id := range ids {
		predictions = append(predictions, core.Prediction{AnimalID: id, Score: float64(i)})
	}
	return predictions, nil
}

func newTestServer(t *testing.T, repo core.AnimalRepository, predictor core.Predictor, opts ...ServerOption) *Server {
	t.Helper()
	cache := store.NewMemoryStore()
	t.Cleanup(func() { cache.Close() })
	uc := reorder.NewUsecase("test_model", repo, cache, predictor,
		reorder.WithBackground(func(fn func()) { fn() }))
	return NewServer(uc, opts...)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, &stubRepository{}, &stubPredictor{})
	w := doJSON(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"health":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestServer_Reorder(t *testing.T) {
	srv := newTestServer(t, &stubRepository{}, &stubPredictor{reverse: true})
	w := doJSON(t, srv, http.MethodPost, "/v0/reorder",
		`{"ids":["a","b","c"],"query_phrases":["cute","dog"],"query_animal_category_id":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp reorderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"c", "b", "a"}
	if fmt.Sprint(resp.IDs) != fmt.Sprint(want) {
		t.Errorf("ids = %v, want %v", resp.IDs, want)
	}
}

func TestServer_ReorderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing ids", `{"query_phrases":["dog"]}`},
		{"empty ids", `{"ids":[]}`},
		{"blank id", `{"ids":["a",""]}`},
		{"unknown field", `{"ids":["a"],"query_phrase":["dog"]}`},
		{"not json", `ids=a`},
	}
	srv := newTestServer(t, &stubRepository{}, &stubPredictor{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, srv, http.MethodPost, "/v0/reorder", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestServer_ReorderRepositoryDown(t *testing.T) {
	repo := &stubRepository{err: fmt.Errorf("%w: connection refused", core.ErrRepositoryUnavailable)}
	srv := newTestServer(t, repo, &stubPredictor{})
	w := doJSON(t, srv, http.MethodPost, "/v0/reorder", `{"ids":["a"]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestServer_ReorderEnvelopeMismatch(t *testing.T) {
	predictor := &stubPredictor{err: fmt.Errorf("%w: missing response field", core.ErrEnvelopeMismatch)}
	srv := newTestServer(t, &stubRepository{}, predictor)
	w := doJSON(t, srv, http.MethodPost, "/v0/reorder", `{"ids":["a"]}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func newABServer(t *testing.T, defaultURL string, mappings map[string]core.Endpoint) *Server {
	t.Helper()
	registry, err := abtest.NewRegistry(core.Endpoint{Name: "default", URL: defaultURL}, mappings, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return newTestServer(t, &stubRepository{}, &stubPredictor{},
		WithABRouter(abtest.NewRouter(registry)))
}

func TestServer_ABReorder(t *testing.T) {
	variant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"b", "a"}})
	}))
	defer variant.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ids": []string{"a", "b"}})
	}))
	defer fallback.Close()

	srv := newABServer(t, fallback.URL, map[string]core.Endpoint{
		"user_b": {Name: "variant_b", URL: variant.URL},
	})

	tests := []struct {
		name    string
		userID  string
		wantURL string
		wantIDs []string
	}{
		{"mapped client routes to variant", "user_b", variant.URL, []string{"b", "a"}},
		{"unmapped client routes to default", "nobody", fallback.URL, []string{"a", "b"}},
		{"empty client routes to default", "", fallback.URL, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"user_id":%q,"request":{"ids":["a","b"]}}`, tt.userID)
			w := doJSON(t, srv, http.MethodPost, "/v0/ab/reorder", body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
			}
			var resp abReorderResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Endpoint != tt.wantURL {
				t.Errorf("endpoint = %s, want %s", resp.Endpoint, tt.wantURL)
			}
			var inner struct {
				IDs []string `json:"ids"`
			}
			if err := json.Unmarshal(resp.Response, &inner); err != nil {
				t.Fatalf("decode inner response: %v", err)
			}
			if fmt.Sprint(inner.IDs) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("ids = %v, want %v", inner.IDs, tt.wantIDs)
			}
		})
	}
}

func TestServer_ABReorderValidation(t *testing.T) {
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer fallback.Close()
	srv := newABServer(t, fallback.URL, nil)

	w := doJSON(t, srv, http.MethodPost, "/v0/ab/reorder", `{"user_id":"u"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing request field: status = %d, want 400", w.Code)
	}
}

func TestServer_ABReorderVariantError(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"model exploded"}`))
	}))
	defer broken.Close()
	srv := newABServer(t, broken.URL, nil)

	w := doJSON(t, srv, http.MethodPost, "/v0/ab/reorder", `{"user_id":"u","request":{"ids":["a"]}}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	// 变体的原始错误体透传给调用方
	if !strings.Contains(w.Body.String(), "model exploded") {
		t.Errorf("variant error body must pass through, got %s", w.Body.String())
	}
}

func TestServer_ABRouteNotRegisteredWithoutRouter(t *testing.T) {
	srv := newTestServer(t, &stubRepository{}, &stubPredictor{})
	w := doJSON(t, srv, http.MethodPost, "/v0/ab/reorder", `{"user_id":"u","request":{}}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
