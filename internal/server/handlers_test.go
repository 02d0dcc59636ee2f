package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/atrbot/internal/config"
	"github.com/hyperjump/atrbot/internal/embedding"
	"github.com/hyperjump/atrbot/internal/index"
	"github.com/hyperjump/atrbot/internal/indexer"
	"github.com/hyperjump/atrbot/internal/llm"
	"github.com/hyperjump/atrbot/internal/models"
	"github.com/hyperjump/atrbot/internal/rag"
	"github.com/hyperjump/atrbot/internal/retry"
	"github.com/hyperjump/atrbot/internal/search"
	"go.uber.org/zap"
)

type stubAnswerer struct {
	err error
}

func (s stubAnswerer) Generate(_ context.Context, q string) (*rag.Answer, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &rag.Answer{Text: "respuesta a " + q, Sources: []string{"ayuno.pdf"}}, nil
}

type sessionCount int

func (n sessionCount) Len() int { return int(n) }

func testServer(t *testing.T, answerer Answerer) (*Server, string) {
	t.Helper()
	chunker, err := indexer.NewChunker(200, 20, nil)
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewHashingEmbedder(64)
	idx, _, err := indexer.NewIndexer(nil, chunker, emb).BuildFromDocuments(context.Background(), []*models.Document{
		{ID: "doc:1", Source: "ayuno.pdf", Text: "El paciente debe ayunar 8 horas antes de la cirugía."},
		{ID: "doc:2", Source: "alta.pdf", Text: "Tras el alta, reposo relativo durante dos días."},
	})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := idx.Save(context.Background(), dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	deps := Deps{
		Searcher:  search.NewRetriever(emb, idx, 4),
		Answerer:  answerer,
		Index:     idx,
		Sessions:  sessionCount(2),
		IndexPath: dir,
	}
	return NewServer(deps, &config.ServerConfig{Host: "localhost", Port: 8080}, zap.NewNop()), dir
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t, stubAnswerer{})
	w := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := testServer(t, stubAnswerer{})
	w := do(t, srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Manifest       models.Manifest `json:"manifest"`
		Documents      int             `json:"documents"`
		Chunks         int             `json:"chunks"`
		Vectors        int             `json:"vectors"`
		OpenSessions   int             `json:"open_sessions"`
		DiskUsageBytes *int64          `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Documents != 2 || out.Chunks != 2 || out.Vectors != 2 {
		t.Errorf("counts: %+v", out)
	}
	if out.Manifest.EmbeddingModel != embedding.HashingModel || out.OpenSessions != 2 {
		t.Errorf("manifest %+v, sessions %d", out.Manifest, out.OpenSessions)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes: %v", out.DiskUsageBytes)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, _ := testServer(t, stubAnswerer{})
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "ayunar cirugía", "k": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].Chunk.Source != "ayuno.pdf" {
		t.Errorf("results: %+v", out.Results)
	}
}

func TestHandleSearch_badRequests(t *testing.T) {
	srv, _ := testServer(t, stubAnswerer{})
	h := srv.Handler()
	if w := do(t, h, http.MethodPost, "/api/v1/search", map[string]string{"query": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank query: got %d", w.Code)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	tests := []struct {
		name     string
		answerer Answerer
		question string
		want     int
	}{
		{"ok", stubAnswerer{}, "¿Cuánto ayuno?", http.StatusOK},
		{"blank", stubAnswerer{}, " ", http.StatusBadRequest},
		{"breaker open", stubAnswerer{err: fmt.Errorf("generation failed: %w", llm.ErrUnavailable)}, "hola", http.StatusServiceUnavailable},
		{"retries exhausted", stubAnswerer{err: &retry.ExhaustedError{Attempts: 3, Err: errors.New("503")}}, "hola", http.StatusServiceUnavailable},
		{"other", stubAnswerer{err: errors.New("boom")}, "hola", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, tt.answerer)
			w := do(t, srv.Handler(), http.MethodPost, "/api/v1/ask", map[string]string{"question": tt.question})
			if w.Code != tt.want {
				t.Fatalf("status: got %d, want %d, body: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusOK {
				var out rag.Answer
				if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
					t.Fatal(err)
				}
				if out.Text != "respuesta a ¿Cuánto ayuno?" || len(out.Sources) != 1 {
					t.Errorf("answer: %+v", out)
				}
			}
		})
	}
}

var _ IndexInfo = (*index.Index)(nil)
