package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/indexer"
	"github.com/LangChat/ai-tutorials/internal/keyword"
	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/memory"
	"github.com/LangChat/ai-tutorials/internal/rag"
	"github.com/LangChat/ai-tutorials/internal/search"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
	"github.com/LangChat/ai-tutorials/internal/vector"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type testServer struct {
	*Server
	model *llm.FakeChatModel
	cfg   *config.Config
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{DatabasePath: filepath.Join(dir, "db.sqlite"), BleveIndexPath: filepath.Join(dir, "bleve")},
		RAG:     config.RAGConfig{Hybrid: true},
		Memory:  config.MemoryConfig{MaxMessages: 3},
	}
	config.ApplyDefaults(cfg)
	cfg.Embedding.Provider = "mock"

	st, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	emb := embedding.NewMockEmbedder(16)
	store := vector.NewMemoryStore(0)
	idx, err := indexer.NewIndexer(st, emb, store, kw, &cfg.RAG)
	if err != nil {
		t.Fatal(err)
	}
	retriever := search.NewRetriever(emb, store, &cfg.RAG, search.WithKeywordIndex(kw, st))
	model := llm.NewFakeChatModel()
	memories := memory.NewStore(time.Hour, func(id string) (memory.ChatMemory, error) {
		return memory.New(&cfg.Memory, id, zap.NewNop())
	})

	srv := NewServer(Services{
		Embedder: emb,
		Indexer:  idx,
		Storage:  st,
		Store:    store,
		RAG:      rag.NewSystem(idx, retriever, st, model),
		Model:    model,
		Memories: memories,
	}, cfg, zap.NewNop(), opts...)
	return &testServer{Server: srv, model: model, cfg: cfg}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	decode(t, w, &out)
	return out["error"]
}

func TestHandleSimilarity(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/similarity", map[string]interface{}{"a": []float32{3, 4}, "b": []float32{3, 4}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out similarityResponse
	decode(t, w, &out)
	if diff := cmp.Diff(similarityResponse{Cosine: 1, Euclidean: 0}, out, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleSimilarity_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"bad json", "{", "invalid request body"},
		{"dimension mismatch", map[string]interface{}{"a": []float32{1, 2}, "b": []float32{1}}, "vecmath: dimension mismatch: 2 vs 1"},
		{"zero vector", map[string]interface{}{"a": []float32{0, 0}, "b": []float32{1, 1}}, "vecmath: undefined similarity: zero-norm vector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/similarity", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
			if got := errorMessage(t, w); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestHandleRank(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/similarity/rank", rankRequest{
		Query:      []float32{1, 0, 0},
		Candidates: [][]float32{{1, 0, 0}, {0, 1, 0}, {0.7, 0.7, 0}},
		K:          2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out rankResponse
	decode(t, w, &out)
	want := rankResponse{
		MostSimilar: vecmath.SimilarityResult{Index: 0, Score: 1},
		TopK:        []vecmath.SimilarityResult{{Index: 0, Score: 1}, {Index: 2, Score: 0.70710678}},
	}
	if diff := cmp.Diff(want, out, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

}

func TestHandleRank_Errors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		req  rankRequest
		want string
	}{
		{"no candidates", rankRequest{Query: []float32{1}}, "vecmath: empty input: 0 candidates"},
		{
			"candidate dimension mismatch",
			rankRequest{Query: []float32{1, 0, 0}, Candidates: [][]float32{{1, 0, 0}, {1, 0}}},
			"candidate 1: vecmath: dimension mismatch: 3 vs 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/similarity/rank", tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
			if got := errorMessage(t, w); got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleEmbeddings(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/v1/embeddings", embeddingsRequest{Texts: []string{"hello", "world"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out embeddingsResponse
	decode(t, w, &out)
	if out.Dimensions != 16 || len(out.Embeddings) != 2 || len(out.Embeddings[0]) != 16 {
		t.Errorf("unexpected response: dimensions=%d embeddings=%d", out.Dimensions, len(out.Embeddings))
	}

	w = ts.do(t, http.MethodPost, "/api/v1/embeddings", embeddingsRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty texts: got %d, want 400", w.Code)
	}
}

func TestDocumentsLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"id": "d1", "title": "Greeting", "content": "hello world"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/documents/d1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}
	var doc struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	decode(t, w, &doc)
	if doc.Title != "Greeting" || doc.Content != "hello world" {
		t.Errorf("document = %+v", doc)
	}

	if w := ts.do(t, http.MethodDelete, "/api/v1/documents/d1", nil); w.Code != http.StatusOK {
		t.Errorf("delete: got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/documents/d1", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/v1/documents/d1", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"content": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("empty content: got %d, want 400", w.Code)
	}
}

func TestHandleRagQuery(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"id": "rag", "title": "RAG", "content": "RAG combines retrieval with generation."})
	ts.model.Reply("RAG is retrieval augmented generation.")

	w := ts.do(t, http.MethodPost, "/api/v1/rag/query", ragQueryRequest{Query: "what is RAG retrieval", TopK: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Query              string `json:"query"`
		Answer             string `json:"answer"`
		Context            string `json:"context"`
		RetrievedDocuments []struct {
			ID string `json:"id"`
		} `json:"retrieved_documents"`
	}
	decode(t, w, &out)
	if out.Answer != "RAG is retrieval augmented generation." {
		t.Errorf("answer = %q", out.Answer)
	}
	if len(out.RetrievedDocuments) != 1 || out.RetrievedDocuments[0].ID != "rag" {
		t.Errorf("retrieved = %+v", out.RetrievedDocuments)
	}
	if !strings.Contains(out.Context, "[Document 1: RAG]") {
		t.Errorf("context = %q", out.Context)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/rag/query", ragQueryRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d, want 400", w.Code)
	}
}

func TestHandleChat_KeepsSessionMemory(t *testing.T) {
	ts := newTestServer(t)
	ts.model.Reply("Nice to meet you, Ada.").Reply("Your name is Ada.")

	w := ts.do(t, http.MethodPost, "/api/v1/chat", chatRequest{Message: "My name is Ada.", System: "Be friendly."})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var first chatResponse
	decode(t, w, &first)
	if first.SessionID == "" || first.Answer != "Nice to meet you, Ada." {
		t.Fatalf("first reply = %+v", first)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/chat", chatRequest{SessionID: first.SessionID, Message: "What is my name?"})
	var second chatResponse
	decode(t, w, &second)
	if second.Answer != "Your name is Ada." {
		t.Errorf("second reply = %+v", second)
	}

	var roles []string
	for _, m := range ts.model.LastRequest().Messages {
		roles = append(roles, string(m.Role))
	}
	// max_messages is 3: the first user message was evicted, the system message kept.
	if diff := cmp.Diff([]string{"system", "assistant", "user"}, roles); diff != "" {
		t.Errorf("second request roles (-want +got):\n%s", diff)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/chat", chatRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty message: got %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	if w := ts.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"id": "d1", "title": "T", "content": "hello world"})

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Documents      int64  `json:"documents"`
		Segments       int64  `json:"segments"`
		Embeddings     int    `json:"embeddings"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes"`
		Config         struct {
			EmbeddingDimensions int `json:"embedding_dimensions"`
		} `json:"config"`
	}
	decode(t, w, &out)
	if out.Documents != 1 || out.Segments != 1 || out.Embeddings != 1 {
		t.Errorf("counts = %+v", out)
	}
	if out.DiskUsageBytes == nil || *out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes = %v", out.DiskUsageBytes)
	}
	if out.Config.EmbeddingDimensions != 16 {
		t.Errorf("embedding_dimensions = %d", out.Config.EmbeddingDimensions)
	}
}

func TestWatchDirectories_NotEnabled(t *testing.T) {
	ts := newTestServer(t)
	if w := ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("model:\n  model_name: yaml-model\n"), 0600); err != nil {
		t.Fatal(err)
	}
	mock := &mockWatchService{}
	ts := newTestServer(t, WithWatch(mock, configPath))
	ts.cfg.Model.APIKey = "sk-from-environment-0123456789"

	w := ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": dir})
	if w.Code != http.StatusCreated {
		t.Fatalf("add: got %d, body: %s", w.Code, w.Body.String())
	}
	w = ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	var out struct {
		Directories []string `json:"directories"`
	}
	decode(t, w, &out)
	if diff := cmp.Diff([]string{dir}, out.Directories); diff != "" {
		t.Errorf("directories (-want +got):\n%s", diff)
	}

	saved, err := config.Load(configPath, config.WithEnvDir(t.TempDir()), config.WithLookupEnv(func(string) (string, bool) { return "", false }))
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != dir {
		t.Errorf("persisted directories = %v", saved.Watch.Directories)
	}
	if saved.Model.ModelName != "yaml-model" {
		t.Errorf("persisted model_name = %q, want the file's value kept", saved.Model.ModelName)
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "sk-from-environment") || strings.Contains(string(raw), "api_key") {
		t.Errorf("config file holds the API key:\n%s", raw)
	}

	if w := ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(dir, "missing")}); w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil); w.Code != http.StatusOK {
		t.Errorf("remove: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected no directories, got %v", mock.Directories())
	}
}
