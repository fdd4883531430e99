package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LangChat/ai-tutorials/internal/config"
	"github.com/LangChat/ai-tutorials/internal/embedding"
	"github.com/LangChat/ai-tutorials/internal/indexer"
	"github.com/LangChat/ai-tutorials/internal/llm"
	"github.com/LangChat/ai-tutorials/internal/models"
	"github.com/LangChat/ai-tutorials/internal/storage"
	"github.com/LangChat/ai-tutorials/internal/vecmath"
)

type similarityRequest struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

type similarityResponse struct {
	Cosine    float64 `json:"cosine"`
	Euclidean float64 `json:"euclidean"`
}

type rankRequest struct {
	Query      []float32   `json:"query"`
	Candidates [][]float32 `json:"candidates"`
	K          int         `json:"k"`
}

type rankResponse struct {
	MostSimilar vecmath.SimilarityResult   `json:"most_similar"`
	TopK        []vecmath.SimilarityResult `json:"top_k"`
}

type embeddingsRequest struct {
	Texts []string `json:"texts"`
}

type embeddingsResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
}

type ragQueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	System    string `json:"system,omitempty"`
}

type chatResponse struct {
	SessionID string    `json:"session_id"`
	Answer    string    `json:"answer"`
	Usage     llm.Usage `json:"usage"`
}

// respondVectorError maps vecmath failures to a client error. The message
// is the error itself, which names the offending dimensions or count.
func (s *Server) respondVectorError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, vecmath.ErrDimensionMismatch) ||
		errors.Is(err, vecmath.ErrUndefinedSimilarity) ||
		errors.Is(err, vecmath.ErrEmptyInput) {
		status = http.StatusBadRequest
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cos, err := vecmath.CosineSimilarity(req.A, req.B)
	if err != nil {
		s.respondVectorError(w, err)
		return
	}
	dist, err := vecmath.EuclideanDistance(req.A, req.B)
	if err != nil {
		s.respondVectorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, similarityResponse{Cosine: cos, Euclidean: dist})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	best, err := vecmath.FindMostSimilar(req.Query, req.Candidates)
	if err != nil {
		s.respondVectorError(w, err)
		return
	}
	top, err := vecmath.FindTopKSimilar(req.Query, req.Candidates, req.K)
	if err != nil {
		s.respondVectorError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rankResponse{MostSimilar: best, TopK: top})
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vecs, err := s.svc.Embedder.EmbedBatch(r.Context(), req.Texts)
	if errors.Is(err, embedding.ErrEmptyInput) {
		s.respondError(w, http.StatusBadRequest, "texts must not be empty")
		return
	}
	if err != nil {
		s.logger.Error("embedding failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, embeddingsResponse{Embeddings: vecs, Dimensions: s.svc.Embedder.Dimensions()})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index document request", zap.String("id", input.ID), zap.String("title", input.Title))
	doc, err := s.svc.Indexer.IndexDocument(r.Context(), &input)
	if errors.Is(err, indexer.ErrEmptyDocument) {
		s.respondError(w, http.StatusBadRequest, "content must not be empty")
		return
	}
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": doc.ID, "title": doc.Title, "status": "indexed"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.svc.Storage.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	err := s.svc.Indexer.DeleteDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleRagQuery(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.config.RAG.TopK
	}
	res, err := s.svc.RAG.Query(r.Context(), req.Query, topK)
	if errors.Is(err, models.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, "query must not be empty")
		return
	}
	if err != nil {
		s.logger.Error("rag query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	mem, err := s.svc.Memories.Get(req.SessionID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.System != "" {
		mem.Add(models.SystemMessage(req.System))
	}
	mem.Add(models.UserMessage(req.Message))

	resp, err := s.svc.Model.Chat(r.Context(), &llm.ChatRequest{Messages: mem.Messages()})
	if err != nil {
		s.logger.Error("chat failed", zap.String("session_id", req.SessionID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	mem.Add(resp.Message)
	s.respondJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Answer: resp.Message.Content, Usage: resp.Usage})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.svc.Storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	segCount, err := s.svc.Storage.CountSegments(ctx)
	if err != nil {
		s.logger.Error("status: count segments failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":  docCount,
		"segments":   segCount,
		"embeddings": s.svc.Store.Size(),
	}
	if s.svc.Memories != nil {
		resp["sessions"] = s.svc.Memories.Len()
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"model":                s.config.Model.ModelName,
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.svc.Embedder.Dimensions(),
			"splitter":             s.config.RAG.Splitter,
			"chunk_size":           s.config.RAG.ChunkSize,
			"top_k":                s.config.RAG.TopK,
			"hybrid":               s.config.RAG.Hybrid,
			"memory":               s.config.Memory.Type,
		}
		usage, total, err := storage.DiskUsage(map[string]string{
			"database":    s.config.Storage.DatabasePath,
			"bleve_index": s.config.Storage.BleveIndexPath,
		})
		if err == nil {
			resp["disk_usage"] = usage
			resp["disk_usage_bytes"] = total
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		s.respondError(w, http.StatusNotFound, "directory not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.SaveWatchDirectories(s.configPath, s.config.Watch.Directories); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
