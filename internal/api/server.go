package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"oairag/internal/config"
	"oairag/internal/ingest"
	"oairag/internal/logging"
	"oairag/internal/models"
	"oairag/internal/pagination"
	"oairag/internal/workflows"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

type DocumentStore interface {
	Get(ctx context.Context, id string) (models.Document, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
	FileNamesInCollection(ctx context.Context, collectionName string) ([]string, error)
}

type CollectionStore interface {
	Create(ctx context.Context, name string, meta map[string]any) (models.Collection, error)
	GetByName(ctx context.Context, name string) (models.Collection, error)
	GetByID(ctx context.Context, id string) (models.Collection, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]models.Collection, error)
}

type Uploader interface {
	Submit(ctx context.Context, up ingest.Upload) (models.Document, error)
}

type Answerer interface {
	Answer(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, documentID string, req models.SummaryRequest) (models.SummaryResponse, bool, error)
}

type ProgressReader interface {
	IngestStatus(ctx context.Context, documentID string) (workflows.DocumentStatus, error)
}

// Deps are the services behind the routes. Progress may be nil.
type Deps struct {
	Documents   DocumentStore
	Collections CollectionStore
	Uploads     Uploader
	Chat        Answerer
	Summaries   Summarizer
	Progress    ProgressReader
}

type Server struct {
	cfg  config.Config
	deps Deps
	log  *zap.Logger
}

func NewServer(cfg config.Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cfg: cfg, deps: deps, log: log}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /document/upload", s.handleUpload)
	mux.HandleFunc("GET /document/list", s.handleListDocuments)
	mux.HandleFunc("GET /document/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /document/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /document/{id}/progress", s.handleDocumentProgress)
	mux.HandleFunc("POST /document/{id}/summary", s.handleSummary)
	mux.HandleFunc("POST /collection", s.handleCreateCollection)
	mux.HandleFunc("GET /collection/list", s.handleListCollections)
	mux.HandleFunc("GET /collection/{id}", s.handleGetCollection)
	mux.HandleFunc("POST /chat", s.handleChat)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(otelhttp.NewHandler(logging.Middleware(s.log, mux), "oairag-api"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, errors.New("file is required"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, fmt.Errorf("read upload: %w", err))
		return
	}
	doc, err := s.deps.Uploads.Submit(r.Context(), ingest.Upload{
		FileName:       fh.Filename,
		Mime:           fh.Header.Get("Content-Type"),
		Data:           data,
		CollectionName: r.FormValue("collection_name"),
		CallbackURL:    r.URL.Query().Get("callback_url"),
	})
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}
	total, err := s.deps.Documents.Count(r.Context())
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	win := pagination.Paginate(total, page, size, s.listURL("document/list"))
	docs, err := s.deps.Documents.List(r.Context(), win.Offset, win.Size)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DocumentListResponse{Documents: docs, Links: win.Links, Meta: win.Meta})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Documents.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.deps.Documents.Get(r.Context(), id)
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	if s.deps.Progress == nil || doc.ProcessStatus != models.StatusPending {
		writeJSON(w, http.StatusOK, workflows.DocumentStatus{
			DocumentID:  doc.ID,
			FileName:    doc.FileName,
			CurrentStep: "done",
			Status:      string(doc.ProcessStatus),
			FailReason:  doc.ProcessDescription,
		})
		return
	}
	st, err := s.deps.Progress.IngestStatus(r.Context(), id)
	if err != nil {
		s.writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req models.SummaryRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}
	resp, deferred, err := s.deps.Summaries.Summarize(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	if deferred {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string          `json:"name"`
		CMetadata json.RawMessage `json:"cmetadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeErr(w, http.StatusUnprocessableEntity, errors.New("name is required"))
		return
	}
	if len(req.CMetadata) == 0 || string(req.CMetadata) == "null" {
		s.writeErr(w, http.StatusUnprocessableEntity, errors.New("cmetadata is required"))
		return
	}
	var meta map[string]any
	if err := json.Unmarshal(req.CMetadata, &meta); err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, fmt.Errorf("cmetadata must be an object: %w", err))
		return
	}
	col, err := s.deps.Collections.Create(r.Context(), req.Name, meta)
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}
	total, err := s.deps.Collections.Count(r.Context())
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	win := pagination.Paginate(total, page, size, s.listURL("collection/list"))
	cols, err := s.deps.Collections.List(r.Context(), win.Offset, win.Size)
	if err != nil {
		s.writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, models.CollectionListModel{Collections: cols, Links: win.Links, Meta: win.Meta})
}

// handleGetCollection accepts either the collection uuid or its name.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")
	var (
		col models.Collection
		err error
	)
	if uuid.Validate(key) == nil {
		col, err = s.deps.Collections.GetByID(r.Context(), key)
	} else {
		col, err = s.deps.Collections.GetByName(r.Context(), key)
	}
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	if withDocs, _ := strconv.ParseBool(r.URL.Query().Get("with_documents")); withDocs {
		names, err := s.deps.Documents.FileNamesInCollection(r.Context(), col.Name)
		if err != nil {
			s.writeErr(w, http.StatusInternalServerError, err)
			return
		}
		col.Documents = names
	}
	writeJSON(w, http.StatusOK, col)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, http.StatusUnprocessableEntity, fmt.Errorf("invalid json: %w", err))
		return
	}
	resp, err := s.deps.Chat.Answer(r.Context(), req)
	if err != nil {
		s.writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listURL(path string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + path
}

func pageParams(r *http.Request) (int, int, error) {
	page, size := pagination.DefaultPage, pagination.DefaultSize
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("page must be an integer: %q", v)
		}
		page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > pagination.MaxSize {
			return 0, 0, fmt.Errorf("size must be an integer between 1 and %d: %q", pagination.MaxSize, v)
		}
		size = n
	}
	return page, size, nil
}

// decodeOptionalJSON leaves v at its zero value when the body is empty.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("invalid json: %w", err)
}
