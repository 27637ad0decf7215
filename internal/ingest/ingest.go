// Package ingest accepts uploads and hands them to the background pipeline.
package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"oairag/internal/config"
	"oairag/internal/extract"
	"oairag/internal/models"
	"oairag/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job is everything the pipeline needs to finish a pending document.
type Job struct {
	DocumentID     string `json:"document_id"`
	FileName       string `json:"file_name"`
	FilePath       string `json:"file_path"`
	Mime           string `json:"mime,omitempty"`
	CollectionName string `json:"collection_name"`
	CallbackURL    string `json:"callback_url,omitempty"`
}

type Upload struct {
	FileName       string
	Mime           string
	Data           []byte
	CollectionName string
	CallbackURL    string
}

type DocumentStore interface {
	Create(ctx context.Context, d models.Document) error
	MarkError(ctx context.Context, id, reason string) (bool, error)
}

type CollectionStore interface {
	GetOrCreate(ctx context.Context, name string) (models.Collection, error)
}

type Dispatcher interface {
	StartIngest(ctx context.Context, job Job) error
}

type Submitter struct {
	cfg         config.Config
	docs        DocumentStore
	collections CollectionStore
	dispatch    Dispatcher
	log         *zap.Logger
}

func NewSubmitter(cfg config.Config, docs DocumentStore, collections CollectionStore, dispatch Dispatcher, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{cfg: cfg, docs: docs, collections: collections, dispatch: dispatch, log: log}
}

// Submit creates the pending document, stages the bytes and schedules the pipeline.
// The returned document is always pending; the outcome arrives later.
func (s *Submitter) Submit(ctx context.Context, up Upload) (models.Document, error) {
	name := filepath.Base(strings.TrimSpace(up.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return models.Document{}, fmt.Errorf("file name is required: %w", util.ErrValidation)
	}
	if len(up.Data) == 0 {
		return models.Document{}, fmt.Errorf("file %s is empty: %w", name, util.ErrValidation)
	}
	if !extract.Supported(name, up.Mime) {
		return models.Document{}, fmt.Errorf("file %s: %w: %w", name, util.ErrValidation, util.ErrUnsupportedFormat)
	}
	if err := validateCallback(up.CallbackURL); err != nil {
		return models.Document{}, err
	}
	collection := strings.TrimSpace(up.CollectionName)
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}

	doc := models.Document{
		ID:            uuid.NewString(),
		FileName:      name,
		ProcessStatus: models.StatusPending,
		ContentHash:   util.SHA256Hex(up.Data),
		Vectors:       []string{},
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return models.Document{}, err
	}
	log := s.log.With(zap.String("document_id", doc.ID), zap.String("file_name", name))

	if _, err := s.collections.GetOrCreate(ctx, collection); err != nil {
		return models.Document{}, s.abort(ctx, log, doc.ID, "resolve collection", err)
	}
	path := util.SafeJoin(filepath.Join(s.cfg.DataInRoot, doc.ID), name)
	if err := util.WriteFileAtomic(path, up.Data); err != nil {
		return models.Document{}, s.abort(ctx, log, doc.ID, "stage upload", err)
	}
	job := Job{
		DocumentID:     doc.ID,
		FileName:       name,
		FilePath:       path,
		Mime:           up.Mime,
		CollectionName: collection,
		CallbackURL:    up.CallbackURL,
	}
	if err := s.dispatch.StartIngest(ctx, job); err != nil {
		return models.Document{}, s.abort(ctx, log, doc.ID, "schedule ingestion", err)
	}
	log.Info("document accepted", zap.String("collection", collection))
	return doc, nil
}

// abort records the failure on the already-created row so it never stays pending,
// and drops anything already staged for it.
func (s *Submitter) abort(ctx context.Context, log *zap.Logger, id, step string, cause error) error {
	if err := os.RemoveAll(filepath.Join(s.cfg.DataInRoot, id)); err != nil {
		log.Warn("remove staged upload", zap.Error(err))
	}
	if _, err := s.docs.MarkError(context.WithoutCancel(ctx), id, step+": "+cause.Error()); err != nil {
		log.Error("mark document error", zap.String("step", step), zap.Error(err))
	}
	log.Error("upload aborted", zap.String("step", step), zap.Error(cause))
	return fmt.Errorf("%s: %w: %w", step, util.ErrDependency, cause)
}

func validateCallback(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("callback_url %q must be an absolute http(s) URL: %w", raw, util.ErrValidation)
	}
	return nil
}
