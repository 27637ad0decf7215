// Package summary generates and caches per-document summaries.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oairag/internal/config"
	"oairag/internal/models"
	"oairag/internal/providers"
	"oairag/internal/rag"
	"oairag/internal/storage"
	"oairag/internal/util"

	"go.uber.org/zap"
)

// ErrNotReady is returned for documents without stored chunks. It reads as not found.
var ErrNotReady = fmt.Errorf("document has no stored chunks: %w", util.ErrNotFound)

const (
	initialPrompt = "Write a concise summary of the following:\n\n\n\"%s\"\n\n\nCONCISE SUMMARY:"
	refinePrompt  = `Your job is to produce a final summary.
We have provided an existing summary up to a certain point: %s
We have the opportunity to refine the existing summary (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original summary.
If the context isn't useful, return the original summary.`
)

type DocumentStore interface {
	Get(ctx context.Context, id string) (models.Document, error)
	SetSummary(ctx context.Context, id, summary string) error
}

type ChunkReader interface {
	TextsByDocument(ctx context.Context, documentID string) ([]string, error)
}

type Dispatcher interface {
	StartSummary(ctx context.Context, documentID string) error
}

type Service struct {
	cfg      config.Config
	docs     DocumentStore
	chunks   ChunkReader
	llm      providers.LLMProvider
	audit    rag.CallAuditor
	dispatch Dispatcher
	log      *zap.Logger
}

func NewService(cfg config.Config, docs DocumentStore, chunks ChunkReader, llm providers.LLMProvider, audit rag.CallAuditor, dispatch Dispatcher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 60 * time.Second
	}
	return &Service{cfg: cfg, docs: docs, chunks: chunks, llm: llm, audit: audit, dispatch: dispatch, log: log}
}

// Summarize serves the cached summary unless regenerate is set. With synchronous unset
// and no cache hit, the work is dispatched and deferred is true.
func (s *Service) Summarize(ctx context.Context, documentID string, req models.SummaryRequest) (resp models.SummaryResponse, deferred bool, err error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return models.SummaryResponse{}, false, err
	}
	if doc.ProcessStatus != models.StatusComplete {
		return models.SummaryResponse{}, false, fmt.Errorf("summarize %s (%s): %w", documentID, doc.ProcessStatus, ErrNotReady)
	}
	if doc.Summary != "" && !req.Regenerate {
		return models.SummaryResponse{DocumentID: doc.ID, FileName: doc.FileName, Summary: doc.Summary}, false, nil
	}
	if !req.Synchronous {
		if s.dispatch == nil {
			return models.SummaryResponse{}, false, errors.New("summary dispatcher not configured")
		}
		if err := s.dispatch.StartSummary(ctx, documentID); err != nil {
			return models.SummaryResponse{}, false, fmt.Errorf("dispatch summary: %w", err)
		}
		return models.SummaryResponse{}, true, nil
	}
	text, err := s.generate(ctx, doc)
	if err != nil {
		return models.SummaryResponse{}, false, err
	}
	return models.SummaryResponse{DocumentID: doc.ID, FileName: doc.FileName, Summary: text}, false, nil
}

// Regenerate always produces and stores a fresh summary. Deferred work calls this.
func (s *Service) Regenerate(ctx context.Context, documentID string) (models.SummaryResponse, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return models.SummaryResponse{}, err
	}
	if doc.ProcessStatus != models.StatusComplete {
		return models.SummaryResponse{}, fmt.Errorf("summarize %s (%s): %w", documentID, doc.ProcessStatus, ErrNotReady)
	}
	text, err := s.generate(ctx, doc)
	if err != nil {
		return models.SummaryResponse{}, err
	}
	return models.SummaryResponse{DocumentID: doc.ID, FileName: doc.FileName, Summary: text}, nil
}

// generate refines a running summary over the document's chunks in order.
func (s *Service) generate(ctx context.Context, doc models.Document) (string, error) {
	texts, err := s.chunks.TextsByDocument(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("load chunks: %w", err)
	}
	if len(texts) == 0 {
		return "", fmt.Errorf("summarize %s: %w", doc.ID, ErrNotReady)
	}
	opts := rag.ResolveOptions(s.cfg.LLM, nil)
	current := ""
	for i, text := range texts {
		prompt := fmt.Sprintf(initialPrompt, text)
		if i > 0 {
			prompt = fmt.Sprintf(refinePrompt, current, text)
		}
		out, err := s.complete(ctx, doc.ID, prompt, opts)
		if err != nil {
			return "", fmt.Errorf("summarize chunk %d: %w: %w", i, util.ErrDependency, err)
		}
		current = out
	}
	if err := s.docs.SetSummary(ctx, doc.ID, current); err != nil {
		return "", err
	}
	s.log.Info("summary stored", zap.String("document_id", doc.ID), zap.Int("chunks", len(texts)))
	return current, nil
}

func (s *Service) complete(ctx context.Context, documentID, prompt string, opts providers.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()
	resp, info, err := s.llm.Generate(ctx, providers.GenerateRequest{Operation: "summary", Prompt: prompt, Options: opts})
	if s.audit != nil {
		rec := storage.LLMCallRecord{
			Operation:        "summary",
			DocumentID:       documentID,
			ProviderName:     info.Name,
			Model:            info.Model,
			Status:           "ok",
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
		if err != nil {
			rec.Status = "failed"
			rec.ErrorType = string(providers.ClassifyError(err))
		}
		if rec.ProviderName == "" {
			rec.ProviderName = "unknown"
		}
		if aerr := s.audit.Insert(context.WithoutCancel(ctx), rec); aerr != nil {
			s.log.Warn("record llm call", zap.Error(aerr))
		}
	}
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
