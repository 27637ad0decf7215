// Package rag answers questions against a collection by retrieving chunks and
// grounding a completion on them.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"oairag/internal/config"
	"oairag/internal/models"
	"oairag/internal/providers"
	"oairag/internal/storage"
	"oairag/internal/util"
	"oairag/internal/vector"

	"go.uber.org/zap"
)

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

type CollectionLookup interface {
	GetByName(ctx context.Context, name string) (models.Collection, error)
}

type ChunkSearcher interface {
	SearchChunks(ctx context.Context, collectionID string, queryVec []float32, topK int, filters vector.SearchFilters) ([]models.ChunkResult, error)
}

type CallAuditor interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type Engine struct {
	cfg         config.Config
	collections CollectionLookup
	searcher    ChunkSearcher
	embedder    providers.EmbeddingProvider
	llm         providers.LLMProvider
	audit       CallAuditor
	log         *zap.Logger
}

func NewEngine(cfg config.Config, collections CollectionLookup, searcher ChunkSearcher, embedder providers.EmbeddingProvider, llm providers.LLMProvider, audit CallAuditor, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = 60 * time.Second
	}
	return &Engine{
		cfg:         cfg,
		collections: collections,
		searcher:    searcher,
		embedder:    embedder,
		llm:         llm,
		audit:       audit,
		log:         log,
	}
}

// Answer runs one retrieval-augmented completion. Capability failures come back
// wrapped in util.ErrDependency and are not retried.
func (e *Engine) Answer(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	if err := ValidateChatRequest(req); err != nil {
		return models.ChatResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CompletionTimeout)
	defer cancel()

	col, err := e.collections.GetByName(ctx, req.CollectionName)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("resolve collection %q: %w", req.CollectionName, err)
	}

	vecs, _, err := e.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "chat_query",
		Inputs:    []string{req.Query},
		Dimension: e.cfg.EmbedDim,
	})
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("embed query: %w: %w", util.ErrDependency, err)
	}
	if len(vecs) != 1 {
		return models.ChatResponse{}, fmt.Errorf("embed query: %w: got %d vectors", util.ErrDependency, len(vecs))
	}

	var filters vector.SearchFilters
	if req.Filter != nil {
		filters.DocumentName = req.Filter.DocumentName
	}
	hits, err := e.searcher.SearchChunks(ctx, col.UUID, vecs[0], e.cfg.TopK, filters)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("similarity search: %w: %w", util.ErrDependency, err)
	}
	if len(hits) == 0 {
		e.log.Info("no matching chunks, answering without context",
			zap.String("collection", col.Name))
	}

	resp, info, err := e.llm.Generate(ctx, providers.GenerateRequest{
		Operation: "chat",
		Prompt:    BuildPrompt(req.Query, hits),
		Options:   ResolveOptions(e.cfg.LLM, req.LLM),
	})
	e.record(ctx, col.Name, info, resp.Usage, err)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("completion: %w: %w", util.ErrDependency, err)
	}

	out := models.ChatResponse{Result: resp.Text}
	if req.WantCitations() {
		out.Citations = Citations(hits)
	}
	if req.IncludeUsage {
		out.Usage = &models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		}
	}
	return out, nil
}

func (e *Engine) record(ctx context.Context, collection string, info providers.ProviderInfo, usage providers.Usage, callErr error) {
	if e.audit == nil {
		return
	}
	rec := storage.LLMCallRecord{
		Operation:        "chat",
		CollectionName:   collection,
		ProviderName:     info.Name,
		Model:            info.Model,
		Status:           "ok",
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if callErr != nil {
		rec.Status = "failed"
		rec.ErrorType = string(providers.ClassifyError(callErr))
	}
	if rec.ProviderName == "" {
		rec.ProviderName = "unknown"
	}
	if err := e.audit.Insert(context.WithoutCancel(ctx), rec); err != nil {
		e.log.Warn("record llm call", zap.Error(err))
	}
}

// BuildPrompt joins the retrieved chunks, in ranking order, into the answer template.
func BuildPrompt(query string, hits []models.ChunkResult) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), query)
}

// Citations projects each hit's metadata; fields the chunk lacks stay nil.
func Citations(hits []models.ChunkResult) []models.Citation {
	out := make([]models.Citation, 0, len(hits))
	for _, h := range hits {
		c := models.Citation{Page: h.Metadata.Page, PageOffset: h.Metadata.PageOffset}
		if h.Text != "" {
			text := h.Text
			c.Content = &text
		}
		if h.Metadata.DocumentName != "" {
			name := h.Metadata.DocumentName
			c.Document = &name
		}
		out = append(out, c)
	}
	return out
}

// ResolveOptions overlays per-request overrides on the configured defaults, field by field.
func ResolveOptions(d config.LLMDefaults, o *models.LLMConfig) providers.GenerateOptions {
	opts := providers.GenerateOptions{
		Model:            d.Model,
		Temperature:      d.Temperature,
		TopP:             d.TopP,
		MaxTokens:        d.MaxTokens,
		PresencePenalty:  d.PresencePenalty,
		FrequencyPenalty: d.FrequencyPenalty,
		LogitBias:        d.LogitBias,
	}
	if o == nil {
		return opts
	}
	if o.Model != nil {
		opts.Model = *o.Model
	}
	if o.Temperature != nil {
		opts.Temperature = *o.Temperature
	}
	if o.TopP != nil {
		opts.TopP = *o.TopP
	}
	if o.MaxTokens != nil {
		opts.MaxTokens = *o.MaxTokens
	}
	if o.PresencePenalty != nil {
		opts.PresencePenalty = *o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		opts.FrequencyPenalty = *o.FrequencyPenalty
	}
	if o.LogitBias != nil {
		opts.LogitBias = o.LogitBias
	}
	return opts
}

func ValidateChatRequest(req models.ChatRequest) error {
	if strings.TrimSpace(req.CollectionName) == "" {
		return fmt.Errorf("collection_name is required: %w", util.ErrValidation)
	}
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query is required: %w", util.ErrValidation)
	}
	if req.Filter != nil && strings.TrimSpace(req.Filter.DocumentName) == "" {
		return fmt.Errorf("filter.document_name is required when filter is set: %w", util.ErrValidation)
	}
	return ValidateLLMConfig(req.LLM)
}

func ValidateLLMConfig(o *models.LLMConfig) error {
	if o == nil {
		return nil
	}
	check := func(name string, v *float64, lo, hi float64) error {
		if v != nil && (*v < lo || *v > hi) {
			return fmt.Errorf("%s must be within [%g, %g]: %w", name, lo, hi, util.ErrValidation)
		}
		return nil
	}
	if err := check("temperature", o.Temperature, 0, 2); err != nil {
		return err
	}
	if err := check("top_p", o.TopP, 0, 1); err != nil {
		return err
	}
	if err := check("presence_penalty", o.PresencePenalty, -2, 2); err != nil {
		return err
	}
	if err := check("frequency_penalty", o.FrequencyPenalty, -2, 2); err != nil {
		return err
	}
	if o.MaxTokens != nil && *o.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0: %w", util.ErrValidation)
	}
	if o.Model != nil && strings.TrimSpace(*o.Model) == "" {
		return fmt.Errorf("model must not be empty: %w", util.ErrValidation)
	}
	return nil
}
