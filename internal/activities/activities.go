package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"oairag/internal/chunker"
	"oairag/internal/config"
	"oairag/internal/extract"
	"oairag/internal/models"
	"oairag/internal/providers"
	"oairag/internal/storage"
	"oairag/internal/summary"
	"oairag/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const embedParallelism = 4

type documentStore interface {
	Get(ctx context.Context, id string) (models.Document, error)
	MarkError(ctx context.Context, id, reason string) (bool, error)
}

type collectionStore interface {
	GetOrCreate(ctx context.Context, name string) (models.Collection, error)
}

type chunkWriter interface {
	CompleteIngest(ctx context.Context, documentID string, collection models.Collection, chunks []models.Chunk) ([]string, error)
}

type callAuditor interface {
	Insert(ctx context.Context, rec storage.LLMCallRecord) error
}

type embedderSource interface {
	EmbedProviderByIndex(i int) (providers.EmbeddingProvider, providers.ProviderRef)
}

type summaryGenerator interface {
	Regenerate(ctx context.Context, documentID string) (models.SummaryResponse, error)
}

type Activities struct {
	cfg         config.Config
	docs        documentStore
	collections collectionStore
	chunks      chunkWriter
	audit       callAuditor
	embedders   embedderSource
	summaries   summaryGenerator
	client      *http.Client
	log         *zap.Logger
}

func New(cfg config.Config, db *storage.DB, log *zap.Logger) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	docs := storage.NewDocumentRepo(db)
	chunks := storage.NewChunkRepo(db)
	audit := storage.NewLLMAuditRepo(db)
	return &Activities{
		cfg:         cfg,
		docs:        docs,
		collections: storage.NewCollectionRepo(db),
		chunks:      chunks,
		audit:       audit,
		embedders:   pm,
		summaries:   summary.NewService(cfg, docs, chunks, pm.PrimaryLLM(), audit, nil, log),
		client:      &http.Client{Timeout: cfg.CallbackTimeout},
		log:         log,
	}, nil
}

func (a *Activities) stagingPath(documentID, name string) string {
	return filepath.Join(a.cfg.DataInRoot, documentID, name)
}

// ExtractTextActivity reads the staged upload and writes its pages next to it.
// Unreadable or empty documents fail without retry.
func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	data, err := os.ReadFile(in.FilePath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read staged upload: %w", err)
	}
	pages, err := extract.Text(data, in.FileName, in.Mime)
	if err != nil {
		if errors.Is(err, util.ErrNoExtractableText) || errors.Is(err, util.ErrUnsupportedFormat) {
			return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "extract", err)
		}
		return ExtractTextOutput{}, fmt.Errorf("extract text: %w", err)
	}
	out := make([]PageText, 0, len(pages))
	for _, p := range pages {
		out = append(out, PageText{Number: p.Number, Text: p.Text})
	}
	path := a.stagingPath(in.DocumentID, pagesFile)
	if err := util.WriteJSONAtomic(path, out); err != nil {
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{PagesPath: path, Pages: len(out), Paged: extract.Paged(in.FileName, in.Mime)}, nil
}

// ChunkTextActivity splits every page and tags each chunk with where it came from.
func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	var pages []PageText
	if err := util.ReadJSON(in.PagesPath, &pages); err != nil {
		return ChunkTextOutput{}, err
	}
	splitter, err := chunker.New(a.cfg.ChunkStrategy, a.cfg.ChunkSize, a.cfg.ChunkOverlap)
	if err != nil {
		return ChunkTextOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "chunk", err)
	}
	items := make([]ChunkItem, 0, len(pages)*2)
	for _, p := range pages {
		segments, err := splitter.Split(p.Text)
		if err != nil {
			return ChunkTextOutput{}, fmt.Errorf("split page %d: %w", p.Number, err)
		}
		for _, s := range segments {
			meta := models.ChunkMetadata{DocumentName: in.FileName, PageOffset: intPtr(s.Offset)}
			if in.Paged {
				meta.Page = intPtr(p.Number)
			}
			items = append(items, ChunkItem{ChunkIndex: len(items), Text: s.Text, Metadata: meta})
		}
	}
	if len(items) == 0 {
		return ChunkTextOutput{}, temporal.NewNonRetryableApplicationError(util.ErrNoExtractableText.Error(), "chunk", util.ErrNoExtractableText)
	}
	path := a.stagingPath(in.DocumentID, chunksFile)
	if err := util.WriteJSONAtomic(path, items); err != nil {
		return ChunkTextOutput{}, err
	}
	return ChunkTextOutput{ChunksPath: path, Count: len(items)}, nil
}

// EmbedChunksActivity embeds in batches against one provider. Any failed batch fails
// the whole call, so no partial vector set is ever staged.
func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	var items []ChunkItem
	if err := util.ReadJSON(in.ChunksPath, &items); err != nil {
		return EmbedChunksOutput{}, err
	}
	provider, _ := a.embedders.EmbedProviderByIndex(in.ProviderIndex)
	batch := a.cfg.EmbedBatch
	if batch <= 0 {
		batch = 16
	}

	vectors := make([][]float32, len(items))
	infos := make([]providers.ProviderInfo, (len(items)+batch-1)/batch)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for start := 0; start < len(items); start += batch {
		end := min(start+batch, len(items))
		g.Go(func() error {
			inputs := make([]string, 0, end-start)
			for _, it := range items[start:end] {
				inputs = append(inputs, it.Text)
			}
			callCtx := gctx
			if a.cfg.EmbedTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, a.cfg.EmbedTimeout)
				defer cancel()
			}
			out, info, err := provider.Embed(callCtx, providers.EmbedRequest{
				Operation: in.Operation,
				Inputs:    inputs,
				Dimension: a.cfg.EmbedDim,
			})
			if err != nil {
				return fmt.Errorf("embed batch at %d: %w", start, err)
			}
			if len(out) != len(inputs) {
				return fmt.Errorf("embed batch at %d: got %d vectors for %d inputs", start, len(out), len(inputs))
			}
			copy(vectors[start:end], out)
			infos[start/batch] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EmbedChunksOutput{}, err
	}
	path := a.stagingPath(in.DocumentID, vectorsFile)
	if err := util.WriteJSONAtomic(path, vectors); err != nil {
		return EmbedChunksOutput{}, err
	}
	var info providers.ProviderInfo
	if len(infos) > 0 {
		info = infos[0]
	}
	return EmbedChunksOutput{VectorsPath: path, ProviderName: info.Name, Model: info.Model}, nil
}

// WriteVectorsActivity stores chunks with their vectors and completes the document.
func (a *Activities) WriteVectorsActivity(ctx context.Context, in WriteVectorsInput) (WriteVectorsOutput, error) {
	var items []ChunkItem
	if err := util.ReadJSON(in.ChunksPath, &items); err != nil {
		return WriteVectorsOutput{}, err
	}
	var vectors [][]float32
	if err := util.ReadJSON(in.VectorsPath, &vectors); err != nil {
		return WriteVectorsOutput{}, err
	}
	if len(vectors) != len(items) {
		err := fmt.Errorf("have %d vectors for %d chunks", len(vectors), len(items))
		return WriteVectorsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "write_vectors", err)
	}
	col, err := a.collections.GetOrCreate(ctx, in.CollectionName)
	if err != nil {
		return WriteVectorsOutput{}, err
	}
	chunks := make([]models.Chunk, 0, len(items))
	for i, it := range items {
		chunks = append(chunks, models.Chunk{
			DocumentID:   in.DocumentID,
			CollectionID: col.UUID,
			ChunkIndex:   it.ChunkIndex,
			Text:         it.Text,
			Metadata:     it.Metadata,
			Embedding:    vectors[i],
		})
	}
	ids, err := a.chunks.CompleteIngest(ctx, in.DocumentID, col, chunks)
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return WriteVectorsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "write_vectors", err)
		}
		return WriteVectorsOutput{}, err
	}
	return WriteVectorsOutput{Vectors: ids}, nil
}

func (a *Activities) MarkDocumentErrorActivity(ctx context.Context, in MarkDocumentErrorInput) error {
	changed, err := a.docs.MarkError(ctx, in.DocumentID, in.Reason)
	if err != nil {
		return err
	}
	if !changed {
		a.log.Info("document already terminal", zap.String("document_id", in.DocumentID))
	}
	return nil
}

// SendCallbackActivity posts the document as it now stands. Delivery is attempted once.
func (a *Activities) SendCallbackActivity(ctx context.Context, in SendCallbackInput) error {
	doc, err := a.docs.Get(ctx, in.DocumentID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn("callback delivery failed", zap.String("document_id", in.DocumentID), zap.Error(err))
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.log.Warn("callback rejected", zap.String("document_id", in.DocumentID), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

// CleanupStagingActivity drops the staged upload and intermediate artifacts.
func (a *Activities) CleanupStagingActivity(ctx context.Context, in CleanupStagingInput) error {
	_ = ctx
	if in.DocumentID == "" {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(a.cfg.DataInRoot, filepath.Base(in.DocumentID))); err != nil {
		return fmt.Errorf("remove staging dir: %w", err)
	}
	return nil
}

func (a *Activities) GenerateSummaryActivity(ctx context.Context, in GenerateSummaryInput) (models.SummaryResponse, error) {
	resp, err := a.summaries.Regenerate(ctx, in.DocumentID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return models.SummaryResponse{}, temporal.NewNonRetryableApplicationError(err.Error(), "summary", err)
		}
		return models.SummaryResponse{}, err
	}
	return resp, nil
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	return a.audit.Insert(ctx, storage.LLMCallRecord{
		Operation:      in.Operation,
		DocumentID:     in.DocumentID,
		CollectionName: in.CollectionName,
		ProviderName:   in.ProviderName,
		Model:          in.Model,
		Status:         in.Status,
		ErrorType:      in.ErrorType,
	})
}

func intPtr(v int) *int { return &v }
