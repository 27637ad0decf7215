package activities

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"oairag/internal/config"
	"oairag/internal/models"
	"oairag/internal/providers"
	"oairag/internal/storage"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap/zaptest"
)

type fakeDocs struct {
	mu     sync.Mutex
	docs   map[string]models.Document
	errors map[string]string
}

func (f *fakeDocs) Get(_ context.Context, id string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[id], nil
}

func (f *fakeDocs) MarkError(_ context.Context, id, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, done := f.errors[id]; done {
		return false, nil
	}
	f.errors[id] = reason
	return true, nil
}

type fakeCollections struct{}

func (fakeCollections) GetOrCreate(_ context.Context, name string) (models.Collection, error) {
	return models.Collection{UUID: "col-" + name, Name: name}, nil
}

type fakeChunks struct {
	docs    *fakeDocs
	written []models.Chunk
}

func (f *fakeChunks) CompleteIngest(_ context.Context, documentID string, col models.Collection, chunks []models.Chunk) ([]string, error) {
	f.written = chunks
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = documentID + "-" + string(rune('a'+i))
	}
	f.docs.mu.Lock()
	defer f.docs.mu.Unlock()
	d := f.docs.docs[documentID]
	if d.ProcessStatus != models.StatusPending {
		return nil, storage.ErrNotPending
	}
	d.ProcessStatus = models.StatusComplete
	d.ProcessDescription = ""
	d.CollectionName = col.Name
	d.Vectors = ids
	f.docs.docs[documentID] = d
	return ids, nil
}

type staticEmbedders struct{ p providers.EmbeddingProvider }

func (s staticEmbedders) EmbedProviderByIndex(int) (providers.EmbeddingProvider, providers.ProviderRef) {
	return s.p, providers.ProviderRef{}
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(_ context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	if strings.Contains(req.Inputs[0], "poison") {
		return nil, providers.ProviderInfo{}, errors.New("503 temporarily unavailable")
	}
	out := make([][]float32, len(req.Inputs))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, providers.ProviderInfo{Name: "stub"}, nil
}

type recordingAudit struct{ recs []storage.LLMCallRecord }

func (n *recordingAudit) Insert(_ context.Context, rec storage.LLMCallRecord) error {
	n.recs = append(n.recs, rec)
	return nil
}

func newTestActivities(t *testing.T, embed providers.EmbeddingProvider) (*Activities, *fakeDocs, *fakeChunks) {
	cfg := config.Load()
	cfg.DataInRoot = t.TempDir()
	cfg.ChunkStrategy = "fixed"
	cfg.ChunkSize = 20
	cfg.ChunkOverlap = 5
	cfg.EmbedBatch = 2
	cfg.EmbedDim = 8
	docs := &fakeDocs{docs: map[string]models.Document{}, errors: map[string]string{}}
	chunks := &fakeChunks{docs: docs}
	return &Activities{
		cfg:         cfg,
		docs:        docs,
		collections: fakeCollections{},
		chunks:      chunks,
		audit:       &recordingAudit{},
		embedders:   staticEmbedders{p: embed},
		client:      http.DefaultClient,
		log:         zaptest.NewLogger(t),
	}, docs, chunks
}

func stage(t *testing.T, a *Activities, docID, name, body string) string {
	path := filepath.Join(a.cfg.DataInRoot, docID, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestIngestActivitiesEndToEnd(t *testing.T) {
	a, docs, chunks := newTestActivities(t, providers.NewMockProvider(8))
	ctx := context.Background()
	docs.docs["doc1"] = models.Document{ID: "doc1", FileName: "notes.txt", ProcessStatus: models.StatusPending}
	path := stage(t, a, "doc1", "notes.txt", strings.Repeat("lorem ipsum dolor sit amet ", 6))

	ext, err := a.ExtractTextActivity(ctx, ExtractTextInput{DocumentID: "doc1", FileName: "notes.txt", FilePath: path})
	require.NoError(t, err)
	require.Equal(t, 1, ext.Pages)
	require.False(t, ext.Paged)

	ch, err := a.ChunkTextActivity(ctx, ChunkTextInput{DocumentID: "doc1", FileName: "notes.txt", PagesPath: ext.PagesPath, Paged: ext.Paged})
	require.NoError(t, err)
	require.Greater(t, ch.Count, 2)

	emb, err := a.EmbedChunksActivity(ctx, EmbedChunksInput{Operation: "embed", DocumentID: "doc1", ChunksPath: ch.ChunksPath})
	require.NoError(t, err)
	require.Equal(t, "mock", emb.ProviderName)

	out, err := a.WriteVectorsActivity(ctx, WriteVectorsInput{DocumentID: "doc1", CollectionName: "papers", ChunksPath: ch.ChunksPath, VectorsPath: emb.VectorsPath})
	require.NoError(t, err)
	require.Len(t, out.Vectors, ch.Count)
	require.Len(t, chunks.written, ch.Count)
	for i, c := range chunks.written {
		require.Equal(t, i, c.ChunkIndex)
		require.Equal(t, "col-papers", c.CollectionID)
		require.Equal(t, "notes.txt", c.Metadata.DocumentName)
		require.Nil(t, c.Metadata.Page)
		require.NotNil(t, c.Metadata.PageOffset)
		require.Len(t, c.Embedding, 8)
	}
	done := docs.docs["doc1"]
	require.Equal(t, models.StatusComplete, done.ProcessStatus)
	require.Empty(t, done.ProcessDescription)
	require.Equal(t, out.Vectors, done.Vectors)

	require.NoError(t, a.CleanupStagingActivity(ctx, CleanupStagingInput{DocumentID: "doc1"}))
	_, err = os.Stat(filepath.Join(a.cfg.DataInRoot, "doc1"))
	require.True(t, os.IsNotExist(err))
}

func TestExtractTextActivityNoTextIsFinal(t *testing.T) {
	a, _, _ := newTestActivities(t, providers.NewMockProvider(8))
	path := stage(t, a, "doc2", "blank.txt", " \n\t ")

	_, err := a.ExtractTextActivity(context.Background(), ExtractTextInput{DocumentID: "doc2", FileName: "blank.txt", FilePath: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no extractable text")
}

func TestEmbedChunksActivityAllOrNothing(t *testing.T) {
	a, _, _ := newTestActivities(t, &failingEmbedder{})
	items := []ChunkItem{{Text: "ok one"}, {Text: "ok two"}, {Text: "poison"}, {Text: "ok three"}}
	path := filepath.Join(a.cfg.DataInRoot, "doc3", chunksFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	b, _ := json.Marshal(items)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err := a.EmbedChunksActivity(context.Background(), EmbedChunksInput{Operation: "embed", DocumentID: "doc3", ChunksPath: path})
	require.ErrorContains(t, err, "temporarily unavailable")
	_, statErr := os.Stat(filepath.Join(a.cfg.DataInRoot, "doc3", vectorsFile))
	require.True(t, os.IsNotExist(statErr))
}

func TestSendCallbackActivityPostsDocument(t *testing.T) {
	a, docs, _ := newTestActivities(t, providers.NewMockProvider(8))
	docs.docs["doc4"] = models.Document{ID: "doc4", FileName: "a.txt", ProcessStatus: models.StatusComplete, Vectors: []string{"v1"}}

	var got models.Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, a.SendCallbackActivity(context.Background(), SendCallbackInput{URL: srv.URL, DocumentID: "doc4"}))
	require.Equal(t, "doc4", got.ID)
	require.Equal(t, models.StatusComplete, got.ProcessStatus)
}

func TestSendCallbackActivityReportsRejection(t *testing.T) {
	a, docs, _ := newTestActivities(t, providers.NewMockProvider(8))
	docs.docs["doc5"] = models.Document{ID: "doc5"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := a.SendCallbackActivity(context.Background(), SendCallbackInput{URL: srv.URL, DocumentID: "doc5"})
	require.ErrorContains(t, err, "502")
}

func TestMarkDocumentErrorActivityIsIdempotent(t *testing.T) {
	a, docs, _ := newTestActivities(t, providers.NewMockProvider(8))
	ctx := context.Background()
	require.NoError(t, a.MarkDocumentErrorActivity(ctx, MarkDocumentErrorInput{DocumentID: "d", Reason: "first"}))
	require.NoError(t, a.MarkDocumentErrorActivity(ctx, MarkDocumentErrorInput{DocumentID: "d", Reason: "second"}))
	require.Equal(t, "first", docs.errors["d"])
}

func TestWriteVectorsActivityDeletedDocumentIsFinal(t *testing.T) {
	a, _, _ := newTestActivities(t, providers.NewMockProvider(8))
	ctx := context.Background()
	path := stage(t, a, "gone", "notes.txt", "short text that still chunks")
	ext, err := a.ExtractTextActivity(ctx, ExtractTextInput{DocumentID: "gone", FileName: "notes.txt", FilePath: path})
	require.NoError(t, err)
	ch, err := a.ChunkTextActivity(ctx, ChunkTextInput{DocumentID: "gone", FileName: "notes.txt", PagesPath: ext.PagesPath})
	require.NoError(t, err)
	emb, err := a.EmbedChunksActivity(ctx, EmbedChunksInput{Operation: "embed", DocumentID: "gone", ChunksPath: ch.ChunksPath})
	require.NoError(t, err)

	_, err = a.WriteVectorsActivity(ctx, WriteVectorsInput{DocumentID: "gone", CollectionName: "papers", ChunksPath: ch.ChunksPath, VectorsPath: emb.VectorsPath})
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	require.True(t, appErr.NonRetryable())
}
