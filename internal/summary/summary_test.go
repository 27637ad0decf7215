package summary

import (
	"context"
	"errors"
	"testing"

	"oairag/internal/config"
	"oairag/internal/models"
	"oairag/internal/providers"
	"oairag/internal/util"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memDocs struct {
	docs map[string]models.Document
}

func (m *memDocs) Get(_ context.Context, id string) (models.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return models.Document{}, util.ErrNotFound
	}
	return d, nil
}

func (m *memDocs) SetSummary(_ context.Context, id, summary string) error {
	d := m.docs[id]
	d.Summary = summary
	m.docs[id] = d
	return nil
}

type memChunks map[string][]string

func (m memChunks) TextsByDocument(_ context.Context, id string) ([]string, error) {
	return m[id], nil
}

type countingLLM struct {
	calls   int
	prompts []string
	err     error
}

func (c *countingLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	c.calls++
	c.prompts = append(c.prompts, req.Prompt)
	if c.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{Name: "stub"}, c.err
	}
	return providers.GenerateResponse{Text: "summary v" + string(rune('0'+c.calls))}, providers.ProviderInfo{Name: "stub"}, nil
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) StartSummary(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func fixture() (*memDocs, memChunks) {
	docs := &memDocs{docs: map[string]models.Document{
		"cached":  {ID: "cached", FileName: "c.pdf", ProcessStatus: models.StatusComplete, Summary: "old summary"},
		"fresh":   {ID: "fresh", FileName: "f.pdf", ProcessStatus: models.StatusComplete},
		"pending": {ID: "pending", FileName: "p.pdf", ProcessStatus: models.StatusPending},
		"failed":  {ID: "failed", FileName: "x.pdf", ProcessStatus: models.StatusError},
	}}
	chunks := memChunks{"cached": {"a", "b"}, "fresh": {"first part", "second part", "third part"}}
	return docs, chunks
}

func TestSummarizeCacheHitSkipsCompletion(t *testing.T) {
	docs, chunks := fixture()
	llm := &countingLLM{}
	svc := NewService(config.Load(), docs, chunks, llm, nil, nil, nil)

	resp, deferred, err := svc.Summarize(context.Background(), "cached", models.SummaryRequest{})
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, "old summary", resp.Summary)
	require.Equal(t, "c.pdf", resp.FileName)
	require.Equal(t, 0, llm.calls)
}

func TestSummarizeSynchronousRefinesAndStores(t *testing.T) {
	docs, chunks := fixture()
	llm := &countingLLM{}
	svc := NewService(config.Load(), docs, chunks, llm, nil, nil, nil)

	resp, deferred, err := svc.Summarize(context.Background(), "fresh", models.SummaryRequest{Synchronous: true})
	require.NoError(t, err)
	require.False(t, deferred)
	require.Equal(t, 3, llm.calls)
	require.Equal(t, "summary v3", resp.Summary)
	require.Equal(t, "summary v3", docs.docs["fresh"].Summary)
	require.Contains(t, llm.prompts[0], "first part")
	require.Contains(t, llm.prompts[1], "summary v1")
	require.Contains(t, llm.prompts[1], "second part")
}

func TestSummarizeRegenerateIgnoresCache(t *testing.T) {
	docs, chunks := fixture()
	llm := &countingLLM{}
	svc := NewService(config.Load(), docs, chunks, llm, nil, nil, nil)

	resp, _, err := svc.Summarize(context.Background(), "cached", models.SummaryRequest{Regenerate: true, Synchronous: true})
	require.NoError(t, err)
	require.Equal(t, 2, llm.calls)
	require.NotEqual(t, "old summary", resp.Summary)
}

func TestSummarizeDeferredDispatches(t *testing.T) {
	docs, chunks := fixture()
	llm := &countingLLM{}
	d := &mockDispatcher{}
	d.On("StartSummary", mock.Anything, "fresh").Return(nil)
	svc := NewService(config.Load(), docs, chunks, llm, nil, d, nil)

	_, deferred, err := svc.Summarize(context.Background(), "fresh", models.SummaryRequest{})
	require.NoError(t, err)
	require.True(t, deferred)
	require.Equal(t, 0, llm.calls)
	d.AssertExpectations(t)
}

func TestSummarizeNotReady(t *testing.T) {
	docs, chunks := fixture()
	svc := NewService(config.Load(), docs, chunks, &countingLLM{}, nil, nil, nil)

	for _, id := range []string{"pending", "failed"} {
		_, _, err := svc.Summarize(context.Background(), id, models.SummaryRequest{Synchronous: true})
		require.ErrorIs(t, err, ErrNotReady)
		require.ErrorIs(t, err, util.ErrNotFound)
	}
	_, _, err := svc.Summarize(context.Background(), "missing", models.SummaryRequest{})
	require.ErrorIs(t, err, util.ErrNotFound)
}

func TestRegenerateSurfacesDependencyError(t *testing.T) {
	docs, chunks := fixture()
	svc := NewService(config.Load(), docs, chunks, &countingLLM{err: errors.New("boom")}, nil, nil, nil)

	_, err := svc.Regenerate(context.Background(), "fresh")
	require.ErrorIs(t, err, util.ErrDependency)
	require.Empty(t, docs.docs["fresh"].Summary)
}
