package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatResponseOmitsAbsentFields(t *testing.T) {
	b, err := json.Marshal(ChatResponse{Result: "ok"})
	require.NoError(t, err)
	require.JSONEq(t, `{"result":"ok"}`, string(b))

	b, err = json.Marshal(ChatResponse{Result: "ok", Citations: []Citation{}, Usage: &Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}})
	require.NoError(t, err)
	require.JSONEq(t, `{"result":"ok","citations":[],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`, string(b))
}

func TestCitationOmitsMissingMetadata(t *testing.T) {
	doc := "a.pdf"
	b, err := json.Marshal(Citation{Document: &doc})
	require.NoError(t, err)
	require.JSONEq(t, `{"document":"a.pdf"}`, string(b))
}

func TestWantCitationsDefaultsTrue(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"collection_name":"c","query":"q"}`), &req))
	require.True(t, req.WantCitations())
	require.False(t, req.IncludeUsage)

	require.NoError(t, json.Unmarshal([]byte(`{"collection_name":"c","query":"q","include_citations":false}`), &req))
	require.False(t, req.WantCitations())
}
