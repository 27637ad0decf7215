package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"oairag/internal/config"
	"oairag/internal/models"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, base string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(config.Config{PublicBaseURL: base})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCollectionsCreatePostsMetadata(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/collection", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Collection{UUID: "u1", Name: "papers"})
	}))
	defer srv.Close()

	out, err := run(t, srv.URL, "collections", "create", "papers", "--meta", `{"team":"ml"}`)
	require.NoError(t, err)
	require.Contains(t, out, `"uuid": "u1"`)
	require.Equal(t, "papers", got["name"])
	require.Equal(t, map[string]any{"team": "ml"}, got["cmetadata"])
}

func TestSummaryReportsDeferral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/document/d1/summary", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out, err := run(t, srv.URL, "summary", "d1")
	require.NoError(t, err)
	require.Contains(t, out, "summary scheduled")
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Status: "error", Message: "collection not found", Code: "RAG-API-4004"})
	}))
	defer srv.Close()

	_, err := run(t, srv.URL, "chat", "what?", "--collection", "missing")
	require.ErrorContains(t, err, "collection not found")
	require.ErrorContains(t, err, "RAG-API-4004")
}
