package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oairag/internal/models"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/") + "/",
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, out)
	return err
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	_, err := c.postJSONAccepted(ctx, path, body, out)
	return err
}

// postJSONAccepted reports true when the server deferred the work with 202.
func (c *apiClient) postJSONAccepted(ctx context.Context, path string, body, out any) (bool, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	status, err := c.do(req, out)
	return status == http.StatusAccepted, err
}

func (c *apiClient) upload(ctx context.Context, path, collection, callback string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return models.Document{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return models.Document{}, err
	}
	if collection != "" {
		if err := mw.WriteField("collection_name", collection); err != nil {
			return models.Document{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return models.Document{}, err
	}

	target := c.base + "document/upload"
	if callback != "" {
		target += "?callback_url=" + url.QueryEscape(callback)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return models.Document{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var doc models.Document
	_, err = c.do(req, &doc)
	return doc, err
}

func (c *apiClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var er models.ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Message != "" {
			return resp.StatusCode, fmt.Errorf("%s (%s, http %d)", er.Message, er.Code, resp.StatusCode)
		}
		return resp.StatusCode, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
