package activities

import "oairag/internal/models"

// Intermediate artifacts live under <data_in>/<document_id>/ and only their paths
// cross the workflow boundary.
const (
	pagesFile   = "pages.json"
	chunksFile  = "chunks.json"
	vectorsFile = "vectors.json"
)

type ExtractTextInput struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	Mime       string `json:"mime,omitempty"`
}

type ExtractTextOutput struct {
	PagesPath string `json:"pages_path"`
	Pages     int    `json:"pages"`
	Paged     bool   `json:"paged"`
}

type PageText struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type ChunkTextInput struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	PagesPath  string `json:"pages_path"`
	Paged      bool   `json:"paged"`
}

type ChunkTextOutput struct {
	ChunksPath string `json:"chunks_path"`
	Count      int    `json:"count"`
}

type ChunkItem struct {
	ChunkIndex int                  `json:"chunk_index"`
	Text       string               `json:"text"`
	Metadata   models.ChunkMetadata `json:"metadata"`
}

type EmbedChunksInput struct {
	Operation     string `json:"operation"`
	DocumentID    string `json:"document_id"`
	ChunksPath    string `json:"chunks_path"`
	ProviderIndex int    `json:"provider_index"`
}

type EmbedChunksOutput struct {
	VectorsPath  string `json:"vectors_path"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
}

type WriteVectorsInput struct {
	DocumentID     string `json:"document_id"`
	CollectionName string `json:"collection_name"`
	ChunksPath     string `json:"chunks_path"`
	VectorsPath    string `json:"vectors_path"`
}

type WriteVectorsOutput struct {
	Vectors []string `json:"vectors"`
}

type MarkDocumentErrorInput struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}

type SendCallbackInput struct {
	URL        string `json:"url"`
	DocumentID string `json:"document_id"`
}

type CleanupStagingInput struct {
	DocumentID string `json:"document_id"`
}

type GenerateSummaryInput struct {
	DocumentID string `json:"document_id"`
}

type LogLLMCallInput struct {
	Operation      string `json:"operation"`
	DocumentID     string `json:"document_id,omitempty"`
	CollectionName string `json:"collection_name,omitempty"`
	ProviderName   string `json:"provider_name"`
	Model          string `json:"model,omitempty"`
	Status         string `json:"status"`
	ErrorType      string `json:"error_type,omitempty"`
}
