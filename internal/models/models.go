package models

import "time"

type ProcessStatus string

const (
	StatusPending  ProcessStatus = "pending"
	StatusComplete ProcessStatus = "complete"
	StatusError    ProcessStatus = "error"
)

type Document struct {
	ID                 string        `json:"id"`
	FileName           string        `json:"file_name"`
	ProcessStatus      ProcessStatus `json:"process_status"`
	ProcessDescription string        `json:"process_description,omitempty"`
	CollectionName     string        `json:"collection_name,omitempty"`
	Summary            string        `json:"summary,omitempty"`
	Vectors            []string      `json:"vectors"`
	ContentHash        string        `json:"-"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type Collection struct {
	UUID      string         `json:"uuid"`
	Name      string         `json:"name"`
	CMetadata map[string]any `json:"cmetadata"`
	Documents []string       `json:"documents,omitzero"`
	CreatedAt time.Time      `json:"created_at"`
}

// ChunkMetadata is stored as jsonb next to every embedding and projected into citations.
type ChunkMetadata struct {
	DocumentName string `json:"document_name"`
	Page         *int   `json:"page,omitempty"`
	PageOffset   *int   `json:"page_offset,omitempty"`
}

type Chunk struct {
	ID           string        `json:"id"`
	DocumentID   string        `json:"document_id"`
	CollectionID string        `json:"collection_id"`
	ChunkIndex   int           `json:"chunk_index"`
	Text         string        `json:"text"`
	Metadata     ChunkMetadata `json:"cmetadata"`
	Embedding    []float32     `json:"-"`
}

type ChunkResult struct {
	ChunkID    string        `json:"chunk_id"`
	DocumentID string        `json:"document_id"`
	Text       string        `json:"text"`
	Metadata   ChunkMetadata `json:"cmetadata"`
	Score      float64       `json:"score"`
}

type Citation struct {
	Content    *string `json:"content,omitempty"`
	Document   *string `json:"document,omitempty"`
	Page       *int    `json:"page,omitempty"`
	PageOffset *int    `json:"page_offset,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMConfig carries per-request overrides; nil fields fall back to configured defaults.
type LLMConfig struct {
	Model            *string        `json:"model,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	MaxTokens        *int           `json:"max_tokens,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	LogitBias        map[string]int `json:"logit_bias,omitempty"`
}

type Filter struct {
	DocumentName string `json:"document_name"`
}

type ChatRequest struct {
	CollectionName   string     `json:"collection_name"`
	Filter           *Filter    `json:"filter,omitempty"`
	Query            string     `json:"query"`
	LLM              *LLMConfig `json:"llm,omitempty"`
	IncludeCitations *bool      `json:"include_citations,omitempty"`
	IncludeUsage     bool       `json:"include_usage,omitempty"`
}

// WantCitations reports the include_citations flag, which defaults to true.
func (r ChatRequest) WantCitations() bool {
	return r.IncludeCitations == nil || *r.IncludeCitations
}

type ChatResponse struct {
	Result    string     `json:"result"`
	Citations []Citation `json:"citations,omitzero"`
	Usage     *Usage     `json:"usage,omitempty"`
}

type SummaryRequest struct {
	Regenerate  bool `json:"regenerate"`
	Synchronous bool `json:"synchronous"`
}

type SummaryResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name"`
	Summary    string `json:"summary"`
}

type Links struct {
	CurrentPage string  `json:"current_page"`
	FirstPage   string  `json:"first_page"`
	PrevPage    *string `json:"prev_page,omitempty"`
	NextPage    *string `json:"next_page,omitempty"`
	LastPage    string  `json:"last_page"`
}

type Meta struct {
	TotalRecords int `json:"total_records"`
	TotalPages   int `json:"total_pages"`
}

type DocumentListResponse struct {
	Documents []Document `json:"documents"`
	Links     Links      `json:"links"`
	Meta      Meta       `json:"meta"`
}

type CollectionListModel struct {
	Collections []Collection `json:"collections"`
	Links       Links        `json:"links"`
	Meta        Meta         `json:"meta"`
}

type ErrorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Exception string `json:"exception,omitempty"`
}
