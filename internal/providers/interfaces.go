package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateOptions are sampling parameters; zero Model lets the provider pick its default.
type GenerateOptions struct {
	Model            string         `json:"model,omitempty"`
	Temperature      float64        `json:"temperature"`
	TopP             float64        `json:"top_p"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	PresencePenalty  float64        `json:"presence_penalty"`
	FrequencyPenalty float64        `json:"frequency_penalty"`
	LogitBias        map[string]int `json:"logit_bias,omitempty"`
}

type GenerateRequest struct {
	Operation string          `json:"operation"`
	Prompt    string          `json:"prompt"`
	Options   GenerateOptions `json:"options"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type GenerateResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
