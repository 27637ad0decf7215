package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider serves local generation and embeddings through langchaingo's Ollama client.
type OllamaProvider struct {
	alias      string
	llmModel   string
	embedModel string
	llm        llms.Model
	embedder   embeddings.Embedder
}

func NewOllamaProvider(alias string) (*OllamaProvider, error) {
	baseURL := strings.TrimSpace(os.Getenv("OAIRAG_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	p := &OllamaProvider{
		alias:      alias,
		llmModel:   resolveOllamaModel(alias, "OAIRAG_OLLAMA_LLM_MODEL", "llama3.2"),
		embedModel: resolveOllamaModel(alias, "OAIRAG_OLLAMA_EMBED_MODEL", "nomic-embed-text"),
	}
	llm, err := ollama.New(ollama.WithModel(p.llmModel), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("ollama llm client: %w", err)
	}
	embedClient, err := ollama.New(ollama.WithModel(p.embedModel), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("ollama embed client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(embedClient)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	p.llm = llm
	p.embedder = embedder
	return p, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.embedModel, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	vectors, err := o.embedder.EmbedDocuments(ctx, req.Inputs)
	if err != nil {
		return nil, info, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	if len(vectors) != len(req.Inputs) {
		return nil, info, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(vectors), len(req.Inputs))
	}
	for i := range vectors {
		if len(vectors[i]) == 0 {
			return nil, info, fmt.Errorf("ollama returned empty embedding")
		}
		vectors[i] = matchDimension(vectors[i], req.Dimension)
	}
	return vectors, info, nil
}

// Generate always uses the configured local model; request model names target hosted APIs.
func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.llmModel, Key: o.alias}
	opts := []llms.CallOption{
		llms.WithTemperature(req.Options.Temperature),
		llms.WithTopP(req.Options.TopP),
		llms.WithPresencePenalty(req.Options.PresencePenalty),
		llms.WithFrequencyPenalty(req.Options.FrequencyPenalty),
	}
	if req.Options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Options.MaxTokens))
	}
	resp, err := o.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}, opts...)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty choices")
	}
	choice := resp.Choices[0]
	return GenerateResponse{
		Text: choice.Content,
		Usage: Usage{
			PromptTokens:     intFromInfo(choice.GenerationInfo, "PromptTokens"),
			CompletionTokens: intFromInfo(choice.GenerationInfo, "CompletionTokens"),
		},
	}, info, nil
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func resolveOllamaModel(alias, envKey, fallback string) string {
	alias = strings.TrimSpace(alias)
	switch strings.ToLower(alias) {
	case "":
	case "nomic":
		return "nomic-embed-text"
	case "bge":
		return "bge-small-en-v1.5"
	default:
		return alias
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return fallback
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
