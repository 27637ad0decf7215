package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type LLMCallRecord struct {
	Operation        string
	DocumentID       string
	CollectionName   string
	ProviderName     string
	Model            string
	Status           string
	ErrorType        string
	PromptTokens     int
	CompletionTokens int
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, document_id, collection_name, provider_name, model, status, error_type, prompt_tokens, completion_tokens)
VALUES ($1, $2, NULLIF($3,'')::uuid, NULLIF($4,''), $5, NULLIF($6,''), $7, NULLIF($8,''), $9, $10)`,
		uuid.NewString(), rec.Operation, rec.DocumentID, rec.CollectionName, rec.ProviderName, rec.Model,
		rec.Status, rec.ErrorType, rec.PromptTokens, rec.CompletionTokens)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
