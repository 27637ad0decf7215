package workflows

type DocumentIngestInput struct {
	DocumentID      string `json:"document_id"`
	FileName        string `json:"file_name"`
	FilePath        string `json:"file_path"`
	Mime            string `json:"mime,omitempty"`
	CollectionName  string `json:"collection_name"`
	CallbackURL     string `json:"callback_url,omitempty"`
	EmbedProviders  int    `json:"embed_providers"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

type DocumentStatus struct {
	DocumentID  string            `json:"document_id"`
	FileName    string            `json:"file_name"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Providers   []string          `json:"providers_used"`
	RetryCounts map[string]int    `json:"retry_counts"`
	Steps       map[string]string `json:"steps"`
	Callback    string            `json:"callback,omitempty"`
}

type DocumentSummaryInput struct {
	DocumentID string `json:"document_id"`
}
