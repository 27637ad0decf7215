package workflows

import (
	"context"
	"fmt"

	"oairag/internal/config"
	"oairag/internal/ingest"
	"oairag/internal/providers"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

// Dispatcher starts background work on the configured task queue.
type Dispatcher struct {
	client         tclient.Client
	taskQueue      string
	embedProviders int
	cooldown       int
}

func NewDispatcher(c tclient.Client, cfg config.Config) *Dispatcher {
	return &Dispatcher{
		client:         c,
		taskQueue:      cfg.TemporalTaskQueue,
		embedProviders: len(providers.ParseProviderList(cfg.EmbedProviders)),
		cooldown:       cfg.ProviderCooldownSecs,
	}
}

func IngestWorkflowID(documentID string) string  { return "ingest-" + documentID }
func SummaryWorkflowID(documentID string) string { return "summary-" + documentID }

func (d *Dispatcher) StartIngest(ctx context.Context, job ingest.Job) error {
	_, err := d.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:        IngestWorkflowID(job.DocumentID),
		TaskQueue: d.taskQueue,
	}, DocumentIngestWorkflow, DocumentIngestInput{
		DocumentID:      job.DocumentID,
		FileName:        job.FileName,
		FilePath:        job.FilePath,
		Mime:            job.Mime,
		CollectionName:  job.CollectionName,
		CallbackURL:     job.CallbackURL,
		EmbedProviders:  d.embedProviders,
		CooldownSeconds: d.cooldown,
	})
	if err != nil {
		return fmt.Errorf("start ingest workflow: %w", err)
	}
	return nil
}

// StartSummary joins a summary run already in flight for the same document.
func (d *Dispatcher) StartSummary(ctx context.Context, documentID string) error {
	_, err := d.client.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                       SummaryWorkflowID(documentID),
		TaskQueue:                d.taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}, DocumentSummaryWorkflow, DocumentSummaryInput{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("start summary workflow: %w", err)
	}
	return nil
}

// IngestStatus reads live progress from the ingestion run of a document.
func (d *Dispatcher) IngestStatus(ctx context.Context, documentID string) (DocumentStatus, error) {
	resp, err := d.client.QueryWorkflow(ctx, IngestWorkflowID(documentID), "", QueryGetDocumentStatus)
	if err != nil {
		return DocumentStatus{}, fmt.Errorf("query ingest workflow: %w", err)
	}
	var st DocumentStatus
	if err := resp.Get(&st); err != nil {
		return DocumentStatus{}, fmt.Errorf("decode ingest status: %w", err)
	}
	return st, nil
}
