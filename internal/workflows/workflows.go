package workflows

import (
	"errors"
	"fmt"
	"time"

	"oairag/internal/activities"
	"oairag/internal/models"
	"oairag/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetDocumentStatus = "GetDocumentStatus"

type providerState struct {
	disabledUntil map[int]time.Time
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}}
}

// DocumentIngestWorkflow drives a pending document to complete or error. Step failures
// end the run with "error" rather than a workflow failure, so the callback still fires.
func DocumentIngestWorkflow(ctx workflow.Context, input DocumentIngestInput) (string, error) {
	status := DocumentStatus{
		DocumentID:  input.DocumentID,
		FileName:    input.FileName,
		CurrentStep: "init",
		Status:      string(models.StatusPending),
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)
	providerCount := max(input.EmbedProviders, 1)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	state := newProviderState()

	begin := func(step string) {
		status.CurrentStep = step
		status.Steps[step] = "processing"
	}
	fail := func(err error) (string, error) {
		status.Steps[status.CurrentStep] = "failed"
		status.FailReason = failureReason(status.CurrentStep, err)
		logger.Warn("ingestion step failed", "document_id", input.DocumentID, "step", status.CurrentStep, "error", err)
		tctx := terminalContext(ctx, time.Minute)
		if merr := workflow.ExecuteActivity(tctx, "MarkDocumentErrorActivity", activities.MarkDocumentErrorInput{
			DocumentID: input.DocumentID,
			Reason:     status.FailReason,
		}).Get(tctx, nil); merr != nil {
			return "", merr
		}
		status.Status = string(models.StatusError)
		finish(ctx, input, &status)
		return status.Status, nil
	}

	begin("extract_text")
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{
		DocumentID: input.DocumentID,
		FileName:   input.FileName,
		FilePath:   input.FilePath,
		Mime:       input.Mime,
	}).Get(ctx, &textOut); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"

	begin("chunk_text")
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		DocumentID: input.DocumentID,
		FileName:   input.FileName,
		PagesPath:  textOut.PagesPath,
		Paged:      textOut.Paged,
	}).Get(ctx, &chunkOut); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"

	begin("embed_chunks")
	embedOut, err := callEmbedWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedChunksInput{
		Operation:  "embed",
		DocumentID: input.DocumentID,
		ChunksPath: chunkOut.ChunksPath,
	}, input.CollectionName, status.RetryCounts)
	if err != nil {
		return fail(err)
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	begin("write_vectors")
	var writeOut activities.WriteVectorsOutput
	wctx := terminalContext(ctx, 5*time.Minute)
	if err := workflow.ExecuteActivity(wctx, "WriteVectorsActivity", activities.WriteVectorsInput{
		DocumentID:     input.DocumentID,
		CollectionName: input.CollectionName,
		ChunksPath:     chunkOut.ChunksPath,
		VectorsPath:    embedOut.VectorsPath,
	}).Get(wctx, &writeOut); err != nil {
		return fail(err)
	}
	status.Steps[status.CurrentStep] = "done"
	status.Status = string(models.StatusComplete)
	finish(ctx, input, &status)
	return status.Status, nil
}

// terminalContext retries the activities that move a document out of pending until
// they succeed or fail non-retryably.
func terminalContext(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
		},
	})
}

// finish fires the callback once and clears staging. Neither outcome changes the
// document's status.
func finish(ctx workflow.Context, input DocumentIngestInput, status *DocumentStatus) {
	logger := workflow.GetLogger(ctx)
	if input.CallbackURL != "" {
		status.CurrentStep = "callback"
		cctx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: 30 * time.Second,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		})
		if err := workflow.ExecuteActivity(cctx, "SendCallbackActivity", activities.SendCallbackInput{
			URL:        input.CallbackURL,
			DocumentID: input.DocumentID,
		}).Get(cctx, nil); err != nil {
			status.Callback = "failed"
			logger.Warn("callback not delivered", "document_id", input.DocumentID, "error", err)
		} else {
			status.Callback = "delivered"
		}
	}
	if err := workflow.ExecuteActivity(ctx, "CleanupStagingActivity", activities.CleanupStagingInput{
		DocumentID: input.DocumentID,
	}).Get(ctx, nil); err != nil {
		logger.Warn("staging cleanup failed", "document_id", input.DocumentID, "error", err)
	}
	status.CurrentStep = "done"
}

// DocumentSummaryWorkflow regenerates and stores one document's summary.
func DocumentSummaryWorkflow(ctx workflow.Context, input DocumentSummaryInput) (models.SummaryResponse, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	})
	var out models.SummaryResponse
	if err := workflow.ExecuteActivity(ctx, "GenerateSummaryActivity", activities.GenerateSummaryInput{
		DocumentID: input.DocumentID,
	}).Get(ctx, &out); err != nil {
		return models.SummaryResponse{}, err
	}
	return out, nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, collection string, retryCounts map[string]int) (activities.EmbedChunksOutput, error) {
	var lastErr error
	maxAttempts := providerCount * 4
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, DocumentID: input.DocumentID, CollectionName: collection, ProviderName: out.ProviderName, Model: out.Model, Status: "ok"}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{Operation: input.Operation, DocumentID: input.DocumentID, CollectionName: collection, ProviderName: fmt.Sprintf("provider-%d", idx), Status: "failed", ErrorType: string(errType)}).Get(ctx, nil)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
			} else {
				disableProviderUntil(ctx, state, idx, time.Minute)
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = errors.New("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

// failureReason keeps the activity's own message and drops Temporal's wrapping.
func failureReason(step string, err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Message() != "" {
		return step + ": " + appErr.Message()
	}
	return step + ": " + err.Error()
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
