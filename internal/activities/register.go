package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.WriteVectorsActivity)
	w.RegisterActivity(a.MarkDocumentErrorActivity)
	w.RegisterActivity(a.SendCallbackActivity)
	w.RegisterActivity(a.CleanupStagingActivity)
	w.RegisterActivity(a.GenerateSummaryActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
}
