package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.StoreChunksActivity)
	w.RegisterActivity(a.CompleteDocumentActivity)
	w.RegisterActivity(a.FailDocumentActivity)
	w.RegisterActivity(a.ListFailedDocumentsActivity)
	w.RegisterActivity(a.ResetDocumentActivity)
}
