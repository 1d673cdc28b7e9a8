package workflows

import (
	"errors"
	"time"

	"paperchat/internal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetDocumentStatus = "GetDocumentStatus"
	QueryGetProgress       = "GetProgress"

	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// WorkflowID is the id of the processing workflow for a document. At most
// one run per document is open at a time.
func WorkflowID(documentID string) string {
	return "document-" + documentID
}

func DocumentProcessWorkflow(ctx workflow.Context, input DocumentProcessInput) (string, error) {
	status := DocumentStatus{
		DocumentID:  input.DocumentID,
		Filename:    input.Filename,
		CurrentStep: "init",
		Status:      "processing",
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
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{activities.ErrTypeExtraction, activities.ErrTypeNotFound},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	fail := func(step string, err error) (string, error) {
		status.Steps[step] = "failed"
		status.Status = StatusFailed
		status.FailReason = failureMessage(err)
		logger.Error("document processing failed", "document_id", input.DocumentID, "step", step, "error", err)
		failCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
		})
		if ferr := workflow.ExecuteActivity(failCtx, "FailDocumentActivity", activities.FailDocumentInput{
			DocumentID: input.DocumentID,
			Message:    status.FailReason,
		}).Get(ctx, nil); ferr != nil {
			return "", ferr
		}
		return StatusFailed, nil
	}

	status.CurrentStep = "extract"
	var extractOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{DocumentID: input.DocumentID}).Get(ctx, &extractOut); err != nil {
		return fail("extract", err)
	}
	status.Steps["extract"] = "done"
	status.TotalPages = extractOut.TotalPages

	status.CurrentStep = "chunk"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{DocumentID: input.DocumentID}).Get(ctx, &chunkOut); err != nil {
		return fail("chunk", err)
	}
	status.Steps["chunk"] = "done"
	status.TotalChunks = chunkOut.TotalChunks

	status.CurrentStep = "embed"
	batch := chunkOut.BatchSize
	if batch <= 0 {
		batch = 32
	}
	status.Batches = (chunkOut.TotalChunks + batch - 1) / batch
	embedCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    4,
		},
	})
	for start := 0; start < chunkOut.TotalChunks; start += batch {
		end := start + batch
		if end > chunkOut.TotalChunks {
			end = chunkOut.TotalChunks
		}
		var out activities.EmbedChunksOutput
		if err := workflow.ExecuteActivity(embedCtx, "EmbedChunksActivity", activities.EmbedChunksInput{
			DocumentID: input.DocumentID,
			Start:      start,
			End:        end,
		}).Get(ctx, &out); err != nil {
			return fail("embed", err)
		}
		status.BatchesDone++
	}
	status.Steps["embed"] = "done"

	status.CurrentStep = "store"
	if err := workflow.ExecuteActivity(ctx, "StoreChunksActivity", activities.StoreChunksInput{
		DocumentID: input.DocumentID,
		TotalPages: status.TotalPages,
	}).Get(ctx, nil); err != nil {
		return fail("store", err)
	}
	status.Steps["store"] = "done"

	status.CurrentStep = "complete"
	if err := workflow.ExecuteActivity(ctx, "CompleteDocumentActivity", activities.CompleteDocumentInput{
		DocumentID:  input.DocumentID,
		TotalPages:  status.TotalPages,
		TotalChunks: status.TotalChunks,
	}).Get(ctx, nil); err != nil {
		return fail("complete", err)
	}
	status.Steps["complete"] = "done"
	status.CurrentStep = "done"
	status.Status = StatusProcessed
	return StatusProcessed, nil
}

// BackfillWorkflow reprocesses every errored document whose upload is
// still on disk.
func BackfillWorkflow(ctx workflow.Context, input BackfillInput) (BackfillResult, error) {
	result := BackfillResult{PerDoc: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (BackfillResult, error) {
		return result, nil
	}); err != nil {
		return result, err
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var failed activities.ListFailedDocumentsOutput
	if err := workflow.ExecuteActivity(ctx, "ListFailedDocumentsActivity", activities.ListFailedDocumentsInput{Owner: input.Owner}).Get(ctx, &failed); err != nil {
		return result, err
	}
	result.Total = len(failed.Documents)
	maxChildren := input.MaxConcurrent
	if maxChildren <= 0 {
		maxChildren = 3
	}

	docs := failed.Documents
	for i := 0; i < len(docs); i += maxChildren {
		end := i + maxChildren
		if end > len(docs) {
			end = len(docs)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		ids := make([]string, 0, end-i)
		for _, d := range docs[i:end] {
			if err := workflow.ExecuteActivity(ctx, "ResetDocumentActivity", activities.ResetDocumentInput{DocumentID: d.DocumentID}).Get(ctx, nil); err != nil {
				result.Failed++
				result.PerDoc[d.DocumentID] = StatusFailed
				continue
			}
			result.PerDoc[d.DocumentID] = "processing"
			childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{WorkflowID: WorkflowID(d.DocumentID)})
			futures = append(futures, workflow.ExecuteChildWorkflow(childCtx, DocumentProcessWorkflow, DocumentProcessInput{
				DocumentID: d.DocumentID,
				Filename:   d.Filename,
			}))
			ids = append(ids, d.DocumentID)
		}
		for idx, f := range futures {
			var childStatus string
			id := ids[idx]
			if err := f.Get(ctx, &childStatus); err != nil || childStatus != StatusProcessed {
				result.Failed++
				result.PerDoc[id] = StatusFailed
				continue
			}
			result.Completed++
			result.PerDoc[id] = childStatus
		}
	}
	return result, nil
}

// failureMessage prefers the user-safe message carried by an application
// error over the wrapped activity error text.
func failureMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Message() != "" {
		return appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return "Processing timed out. Try uploading the document again."
	}
	return "Processing failed because of an internal error."
}
