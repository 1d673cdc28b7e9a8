package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"paperchat/internal/pipeline"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// workflowClient is the part of client.Client the dispatcher uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
}

// TemporalDispatcher starts one DocumentProcessWorkflow per document on the
// worker task queue.
type TemporalDispatcher struct {
	client    workflowClient
	taskQueue string
	logger    *slog.Logger
}

var _ pipeline.Dispatcher = (*TemporalDispatcher)(nil)

func NewTemporalDispatcher(c client.Client, taskQueue string, logger *slog.Logger) *TemporalDispatcher {
	return newTemporalDispatcher(c, taskQueue, logger)
}

func newTemporalDispatcher(c workflowClient, taskQueue string, logger *slog.Logger) *TemporalDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemporalDispatcher{client: c, taskQueue: taskQueue, logger: logger.With("component", "dispatcher")}
}

func (d *TemporalDispatcher) Dispatch(ctx context.Context, job pipeline.Job) error {
	opts := client.StartWorkflowOptions{
		ID:                                       WorkflowID(job.DocumentID),
		TaskQueue:                                d.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := d.client.ExecuteWorkflow(ctx, opts, DocumentProcessWorkflow, DocumentProcessInput{
		DocumentID: job.DocumentID,
		Filename:   job.Filename,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return pipeline.ErrAlreadyRunning
		}
		return fmt.Errorf("start document workflow: %w", err)
	}
	d.logger.Info("document workflow started", "document_id", job.DocumentID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}

func (d *TemporalDispatcher) Running(ctx context.Context, documentID string) (bool, error) {
	resp, err := d.client.DescribeWorkflowExecution(ctx, WorkflowID(documentID), "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return resp.GetWorkflowExecutionInfo().GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING, nil
}
