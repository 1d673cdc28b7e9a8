package workflows

import (
	"context"
	"errors"
	"testing"

	"paperchat/internal/pipeline"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	ret := m.Called(options, args)
	run, _ := ret.Get(0).(client.WorkflowRun)
	return run, ret.Error(1)
}

func (m *mockClient) DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	ret := m.Called(workflowID)
	resp, _ := ret.Get(0).(*workflowservice.DescribeWorkflowExecutionResponse)
	return resp, ret.Error(1)
}

func TestTemporalDispatcherStartsWorkflowPerDocument(t *testing.T) {
	c := &mockClient{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("document-d1")
	run.On("GetRunID").Return("run-1")
	c.On("ExecuteWorkflow", mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == "document-d1" && o.TaskQueue == "paperchat" && o.WorkflowExecutionErrorWhenAlreadyStarted
	}), []interface{}{DocumentProcessInput{DocumentID: "d1", Filename: "a.pdf"}}).Return(run, nil).Once()

	d := newTemporalDispatcher(c, "paperchat", nil)
	require.NoError(t, d.Dispatch(context.Background(), pipeline.Job{DocumentID: "d1", Filename: "a.pdf"}))
	c.AssertExpectations(t)
}

func TestTemporalDispatcherAlreadyStarted(t *testing.T) {
	c := &mockClient{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "run-1"))

	d := newTemporalDispatcher(c, "paperchat", nil)
	err := d.Dispatch(context.Background(), pipeline.Job{DocumentID: "d1"})
	require.ErrorIs(t, err, pipeline.ErrAlreadyRunning)
}

func TestTemporalDispatcherRunning(t *testing.T) {
	c := &mockClient{}
	c.On("DescribeWorkflowExecution", "document-live").Return(&workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{Status: enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING},
	}, nil)
	c.On("DescribeWorkflowExecution", "document-done").Return(&workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{Status: enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED},
	}, nil)
	c.On("DescribeWorkflowExecution", "document-none").Return(nil, serviceerror.NewNotFound("workflow not found"))
	c.On("DescribeWorkflowExecution", "document-err").Return(nil, errors.New("unavailable"))

	d := newTemporalDispatcher(c, "paperchat", nil)
	ctx := context.Background()

	running, err := d.Running(ctx, "live")
	require.NoError(t, err)
	require.True(t, running)

	running, err = d.Running(ctx, "done")
	require.NoError(t, err)
	require.False(t, running)

	running, err = d.Running(ctx, "none")
	require.NoError(t, err)
	require.False(t, running)

	_, err = d.Running(ctx, "err")
	require.Error(t, err)
}
