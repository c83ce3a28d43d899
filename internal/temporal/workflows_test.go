package temporal

import (
	"context"
	"errors"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

// =============================================================================
// WORKFLOW TESTS
// The real activity is replaced with a fake registered under the same name;
// the workflow only routes inputs and errors.
// =============================================================================

type fakeRefreshActivity struct {
	attempts int
	lastReq  RefreshRunInput
	result   *RefreshRunOutput
	err      error
}

func (f *fakeRefreshActivity) run(_ context.Context, req RefreshRunInput) (*RefreshRunOutput, error) {
	f.attempts++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newRefreshWorkflowEnv(fake *fakeRefreshActivity) *testsuite.TestWorkflowEnvironment {
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(RefreshResourceWorkflowFunc, workflow.RegisterOptions{Name: RefreshResourceWorkflow})
	env.RegisterActivityWithOptions(fake.run, activity.RegisterOptions{Name: "RefreshResource"})
	return env
}

func boolPtr(v bool) *bool { return &v }

func TestRefreshResourceWorkflow(t *testing.T) {
	t.Run("routes the input and returns the activity result", func(t *testing.T) {
		fake := &fakeRefreshActivity{result: &RefreshRunOutput{
			JobID:      "job-1",
			ResourceID: "wb-1",
			Status:     "succeeded",
			FinishedAt: "2026-02-11T09:30:00Z",
		}}
		env := newRefreshWorkflowEnv(fake)

		env.ExecuteWorkflow(RefreshResourceWorkflow, RefreshRunInput{
			ResourceKind:    "workbook",
			ResourceName:    "Sales",
			ProjectName:     "Analytics",
			SiteID:          "emea",
			ConnectionID:    "tableau_default",
			BlockingRefresh: boolPtr(false),
			RequestID:       "req-1",
		})

		if !env.IsWorkflowCompleted() {
			t.Fatal("workflow did not complete")
		}
		if err := env.GetWorkflowError(); err != nil {
			t.Fatalf("workflow error: %v", err)
		}

		var out RefreshRunOutput
		if err := env.GetWorkflowResult(&out); err != nil {
			t.Fatalf("decode workflow result: %v", err)
		}
		if out.JobID != "job-1" || out.Status != "succeeded" {
			t.Errorf("result = %+v, want the activity's output", out)
		}

		if fake.attempts != 1 {
			t.Errorf("attempts = %d, want 1", fake.attempts)
		}
		if fake.lastReq.ResourceKind != "workbook" || fake.lastReq.ResourceName != "Sales" {
			t.Errorf("activity saw %+v, want the workflow input", fake.lastReq)
		}
		if fake.lastReq.SiteID != "emea" || fake.lastReq.ConnectionID != "tableau_default" {
			t.Errorf("site/connection not plumbed through: %+v", fake.lastReq)
		}
		if fake.lastReq.BlockingRefresh == nil || *fake.lastReq.BlockingRefresh {
			t.Error("blockingRefresh=false did not survive the round trip")
		}
	})

	t.Run("rejects incomplete input without calling the activity", func(t *testing.T) {
		fake := &fakeRefreshActivity{result: &RefreshRunOutput{JobID: "job-1", Status: "succeeded"}}
		env := newRefreshWorkflowEnv(fake)

		env.ExecuteWorkflow(RefreshResourceWorkflow, RefreshRunInput{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			// ProjectName deliberately missing.
		})

		err := env.GetWorkflowError()
		if err == nil {
			t.Fatal("expected workflow error for incomplete input")
		}
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected application error, got %T: %v", err, err)
		}
		if appErr.Type() != "INVALID_INPUT" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "INVALID_INPUT")
		}
		if fake.attempts != 0 {
			t.Errorf("attempts = %d, want 0", fake.attempts)
		}
	})

	t.Run("non-retryable activity failures surface after one attempt", func(t *testing.T) {
		fake := &fakeRefreshActivity{
			err: temporal.NewNonRetryableApplicationError(
				`E_RESOURCE_NOT_FOUND: workbook "Sales" not found in project "Analytics"`,
				"ResourceNotFoundError", nil),
		}
		env := newRefreshWorkflowEnv(fake)

		env.ExecuteWorkflow(RefreshResourceWorkflow, RefreshRunInput{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
		})

		err := env.GetWorkflowError()
		if err == nil {
			t.Fatal("expected workflow error")
		}
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected application error, got %T: %v", err, err)
		}
		if appErr.Type() != "ResourceNotFoundError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "ResourceNotFoundError")
		}
		if fake.attempts != 1 {
			t.Errorf("attempts = %d, want 1 for a non-retryable failure", fake.attempts)
		}
	})

	t.Run("transient activity failures follow the retry policy", func(t *testing.T) {
		fake := &fakeRefreshActivity{
			err: temporal.NewApplicationError("E_JOB_POLLING: poll job job-1: 3 consecutive failures", "JobPollingError"),
		}
		env := newRefreshWorkflowEnv(fake)

		env.ExecuteWorkflow(RefreshResourceWorkflow, RefreshRunInput{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
		})

		if err := env.GetWorkflowError(); err == nil {
			t.Fatal("expected workflow error after retries are spent")
		}
		if fake.attempts != 3 {
			t.Errorf("attempts = %d, want the policy's 3", fake.attempts)
		}
	})
}
