package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/http"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
	"github.com/nucleus/tableau-worker/internal/refresh"
)

// =============================================================================
// ACTIVITY TESTS
// Run inside the SDK activity test environment against the in-process stub,
// so heartbeats and error conversion go through the real SDK plumbing.
// =============================================================================

type staticResolver map[string]*connection.Record

func (r staticResolver) Resolve(_ context.Context, id string) (*connection.Record, error) {
	rec, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", id, connection.ErrNotFound)
	}
	return rec, nil
}

func newStubActivities(t *testing.T, stub *tableau.StubServer) *Activities {
	t.Helper()

	name, secret := stub.Credentials()
	resolver := staticResolver{
		connection.DefaultConnectionID: &connection.Record{
			ID:          connection.DefaultConnectionID,
			Host:        stub.URL(),
			TokenName:   name,
			TokenSecret: secret,
			APIVersion:  "3.24",
		},
	}

	httpCfg := http.DefaultClientConfig()
	httpCfg.MaxRetries = 0
	httpCfg.RateLimit = 1000
	httpCfg.RateBurst = 100
	httpCfg.Transport = stub.Transport()

	engine, err := refresh.New(resolver, &refresh.ServerSource{HTTP: httpCfg}, refresh.Options{
		Wait: tableau.WaitOptions{
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("refresh.New error: %v", err)
	}
	return NewActivities(engine)
}

func runRefreshActivity(t *testing.T, acts *Activities, req RefreshRequest) (*RefreshResult, error) {
	t.Helper()

	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(acts.RefreshResource)

	val, err := env.ExecuteActivity(acts.RefreshResource, req)
	if err != nil {
		return nil, err
	}
	var result RefreshResult
	if err := val.Get(&result); err != nil {
		t.Fatalf("decode activity result: %v", err)
	}
	return &result, nil
}

func activityError(t *testing.T, err error) *temporal.ApplicationError {
	t.Helper()
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *temporal.ApplicationError, got %T: %v", err, err)
	}
	return appErr
}

func boolPtr(v bool) *bool { return &v }

func TestRefreshResourceActivity(t *testing.T) {
	t.Run("refreshes a workbook and reports the finished job", func(t *testing.T) {
		stub := tableau.NewStubServer()
		stub.AddWorkbook(&tableau.Workbook{ID: "wb-1", Name: "Sales", Project: &tableau.Project{Name: "Analytics"}})
		stub.ScriptJob("job-7",
			tableau.JobPoll{Job: &tableau.Job{ID: "job-7", Progress: "50"}},
			tableau.JobPoll{Job: &tableau.Job{ID: "job-7", FinishCode: tableau.FinishCodeSuccess, CompletedAt: "2026-02-11T09:30:00Z", Progress: "100"}},
		)
		acts := newStubActivities(t, stub)

		result, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
			RequestID:    "req-1",
		})
		if err != nil {
			t.Fatalf("activity error: %v", err)
		}
		if result.JobID != "job-7" {
			t.Errorf("JobID = %q, want %q", result.JobID, "job-7")
		}
		if result.ResourceID != "wb-1" {
			t.Errorf("ResourceID = %q, want %q", result.ResourceID, "wb-1")
		}
		if result.Status != string(tableau.JobSucceeded) {
			t.Errorf("Status = %q, want %q", result.Status, tableau.JobSucceeded)
		}
		if result.FinishedAt != "2026-02-11T09:30:00Z" {
			t.Errorf("FinishedAt = %q, want server timestamp", result.FinishedAt)
		}
		if got := stub.JobPolls("job-7"); got != 2 {
			t.Errorf("JobPolls = %d, want 2", got)
		}
		if got := stub.SignOuts(); got != 1 {
			t.Errorf("SignOuts = %d, want the session released exactly once", got)
		}
	})

	t.Run("non-blocking request leaves the job running", func(t *testing.T) {
		stub := tableau.NewStubServer()
		stub.AddDatasource(&tableau.Datasource{ID: "ds-1", Name: "Orders Extract", Project: &tableau.Project{Name: "Analytics"}})
		stub.ScriptJob("job-9", tableau.JobPoll{Job: &tableau.Job{ID: "job-9"}})
		acts := newStubActivities(t, stub)

		result, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind:    "datasource",
			ResourceName:    "Orders Extract",
			ProjectName:     "Analytics",
			BlockingRefresh: boolPtr(false),
		})
		if err != nil {
			t.Fatalf("activity error: %v", err)
		}
		if result.Status != string(tableau.JobPending) {
			t.Errorf("Status = %q, want %q", result.Status, tableau.JobPending)
		}
		if result.JobID != "job-9" {
			t.Errorf("JobID = %q, want %q", result.JobID, "job-9")
		}
		if got := stub.JobPolls("job-9"); got != 0 {
			t.Errorf("JobPolls = %d, want 0 for a non-blocking request", got)
		}
	})

	t.Run("unsupported kind is a non-retryable typed failure", func(t *testing.T) {
		stub := tableau.NewStubServer()
		acts := newStubActivities(t, stub)

		_, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind: "flow",
			ResourceName: "Pipeline",
			ProjectName:  "Analytics",
		})
		appErr := activityError(t, err)
		if appErr.Type() != "UnsupportedResourceError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "UnsupportedResourceError")
		}
		if !appErr.NonRetryable() {
			t.Error("an unsupported kind must not be retried")
		}
		if got := stub.Requests(); got != 0 {
			t.Errorf("Requests = %d, want 0 for a request rejected locally", got)
		}
	})

	t.Run("missing resource is a non-retryable typed failure", func(t *testing.T) {
		stub := tableau.NewStubServer()
		acts := newStubActivities(t, stub)

		_, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
		})
		appErr := activityError(t, err)
		if appErr.Type() != "ResourceNotFoundError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "ResourceNotFoundError")
		}
		if !appErr.NonRetryable() {
			t.Error("a missing resource must not be retried")
		}
	})

	t.Run("failed job carries the server's notes", func(t *testing.T) {
		stub := tableau.NewStubServer()
		stub.AddWorkbook(&tableau.Workbook{ID: "wb-1", Name: "Sales", Project: &tableau.Project{Name: "Analytics"}})
		stub.ScriptJob("job-7", tableau.JobPoll{Job: &tableau.Job{
			ID:          "job-7",
			FinishCode:  tableau.FinishCodeFailed,
			CompletedAt: "2026-02-11T09:30:00Z",
			StatusNotes: &tableau.StatusNotes{StatusNote: []tableau.StatusNote{{Type: "errorCode", Text: "extract timed out"}}},
		}})
		acts := newStubActivities(t, stub)

		_, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
		})
		appErr := activityError(t, err)
		if appErr.Type() != "JobFailedError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "JobFailedError")
		}
		if !appErr.NonRetryable() {
			t.Error("a terminal job failure must not be retried")
		}
		if !strings.Contains(appErr.Error(), "extract timed out") {
			t.Errorf("expected failure notes in message, got %q", appErr.Error())
		}
	})

	t.Run("exhausted polling budget stays retryable", func(t *testing.T) {
		stub := tableau.NewStubServer()
		stub.AddWorkbook(&tableau.Workbook{ID: "wb-1", Name: "Sales", Project: &tableau.Project{Name: "Analytics"}})
		stub.ScriptJob("job-7",
			tableau.JobPoll{Status: 500},
			tableau.JobPoll{Status: 500},
			tableau.JobPoll{Status: 500},
		)
		acts := newStubActivities(t, stub)

		_, err := runRefreshActivity(t, acts, RefreshRequest{
			ResourceKind: "workbook",
			ResourceName: "Sales",
			ProjectName:  "Analytics",
		})
		appErr := activityError(t, err)
		if appErr.Type() != "JobPollingError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "JobPollingError")
		}
		if appErr.NonRetryable() {
			t.Error("an exhausted polling budget should stay retryable")
		}
	})
}

// =============================================================================
// ERROR CLASSIFICATION TESTS
// =============================================================================

func TestApplicationError(t *testing.T) {
	t.Run("retryable taxonomy errors stay retryable", func(t *testing.T) {
		err := applicationError(tableau.NewError(tableau.CodeJobPolling, true, errors.New("3 consecutive failures")))
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected application error, got %T", err)
		}
		if appErr.Type() != "JobPollingError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "JobPollingError")
		}
		if appErr.NonRetryable() {
			t.Error("retryable taxonomy error converted to non-retryable")
		}
	})

	t.Run("non-retryable taxonomy errors are marked non-retryable", func(t *testing.T) {
		err := applicationError(tableau.NewError(tableau.CodeConfiguration, false, errors.New("token missing")))
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("expected application error, got %T", err)
		}
		if appErr.Type() != "ConfigurationError" {
			t.Errorf("Type = %q, want %q", appErr.Type(), "ConfigurationError")
		}
		if !appErr.NonRetryable() {
			t.Error("configuration error must be non-retryable")
		}
	})

	t.Run("errors outside the taxonomy pass through", func(t *testing.T) {
		plain := errors.New("context deadline exceeded")
		if got := applicationError(plain); got != plain {
			t.Errorf("applicationError rewrote a foreign error: %v", got)
		}

		unknown := tableau.NewError("E_SOMETHING_NEW", false, errors.New("x"))
		if got := applicationError(unknown); got != error(unknown) {
			t.Errorf("applicationError rewrote an unknown code: %v", got)
		}
	})
}
