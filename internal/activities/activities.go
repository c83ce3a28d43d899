package activities

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/nucleus/tableau-worker/internal/connector/tableau"
	"github.com/nucleus/tableau-worker/internal/refresh"
)

// Activities holds the Tableau Temporal activities.
type Activities struct {
	engine *refresh.Engine
}

// NewActivities creates a new Activities instance around a refresh engine.
func NewActivities(engine *refresh.Engine) *Activities {
	return &Activities{engine: engine}
}

// =============================================================================
// ACTIVITY: RefreshResource
// =============================================================================

// RefreshResource triggers an extract refresh and, for blocking requests,
// waits for the job to finish, heartbeating on every poll. The activity
// blocks its worker slot for the whole wait, which can run for many minutes;
// activity options must budget for that.
func (a *Activities) RefreshResource(ctx context.Context, req RefreshRequest) (*RefreshResult, error) {
	logger := activity.GetLogger(ctx)

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger.Info("refreshing resource",
		"requestId", requestID, "kind", req.ResourceKind, "name", req.ResourceName,
		"project", req.ProjectName, "connectionId", req.ConnectionID)

	result, err := a.engine.Execute(ctx, refresh.Request{
		Kind:         refresh.Kind(req.ResourceKind),
		Name:         req.ResourceName,
		Project:      req.ProjectName,
		SiteID:       req.SiteID,
		ConnectionID: req.ConnectionID,
		Blocking:     req.BlockingRefresh,
		RequestID:    requestID,
		OnPoll: func(job *tableau.Job) {
			activity.RecordHeartbeat(ctx, job.ID, job.Progress)
		},
	})
	if err != nil {
		logger.Error("refresh failed", "requestId", requestID, "error", err)
		return nil, applicationError(err)
	}

	logger.Info("refresh finished",
		"requestId", requestID, "jobId", result.JobID, "status", result.Status)

	return &RefreshResult{
		JobID:      result.JobID,
		ResourceID: result.ResourceID,
		Status:     string(result.Status),
		FinishedAt: result.FinishedAt,
	}, nil
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// errorTypes maps connector error codes to the application error types the
// host platform's retry policies match on.
var errorTypes = map[string]string{
	tableau.CodeConfiguration:       "ConfigurationError",
	tableau.CodeUnsupportedResource: "UnsupportedResourceError",
	tableau.CodeResourceNotFound:    "ResourceNotFoundError",
	tableau.CodeRemoteAction:        "RemoteActionError",
	tableau.CodeJobPolling:          "JobPollingError",
	tableau.CodeJobFailed:           "JobFailedError",
	tableau.CodeJobCancelled:        "JobCancelledError",
	tableau.CodeJobTimeout:          "JobTimeoutError",
}

// applicationError converts engine failures into typed application errors.
// Fatal outcomes (caller bugs, missing credentials, terminal job failures)
// are marked non-retryable so the platform does not re-trigger a refresh
// that cannot succeed; transient ones stay retryable.
func applicationError(err error) error {
	var te *tableau.Error
	if !errors.As(err, &te) {
		return err
	}
	errType, ok := errorTypes[te.Code]
	if !ok {
		return err
	}
	if te.Retryable {
		return temporal.NewApplicationError(te.Error(), errType)
	}
	return temporal.NewNonRetryableApplicationError(te.Error(), errType, te.Unwrap())
}
