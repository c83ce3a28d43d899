// Package temporal provides Temporal workflow definitions.
package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// =============================================================================
// WORKFLOW NAMES
// =============================================================================

const (
	RefreshResourceWorkflow = "refreshResourceWorkflow"
)

// =============================================================================
// ACTIVITY OPTIONS
// =============================================================================

// A blocking refresh holds its activity slot from trigger to terminal job
// state, sub-second to many minutes. The heartbeat fires on every poll; the
// poll interval is capped well below the heartbeat timeout.
var refreshActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 4 * time.Hour,
	HeartbeatTimeout:    5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    time.Second * 5,
		BackoffCoefficient: 2.0,
		MaximumInterval:    time.Minute * 5,
		MaximumAttempts:    3,
	},
}

// =============================================================================
// WORKFLOW INPUTS/OUTPUTS
// =============================================================================

// RefreshRunInput is the input for RefreshResourceWorkflow.
type RefreshRunInput struct {
	ResourceKind    string `json:"resourceKind"`
	ResourceName    string `json:"resourceName"`
	ProjectName     string `json:"projectName"`
	SiteID          string `json:"siteId,omitempty"`
	ConnectionID    string `json:"connectionId,omitempty"`
	BlockingRefresh *bool  `json:"blockingRefresh,omitempty"`
	RequestID       string `json:"requestId,omitempty"`
}

// RefreshRunOutput is the output of RefreshResourceWorkflow.
type RefreshRunOutput struct {
	JobID      string `json:"jobId"`
	ResourceID string `json:"resourceId,omitempty"`
	Status     string `json:"status"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// =============================================================================
// REFRESH RESOURCE WORKFLOW
// =============================================================================

// RefreshResourceWorkflowFunc defines the refresh resource workflow: one
// RefreshResource activity carrying the whole task. Errors the activity
// marked non-retryable (bad resource kind, missing credentials, terminal
// job failures) surface without further attempts; transient ones follow
// the retry policy.
func RefreshResourceWorkflowFunc(ctx workflow.Context, input RefreshRunInput) (*RefreshRunOutput, error) {
	logger := workflow.GetLogger(ctx)

	if input.ResourceKind == "" || input.ResourceName == "" || input.ProjectName == "" {
		return nil, temporal.NewApplicationError(
			"resourceKind, resourceName and projectName are required", "INVALID_INPUT")
	}

	actCtx := workflow.WithActivityOptions(ctx, refreshActivityOptions)

	var result RefreshRunOutput
	if err := workflow.ExecuteActivity(actCtx, "RefreshResource", input).Get(ctx, &result); err != nil {
		return nil, err
	}

	logger.Info("refresh run complete", "jobId", result.JobID, "status", result.Status)
	return &result, nil
}
