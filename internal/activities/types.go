// Package activities implements Temporal activities for Tableau refresh tasks.
package activities

// RefreshRequest is the RefreshResource activity input.
type RefreshRequest struct {
	// ResourceKind is "workbook" or "datasource".
	ResourceKind string `json:"resourceKind"`

	// ResourceName is the target resource's name.
	ResourceName string `json:"resourceName"`

	// ProjectName is the Tableau project holding the resource.
	ProjectName string `json:"projectName"`

	// SiteID overrides the connection's site when non-empty.
	SiteID string `json:"siteId,omitempty"`

	// ConnectionID names the stored connection; empty uses the worker's
	// default.
	ConnectionID string `json:"connectionId,omitempty"`

	// BlockingRefresh waits for job completion. Absent defaults to true.
	BlockingRefresh *bool `json:"blockingRefresh,omitempty"`

	// RequestID correlates log lines; generated when absent.
	RequestID string `json:"requestId,omitempty"`
}

// RefreshResult is the RefreshResource activity output.
type RefreshResult struct {
	// JobID identifies the server-side refresh job.
	JobID string `json:"jobId"`

	// ResourceID is the resolved target resource id.
	ResourceID string `json:"resourceId,omitempty"`

	// Status is "pending" for non-blocking requests, "succeeded" after a
	// blocking wait.
	Status string `json:"status"`

	// FinishedAt is the server-reported completion timestamp, blocking
	// requests only.
	FinishedAt string `json:"finishedAt,omitempty"`
}
