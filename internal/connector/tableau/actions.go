package tableau

import (
	"context"
	"fmt"

	"github.com/nucleus/tableau-worker/internal/connector/http"
)

// =============================================================================
// REFRESH ACTIONS
// Both trigger an asynchronous extract refresh; the server queues a job and
// returns its id immediately. Whether the job is awaited is the caller's
// choice.
// =============================================================================

// RefreshWorkbook queues an extract refresh of the workbook with the given
// id and returns the queued job.
func (s *Session) RefreshWorkbook(ctx context.Context, id string) (*Job, error) {
	return s.triggerRefresh(ctx, "workbook", id, s.sitePath("workbooks", id, "refresh"))
}

// RefreshDatasource queues an extract refresh of the datasource with the
// given id and returns the queued job.
func (s *Session) RefreshDatasource(ctx context.Context, id string) (*Job, error) {
	return s.triggerRefresh(ctx, "datasource", id, s.sitePath("datasources", id, "refresh"))
}

func (s *Session) triggerRefresh(ctx context.Context, kind, id, path string) (*Job, error) {
	// The REST API wants a request envelope even when it carries nothing.
	resp, err := s.client.Post(ctx, path, map[string]any{})
	if err != nil {
		return nil, wrapError(CodeRemoteAction, http.IsRetryable(err),
			fmt.Errorf("refresh %s %s: %s", kind, id, apiMessage(err)))
	}

	var out jobResponse
	if err := resp.JSON(&out); err != nil {
		return nil, wrapError(CodeRemoteAction, false,
			fmt.Errorf("refresh %s %s: decode job response: %v", kind, id, err))
	}
	if out.Job == nil || out.Job.ID == "" {
		return nil, wrapError(CodeRemoteAction, false,
			fmt.Errorf("refresh %s %s: server returned no job id", kind, id))
	}
	return out.Job, nil
}
