package tableau

import (
	"context"
	"fmt"
	"net/url"
)

// =============================================================================
// RESOURCE DIRECTORY
// Lookups run against the live directory at call time, no caching. When a
// name is duplicated within a project the server's response order decides:
// the first entry wins.
// =============================================================================

// directoryFilter builds the REST filter expression for an exact
// name/project match.
func directoryFilter(name, projectName string) string {
	return fmt.Sprintf("name:eq:%s,projectName:eq:%s", name, projectName)
}

// FindWorkbook returns the first workbook named name inside projectName.
func (s *Session) FindWorkbook(ctx context.Context, name, projectName string) (*Workbook, error) {
	query := url.Values{}
	query.Set("filter", directoryFilter(name, projectName))

	resp, err := s.client.Get(ctx, s.sitePath("workbooks"), query)
	if err != nil {
		return nil, fmt.Errorf("list workbooks: %w", err)
	}

	var out workbooksResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode workbooks response: %w", err)
	}

	matches := out.Workbooks.Workbook
	if len(matches) == 0 {
		return nil, wrapError(CodeResourceNotFound, false,
			fmt.Errorf("workbook %q not found in project %q", name, projectName))
	}
	return matches[0], nil
}

// FindDatasource returns the first datasource named name inside projectName.
func (s *Session) FindDatasource(ctx context.Context, name, projectName string) (*Datasource, error) {
	query := url.Values{}
	query.Set("filter", directoryFilter(name, projectName))

	resp, err := s.client.Get(ctx, s.sitePath("datasources"), query)
	if err != nil {
		return nil, fmt.Errorf("list datasources: %w", err)
	}

	var out datasourcesResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode datasources response: %w", err)
	}

	matches := out.Datasources.Datasource
	if len(matches) == 0 {
		return nil, wrapError(CodeResourceNotFound, false,
			fmt.Errorf("datasource %q not found in project %q", name, projectName))
	}
	return matches[0], nil
}
