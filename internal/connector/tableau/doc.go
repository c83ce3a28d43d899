// Package tableau implements a Tableau REST API connector scoped to extract
// refresh orchestration: personal access token sign-in, workbook and
// datasource directory lookups, refresh triggers, and job polling.
//
// Structure:
//
//	tableau.go   - client, version negotiation, sign-in, sessions
//	types.go     - configuration and REST payload types
//	directory.go - workbook/datasource lookups by name and project
//	actions.go   - extract refresh triggers
//	jobs.go      - job snapshots and the wait loop
//	errors.go    - error taxonomy with retryability hints
//	stub.go      - in-process stub server for tests
package tableau
