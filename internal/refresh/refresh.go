// Package refresh executes resource refresh tasks against a Tableau server:
// validate the resource kind, open a session, resolve the target by project
// and name, trigger the refresh, and optionally wait for the job to finish.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.temporal.io/sdk/log"

	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
)

// Kind identifies a refreshable resource kind.
type Kind string

const (
	KindWorkbook   Kind = "workbook"
	KindDatasource Kind = "datasource"
)

// signOutTimeout bounds the best-effort sign-out so a release never hangs a
// task that already has its outcome.
const signOutTimeout = 10 * time.Second

// =============================================================================
// ACTION TABLE
// Enumerated mapping from resource kind to its directory lookup and refresh
// trigger. The table is the source of truth for which kinds support the
// refresh action; kind validation is a table lookup, never reflection.
// =============================================================================

type actionBinding struct {
	find    func(ctx context.Context, s Session, name, project string) (string, error)
	refresh func(ctx context.Context, s Session, resourceID string) (*tableau.Job, error)
}

var actionTable = map[Kind]actionBinding{
	KindWorkbook: {
		find: func(ctx context.Context, s Session, name, project string) (string, error) {
			wb, err := s.FindWorkbook(ctx, name, project)
			if err != nil {
				return "", err
			}
			return wb.ID, nil
		},
		refresh: func(ctx context.Context, s Session, id string) (*tableau.Job, error) {
			return s.RefreshWorkbook(ctx, id)
		},
	},
	KindDatasource: {
		find: func(ctx context.Context, s Session, name, project string) (string, error) {
			ds, err := s.FindDatasource(ctx, name, project)
			if err != nil {
				return "", err
			}
			return ds.ID, nil
		},
		refresh: func(ctx context.Context, s Session, id string) (*tableau.Job, error) {
			return s.RefreshDatasource(ctx, id)
		},
	},
}

// SupportedKinds lists the resource kinds the action table covers, sorted.
func SupportedKinds() []string {
	kinds := make([]string, 0, len(actionTable))
	for kind := range actionTable {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	return kinds
}

// =============================================================================
// SESSION PLUMBING
// =============================================================================

// Session is the authenticated server handle the engine drives. Implemented
// by *tableau.Session; faked in tests.
type Session interface {
	FindWorkbook(ctx context.Context, name, projectName string) (*tableau.Workbook, error)
	FindDatasource(ctx context.Context, name, projectName string) (*tableau.Datasource, error)
	RefreshWorkbook(ctx context.Context, id string) (*tableau.Job, error)
	RefreshDatasource(ctx context.Context, id string) (*tableau.Job, error)
	WaitForJob(ctx context.Context, jobID string, opts tableau.WaitOptions) (*tableau.Job, error)
	SignOut(ctx context.Context) error
}

// SessionSource opens an authenticated session for a connection record.
// siteID overrides the record's site when non-empty.
type SessionSource interface {
	Open(ctx context.Context, rec *connection.Record, siteID string) (Session, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Options tunes an Engine.
type Options struct {
	// DefaultConnectionID is used when a request names no connection.
	// Empty falls back to connection.DefaultConnectionID.
	DefaultConnectionID string

	// Wait tunes the blocking job wait loop.
	Wait tableau.WaitOptions

	// Logger receives engine progress. Nil uses the SDK default logger.
	Logger log.Logger
}

// Engine runs refresh tasks. Each execution opens its own session and blocks
// the caller until the task is done; concurrent executions never share a
// session. Safe for concurrent use.
type Engine struct {
	connections connection.Resolver
	source      SessionSource
	defaultConn string
	wait        tableau.WaitOptions
	logger      log.Logger
}

// New creates an Engine. The action table is checked here so an incomplete
// binding fails worker startup, not the first task that hits it.
func New(connections connection.Resolver, source SessionSource, opts Options) (*Engine, error) {
	if connections == nil {
		return nil, fmt.Errorf("connection resolver is required")
	}
	if source == nil {
		return nil, fmt.Errorf("session source is required")
	}
	for kind, binding := range actionTable {
		if binding.find == nil || binding.refresh == nil {
			return nil, fmt.Errorf("action table entry %q is incomplete", kind)
		}
	}

	defaultConn := opts.DefaultConnectionID
	if defaultConn == "" {
		defaultConn = connection.DefaultConnectionID
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewStructuredLogger(slog.Default())
	}

	return &Engine{
		connections: connections,
		source:      source,
		defaultConn: defaultConn,
		wait:        opts.Wait,
		logger:      logger,
	}, nil
}

// Request describes one refresh task execution.
type Request struct {
	// Kind of the target resource; must be in the action table.
	Kind Kind

	// Name of the target resource.
	Name string

	// Project the resource lives in.
	Project string

	// SiteID overrides the connection record's site when non-empty.
	SiteID string

	// ConnectionID names the stored connection. Empty uses the engine's
	// default connection id.
	ConnectionID string

	// Blocking waits for the refresh job to reach a terminal state.
	// Nil defaults to true.
	Blocking *bool

	// RequestID correlates log lines for this execution.
	RequestID string

	// OnPoll observes each job snapshot seen while waiting.
	OnPoll func(job *tableau.Job)
}

func (r Request) blocking() bool {
	return r.Blocking == nil || *r.Blocking
}

// Result is the outcome of a refresh task execution.
type Result struct {
	// JobID identifies the server-side refresh job.
	JobID string

	// ResourceID is the resolved target resource id.
	ResourceID string

	// Status is the last observed job state: pending for non-blocking
	// requests, succeeded after a blocking wait.
	Status tableau.JobState

	// FinishedAt is the server-reported completion timestamp, blocking
	// requests only.
	FinishedAt string
}

// Execute runs one refresh task: validate the kind, open a session, resolve
// the resource id (first directory match wins), trigger the refresh, and
// wait for the job when the request is blocking. The session is released on
// every exit path, exactly once; a sign-out failure is logged and never
// replaces the task's outcome.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	binding, ok := actionTable[req.Kind]
	if !ok {
		return nil, tableau.NewError(tableau.CodeUnsupportedResource, false,
			fmt.Errorf("resource kind %q does not support refresh (supported kinds: %s)",
				req.Kind, strings.Join(SupportedKinds(), ", ")))
	}

	connID := req.ConnectionID
	if connID == "" {
		connID = e.defaultConn
	}
	rec, err := e.connections.Resolve(ctx, connID)
	if err != nil {
		return nil, tableau.NewError(tableau.CodeConfiguration, false,
			fmt.Errorf("resolve connection %q: %w", connID, err))
	}

	// Site passed with the request wins over the record's.
	siteID := req.SiteID
	if siteID == "" {
		siteID = rec.SiteID
	}

	e.logger.Info("opening tableau session",
		"requestId", req.RequestID, "connectionId", connID, "host", rec.Host, "site", siteID)

	session, err := e.source.Open(ctx, rec, siteID)
	if err != nil {
		return nil, err
	}
	defer func() {
		soCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
		defer cancel()
		if err := session.SignOut(soCtx); err != nil {
			e.logger.Warn("sign out failed",
				"requestId", req.RequestID, "connectionId", connID, "error", err)
		}
	}()

	resourceID, err := binding.find(ctx, session, req.Name, req.Project)
	if err != nil {
		return nil, err
	}
	e.logger.Info("resolved resource",
		"requestId", req.RequestID, "kind", req.Kind, "name", req.Name,
		"project", req.Project, "resourceId", resourceID)

	job, err := binding.refresh(ctx, session, resourceID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("refresh triggered",
		"requestId", req.RequestID, "kind", req.Kind, "resourceId", resourceID, "jobId", job.ID)

	if !req.blocking() {
		e.logger.Info("not waiting for job, completion unknown",
			"requestId", req.RequestID, "jobId", job.ID)
		return &Result{JobID: job.ID, ResourceID: resourceID, Status: tableau.JobPending}, nil
	}

	terminal, err := session.WaitForJob(ctx, job.ID, e.waitOptions(req))
	if err != nil {
		return nil, err
	}
	e.logger.Info("job finished",
		"requestId", req.RequestID, "jobId", terminal.ID, "completedAt", terminal.CompletedAt)

	return &Result{
		JobID:      terminal.ID,
		ResourceID: resourceID,
		Status:     terminal.State(),
		FinishedAt: terminal.CompletedAt,
	}, nil
}

// waitOptions layers the request's observer over the engine's wait tuning.
func (e *Engine) waitOptions(req Request) tableau.WaitOptions {
	opts := e.wait
	base := opts.OnPoll
	opts.OnPoll = func(job *tableau.Job) {
		e.logger.Debug("job polled",
			"requestId", req.RequestID, "jobId", job.ID, "progress", job.Progress)
		if base != nil {
			base(job)
		}
		if req.OnPoll != nil {
			req.OnPoll(job)
		}
	}
	return opts
}
