package tableau

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// StubServer hosts an in-memory Tableau REST API for tests (no network
// listeners). Directory content, refresh outcomes and job poll responses
// are scripted by the test.
type StubServer struct {
	mu sync.Mutex

	tokenName    string
	tokenSecret  string
	sessionToken string
	siteLUID     string

	restAPIVersion   string
	serverInfoStatus int

	workbooks   []*Workbook
	datasources []*Datasource

	refreshStatus  int
	refreshSummary string
	refreshDetail  string

	jobs     map[string]*stubJob
	jobQueue []string
	nextJob  int

	signedIn       bool
	requests       int
	serverInfos    int
	signIns        int
	signOuts       int
	lastFilter     map[string]string
	lastSignInSite string

	handler   http.Handler
	transport http.RoundTripper
	baseURL   string
}

type stubJob struct {
	polls  []JobPoll
	served int
}

// JobPoll scripts one job status response. A zero Status serves the Job with
// 200; any other status serves a REST error envelope instead.
type JobPoll struct {
	Status int
	Job    *Job
}

// NewStubServer constructs a deterministic stub without binding to a port.
func NewStubServer() *StubServer {
	s := &StubServer{
		tokenName:      "refresh-bot",
		tokenSecret:    "stub-secret",
		sessionToken:   "stub-session-token",
		siteLUID:       "stub-site-luid",
		restAPIVersion: "3.24",
		jobs:           map[string]*stubJob{},
		lastFilter:     map[string]string{},
		baseURL:        "http://stub.tableau.local",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.handler = mux
	s.transport = &stubRoundTripper{handler: mux}
	return s
}

// URL returns the stub base URL (no network listener is used).
func (s *StubServer) URL() string {
	return s.baseURL
}

// Transport returns a RoundTripper that serves requests in-process.
func (s *StubServer) Transport() http.RoundTripper {
	return s.transport
}

// Close is a no-op for compatibility with server-backed stubs.
func (s *StubServer) Close() {}

// Credentials returns the token name and secret sign-in accepts.
func (s *StubServer) Credentials() (name, secret string) {
	return s.tokenName, s.tokenSecret
}

// SetRestAPIVersion changes the version /serverinfo advertises.
func (s *StubServer) SetRestAPIVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restAPIVersion = v
}

// FailServerInfo makes /serverinfo respond with the given status.
func (s *StubServer) FailServerInfo(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverInfoStatus = status
}

// AddWorkbook adds a workbook to the directory.
func (s *StubServer) AddWorkbook(wb *Workbook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbooks = append(s.workbooks, wb)
}

// AddDatasource adds a datasource to the directory.
func (s *StubServer) AddDatasource(ds *Datasource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasources = append(s.datasources, ds)
}

// FailRefreshes rejects refresh triggers with the given status and message.
func (s *StubServer) FailRefreshes(status int, summary, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
	s.refreshSummary = summary
	s.refreshDetail = detail
}

// ScriptJob registers the job id the next refresh trigger returns and the
// poll responses its status endpoint serves, in order. The last poll entry
// repeats once the script is exhausted.
func (s *StubServer) ScriptJob(id string, polls ...JobPoll) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id] = &stubJob{polls: polls}
	s.jobQueue = append(s.jobQueue, id)
}

// Requests returns the total number of requests served.
func (s *StubServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// ServerInfoCalls returns the number of /serverinfo probes served.
func (s *StubServer) ServerInfoCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfos
}

// SignIns returns the number of successful sign-ins.
func (s *StubServer) SignIns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signIns
}

// SignOuts returns the number of sign-outs served.
func (s *StubServer) SignOuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signOuts
}

// JobPolls returns how many status polls a job has served.
func (s *StubServer) JobPolls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.served
	}
	return 0
}

// LastFilter returns the filter expression of the latest directory query
// for "workbooks" or "datasources".
func (s *StubServer) LastFilter(resource string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFilter[resource]
}

// LastSignInSite returns the site content URL of the latest sign-in.
func (s *StubServer) LastSignInSite() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignInSite
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *StubServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" {
		writeStubError(w, http.StatusNotFound, "404000", "Unknown Resource", r.URL.Path)
		return
	}
	rest := parts[2:]

	switch {
	case rest[0] == "serverinfo":
		s.handleServerInfo(w)
	case rest[0] == "auth" && len(rest) == 2 && rest[1] == "signin":
		s.handleSignIn(w, r)
	case rest[0] == "auth" && len(rest) == 2 && rest[1] == "signout":
		s.handleSignOut(w, r)
	case rest[0] == "sites" && len(rest) >= 3:
		if !s.authorized(r) {
			writeStubError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid or expired credentials token")
			return
		}
		s.handleSite(w, r, rest)
	default:
		writeStubError(w, http.StatusNotFound, "404000", "Unknown Resource", r.URL.Path)
	}
}

func (s *StubServer) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn && r.Header.Get("X-Tableau-Auth") == s.sessionToken
}

func (s *StubServer) handleServerInfo(w http.ResponseWriter) {
	s.mu.Lock()
	s.serverInfos++
	status := s.serverInfoStatus
	version := s.restAPIVersion
	s.mu.Unlock()

	if status != 0 {
		writeStubError(w, status, fmt.Sprintf("%d000", status), "Server Info Unavailable", "")
		return
	}
	writeStubJSON(w, map[string]any{
		"serverInfo": map[string]any{
			"productVersion": map[string]string{"value": "2024.2.1", "build": "20242.24.0711.1032"},
			"restApiVersion": version,
		},
	})
}

func (s *StubServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStubError(w, http.StatusBadRequest, "400000", "Bad Request", err.Error())
		return
	}

	s.mu.Lock()
	ok := req.Credentials.PersonalAccessTokenName == s.tokenName &&
		req.Credentials.PersonalAccessTokenSecret == s.tokenSecret
	if ok {
		s.signIns++
		s.signedIn = true
		s.lastSignInSite = req.Credentials.Site.ContentURL
	}
	token := s.sessionToken
	siteLUID := s.siteLUID
	s.mu.Unlock()

	if !ok {
		writeStubError(w, http.StatusUnauthorized, "401001", "Signin Error", "personal access token is invalid")
		return
	}
	writeStubJSON(w, map[string]any{
		"credentials": map[string]any{
			"token": token,
			"site":  map[string]string{"id": siteLUID, "contentUrl": req.Credentials.Site.ContentURL},
			"user":  map[string]string{"id": "stub-user-luid"},
		},
	})
}

func (s *StubServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeStubError(w, http.StatusUnauthorized, "401002", "Unauthorized Access", "invalid or expired credentials token")
		return
	}
	s.mu.Lock()
	s.signOuts++
	s.signedIn = false
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *StubServer) handleSite(w http.ResponseWriter, r *http.Request, rest []string) {
	resource := rest[2]
	switch {
	case resource == "workbooks" && len(rest) == 3:
		s.handleWorkbooks(w, r)
	case resource == "workbooks" && len(rest) == 5 && rest[4] == "refresh":
		s.handleRefresh(w, "RefreshExtract")
	case resource == "datasources" && len(rest) == 3:
		s.handleDatasources(w, r)
	case resource == "datasources" && len(rest) == 5 && rest[4] == "refresh":
		s.handleRefresh(w, "RefreshExtract")
	case resource == "jobs" && len(rest) == 4:
		s.handleJob(w, rest[3])
	default:
		writeStubError(w, http.StatusNotFound, "404000", "Unknown Resource", r.URL.Path)
	}
}

func (s *StubServer) handleWorkbooks(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	name, project := parseStubFilter(filter)

	s.mu.Lock()
	s.lastFilter["workbooks"] = filter
	matches := make([]*Workbook, 0)
	for _, wb := range s.workbooks {
		if wb.Name == name && wb.Project != nil && wb.Project.Name == project {
			matches = append(matches, wb)
		}
	}
	s.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"pagination": stubPagination(len(matches)),
		"workbooks":  map[string]any{"workbook": matches},
	})
}

func (s *StubServer) handleDatasources(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	name, project := parseStubFilter(filter)

	s.mu.Lock()
	s.lastFilter["datasources"] = filter
	matches := make([]*Datasource, 0)
	for _, ds := range s.datasources {
		if ds.Name == name && ds.Project != nil && ds.Project.Name == project {
			matches = append(matches, ds)
		}
	}
	s.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"pagination":  stubPagination(len(matches)),
		"datasources": map[string]any{"datasource": matches},
	})
}

func (s *StubServer) handleRefresh(w http.ResponseWriter, jobType string) {
	s.mu.Lock()
	if s.refreshStatus != 0 {
		status, summary, detail := s.refreshStatus, s.refreshSummary, s.refreshDetail
		s.mu.Unlock()
		writeStubError(w, status, fmt.Sprintf("%d093", status), summary, detail)
		return
	}
	var id string
	if len(s.jobQueue) > 0 {
		id = s.jobQueue[0]
		s.jobQueue = s.jobQueue[1:]
	} else {
		s.nextJob++
		id = fmt.Sprintf("stub-job-%d", s.nextJob)
	}
	s.mu.Unlock()

	writeStubJSON(w, map[string]any{
		"job": map[string]string{"id": id, "mode": "Asynchronous", "type": jobType},
	})
}

func (s *StubServer) handleJob(w http.ResponseWriter, id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || len(job.polls) == 0 {
		s.mu.Unlock()
		writeStubError(w, http.StatusNotFound, "404013", "Resource Not Found", "job "+id)
		return
	}
	idx := job.served
	if idx >= len(job.polls) {
		idx = len(job.polls) - 1
	}
	job.served++
	poll := job.polls[idx]
	s.mu.Unlock()

	if poll.Status != 0 && poll.Status != http.StatusOK {
		writeStubError(w, poll.Status, fmt.Sprintf("%d000", poll.Status), "Job Status Unavailable", "")
		return
	}
	writeStubJSON(w, map[string]any{"job": poll.Job})
}

// =============================================================================
// HELPERS
// =============================================================================

func parseStubFilter(raw string) (name, project string) {
	for _, clause := range strings.Split(raw, ",") {
		kv := strings.SplitN(clause, ":eq:", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "name":
			name = kv[1]
		case "projectName":
			project = kv[1]
		}
	}
	return name, project
}

func stubPagination(total int) map[string]string {
	return map[string]string{
		"pageNumber":     "1",
		"pageSize":       "100",
		"totalAvailable": strconv.Itoa(total),
	}
}

func writeStubJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeStubError(w http.ResponseWriter, status int, code, summary, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"summary": summary, "detail": detail, "code": code},
	})
}

type stubRoundTripper struct {
	handler http.Handler
}

func (rt *stubRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, req)
	res := rr.Result()
	res.Request = req
	return res, nil
}
