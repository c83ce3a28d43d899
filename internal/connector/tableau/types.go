package tableau

import (
	"fmt"
	"strings"

	"github.com/nucleus/tableau-worker/internal/connector/http"
)

// Config holds Tableau server connection configuration.
type Config struct {
	// ServerURL is the Tableau server URL (e.g., https://tableau.example.com)
	ServerURL string `json:"serverUrl"`

	// SiteID is the site content URL; empty selects the server's default site
	SiteID string `json:"siteId,omitempty"`

	// TokenName is the personal access token name
	TokenName string `json:"tokenName"`

	// TokenSecret is the personal access token secret
	TokenSecret string `json:"tokenSecret"`

	// APIVersion pins the REST API version; empty negotiates it from the
	// server's /serverinfo endpoint
	APIVersion string `json:"apiVersion,omitempty"`

	// ClientConfig overrides HTTP client behavior (timeouts, retries, rate
	// limits). Nil uses defaults.
	ClientConfig *http.ClientConfig `json:"-"`
}

// DefaultAPIVersion is the REST API version used before negotiation.
// Personal access token sign-in needs 3.6 or later.
const DefaultAPIVersion = "3.6"

// Validate validates the configuration. All missing required fields are
// reported together so a broken connection record surfaces in one pass.
func (c *Config) Validate() error {
	var missing []string
	if c.ServerURL == "" {
		missing = append(missing, "serverUrl")
	}
	if c.TokenName == "" {
		missing = append(missing, "tokenName")
	}
	if c.TokenSecret == "" {
		missing = append(missing, "tokenSecret")
	}
	if len(missing) > 0 {
		return wrapError(CodeConfiguration, false,
			fmt.Errorf("connection record missing required fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// =============================================================================
// TABLEAU API RESPONSE TYPES
// =============================================================================

// ServerInfo describes the remote server build and REST API version.
type ServerInfo struct {
	ProductVersion struct {
		Value string `json:"value"`
		Build string `json:"build"`
	} `json:"productVersion"`
	RestAPIVersion string `json:"restApiVersion"`
}

type serverInfoResponse struct {
	ServerInfo *ServerInfo `json:"serverInfo"`
}

type siteRef struct {
	ID         string `json:"id,omitempty"`
	ContentURL string `json:"contentUrl"`
}

type userRef struct {
	ID string `json:"id"`
}

type signInRequest struct {
	Credentials signInCredentials `json:"credentials"`
}

type signInCredentials struct {
	PersonalAccessTokenName   string  `json:"personalAccessTokenName"`
	PersonalAccessTokenSecret string  `json:"personalAccessTokenSecret"`
	Site                      siteRef `json:"site"`
}

type signInResponse struct {
	Credentials struct {
		Token string  `json:"token"`
		Site  siteRef `json:"site"`
		User  userRef `json:"user"`
	} `json:"credentials"`
}

// Project identifies the folder a resource lives in.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Workbook represents a Tableau workbook.
type Workbook struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ContentURL string   `json:"contentUrl,omitempty"`
	Project    *Project `json:"project,omitempty"`
	CreatedAt  string   `json:"createdAt,omitempty"`
	UpdatedAt  string   `json:"updatedAt,omitempty"`
}

// Datasource represents a Tableau published datasource.
type Datasource struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      string   `json:"type,omitempty"`
	Project   *Project `json:"project,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// Pagination mirrors the REST API paging envelope. The server renders the
// counters as strings.
type Pagination struct {
	PageNumber     string `json:"pageNumber"`
	PageSize       string `json:"pageSize"`
	TotalAvailable string `json:"totalAvailable"`
}

type workbooksResponse struct {
	Pagination Pagination `json:"pagination"`
	Workbooks  struct {
		Workbook []*Workbook `json:"workbook"`
	} `json:"workbooks"`
}

type datasourcesResponse struct {
	Pagination  Pagination `json:"pagination"`
	Datasources struct {
		Datasource []*Datasource `json:"datasource"`
	} `json:"datasources"`
}

// =============================================================================
// JOBS
// =============================================================================

// Job finish codes as rendered by the REST API.
const (
	FinishCodeSuccess   = "0"
	FinishCodeFailed    = "1"
	FinishCodeCancelled = "2"
)

// JobState is the observed lifecycle state of a remote job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Job represents a server-side asynchronous unit of work. Its lifecycle is
// owned entirely by the server; this client only observes it.
type Job struct {
	ID          string       `json:"id"`
	Mode        string       `json:"mode,omitempty"`
	Type        string       `json:"type,omitempty"`
	CreatedAt   string       `json:"createdAt,omitempty"`
	StartedAt   string       `json:"startedAt,omitempty"`
	CompletedAt string       `json:"completedAt,omitempty"`
	FinishCode  string       `json:"finishCode,omitempty"`
	Progress    string       `json:"progress,omitempty"`
	StatusNotes *StatusNotes `json:"statusNotes,omitempty"`
}

// StatusNotes carries server-reported progress and failure notes.
type StatusNotes struct {
	StatusNote []StatusNote `json:"statusNote"`
}

// StatusNote is one server-reported note on a job.
type StatusNote struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value,omitempty"`
	Text  string `json:"text,omitempty"`
}

type jobResponse struct {
	Job *Job `json:"job"`
}

// State classifies the job. A job without a finish code or completion
// timestamp is still pending; an unknown finish code on a completed job is
// treated as failed.
func (j *Job) State() JobState {
	switch j.FinishCode {
	case FinishCodeSuccess:
		return JobSucceeded
	case FinishCodeFailed:
		return JobFailed
	case FinishCodeCancelled:
		return JobCancelled
	default:
		if j.CompletedAt == "" {
			return JobPending
		}
		return JobFailed
	}
}

// Notes joins the server-reported status notes into one message.
func (j *Job) Notes() string {
	if j.StatusNotes == nil || len(j.StatusNotes.StatusNote) == 0 {
		return ""
	}
	parts := make([]string, 0, len(j.StatusNotes.StatusNote))
	for _, note := range j.StatusNotes.StatusNote {
		if note.Text != "" {
			parts = append(parts, note.Text)
		}
	}
	return strings.Join(parts, "; ")
}

// =============================================================================
// ERROR ENVELOPE
// =============================================================================

type errorResponse struct {
	Error struct {
		Summary string `json:"summary"`
		Detail  string `json:"detail"`
		Code    string `json:"code"`
	} `json:"error"`
}
