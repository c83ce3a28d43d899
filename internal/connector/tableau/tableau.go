package tableau

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nucleus/tableau-worker/internal/connector/http"
)

// =============================================================================
// TABLEAU CONNECTOR
// REST API client for triggering and observing extract refresh jobs.
// =============================================================================

// Client talks to one Tableau server with one set of credentials. It is
// unauthenticated until SignIn produces a Session; the same Client can open
// any number of sessions, each task execution owning its own.
type Client struct {
	config *Config
	http   *http.Client
}

// New creates a new Tableau connector with the given configuration.
// Configuration problems (missing token name or secret) fail here, before
// any network traffic.
func New(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	httpConfig := config.ClientConfig
	if httpConfig == nil {
		httpConfig = http.DefaultClientConfig()
	}
	httpConfig.BaseURL = strings.TrimSuffix(config.ServerURL, "/")
	if httpConfig.Headers == nil {
		httpConfig.Headers = make(map[string]string)
	}
	httpConfig.Headers["Accept"] = "application/json"

	return &Client{
		config: config,
		http:   http.NewClient(httpConfig),
	}, nil
}

// ServerInfo fetches the server build and REST API version. The endpoint is
// unauthenticated, so it doubles as a reachability probe.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	resp, err := c.http.Get(ctx, apiPath(DefaultAPIVersion, "serverinfo"), nil)
	if err != nil {
		return nil, fmt.Errorf("server info: %w", err)
	}

	var out serverInfoResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode server info: %w", err)
	}
	if out.ServerInfo == nil {
		return nil, fmt.Errorf("server info: empty response")
	}
	return out.ServerInfo, nil
}

// apiVersion returns the REST API version to sign in with: the pinned
// version when the config carries one, otherwise the version the server
// reports, otherwise the default.
func (c *Client) apiVersion(ctx context.Context) string {
	if c.config.APIVersion != "" {
		return c.config.APIVersion
	}
	info, err := c.ServerInfo(ctx)
	if err != nil || info.RestAPIVersion == "" {
		return DefaultAPIVersion
	}
	return info.RestAPIVersion
}

// SignIn authenticates with the personal access token and returns a
// session bound to the configured site. One authenticated round-trip, plus
// one unauthenticated version probe unless the config pins APIVersion.
func (c *Client) SignIn(ctx context.Context) (*Session, error) {
	version := c.apiVersion(ctx)

	req := signInRequest{
		Credentials: signInCredentials{
			PersonalAccessTokenName:   c.config.TokenName,
			PersonalAccessTokenSecret: c.config.TokenSecret,
			Site:                      siteRef{ContentURL: c.config.SiteID},
		},
	}

	resp, err := c.http.Post(ctx, apiPath(version, "auth", "signin"), req)
	if err != nil {
		var httpErr *http.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == 401 {
			return nil, wrapError(CodeConfiguration, false,
				fmt.Errorf("sign in to %s: personal access token rejected: %s", c.config.ServerURL, apiMessage(err)))
		}
		return nil, fmt.Errorf("sign in to %s: %w", c.config.ServerURL, err)
	}

	var out signInResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode sign in response: %w", err)
	}
	if out.Credentials.Token == "" {
		return nil, fmt.Errorf("sign in to %s: no credentials token in response", c.config.ServerURL)
	}

	return &Session{
		client:         c.http.WithAuth(http.TableauAuth{Token: out.Credentials.Token}),
		apiVersion:     version,
		SiteID:         out.Credentials.Site.ID,
		SiteContentURL: out.Credentials.Site.ContentURL,
		UserID:         out.Credentials.User.ID,
	}, nil
}

// =============================================================================
// SESSION
// =============================================================================

// Session is an authenticated handle bound to one site. It is not safe for
// concurrent use across task executions; each execution opens its own and
// closes it exactly once.
type Session struct {
	client     *http.Client
	apiVersion string

	// SiteID is the site LUID the session is scoped to.
	SiteID string
	// SiteContentURL is the site's content URL ("" on the default site).
	SiteContentURL string
	// UserID is the authenticated user's LUID.
	UserID string
}

// APIVersion returns the negotiated REST API version of the session.
func (s *Session) APIVersion() string {
	return s.apiVersion
}

// SignOut invalidates the session token. Best effort: a server that already
// dropped the session counts as signed out.
func (s *Session) SignOut(ctx context.Context) error {
	_, err := s.client.Post(ctx, apiPath(s.apiVersion, "auth", "signout"), nil)
	if err != nil {
		var httpErr *http.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == 401 {
			return nil
		}
		return fmt.Errorf("sign out: %s", apiMessage(err))
	}
	return nil
}

// sitePath builds a REST path scoped to the session's site.
func (s *Session) sitePath(parts ...string) string {
	return apiPath(s.apiVersion, append([]string{"sites", s.SiteID}, parts...)...)
}

// =============================================================================
// HELPERS
// =============================================================================

func apiPath(version string, parts ...string) string {
	return "api/" + version + "/" + strings.Join(parts, "/")
}

// apiMessage extracts the server's error summary from a failed call. The
// REST API wraps failures in an error envelope; anything else falls back to
// the raw error text.
func apiMessage(err error) string {
	var httpErr *http.HTTPError
	if !errors.As(err, &httpErr) {
		return err.Error()
	}

	var envelope errorResponse
	if jsonErr := json.Unmarshal([]byte(httpErr.Message), &envelope); jsonErr == nil && envelope.Error.Summary != "" {
		if envelope.Error.Detail != "" {
			return fmt.Sprintf("%s (code %s): %s", envelope.Error.Summary, envelope.Error.Code, envelope.Error.Detail)
		}
		return envelope.Error.Summary
	}
	return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
}
