package http

import (
	"net/http"
)

// =============================================================================
// AUTHENTICATION STRATEGIES
// =============================================================================

// AuthConfig represents authentication configuration.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth represents no authentication. Used for unauthenticated endpoints
// such as server info probes and the sign-in call itself.
type NoAuth struct{}

func (a NoAuth) Apply(req *http.Request) {}

// TableauAuth sends a Tableau REST API session token.
// The token is the credentials token returned by a sign-in call.
type TableauAuth struct {
	Token string
}

// Apply adds the session token header to the request.
func (a TableauAuth) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("X-Tableau-Auth", a.Token)
}
