// Package http provides a generic HTTP base client for REST API connectors.
// It carries the cross-cutting request concerns (rate limiting, retries,
// authentication, error classification) so connectors only describe their
// endpoints and payloads.
//
// Structure:
//
//	client.go - HTTP client with rate limiting and retry
//	auth.go   - Authentication strategies (none, Tableau session token)
package http
