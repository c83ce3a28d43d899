// Package connection resolves named connection records from the host
// platform's configuration store. Records are read-only to this worker;
// their lifecycle belongs to the platform.
package connection

import (
	"context"
	"errors"
	"fmt"
)

// DefaultConnectionID is the documented default record looked up when a
// caller does not name one.
const DefaultConnectionID = "tableau_default"

// ErrNotFound marks a connection id with no record in a resolver.
var ErrNotFound = errors.New("connection not found")

// Record is one stored connection. Field names on the wire follow the host
// platform's connection schema.
type Record struct {
	// ID is the connection id the record was resolved under.
	ID string `json:"-" yaml:"-"`

	// Host is the server URL, scheme included.
	Host string `json:"host" yaml:"host"`

	// SiteID is the site content URL; empty selects the default site.
	SiteID string `json:"site_id,omitempty" yaml:"site_id,omitempty"`

	// TokenName is the personal access token name.
	TokenName string `json:"token_name,omitempty" yaml:"token_name,omitempty"`

	// TokenSecret is the personal access token secret.
	TokenSecret string `json:"personal_access_token,omitempty" yaml:"personal_access_token,omitempty"`

	// APIVersion optionally pins the REST API version.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
}

// Resolver looks up a connection record by id.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*Record, error)
}

// Chain tries resolvers in order and returns the first record found.
// Resolver errors other than a miss stop the chain.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, id string) (*Record, error) {
	for _, r := range c {
		rec, err := r.Resolve(ctx, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connection %q: %w", id, ErrNotFound)
}
