package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EnvPrefix is the environment variable prefix records are looked up under.
const EnvPrefix = "TABLEAU_CONN_"

// EnvResolver resolves records from environment variables. A record with id
// "tableau_default" is read from TABLEAU_CONN_TABLEAU_DEFAULT, holding the
// record as JSON.
type EnvResolver struct {
	// Prefix overrides EnvPrefix. Mostly for tests.
	Prefix string
}

// Resolve implements Resolver.
func (r EnvResolver) Resolve(_ context.Context, id string) (*Record, error) {
	raw := os.Getenv(r.key(id))
	if raw == "" {
		return nil, fmt.Errorf("connection %q: %w", id, ErrNotFound)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("connection %q: parse %s: %w", id, r.key(id), err)
	}
	rec.ID = id
	return &rec, nil
}

func (r EnvResolver) key(id string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	mangled := strings.ToUpper(id)
	mangled = strings.NewReplacer("-", "_", ".", "_").Replace(mangled)
	return prefix + mangled
}
