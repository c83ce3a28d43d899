package connection

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileResolver resolves records from a YAML connections file:
//
//	connections:
//	  tableau_default:
//	    host: https://tableau.example.com
//	    site_id: analytics
//	    token_name: refresh-bot
//	    personal_access_token: "..."
//
// The file is read once at construction; a malformed file fails worker
// startup rather than the first task that needs it.
type FileResolver struct {
	path    string
	records map[string]*Record
}

type connectionsFile struct {
	Connections map[string]*Record `yaml:"connections"`
}

// NewFileResolver loads the connections file at path.
func NewFileResolver(path string) (*FileResolver, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read connections file: %w", err)
	}

	var raw connectionsFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse connections file %s: %w", path, err)
	}

	records := make(map[string]*Record, len(raw.Connections))
	for id, rec := range raw.Connections {
		if rec == nil {
			continue
		}
		rec.ID = id
		records[id] = rec
	}

	return &FileResolver{path: path, records: records}, nil
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(_ context.Context, id string) (*Record, error) {
	rec, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("connection %q in %s: %w", id, r.path, ErrNotFound)
	}
	return rec, nil
}
