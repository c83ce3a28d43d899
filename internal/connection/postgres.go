package connection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// Store resolves records from the host platform's PostgreSQL connection
// table (columns conn_id, host, extra; token fields live in the extra JSON).
// The worker only ever reads it.
type Store struct {
	db *sql.DB
}

// NewStore connects to the platform database at the given PostgreSQL URL.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("connections database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connections database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping connections database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type recordExtra struct {
	SiteID      string `json:"site_id"`
	TokenName   string `json:"token_name"`
	TokenSecret string `json:"personal_access_token"`
	APIVersion  string `json:"api_version"`
}

// Resolve implements Resolver.
func (s *Store) Resolve(ctx context.Context, id string) (*Record, error) {
	var host, extra sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT host, extra FROM connection WHERE conn_id = $1`, id,
	).Scan(&host, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connection %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("connection %q: query: %w", id, err)
	}

	rec := &Record{ID: id, Host: host.String}
	if extra.Valid && extra.String != "" {
		var ex recordExtra
		if err := json.Unmarshal([]byte(extra.String), &ex); err != nil {
			return nil, fmt.Errorf("connection %q: parse extra: %w", id, err)
		}
		rec.SiteID = ex.SiteID
		rec.TokenName = ex.TokenName
		rec.TokenSecret = ex.TokenSecret
		rec.APIVersion = ex.APIVersion
	}
	return rec, nil
}
