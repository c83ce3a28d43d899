package refresh

import (
	"context"

	"github.com/nucleus/tableau-worker/internal/connection"
	"github.com/nucleus/tableau-worker/internal/connector/http"
	"github.com/nucleus/tableau-worker/internal/connector/tableau"
)

// ServerSource opens sessions against live Tableau servers. Credential
// validation happens before any network traffic; a record without token
// fields never produces a request.
type ServerSource struct {
	// HTTP tunes the client used by every opened session. Nil uses the
	// connector defaults.
	HTTP *http.ClientConfig
}

var _ SessionSource = (*ServerSource)(nil)

// Open implements SessionSource.
func (s *ServerSource) Open(ctx context.Context, rec *connection.Record, siteID string) (Session, error) {
	var clientConfig *http.ClientConfig
	if s.HTTP != nil {
		// Copy so per-session base URLs and headers never leak between
		// records; concurrent opens share s.HTTP.
		cp := *s.HTTP
		if cp.Headers != nil {
			headers := make(map[string]string, len(cp.Headers))
			for k, v := range cp.Headers {
				headers[k] = v
			}
			cp.Headers = headers
		}
		clientConfig = &cp
	}

	client, err := tableau.New(&tableau.Config{
		ServerURL:    rec.Host,
		SiteID:       siteID,
		TokenName:    rec.TokenName,
		TokenSecret:  rec.TokenSecret,
		APIVersion:   rec.APIVersion,
		ClientConfig: clientConfig,
	})
	if err != nil {
		return nil, err
	}
	return client.SignIn(ctx)
}
