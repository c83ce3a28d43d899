package tableau

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nucleus/tableau-worker/internal/connector/http"
)

// =============================================================================
// JOB POLLING
// PENDING -> {SUCCEEDED, FAILED, CANCELLED}. Terminal states end polling.
// The loop blocks its caller; concurrency is the host platform's concern.
// =============================================================================

// Poll loop defaults.
const (
	DefaultPollInitialInterval = 500 * time.Millisecond
	DefaultPollMaxInterval     = 30 * time.Second
	DefaultPollMultiplier      = 2.0
	DefaultPollFailureBudget   = 3
)

// GetJob fetches the current snapshot of a job.
func (s *Session) GetJob(ctx context.Context, jobID string) (*Job, error) {
	resp, err := s.client.Get(ctx, s.sitePath("jobs", jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}

	var out jobResponse
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	if out.Job == nil {
		return nil, fmt.Errorf("get job %s: empty response", jobID)
	}
	return out.Job, nil
}

// WaitOptions tunes the job wait loop. The zero value uses the defaults.
type WaitOptions struct {
	// InitialInterval is the sleep before the second poll; the first poll
	// happens immediately. Default 500ms.
	InitialInterval time.Duration

	// MaxInterval caps the growing interval. Default 30s.
	MaxInterval time.Duration

	// Multiplier grows the interval after each poll. Default 2.0.
	Multiplier float64

	// Jitter adds up to Jitter*interval of random extra sleep. Additive
	// only, which keeps observed intervals non-decreasing as long as
	// Multiplier >= 1+Jitter. Default 0.
	Jitter float64

	// FailureBudget is the number of consecutive transient poll failures
	// tolerated before the wait gives up. A successful poll resets the
	// count. Default 3.
	FailureBudget int

	// Deadline bounds the whole wait; zero waits indefinitely, which is
	// also what the host platform's own activity timeouts are for.
	Deadline time.Duration

	// OnPoll observes every job snapshot the loop sees. Used for
	// heartbeats and progress logging.
	OnPoll func(job *Job)

	// sleep hook for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.InitialInterval <= 0 {
		o.InitialInterval = DefaultPollInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultPollMaxInterval
	}
	if o.Multiplier < 1 {
		o.Multiplier = DefaultPollMultiplier
	}
	if o.FailureBudget <= 0 {
		o.FailureBudget = DefaultPollFailureBudget
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// WaitForJob polls the job until it reaches a terminal state.
//
// The first poll is immediate; afterwards the loop sleeps an interval that
// starts at InitialInterval and grows by Multiplier up to MaxInterval, so
// short jobs return fast and long jobs do not hammer the server. The loop
// stops on: terminal job state, FailureBudget consecutive transient poll
// failures (E_JOB_POLLING), an exceeded Deadline (E_JOB_TIMEOUT), or
// context cancellation.
func (s *Session) WaitForJob(ctx context.Context, jobID string, opts WaitOptions) (*Job, error) {
	opts = opts.withDefaults()

	var deadline time.Time
	if opts.Deadline > 0 {
		deadline = time.Now().Add(opts.Deadline)
	}

	interval := opts.InitialInterval
	failures := 0

	for {
		job, err := s.GetJob(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !http.IsRetryable(err) {
				// Deliberate rejection, e.g. the session was invalidated
				// under us. Retrying the poll cannot help.
				return nil, wrapError(CodeJobPolling, false, fmt.Errorf("poll job %s: %w", jobID, err))
			}
			failures++
			if failures >= opts.FailureBudget {
				return nil, wrapError(CodeJobPolling, true,
					fmt.Errorf("poll job %s: %d consecutive failures, last: %w", jobID, failures, err))
			}
		default:
			failures = 0
			if opts.OnPoll != nil {
				opts.OnPoll(job)
			}
			switch job.State() {
			case JobSucceeded:
				return job, nil
			case JobFailed:
				msg := job.Notes()
				if msg == "" {
					msg = "no failure reason reported"
				}
				return nil, wrapError(CodeJobFailed, false, fmt.Errorf("job %s failed: %s", jobID, msg))
			case JobCancelled:
				return nil, wrapError(CodeJobCancelled, false, fmt.Errorf("job %s was cancelled on the server", jobID))
			}
		}

		// Still pending (or a tolerated poll failure): back off, then poll
		// again.
		d := interval
		if opts.Jitter > 0 {
			d += time.Duration(rand.Float64() * opts.Jitter * float64(interval))
		}
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, wrapError(CodeJobTimeout, false,
					fmt.Errorf("job %s did not finish within %s", jobID, opts.Deadline))
			}
			// Never oversleep the deadline; the job gets one last poll at
			// the boundary.
			if d > remaining {
				d = remaining
			}
		}
		if err := opts.sleep(ctx, d); err != nil {
			return nil, err
		}

		interval = min(time.Duration(float64(interval)*opts.Multiplier), opts.MaxInterval)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
