package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// PollConfig controls the polling cadence for a single watched job.
type PollConfig struct {
	// InitialInterval is the delay before the second status request.
	InitialInterval time.Duration
	// MaxInterval caps the backoff.
	MaxInterval time.Duration
	// MaxDuration is the hard deadline after which a still-running job
	// is reported as failed.
	MaxDuration time.Duration
}

// DefaultPollConfig returns the standard cadence: 2s doubling to a 15s
// cap, with a 10 minute hard deadline.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		MaxDuration:     10 * time.Minute,
	}
}

// PollConfigFrom converts the poller section of the application config.
func PollConfigFrom(p config.PollerConfig) PollConfig {
	return PollConfig{
		InitialInterval: p.GetInitialInterval(),
		MaxInterval:     p.GetMaxInterval(),
		MaxDuration:     p.GetMaxDuration(),
	}
}

func (p PollConfig) withDefaults() PollConfig {
	d := DefaultPollConfig()
	if p.InitialInterval <= 0 {
		p.InitialInterval = d.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = d.MaxInterval
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = d.MaxDuration
	}
	return p
}

// defaultStepLabel is shown while the server reports no step text.
const defaultStepLabel = "Processing..."

// ProgressFunc receives progress updates while a job is watched. percent
// never decreases between calls for the same watch.
type ProgressFunc func(percent float64, step string)

// Watch is a handle on one polled job. Exactly one of the terminal
// outcomes is delivered: a completed job, a JobError, or the
// cancellation error.
type Watch struct {
	cancel context.CancelFunc
	done   chan struct{}

	job *Job
	err error
}

// Cancel stops polling before the next request. The in-flight request,
// if any, is abandoned.
func (w *Watch) Cancel() {
	w.cancel()
}

// Done is closed once the watch reached its terminal outcome.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the watch finishes and returns its outcome.
func (w *Watch) Wait() (*Job, error) {
	<-w.done
	return w.job, w.err
}

// WatchJob polls a job until it completes, fails, times out, or the
// watch is cancelled. Requests are strictly sequential: the next request
// is only scheduled after the previous one returned. The interval
// doubles from InitialInterval up to MaxInterval. onProgress may be nil.
func (c *Client) WatchJob(ctx context.Context, jobID string, cfg PollConfig, onProgress ProgressFunc) *Watch {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	w := &Watch{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer cancel()
		w.job, w.err = c.pollUntilDone(ctx, jobID, cfg, onProgress)
	}()

	return w
}

func (c *Client) pollUntilDone(ctx context.Context, jobID string, cfg PollConfig, onProgress ProgressFunc) (*Job, error) {
	deadline := time.Now().Add(cfg.MaxDuration)
	interval := cfg.InitialInterval
	lastPercent := 0.0

	for {
		job, err := c.GetJob(ctx, jobID)
		switch {
		case err == nil:
			// Progress is clamped monotonic: a stale response that
			// reports less than what was already shown is ignored.
			percent := job.ProgressPercent
			if percent < lastPercent {
				percent = lastPercent
			}
			lastPercent = percent

			step := job.CurrentStep
			if step == "" {
				step = defaultStepLabel
			}
			if onProgress != nil && !models.IsTerminal(job.Status) {
				onProgress(percent, step)
			}

			if job.Status == models.JobStatusCompleted {
				if onProgress != nil {
					onProgress(100, step)
				}
				return job, nil
			}
			if job.Status == models.JobStatusError {
				message := job.ErrorMessage
				if message == "" {
					message = "staging failed"
				}
				return nil, &staging.JobError{JobID: jobID, Message: message}
			}
		case staging.IsNotFound(err):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Transient transport errors do not abort the watch; the
			// deadline bounds how long they can go on.
		}

		if time.Now().After(deadline) {
			return nil, &staging.JobError{
				JobID:   jobID,
				Message: fmt.Sprintf("no result after %s", cfg.MaxDuration),
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}
}
