// Package generate turns preferences into suggestions via an external text generator.
package generate

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/metrics"
)

// Service is an external text generation backend.
// Output is untrusted and may contain anything.
type Service interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options controls the retry loop.
type Options struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// Timeout bounds each call to the service.
	Timeout time.Duration
}

// DefaultOptions returns 5 attempts, 1s apart, 30s per call.
func DefaultOptions() Options {
	return Options{MaxAttempts: 5, RetryDelay: time.Second, Timeout: 30 * time.Second}
}

// Client calls a Service with bounded retries and strict output validation.
type Client struct {
	svc   Service
	opts  Options
	log   logrus.FieldLogger
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client on svc.
func New(svc Service, opts Options, log logrus.FieldLogger) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Client{svc: svc, opts: opts, log: log, sleep: sleepCtx}
}

// Generate produces suggestions for p.
//
// Each attempt runs on a context detached from ctx with its own timeout, so
// an in-flight call always finishes. ctx is checked only between attempts.
// When every attempt fails the error is GENERATION_FAILED wrapping the last cause.
func (c *Client) Generate(ctx context.Context, p hookah.NormalizedPreferences) (*Payload, error) {
	prompt := BuildPrompt(p)
	detached := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.opts.RetryDelay); err != nil {
				return nil, errors.NewGenerationFailed(attempt-1, err)
			}
		}

		payload, err := c.attempt(detached, prompt)
		if err == nil {
			metrics.GenerationAttempts.WithLabelValues(metrics.AttemptOK).Inc()
			return payload, nil
		}
		lastErr = err

		outcome := metrics.AttemptServiceError
		if errors.Is(err, errors.ErrParseFailed) {
			outcome = metrics.AttemptParseFailed
		}
		metrics.GenerationAttempts.WithLabelValues(outcome).Inc()
		c.log.WithError(err).WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": c.opts.MaxAttempts,
			"outcome":      outcome,
		}).Warn("generation attempt failed")
	}

	metrics.GenerationFailures.Inc()
	c.log.WithError(lastErr).WithField("attempts", c.opts.MaxAttempts).Error("generation exhausted all attempts")
	return nil, errors.NewGenerationFailed(c.opts.MaxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, prompt string) (*Payload, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	raw, err := c.svc.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParsePayload(raw)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
