// Package nav wraps every page transition with bounded retries, backoff
// and failure classification. Exhausting the retry budget is a normal,
// reportable outcome here, never a panic: callers decide whether a failed
// step aborts the run or just skips a source.
package nav

import (
	"context"
	"time"

	"linkscraper/pkg/browser"
	errs "linkscraper/pkg/errors"
	"linkscraper/pkg/linkedin"
	"linkscraper/pkg/logger"
	"linkscraper/pkg/ratelimit"
	"linkscraper/pkg/retry"
)

// Outcome classifies a single navigation attempt.
type Outcome int

const (
	// OutcomeSuccess means the page loaded with a non-error status.
	OutcomeSuccess Outcome = iota
	// OutcomeConnectivity means the browser landed on its internal
	// connection-error page or the navigation itself failed. Transient;
	// retried with backoff.
	OutcomeConnectivity
	// OutcomeRejected means the server answered with a status >= 400.
	OutcomeRejected
)

// Policy bounds the retry behaviour of a controller. Decoupled from the
// navigation call site so tests and callers can tighten it.
type Policy struct {
	MaxAttempts int
	PageTimeout time.Duration
	// Backoff yields the wait before retry n. The default scales a fixed
	// delay by the attempt index.
	Backoff retry.BackoffStrategy
}

// DefaultPolicy returns the production navigation policy.
func DefaultPolicy(maxAttempts int, pageTimeout, retryDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		PageTimeout: pageTimeout,
		Backoff: &retry.LinearBackoff{
			BaseDelay:    retryDelay,
			Increment:    retryDelay,
			MaxDelay:     10 * retryDelay,
			JitterFactor: 0.1,
		},
	}
}

// Controller performs retrying navigation through a browser engine.
type Controller struct {
	engine  browser.Engine
	policy  Policy
	limiter ratelimit.Limiter
	log     logger.Logger
}

// NewController creates a navigation controller. The limiter is optional;
// when present it paces navigations to avoid burst traffic.
func NewController(engine browser.Engine, policy Policy, limiter ratelimit.Limiter, log logger.Logger) *Controller {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Controller{engine: engine, policy: policy, limiter: limiter, log: log}
}

// Goto attempts to load the target URL within the retry budget and
// reports whether it completed. A false return means "this step did not
// complete", not an exceptional condition.
func (c *Controller) Goto(ctx context.Context, target string) bool {
	attempt := 0
	err := retry.Do(func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		outcome, status := c.attempt(ctx, target)
		switch outcome {
		case OutcomeConnectivity:
			logger.LogNavigation(target, attempt, status, "connectivity")
			return errs.Newf(errs.ErrorTypeConnectivity, "connection error loading %s", target)
		case OutcomeRejected:
			logger.LogNavigation(target, attempt, status, "rejected")
			return errs.Newf(errs.ErrorTypeNavigation, "server rejected %s", target).WithCode(status)
		default:
			logger.LogNavigation(target, attempt, status, "success")
			return nil
		}
	}, &retry.Config{
		MaxAttempts: c.policy.MaxAttempts,
		Backoff:     c.policy.Backoff,
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      c.log,
	})
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"url":      target,
			"attempts": attempt,
		}).Warn("Navigation attempts exhausted")
		return false
	}
	return true
}

// attempt performs one navigation and classifies the result.
func (c *Controller) attempt(ctx context.Context, target string) (Outcome, int) {
	res, err := c.engine.Navigate(ctx, target, c.policy.PageTimeout)
	if err != nil {
		return OutcomeConnectivity, 0
	}
	if linkedin.IsConnectionErrorURL(res.URL) {
		return OutcomeConnectivity, res.Status
	}
	if res.Status >= 400 {
		return OutcomeRejected, res.Status
	}
	return OutcomeSuccess, res.Status
}
