package crawler

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// PacingConfig holds the politeness parameters for one crawl.
type PacingConfig struct {
	InitialDelay      time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	Decrement         time.Duration
	DecrementStreak   int
	PenaltyBox        time.Duration
	DefaultRetryAfter time.Duration
}

// DefaultPacing returns the production pacing parameters.
func DefaultPacing() PacingConfig {
	return PacingConfig{
		InitialDelay:      750 * time.Millisecond,
		MinDelay:          250 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		Decrement:         250 * time.Millisecond,
		DecrementStreak:   5,
		PenaltyBox:        20 * time.Second,
		DefaultRetryAfter: 8 * time.Second,
	}
}

// PolitenessController adapts the inter-request delay for one crawl job.
// It speeds up gradually while the server cooperates, backs off to the
// initial delay on failures, and sits out a penalty box after a rate limit.
// Not safe for concurrent use; each job's engine owns one controller.
type PolitenessController struct {
	cfg          PacingConfig
	now          func() time.Time
	delay        time.Duration
	streak       int
	penaltyUntil time.Time
}

// NewPolitenessController returns a controller starting at the configured
// initial delay.
func NewPolitenessController(cfg PacingConfig) *PolitenessController {
	return &PolitenessController{
		cfg:   cfg,
		now:   time.Now,
		delay: cfg.InitialDelay,
	}
}

// OnSuccess records a successful HTML fetch. A run of consecutive successes
// shaves one decrement off the delay, down to the minimum.
func (c *PolitenessController) OnSuccess() {
	if c.inPenaltyBox() {
		return
	}
	c.streak++
	if c.streak >= c.cfg.DecrementStreak {
		c.streak = 0
		if c.delay > c.cfg.MinDelay {
			c.delay -= c.cfg.Decrement
			if c.delay < c.cfg.MinDelay {
				c.delay = c.cfg.MinDelay
			}
		}
	}
}

// OnFailure records a failed fetch. The success streak always resets;
// outside the penalty box the delay snaps back to the initial value.
func (c *PolitenessController) OnFailure() {
	c.streak = 0
	if !c.inPenaltyBox() {
		c.delay = c.cfg.InitialDelay
	}
}

// OnRateLimited enters the penalty box. retryAfter comes from the server's
// Retry-After header; zero or negative falls back to the default. The wait
// after a rate limit honors the larger of retryAfter and the penalty box
// duration.
func (c *PolitenessController) OnRateLimited(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = c.cfg.DefaultRetryAfter
	}
	if c.cfg.PenaltyBox > retryAfter {
		retryAfter = c.cfg.PenaltyBox
	}
	c.streak = 0
	c.penaltyUntil = c.now().Add(retryAfter)
}

// NextWait returns how long the caller should pause before the next fetch.
// Leaving the penalty box resets the delay to the initial value and clears
// the success streak.
func (c *PolitenessController) NextWait() time.Duration {
	if !c.penaltyUntil.IsZero() {
		if remaining := c.penaltyUntil.Sub(c.now()); remaining > 0 {
			return c.clamp(remaining)
		}
		c.penaltyUntil = time.Time{}
		c.delay = c.cfg.InitialDelay
		c.streak = 0
	}
	return c.clamp(c.delay)
}

// Wait blocks for NextWait or until the context is done.
func (c *PolitenessController) Wait(ctx context.Context) error {
	timer := time.NewTimer(c.NextWait())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay reports the wait the next fetch will observe, for progress
// reporting. Inside the penalty box that is the clamped remainder; after the
// box expires it is the initial delay the next NextWait will reset to.
// Unlike NextWait it never mutates state.
func (c *PolitenessController) Delay() time.Duration {
	if !c.penaltyUntil.IsZero() {
		if remaining := c.penaltyUntil.Sub(c.now()); remaining > 0 {
			return c.clamp(remaining)
		}
		return c.cfg.InitialDelay
	}
	return c.delay
}

func (c *PolitenessController) inPenaltyBox() bool {
	return !c.penaltyUntil.IsZero() && c.now().Before(c.penaltyUntil)
}

func (c *PolitenessController) clamp(d time.Duration) time.Duration {
	if d < c.cfg.MinDelay {
		return c.cfg.MinDelay
	}
	if max := 3 * c.cfg.MaxDelay; d > max {
		return max
	}
	return d
}

// ParseRetryAfter interprets a Retry-After header, accepting both the
// delta-seconds and HTTP-date forms. Returns zero when absent or invalid.
func ParseRetryAfter(headers http.Header, now time.Time) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
