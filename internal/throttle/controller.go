// Package throttle paces requests against the registry. Delays grow with
// consecutive failures, every delay is jittered, and sustained failure runs
// trip cooldown pauses so the scraper backs off before the site blocks it.
package throttle

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Sleeper abstracts blocking pauses so tests run without real sleeps.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Signal tells the caller what pause Report decided on.
type Signal int

const (
	// SignalNone means continue normally.
	SignalNone Signal = iota
	// SignalShort means too many failures landed in the rolling window;
	// pause briefly.
	SignalShort
	// SignalLong means the failure run is sustained; pause for the long
	// cooldown and rebuild the session before resuming.
	SignalLong
)

func (s Signal) String() string {
	switch s {
	case SignalShort:
		return "short-cooldown"
	case SignalLong:
		return "long-cooldown"
	default:
		return "none"
	}
}

// Config tunes the controller. Unset fields take the defaults the registry
// was profiled with; Jitter may be zero to disable the spread.
type Config struct {
	// BaseDelay is the pacing floor between requests on a clean run.
	BaseDelay time.Duration
	// FailureStep is added per consecutive failure.
	FailureStep time.Duration
	// Jitter is the half-width of the random spread applied to each delay.
	Jitter time.Duration
	// MinDelay clamps the jittered delay from below.
	MinDelay time.Duration

	// ShortThreshold failures within one window trigger ShortCooldown.
	ShortThreshold int
	ShortCooldown  time.Duration
	// LongThreshold consecutive failures trigger LongCooldown.
	LongThreshold int
	LongCooldown  time.Duration
}

// DefaultConfig returns the production pacing profile.
func DefaultConfig() Config {
	return Config{
		BaseDelay:      15 * time.Second,
		FailureStep:    5 * time.Second,
		Jitter:         2 * time.Second,
		MinDelay:       13 * time.Second,
		ShortThreshold: 3,
		ShortCooldown:  60 * time.Second,
		LongThreshold:  3,
		LongCooldown:   300 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.FailureStep <= 0 {
		c.FailureStep = d.FailureStep
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.MinDelay <= 0 {
		c.MinDelay = d.MinDelay
	}
	if c.ShortThreshold <= 0 {
		c.ShortThreshold = d.ShortThreshold
	}
	if c.ShortCooldown <= 0 {
		c.ShortCooldown = d.ShortCooldown
	}
	if c.LongThreshold <= 0 {
		c.LongThreshold = d.LongThreshold
	}
	if c.LongCooldown <= 0 {
		c.LongCooldown = d.LongCooldown
	}
}

// Controller enforces the pacing policy. Not safe for concurrent use; the
// scraper issues requests sequentially.
type Controller struct {
	cfg     Config
	clock   Clock
	sleeper Sleeper

	lastRequest         time.Time
	consecutiveFailures int
	windowFailures      int
}

// New builds a controller with the real clock and sleeper.
func New(cfg Config) *Controller {
	return NewWithClock(cfg, systemClock{}, timerSleeper{})
}

// NewWithClock injects the time source and sleeper, for tests.
func NewWithClock(cfg Config, clock Clock, sleeper Sleeper) *Controller {
	cfg.applyDefaults()
	return &Controller{cfg: cfg, clock: clock, sleeper: sleeper}
}

// Wait blocks until enough time has passed since the previous request. The
// target delay is BaseDelay plus FailureStep per consecutive failure, spread
// by Jitter and clamped at MinDelay; only the unelapsed remainder is slept.
func (c *Controller) Wait(ctx context.Context) error {
	delay := c.cfg.BaseDelay + time.Duration(c.consecutiveFailures)*c.cfg.FailureStep
	delay += randomJitter(c.cfg.Jitter)
	if delay < c.cfg.MinDelay {
		delay = c.cfg.MinDelay
	}

	now := c.clock.Now()
	if !c.lastRequest.IsZero() {
		if remaining := delay - now.Sub(c.lastRequest); remaining > 0 {
			if err := c.sleeper.Sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	c.lastRequest = c.clock.Now()
	return nil
}

// Report records a request outcome and returns the cooldown tier it tripped.
// The caller is expected to checkpoint and, on SignalLong, rebuild its
// session before invoking Cooldown. Success clears both failure counters.
func (c *Controller) Report(ok bool) Signal {
	if ok {
		c.consecutiveFailures = 0
		c.windowFailures = 0
		return SignalNone
	}
	c.consecutiveFailures++
	c.windowFailures++
	if c.consecutiveFailures >= c.cfg.LongThreshold {
		c.consecutiveFailures = 0
		c.windowFailures = 0
		return SignalLong
	}
	if c.windowFailures >= c.cfg.ShortThreshold {
		c.windowFailures = 0
		return SignalShort
	}
	return SignalNone
}

// Cooldown sleeps for the signaled tier's duration.
func (c *Controller) Cooldown(ctx context.Context, sig Signal) error {
	var d time.Duration
	switch sig {
	case SignalShort:
		d = c.cfg.ShortCooldown
	case SignalLong:
		d = c.cfg.LongCooldown
	default:
		return nil
	}
	return c.sleeper.Sleep(ctx, d)
}

// randomJitter returns a duration in [-max, +max].
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(2*max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64()) - max
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemSleeper returns the production sleeper, for callers that need to
// pause outside the controller (retry delays and the like).
func SystemSleeper() Sleeper {
	return timerSleeper{}
}

// timerSleeper is the production sleeper; it respects context cancellation.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
