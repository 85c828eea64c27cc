package session

import (
	"context"
	"log"
	"time"

	"github.com/printops/mps-console/pkg/jwt"
)

// TokenSource exposes the current access token of the session the
// scheduler keeps alive. Returns "" when no token is held.
type TokenSource interface {
	AccessToken() string
}

// Refresher exchanges the current refresh token for a new pair. On
// success the TokenSource observes the new access token.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// SchedulerConfig carries the scheduler's timing knobs. Zero values
// fall back to production defaults; tests shrink them.
type SchedulerConfig struct {
	Lead         time.Duration // refresh this long before expiry
	Floor        time.Duration // never schedule closer than this
	PollInterval time.Duration // cadence while no usable token exists
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	MaxRetries   int
}

func (c *SchedulerConfig) defaults() {
	if c.Lead == 0 {
		c.Lead = time.Minute
	}
	if c.Floor == 0 {
		c.Floor = 5 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Minute
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Scheduler proactively refreshes an access token before it expires.
// It runs a single timer-driven goroutine: with a known expiry it arms
// one shot at max(floor, exp-now-lead); without a token (or after
// retries are exhausted) it falls back to polling until a fresh token
// appears. An in-flight refresh is never cancelled; a newer schedule
// only replaces the timer, the call's outcome still lands.
type Scheduler struct {
	source    TokenSource
	refresher Refresher
	cfg       SchedulerConfig

	now  func() time.Time
	wake chan struct{}

	// token that exhausted its retries; polled until it changes
	deadToken string
}

func NewScheduler(source TokenSource, refresher Refresher, cfg SchedulerConfig) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		source:    source,
		refresher: refresher,
		cfg:       cfg,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
	}
}

// Wake forces an immediate re-check of the schedule. Mirrors the
// visibility-change trigger: after a long suspend the armed timer may
// be far off the token's real remaining lifetime.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the scheduler until ctx is cancelled. All timers are
// stopped on exit and at the start of every reschedule.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		delay, shouldRefresh := s.nextDelay()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		if !shouldRefresh {
			// Polling tick: just re-evaluate. A token that appeared
			// since the last tick produces a real schedule next loop.
			continue
		}

		s.refreshWithRetry(ctx)
	}
}

// nextDelay computes the wait before the next action and whether that
// action is a refresh attempt (true) or a polling re-check (false).
func (s *Scheduler) nextDelay() (time.Duration, bool) {
	token := s.source.AccessToken()
	if token == "" || token == s.deadToken {
		return s.cfg.PollInterval, false
	}

	exp, err := jwt.ParseExpiry(token)
	if err != nil {
		// Unknown expiry is treated like no token at all.
		return s.cfg.PollInterval, false
	}

	delay := exp.Sub(s.now()) - s.cfg.Lead
	if delay < s.cfg.Floor {
		delay = s.cfg.Floor
	}
	return delay, true
}

// refreshWithRetry makes up to MaxRetries attempts, with exponential
// backoff between them. When every attempt fails the current token is
// marked dead and the scheduler returns to polling until a new token
// shows up.
func (s *Scheduler) refreshWithRetry(ctx context.Context) {
	token := s.source.AccessToken()

	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.BackoffBase << (attempt - 1)
			if backoff > s.cfg.BackoffMax {
				backoff = s.cfg.BackoffMax
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		if err := s.refresher.Refresh(ctx); err != nil {
			log.Printf("[SCHEDULER] refresh attempt %d failed: %v", attempt+1, err)
			continue
		}

		s.deadToken = ""
		return
	}

	// Retries exhausted: treat as logged-out until the token changes.
	log.Printf("[SCHEDULER] refresh retries exhausted, falling back to polling")
	s.deadToken = token
}
