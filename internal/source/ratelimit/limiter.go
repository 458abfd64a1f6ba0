// Package ratelimit implements the per-source request pacing shared by
// every worker in a run.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zimaxnet/orb-image-harvester/internal/telemetry"
)

// Config controls one source's limiter.
type Config struct {
	// MinInterval is the minimum gap between two requests.
	MinInterval time.Duration
	// DailyQuota caps requests per UTC day; zero means unlimited.
	DailyQuota int
}

// ErrQuotaExhausted is returned once the daily quota is spent.
var ErrQuotaExhausted = fmt.Errorf("daily request quota exhausted")

// Limiter paces calls to one source. Workers block in Wait until a
// slot is available; a 429 reported via Cooldown pauses the source for
// the given window without aborting the run.
type Limiter struct {
	name    string
	limiter *rate.Limiter

	mu       sync.Mutex
	quota    int
	used     int
	quotaDay time.Time
	resumeAt time.Time
	nowFn    func() time.Time
}

// New creates a limiter for the named source.
func New(name string, cfg Config) *Limiter {
	r := rate.Inf
	if cfg.MinInterval > 0 {
		r = rate.Every(cfg.MinInterval)
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(r, 1),
		quota:   cfg.DailyQuota,
		nowFn:   time.Now,
	}
}

// Wait blocks until the source may issue its next request, honoring
// the minimum interval, any active cool-down, and the daily quota.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.nowFn()

	if err := l.waitCooldown(ctx); err != nil {
		return err
	}
	if err := l.takeQuota(); err != nil {
		return err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", l.name, err)
	}

	telemetry.ObserveRateLimitDelay(l.name, l.nowFn().Sub(start))
	return nil
}

// Cooldown pauses the source until the window elapses. Later of any
// existing pause wins.
func (l *Limiter) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.nowFn().Add(d)
	if until.After(l.resumeAt) {
		l.resumeAt = until
	}
}

func (l *Limiter) waitCooldown(ctx context.Context) error {
	for {
		l.mu.Lock()
		pause := l.resumeAt.Sub(l.nowFn())
		l.mu.Unlock()
		if pause <= 0 {
			return nil
		}
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) takeQuota() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quota <= 0 {
		return nil
	}
	day := l.nowFn().UTC().Truncate(24 * time.Hour)
	if !day.Equal(l.quotaDay) {
		l.quotaDay = day
		l.used = 0
	}
	if l.used >= l.quota {
		return fmt.Errorf("%s: %w", l.name, ErrQuotaExhausted)
	}
	l.used++
	return nil
}
