package ratelimit

import (
	"strconv"
	"time"

	"github.com/accessradar/accessradar/internal/pkg/apperrors"
	"github.com/accessradar/accessradar/internal/pkg/env"
)

const (
	defaultWindowMinutes = 60
	defaultCeiling       = 10
)

// CounterFunc reports how many scans a user started at or after the given
// instant, together with the start time of the oldest one in that window.
// oldest is ignored when the count is zero.
type CounterFunc func(userID uint, since time.Time) (count int64, oldest time.Time, err error)

// Limiter enforces a sliding-window ceiling on scan starts per user. The
// window slides over persisted audit rows rather than an in-memory counter,
// so the limit holds across restarts and multiple instances.
type Limiter struct {
	Window  time.Duration
	Ceiling int64
	Counter CounterFunc
}

// NewLimiterFromEnv builds a limiter configured from SCAN_RATE_WINDOW_MINUTES
// and SCAN_RATE_MAX.
func NewLimiterFromEnv(counter CounterFunc) *Limiter {
	windowMinutes := envInt("SCAN_RATE_WINDOW_MINUTES", defaultWindowMinutes)
	ceiling := envInt("SCAN_RATE_MAX", defaultCeiling)
	return &Limiter{
		Window:  time.Duration(windowMinutes) * time.Minute,
		Ceiling: int64(ceiling),
		Counter: counter,
	}
}

// Allow returns nil if the user may start another scan now, or a
// RateLimitError carrying the wait until the oldest in-window scan ages out.
func (l *Limiter) Allow(userID uint, now time.Time) error {
	since := now.Add(-l.Window)
	count, oldest, err := l.Counter(userID, since)
	if err != nil {
		return &apperrors.PersistenceError{Op: "rate limit count", Err: err}
	}
	if count < l.Ceiling {
		return nil
	}
	retryAfter := oldest.Add(l.Window).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return &apperrors.RateLimitError{RetryAfter: retryAfter}
}

func envInt(key string, fallback int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
