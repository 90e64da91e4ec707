// Package ratelimit throttles users with a per-user sliding window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCapacity bounds the number of tracked users.
	DefaultCapacity = 10000
	// DefaultIdleTTL drops windows of users who stopped writing.
	DefaultIdleTTL = 2 * time.Minute

	window = time.Minute
)

// Limiter allows at most limit events per user per minute. The zero limit
// disables limiting.
type Limiter struct {
	mu    sync.Mutex
	limit int64
	users *expirable.LRU[int64, *slidingwindow.Limiter]
	now   func() time.Time
}

// New builds a Limiter for perMinute events per user.
func New(perMinute int) *Limiter {
	return newLimiter(perMinute, DefaultCapacity, DefaultIdleTTL)
}

func newLimiter(perMinute, capacity int, ttl time.Duration) *Limiter {
	return &Limiter{
		limit: int64(perMinute),
		users: expirable.NewLRU[int64, *slidingwindow.Limiter](capacity, nil, ttl),
		now:   time.Now,
	}
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// Allow records one event for userID and reports whether it is within the
// limit.
func (l *Limiter) Allow(userID int64) bool {
	if l == nil || l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.users.Get(userID)
	if !ok {
		lim, _ = slidingwindow.NewLimiter(window, l.limit, windowFunc)
	}
	// Re-adding refreshes the idle TTL of active users.
	l.users.Add(userID, lim)

	return lim.AllowN(l.now(), 1)
}

// Tracked returns the number of users currently holding a window.
func (l *Limiter) Tracked() int {
	if l == nil {
		return 0
	}
	return l.users.Len()
}
