package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorTTL is how long an idle user's limiter is kept.
const visitorTTL = 10 * time.Minute

// userLimiter manages per-user rate limiters.
type userLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

// visitor tracks the rate limiter and last seen time for a user.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newUserLimiter allows perMinute events per user, all of which may be used
// in a burst. A non-positive perMinute disables limiting.
func newUserLimiter(perMinute int) *userLimiter {
	l := &userLimiter{visitors: make(map[string]*visitor)}
	if perMinute <= 0 {
		l.limit = rate.Inf
		return l
	}
	l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	l.burst = perMinute
	return l
}

// Allow reports whether userID may act now.
func (l *userLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep drops idle visitors at most once per TTL. Callers hold l.mu.
func (l *userLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < visitorTTL {
		return
	}
	l.lastSweep = now
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, id)
		}
	}
}
