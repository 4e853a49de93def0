package ratelimit

import (
	"sync"
	"time"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

// Key identifies one counter: requests are limited per tenant, per client
// identity (or "anon"), per origin IP and per endpoint.
type Key struct {
	Tenant   string
	Client   string
	Origin   string
	Endpoint string
}

// Result is the outcome of a single Allow call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window in-memory counter. Quota and window length come
// from the tenant registry. State is process-local and resets on restart.
type Limiter struct {
	mu      sync.Mutex
	entries map[Key]*entry
	reg     *tenants.Registry
	now     func() time.Time
}

// NewLimiter creates a limiter backed by the given tenant registry.
func NewLimiter(reg *tenants.Registry) *Limiter {
	return &Limiter{
		entries: make(map[Key]*entry),
		reg:     reg,
		now:     time.Now,
	}
}

// maxLazyPurge bounds how many entries a single Allow call inspects for
// expiry, keeping the amortized cost constant.
const maxLazyPurge = 8

// Allow counts one request against the key's window and reports whether it
// fits the tenant's quota. The first request of a window (or the first after
// the window elapsed) resets the counter to 1.
func (l *Limiter) Allow(key Key) Result {
	cfg := l.reg.Get(key.Tenant)
	window := cfg.RateLimitWindow()
	quota := cfg.RateLimitQuota
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeExpiredLocked(now)

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		l.entries[key] = e
		return Result{Allowed: quota >= 1, Remaining: maxInt(quota-1, 0), ResetAt: e.resetAt}
	}

	e.count++
	if e.count > quota {
		return Result{Allowed: false, Remaining: 0, ResetAt: e.resetAt}
	}
	return Result{Allowed: true, Remaining: quota - e.count, ResetAt: e.resetAt}
}

// purgeExpiredLocked removes up to maxLazyPurge expired entries. Map
// iteration order is randomized, so repeated calls eventually reclaim
// everything without a dedicated sweeper.
func (l *Limiter) purgeExpiredLocked(now time.Time) {
	inspected := 0
	for k, e := range l.entries {
		if inspected >= maxLazyPurge {
			return
		}
		inspected++
		if !now.Before(e.resetAt) {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of live counters, for admin introspection.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
