package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/formloft/formloft/internal/pkg/tenants"
)

func newTestLimiter(quota, windowSeconds int) (*Limiter, *time.Time) {
	reg := tenants.NewRegistry([]tenants.Config{
		{
			TenantID:         "t1",
			RateLimitWindowS: windowSeconds,
			RateLimitQuota:   quota,
		},
	})
	l := NewLimiter(reg)
	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestLimiterQuotaWithinWindow(t *testing.T) {
	l, clock := newTestLimiter(2, 60)
	key := Key{Tenant: "t1", Client: "anon", Origin: "ip1", Endpoint: "/submit"}

	r1 := l.Allow(key)
	assert.True(t, r1.Allowed)
	assert.Equal(t, 1, r1.Remaining)
	assert.Equal(t, clock.Add(60*time.Second), r1.ResetAt)

	r2 := l.Allow(key)
	assert.True(t, r2.Allowed)
	assert.Equal(t, 0, r2.Remaining)

	r3 := l.Allow(key)
	assert.False(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)
	assert.Equal(t, r1.ResetAt, r3.ResetAt)
}

func TestLimiterWindowReset(t *testing.T) {
	l, clock := newTestLimiter(2, 60)
	key := Key{Tenant: "t1", Client: "anon", Origin: "ip1", Endpoint: "/submit"}

	l.Allow(key)
	l.Allow(key)
	assert.False(t, l.Allow(key).Allowed)

	// advance past the window; count restarts at 1
	*clock = clock.Add(61 * time.Second)
	r := l.Allow(key)
	assert.True(t, r.Allowed)
	assert.Equal(t, 1, r.Remaining)
	assert.Equal(t, clock.Add(60*time.Second), r.ResetAt)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 60)

	a := Key{Tenant: "t1", Client: "anon", Origin: "ip1", Endpoint: "/submit"}
	b := Key{Tenant: "t1", Client: "anon", Origin: "ip2", Endpoint: "/submit"}

	assert.True(t, l.Allow(a).Allowed)
	assert.False(t, l.Allow(a).Allowed)
	assert.True(t, l.Allow(b).Allowed, "different origin keeps its own counter")
}

func TestLimiterLazyPurge(t *testing.T) {
	l, clock := newTestLimiter(5, 60)

	for _, origin := range []string{"a", "b", "c"} {
		l.Allow(Key{Tenant: "t1", Client: "anon", Origin: origin, Endpoint: "/submit"})
	}
	assert.Equal(t, 3, l.Len())

	*clock = clock.Add(2 * time.Minute)
	// any allow after expiry reclaims stale counters opportunistically
	l.Allow(Key{Tenant: "t1", Client: "anon", Origin: "d", Endpoint: "/submit"})
	assert.Equal(t, 1, l.Len())
}

func TestLimiterUnknownTenantUsesDefaults(t *testing.T) {
	l, _ := newTestLimiter(2, 60)
	key := Key{Tenant: "unknown", Client: "anon", Origin: "ip1", Endpoint: "/submit"}

	r := l.Allow(key)
	assert.True(t, r.Allowed, "default config keeps unknown tenants operable")
}
