package services

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientLimiter(t *testing.T) {
	require.Nil(t, newClientLimiter(RateLimitConfig{}))

	l := newClientLimiter(RateLimitConfig{RPS: 1, Burst: 2})
	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	require.True(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.1"))
	require.False(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.2"), "buckets are per client")

	now = now.Add(time.Second)
	require.True(t, l.allow("10.0.0.1"))
	require.False(t, l.allow("10.0.0.1"))

	now = now.Add(visitorTTL + time.Second)
	l.allow("10.0.0.3")
	require.Len(t, l.visitors, 1, "idle visitors are pruned")
}

func TestRemoteHost(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	require.Equal(t, "192.0.2.1", remoteHost(r))

	r.RemoteAddr = "[2001:db8::1]:443"
	require.Equal(t, "2001:db8::1", remoteHost(r))

	r.RemoteAddr = "192.0.2.7"
	require.Equal(t, "192.0.2.7", remoteHost(r))
}
