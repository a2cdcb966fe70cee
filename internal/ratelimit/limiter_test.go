package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestCheck_FixedWindow(t *testing.T) {
	clk := newClock()
	l := New(NewMemoryStore(), clk.Now)

	r1 := l.Check("k", 2, time.Minute)
	r2 := l.Check("k", 2, time.Minute)
	r3 := l.Check("k", 2, time.Minute)

	assert.True(t, r1.Allowed)
	assert.Equal(t, 1, r1.Remaining)
	assert.True(t, r2.Allowed)
	assert.Equal(t, 0, r2.Remaining)
	assert.False(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)
	assert.Equal(t, clk.Now().Add(time.Minute), r3.ResetAt)

	clk.Advance(time.Minute)
	r4 := l.Check("k", 2, time.Minute)
	assert.True(t, r4.Allowed)
	assert.Equal(t, 1, r4.Remaining, "window restarts with a fresh count of 1")
}

func TestCheck_KeysAreIsolated(t *testing.T) {
	l := New(nil, newClock().Now)
	require.True(t, l.Check("a", 1, time.Minute).Allowed)
	require.False(t, l.Check("a", 1, time.Minute).Allowed)
	require.True(t, l.Check("b", 1, time.Minute).Allowed)
}

func TestCheck_ConcurrentIncrementsAreCounted(t *testing.T) {
	store := NewMemoryStore()
	l := New(store, newClock().Now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("same", 50, time.Minute).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
	e, ok := store.Get("same")
	require.True(t, ok)
	assert.Equal(t, 200, e.Count)
}

func TestSweep_RemovesExpiredWindows(t *testing.T) {
	clk := newClock()
	store := NewMemoryStore()
	l := New(store, clk.Now)

	l.Check("short", 5, time.Second)
	l.Check("long", 5, time.Hour)

	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("long")
	assert.True(t, ok)
}

func TestMiddleware_Returns429WithFixedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(nil, newClock().Now)
	p := Policy{Namespace: "test", Limit: 1, Window: time.Minute}

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"10.0.0.0/8"}))
	r.POST("/x", Middleware(l, p, ClientIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.2")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("1.2.3.4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do("1.2.3.4")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, TooManyRequestsMessage, body["error"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("5.6.7.8").Code)
}

func TestMiddleware_ForwardedForFromUntrustedPeerIsIgnored(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(nil, newClock().Now)
	p := Policy{Namespace: "test", Limit: 1, Window: time.Minute}

	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.POST("/x", Middleware(l, p, ClientIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", spoofed)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestClientIP_UsesLastUntrustedHop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies([]string{"10.0.0.0/8"}))

	var got string
	r.GET("/ip", func(c *gin.Context) { got = ClientIP(c) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "6.6.6.6, 203.0.113.5, 10.0.0.9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.5", got)
}
