package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func newTestLimiter(window time.Duration, clock *fakeClock) *rateLimiter {
	return &rateLimiter{
		window:        window,
		last:          make(map[string]time.Time),
		sweepInterval: window,
		now:           clock.Now,
	}
}

func hit(l *rateLimiter, method, path, subject string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	c.Request = httptest.NewRequest(method, path, nil)
	if subject != "" {
		c.Set(ContextSubjectKey, subject)
	}
	l.handle(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return resp
}

func TestRateLimiterPerRouteAndSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(10*time.Second, clock)

	require.Equal(t, http.StatusOK, hit(l, http.MethodPost, "/api/v1/store", "alice").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(l, http.MethodPost, "/api/v1/store", "alice").Code)
	require.Equal(t, http.StatusOK, hit(l, http.MethodPost, "/api/v1/store", "bob").Code)
	require.Equal(t, http.StatusOK, hit(l, http.MethodPost, "/api/v1/documents/upload", "alice").Code)

	clock.now = clock.now.Add(11 * time.Second)
	require.Equal(t, http.StatusOK, hit(l, http.MethodPost, "/api/v1/store", "alice").Code)
}

func TestRateLimiterDisabledWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := newTestLimiter(0, &fakeClock{now: time.Now()})
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, hit(l, http.MethodPost, "/api/v1/store", "").Code)
	}
}

func TestRateLimiterSweepsExpiredKeys(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(10*time.Second, clock)
	l.last["expired"] = clock.now.Add(-20 * time.Second)
	l.last["active"] = clock.now.Add(-2 * time.Second)

	l.mu.Lock()
	l.cleanupExpiredLocked(clock.now)
	l.mu.Unlock()

	require.NotContains(t, l.last, "expired")
	require.Contains(t, l.last, "active")
	require.Equal(t, clock.now, l.lastSweep)
}
