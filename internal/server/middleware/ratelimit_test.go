package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIngressLimiterRejectsOverBurst(t *testing.T) {
	limiter := NewIngressLimiter(1, 2)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	rejected := 0
	handler := limiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		rejected++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/tools/save_url", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{200, 200, 429}, codes)
	require.Equal(t, 1, rejected)

	other := httptest.NewRequest(http.MethodPost, "/tools/save_url", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)

	now = now.Add(time.Second)
	req := httptest.NewRequest(http.MethodPost, "/tools/save_url", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIngressLimiterDisabled(t *testing.T) {
	require.Nil(t, NewIngressLimiter(0, 10))

	var limiter *IngressLimiter
	require.True(t, limiter.Allow("anyone"))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := limiter.Middleware(nil)(next)
	require.NotNil(t, handler)
}

func TestIngressLimiterCleanup(t *testing.T) {
	limiter := NewIngressLimiter(5, 5)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(time.Hour)
	limiter.Allow("b")
	limiter.Cleanup()

	require.Len(t, limiter.entries, 1)
	require.Contains(t, limiter.entries, "b")
}
