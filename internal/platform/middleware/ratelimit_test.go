package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/carepoint/portal/internal/platform/auth"
)

func runLimited(mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRateLimit_Burst(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if _, err := runLimited(mw, req); err != nil {
			t.Fatalf("request %d should pass: %v", i, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec, err := runLimited(mw, req)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if secs, _ := strconv.Atoi(rec.Header().Get("Retry-After")); secs < 900 || secs > 1000 {
		t.Errorf("expected Retry-After near 1000s, got %q", rec.Header().Get("Retry-After"))
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	if _, err := runLimited(mw, other); err != nil {
		t.Errorf("other IP should have its own bucket: %v", err)
	}
}

func TestRateLimit_PerUser(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	for _, uid := range []string{"u1", "u2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithSession(req.Context(), &auth.Session{UserID: uid}))
		if _, err := runLimited(mw, req); err != nil {
			t.Errorf("first request for %s should pass: %v", uid, err)
		}
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := RateLimit(RateLimitConfig{})
	for i := 0; i < 5; i++ {
		if _, err := runLimited(mw, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
			t.Fatalf("disabled limiter should pass: %v", err)
		}
	}
}

func TestLimiterStore_DropsIdleBuckets(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	start := time.Now()

	first := s.get("ip:a", start)
	if s.get("ip:a", start.Add(time.Second)) != first {
		t.Fatal("same key should reuse its limiter")
	}
	s.get("ip:b", start.Add(2*time.Minute))
	if _, ok := s.buckets["ip:a"]; ok {
		t.Error("idle bucket should have been dropped")
	}
	if len(s.buckets) != 1 {
		t.Errorf("expected 1 bucket, got %d", len(s.buckets))
	}
}
