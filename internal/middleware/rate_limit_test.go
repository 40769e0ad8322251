package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(0.1, 5)
	defer rl.Stop()

	// First 5 requests should be allowed (burst)
	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("staff:a"); !ok {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if ok, remaining := rl.Allow("staff:a"); ok || remaining != 0 {
		t.Errorf("Request 6 should be rate limited, got allowed=%v remaining=%d", ok, remaining)
	}
}

func TestRateLimiter_DifferentClients(t *testing.T) {
	rl := NewRateLimiter(0.1, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		rl.Allow("staff:a")
	}
	if ok, _ := rl.Allow("staff:a"); ok {
		t.Error("Client a should be rate limited")
	}

	if ok, remaining := rl.Allow("staff:b"); !ok || remaining != 2 {
		t.Errorf("Client b should keep its burst, got allowed=%v remaining=%d", ok, remaining)
	}
}

func TestRateLimiter_RemoveStale(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	rl.Allow("ip:10.0.0.1")
	rl.removeStale(time.Now().Add(LimiterTTL + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) != 0 {
		t.Errorf("Expected stale limiter to be removed, got %d", len(rl.limiters))
	}
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.5, 2)
	defer rl.Stop()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}
	newContext := func(staffID string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
		if staffID != "" {
			req = req.WithContext(context.WithValue(req.Context(), StaffIDKey, staffID))
		}
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	for i := 0; i < 2; i++ {
		c, rec := newContext("auth0|officer")
		if err := RateLimitMiddleware(rl)(handler)(c); err != nil {
			t.Fatalf("Request %d: Expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Request %d: Expected status 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("Request %d: Expected X-RateLimit-Limit 2, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	c, rec := newContext("auth0|officer")
	if err := RateLimitMiddleware(rl)(handler)(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("Expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
	}

	// Anonymous callers are keyed by IP and keep their own bucket
	c, rec = newContext("")
	if err := RateLimitMiddleware(rl)(handler)(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected anonymous request to pass, got %d", rec.Code)
	}
}
