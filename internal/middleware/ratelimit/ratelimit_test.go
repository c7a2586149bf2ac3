package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(perMinute int, now *time.Time) *Limiter {
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return *now }
	return rl
}

func TestAllow(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(2, &now)
	defer rl.Stop()

	if ok, _ := rl.Allow("1.1.1.1"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := rl.Allow("1.1.1.1"); !ok {
		t.Fatal("second request should pass")
	}
	now = now.Add(20 * time.Second)
	ok, retry := rl.Allow("1.1.1.1")
	if ok {
		t.Fatal("third request should be limited")
	}
	if retry != 40*time.Second {
		t.Errorf("retry = %v, want 40s", retry)
	}
	if ok, _ := rl.Allow("2.2.2.2"); !ok {
		t.Fatal("other clients are independent")
	}

	now = now.Add(40 * time.Second)
	if ok, _ := rl.Allow("1.1.1.1"); !ok {
		t.Fatal("window should reset after a minute")
	}
	if m := rl.GetMetrics(); m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(5, &now)
	defer rl.Stop()

	rl.Allow("1.1.1.1")
	now = now.Add(3 * time.Minute)
	rl.Allow("2.2.2.2")
	rl.cleanupStaleEntries()

	if n := rl.ActiveClients(); n != 1 {
		t.Errorf("ActiveClients = %d, want 1", n)
	}
}

func TestMiddlewareOnlyLimitsMutatingRequests(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(1, &now)
	defer rl.Stop()

	h := rl.Middleware(
		func(*http.Request) string { return "1.1.1.1" },
		Mutating,
		nil,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/expenses", nil))
		return rec
	}

	if rec := do(http.MethodPost); rec.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rec.Code)
	}
	rec := do(http.MethodPost)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	for i := 0; i < 3; i++ {
		if rec := do(http.MethodGet); rec.Code != http.StatusNoContent {
			t.Fatalf("GET should not be limited, got %d", rec.Code)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
