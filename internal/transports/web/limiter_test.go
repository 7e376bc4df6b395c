package web

import (
	"net/http"
	"testing"
	"time"

	"dockman/internal/modules/docker"
)

func TestRateLimiterWindow(t *testing.T) {
	l := newRateLimiter(2, time.Second)
	now := time.Now()
	if !l.allow("10.0.0.1", now) {
		t.Fatalf("first should pass")
	}
	if !l.allow("10.0.0.1", now.Add(100*time.Millisecond)) {
		t.Fatalf("second should pass")
	}
	if l.allow("10.0.0.1", now.Add(200*time.Millisecond)) {
		t.Fatalf("third should be blocked")
	}
	if !l.allow("10.0.0.2", now.Add(200*time.Millisecond)) {
		t.Fatalf("other client must not be limited")
	}
	if !l.allow("10.0.0.1", now.Add(2*time.Second)) {
		t.Fatalf("should pass after window")
	}
	if _, ok := l.events["10.0.0.2"]; ok {
		t.Fatalf("stale client must be dropped")
	}
}

func TestOperationRateLimit(t *testing.T) {
	mgr := &fakeManager{result: map[docker.Operation]docker.Result{
		docker.OpUpdate: {Success: true, Message: "Docker updated successfully"},
	}}
	store := &fakeStore{}
	a := newTestAdapter(t, mgr, nil, store, Config{OperationLimit: 1, OperationWindow: time.Minute})

	if rr := serve(a, http.MethodPost, "/api/update", nil); rr.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rr.Code)
	}
	rr := serve(a, http.MethodPost, "/api/update", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rr.Code)
	}
	body := decode(t, rr)
	if body["success"] != false || body["error_code"] != "rate_limited" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(mgr.calls) != 1 {
		t.Fatalf("limited request must not reach manager, calls = %v", mgr.calls)
	}
	if rr := serve(a, http.MethodGet, "/api/check", nil); rr.Code != http.StatusOK {
		t.Fatalf("read endpoints are not limited, status = %d", rr.Code)
	}
}
