package web

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter ограничивает число изменяющих запросов с одного адреса в скользящем окне.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// allow фиксирует событие для key, если лимит не исчерпан.
func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.events[key] = kept
		return false
	}
	l.events[key] = append(kept, now)

	// чистим адреса, которые давно не обращались
	for k, items := range l.events {
		if k != key && (len(items) == 0 || !items[len(items)-1].After(cutoff)) {
			delete(l.events, k)
		}
	}
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
