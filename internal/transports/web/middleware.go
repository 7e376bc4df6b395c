package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const ctxRequestID contextKey = "request_id"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

type middleware func(http.Handler) http.Handler

// wrap применяет middleware так, что первый в списке выполняется первым.
func wrap(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// withRequestID принимает X-Request-ID клиента, если он корректен, иначе выдает новый.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if !requestIDPattern.MatchString(id) {
			id = generateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxRequestID).(string); ok && id != "" {
		return id
	}
	return generateRequestID()
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "req-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}

// withDeadline ограничивает время обработки запроса.
func withDeadline(d time.Duration) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// corsPolicy разрешает cross-origin запросы только из списка origins.
// Запросы без Origin и запросы со страницы самого API проходят без проверок.
type corsPolicy struct {
	origins map[string]bool
	methods map[string]bool

	allowMethods string
	allowHeaders string
}

func newCORSPolicy(origins, methods, headers []string) *corsPolicy {
	p := &corsPolicy{
		origins:      make(map[string]bool, len(origins)),
		methods:      make(map[string]bool, len(methods)),
		allowMethods: strings.Join(methods, ", "),
		allowHeaders: strings.Join(headers, ", "),
	}
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			p.origins[o] = true
		}
	}
	for _, m := range methods {
		p.methods[strings.ToUpper(strings.TrimSpace(m))] = true
	}
	return p
}

func (p *corsPolicy) handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		switch {
		case origin == "", sameOrigin(r, origin):
			next.ServeHTTP(w, r)
			return
		case !p.origins[origin]:
			respondError(w, r, http.StatusForbidden, "cors_denied")
			return
		}

		h := w.Header()
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", p.allowMethods)
		h.Set("Access-Control-Allow-Headers", p.allowHeaders)

		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		requested := strings.ToUpper(strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")))
		if requested != "" && !p.methods[requested] {
			respondError(w, r, http.StatusForbidden, "cors_method_denied")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// sameOrigin сообщает, что Origin совпадает со схемой и хостом самого запроса.
func sameOrigin(r *http.Request, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return strings.EqualFold(u.Scheme, scheme) && strings.EqualFold(u.Host, r.Host)
}
