package web

import (
	"encoding/json"
	"net/http"
)

var errorMessages = map[string]string{
	"request_timeout":     "request timeout",
	"cors_denied":         "origin is not allowed",
	"cors_method_denied":  "method is not allowed for cross-origin requests",
	"snapshot_not_found":  "no status snapshot recorded yet",
	"system_probe_failed": "failed to read host information",
	"query_failed":        "failed to read history",
	"bad_from":            "from must be an RFC 3339 timestamp",
}

type errorBody struct {
	RequestID string `json:"request_id"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Request-ID", requestID(r.Context()))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code string) {
	msg, ok := errorMessages[code]
	if !ok {
		msg = code
	}
	respond(w, r, status, errorBody{
		RequestID: requestID(r.Context()),
		ErrorCode: code,
		Message:   msg,
	})
}
