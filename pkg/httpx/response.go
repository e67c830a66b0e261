// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/FACorreiaa/batchdesk/pkg/backend"
	"github.com/FACorreiaa/batchdesk/pkg/logging"
)

// ErrorResponse is the JSON body of every error response.
// Code is machine readable; Message and Action are meant for the user.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON encodes v with the given status.
// Encoding errors are only logged since the header is already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", slog.Any("error", err))
	}
}

// RespondError logs err with the request context and writes resp with the given status
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, status int, resp ErrorResponse, err error) {
	log := logging.FromContext(r.Context(), logger)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("code", resp.Code),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request error", attrs...)
	} else {
		log.WarnContext(r.Context(), "request rejected", attrs...)
	}

	if resp.Error == "" {
		resp.Error = http.StatusText(status)
	}
	resp.RequestID = middleware.GetReqID(r.Context())
	WriteJSON(w, status, resp)
}

// DecodeJSON decodes a request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ForwardToken copies the caller's bearer token into the context used for backend calls
func ForwardToken(r *http.Request) *http.Request {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		token, ok = strings.CutPrefix(auth, "bearer ")
	}
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return r
	}
	return r.WithContext(backend.WithToken(r.Context(), token))
}

// TokenMiddleware applies ForwardToken to every request
func TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, ForwardToken(r))
	})
}
