package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sternrassler/shopify-connector/pkg/client"
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
)

// Error codes carried in the "code" member of error bodies.
const (
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeRateLimit    = "RATE_LIMIT"
)

const (
	msgNotConnected = "Store not connected or invalid shop"
	msgTokenInvalid = "Token expired or revoked"
	msgRateLimit    = "Shopify API rate limit exceeded"
	msgInvalidToken = "Invalid shop or access token"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// statusFor maps a core failure to an HTTP status, message and code.
func statusFor(err error) (int, string, string) {
	switch {
	case client.IsAuthInvalid(err):
		return http.StatusUnauthorized, msgTokenInvalid, CodeTokenInvalid
	case errors.Is(err, client.ErrRetryExhausted), throttledPastDeadline(err):
		return http.StatusServiceUnavailable, msgRateLimit, CodeRateLimit
	case errors.Is(err, client.ErrContextCancelled):
		return http.StatusGatewayTimeout, "Request timed out", ""
	case errors.Is(err, pagination.ErrTooManyPages):
		return http.StatusBadGateway, err.Error(), ""
	}

	switch client.ClassOf(err) {
	case client.ErrorClassUpstream, client.ErrorClassGraphQL, client.ErrorClassNetwork:
		return http.StatusBadGateway, err.Error(), ""
	default:
		return http.StatusInternalServerError, err.Error(), ""
	}
}

// throttledPastDeadline reports whether the request deadline expired while
// the client was still backing off from a 429.
func throttledPastDeadline(err error) bool {
	return errors.Is(err, client.ErrContextCancelled) &&
		errors.Is(err, context.DeadlineExceeded) &&
		client.ClassOf(err) == client.ErrorClassThrottled
}

func (s *Server) writeCoreError(w http.ResponseWriter, r *http.Request, shop string, err error) {
	status, message, code := statusFor(err)

	event := s.logger.Warn()
	if status == http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).
		Str("shop", shop).
		Str("path", r.URL.Path).
		Int("status", status).
		Str("error_class", string(client.ClassOf(err))).
		Msg("Request failed")

	writeError(w, status, message, code)
}
