package client

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors returned by the client.
var (
	// ErrAuthInvalid is returned when Shopify rejects the access token (401).
	// Callers should ask the merchant to reconnect instead of retrying.
	ErrAuthInvalid = errors.New("token expired or revoked")

	// ErrMalformedResponse is returned when the body is not a GraphQL envelope.
	ErrMalformedResponse = errors.New("malformed graphql response")

	// ErrRetryExhausted is returned when throttled retries exceed MaxThrottleWait.
	ErrRetryExhausted = errors.New("throttle retries exhausted")

	// ErrContextCancelled is returned when the context is cancelled while waiting.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassAuth represents a rejected access token (401).
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassThrottled represents a 429 response.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassUpstream represents any other non-2xx response.
	ErrorClassUpstream ErrorClass = "upstream"

	// ErrorClassGraphQL represents a 2xx response carrying GraphQL errors.
	ErrorClassGraphQL ErrorClass = "graphql"

	// ErrorClassMalformed represents an undecodable response body.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassNetwork represents transport failures before a response arrived.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a classified failure of one GraphQL request.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string

	// Messages holds the individual GraphQL error messages for ErrorClassGraphQL.
	Messages []string

	// RetryAfter is the server requested backoff for ErrorClassThrottled.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shopify %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("shopify %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

func newAuthError() *APIError {
	return &APIError{
		StatusCode: 401,
		Class:      ErrorClassAuth,
		Message:    "access token rejected",
		Err:        ErrAuthInvalid,
	}
}

func newGraphQLError(status int, messages []string) *APIError {
	return &APIError{
		StatusCode: status,
		Class:      ErrorClassGraphQL,
		Message:    strings.Join(messages, "; "),
		Messages:   messages,
	}
}

// IsAuthInvalid reports whether err means the credential must be reconnected.
func IsAuthInvalid(err error) bool {
	return errors.Is(err, ErrAuthInvalid)
}

// ClassOf returns the classification of err, or "" for unclassified errors.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// shouldRetry determines if an error class is recovered locally.
// Only throttling is; everything else is fatal for the call.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassThrottled
}
