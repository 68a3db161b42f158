// Package client provides the Shopify Admin GraphQL client: one authenticated
// transport call plus the admission and throttle-retry loop around it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/shopify-connector/pkg/metrics"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for GraphQL transport.
var (
	graphqlRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_graphql_requests_total",
		Help: "Total Shopify GraphQL requests by HTTP status",
	}, []string{"status"})

	graphqlRequestDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "shopify_graphql_request_duration_seconds",
		Help:    "Shopify GraphQL request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	graphqlErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "shopify_graphql_errors_total",
		Help: "Total Shopify GraphQL failures by class",
	}, []string{"class"})

	queryCostActual = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "shopify_query_cost_actual",
		Help:    "Actual query cost reported by Shopify",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

const (
	// AccessTokenHeader carries the shop access token.
	AccessTokenHeader = "X-Shopify-Access-Token"

	// DefaultAPIVersion is the Admin API version queried.
	DefaultAPIVersion = "2024-01"

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After header.
	DefaultRetryAfter = 2 * time.Second

	// maxErrorBody bounds how much of a failed response body is kept in errors.
	maxErrorBody = 4096
)

// Config holds the client configuration.
type Config struct {
	// APIVersion is the Admin API version, e.g. "2024-01".
	APIVersion string

	// BaseURL overrides "https://<shop>" (used against mock servers).
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout for a single HTTP round trip.
	Timeout time.Duration

	// MaxThrottleWait caps the total 429 backoff of one logical call.
	// Zero retries throttled requests without limit.
	MaxThrottleWait time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		APIVersion:      DefaultAPIVersion,
		UserAgent:       "shopify-connector/0.1.0",
		Timeout:         30 * time.Second,
		MaxThrottleWait: 2 * time.Minute,
	}
}

// Client executes GraphQL queries against the Shopify Admin API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
	now        func() time.Time
}

// Response is a successful GraphQL response.
type Response struct {
	// Data is the raw "data" member of the envelope.
	Data json.RawMessage

	// Cost is the query cost from extensions, nil when absent.
	Cost *ratelimit.CostInfo
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Extensions *struct {
		Cost *ratelimit.CostInfo `json:"cost"`
	} `json:"extensions"`
}

// New creates a new Shopify GraphQL client.
func New(cfg Config) (*Client, error) {
	if cfg.APIVersion == "" {
		return nil, fmt.Errorf("api version is required")
	}

	if cfg.MaxThrottleWait < 0 {
		return nil, fmt.Errorf("max_throttle_wait must be >= 0 (got %s)", cfg.MaxThrottleWait)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "shopify-client").Logger(),
		now:    time.Now,
	}, nil
}

// Endpoint returns the GraphQL URL for a shop.
func (c *Client) Endpoint(shop string) string {
	base := c.config.BaseURL
	if base == "" {
		base = "https://" + shop
	}
	return strings.TrimRight(base, "/") + "/admin/api/" + c.config.APIVersion + "/graphql.json"
}

// send performs exactly one POST and classifies the outcome.
func (c *Client) send(ctx context.Context, shop, token, query string, variables map[string]any) (*Response, error) {
	if variables == nil {
		variables = map[string]any{}
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(shop), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(AccessTokenHeader, token)
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	graphqlRequestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		graphqlErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		graphqlRequestsTotal.WithLabelValues("network_error").Inc()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}
		return nil, &APIError{Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	graphqlRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	apiErr := c.classifyStatus(resp)
	if apiErr != nil {
		graphqlErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		c.logger.Debug().
			Str("shop", shop).
			Int("status", resp.StatusCode).
			Str("error_class", string(apiErr.Class)).
			Msg("Shopify request failed")
		return nil, apiErr
	}

	var envelope graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		graphqlErrorsTotal.WithLabelValues(string(ErrorClassMalformed)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassMalformed,
			Message:    "decode response",
			Err:        fmt.Errorf("%w: %w", ErrMalformedResponse, err),
		}
	}

	if len(envelope.Errors) > 0 {
		messages := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			messages = append(messages, e.Message)
		}
		graphqlErrorsTotal.WithLabelValues(string(ErrorClassGraphQL)).Inc()
		return nil, newGraphQLError(resp.StatusCode, messages)
	}

	result := &Response{Data: envelope.Data}
	if envelope.Extensions != nil && envelope.Extensions.Cost != nil {
		result.Cost = envelope.Extensions.Cost
		queryCostActual.Observe(result.Cost.ActualQueryCost)
	}

	return result, nil
}

// classifyStatus maps non-2xx responses to an APIError, in priority order.
func (c *Client) classifyStatus(resp *http.Response) *APIError {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return newAuthError()
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassThrottled,
			Message:    "throttled",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassUpstream,
			Message:    strings.TrimSpace(string(text)),
		}
	default:
		return nil
	}
}

// parseRetryAfter reads a Retry-After value in seconds. Shopify sends
// fractional values such as "2.0"; anything unparsable falls back to DefaultRetryAfter.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds * float64(time.Second))
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetLogger replaces the component logger.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}
