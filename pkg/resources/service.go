// Package resources fetches Shopify orders, fulfillments, products and
// product variants one page at a time and maps them to normalized records.
// Each resource owns its query and page size; transport, budget and retries
// are delegated to an Executor.
package resources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/shopify-connector/pkg/client"
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// Executor runs one logical GraphQL call. *client.Client implements it.
type Executor interface {
	Execute(ctx context.Context, shop, token, query string, variables map[string]any, state ratelimit.State) (*client.Response, ratelimit.State, error)
}

// Service exposes the resource fetchers.
type Service struct {
	exec   Executor
	logger zerolog.Logger
}

// NewService creates a resource service on top of exec.
func NewService(exec Executor, logger zerolog.Logger) *Service {
	return &Service{
		exec:   exec,
		logger: logger,
	}
}

type connection[T any] struct {
	PageInfo pagination.PageInfo `json:"pageInfo"`
	Edges    []edge[T]           `json:"edges"`
}

type edge[T any] struct {
	Node T `json:"node"`
}

// query executes q and decodes the data object into out.
func (s *Service) query(ctx context.Context, resource, shop, token, q string, variables map[string]any, state ratelimit.State, out any) (ratelimit.State, error) {
	resp, next, err := s.exec.Execute(ctx, shop, token, q, variables, state)
	if err != nil {
		return next, err
	}

	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return next, fmt.Errorf("%s: %w: missing data", resource, client.ErrMalformedResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return next, fmt.Errorf("%s: %w: %w", resource, client.ErrMalformedResponse, err)
	}

	s.logger.Debug().
		Str("shop", shop).
		Str("resource", resource).
		Float64("available", next.Available).
		Msg("Page fetched")
	return next, nil
}

// newPage wraps pagination.NewPage and reports connections that claim a
// next page without an end cursor; such a page is returned as the last one.
func newPage[T any](s *Service, resource, shop string, items []T, info pagination.PageInfo) pagination.Page[T] {
	if info.MissingCursor() {
		s.logger.Warn().
			Str("shop", shop).
			Str("resource", resource).
			Msg("hasNextPage without endCursor, treating page as last")
	}
	return pagination.NewPage(items, info)
}

func cursorVariable(cursor *string) any {
	if cursor == nil {
		return nil
	}
	return *cursor
}
