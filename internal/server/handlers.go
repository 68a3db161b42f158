package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/shopify-connector/pkg/client"
	"github.com/Sternrassler/shopify-connector/pkg/credentials"
	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/Sternrassler/shopify-connector/pkg/resources"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// shopRequest is a resolved API request.
type shopRequest struct {
	shop   string
	token  string
	cursor *string
	all    bool
}

// resolve reads shop and cursor from the query and looks up the stored token.
// It writes the error response itself and returns false on failure.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (shopRequest, bool) {
	query := r.URL.Query()
	req := shopRequest{
		shop: credentials.NormalizeShop(query.Get("shop")),
		all:  query.Get("all") == "true",
	}
	if cursor := query.Get("cursor"); cursor != "" {
		req.cursor = &cursor
	}

	if req.shop == "" {
		writeError(w, http.StatusUnauthorized, msgNotConnected, CodeTokenInvalid)
		return req, false
	}

	token, err := s.tokens.Get(r.Context(), req.shop)
	if errors.Is(err, credentials.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, msgNotConnected, CodeTokenInvalid)
		return req, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("shop", req.shop).Msg("Credential lookup failed")
		writeError(w, http.StatusInternalServerError, "Credential store unavailable", "")
		return req, false
	}

	req.token = token
	return req, true
}

// loadBudget returns the shop's budget state, falling back to a full budget
// when the store cannot be read.
func (s *Server) loadBudget(ctx context.Context, shop string) ratelimit.State {
	state, err := s.budgets.Load(ctx, shop)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Budget state unavailable, starting with full budget")
		return ratelimit.State{}
	}
	return state
}

func (s *Server) saveBudget(ctx context.Context, shop string, state ratelimit.State) {
	if state.IsZero() {
		return
	}
	if err := s.budgets.Save(context.WithoutCancel(ctx), shop, state); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Failed to save budget state")
	}
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.config.RequestTimeout)
	}
	return context.WithCancel(r.Context())
}

// pageFetcher fetches one page of a resource for a resolved request.
type pageFetcher[T any] func(ctx context.Context, shop, token string, cursor *string, state ratelimit.State) (pagination.Page[T], ratelimit.State, error)

// servePages answers one page, or every page from the cursor on when all=true.
func servePages[T any](s *Server, w http.ResponseWriter, r *http.Request, fetch pageFetcher[T]) {
	req, ok := s.resolve(w, r)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	state := s.loadBudget(ctx, req.shop)

	if !req.all {
		page, next, err := fetch(ctx, req.shop, req.token, req.cursor, state)
		s.saveBudget(ctx, req.shop, next)
		if err != nil {
			s.writeCoreError(w, r, req.shop, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	first := true
	walk := func(ctx context.Context, cursor *string, state ratelimit.State) (pagination.Page[T], ratelimit.State, error) {
		if first {
			first = false
			cursor = req.cursor
		}
		return fetch(ctx, req.shop, req.token, cursor, state)
	}

	items, next, err := pagination.Collect(ctx, walk, state, s.config.Pagination)
	s.saveBudget(ctx, req.shop, next)
	if err != nil {
		s.writeCoreError(w, r, req.shop, err)
		return
	}
	writeJSON(w, http.StatusOK, pagination.NewPage(items, pagination.PageInfo{}))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	servePages[resources.Order](s, w, r, s.resources.Orders)
}

func (s *Server) handleFulfillments(w http.ResponseWriter, r *http.Request) {
	servePages[resources.Fulfillment](s, w, r, s.resources.Fulfillments)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	servePages[resources.Product](s, w, r, s.resources.Products)
}

func (s *Server) handleProductVariants(w http.ResponseWriter, r *http.Request) {
	req, ok := s.resolve(w, r)
	if !ok {
		return
	}
	productID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || productID == "" {
		writeError(w, http.StatusBadRequest, "Invalid product id", "")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	page, next, err := s.resources.ProductVariants(ctx, req.shop, req.token, productID, req.cursor, s.loadBudget(ctx, req.shop))
	s.saveBudget(ctx, req.shop, next)
	if err != nil {
		s.writeCoreError(w, r, req.shop, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type connectTokenRequest struct {
	Shop        string `json:"shop"`
	AccessToken string `json:"accessToken"`
}

type connectionResponse struct {
	Shop         string `json:"shop"`
	Connected    bool   `json:"connected,omitempty"`
	ShopName     string `json:"shopName,omitempty"`
	Disconnected bool   `json:"disconnected,omitempty"`
}

// handleConnectToken validates a custom app token with a cheap query and stores it.
func (s *Server) handleConnectToken(w http.ResponseWriter, r *http.Request) {
	var body connectTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	shop := credentials.NormalizeShop(body.Shop)
	token := strings.TrimSpace(body.AccessToken)
	if shop == "" || token == "" {
		writeError(w, http.StatusBadRequest, "Missing shop or accessToken in body", "")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	name, next, err := s.resources.ShopName(ctx, shop, token, s.loadBudget(ctx, shop))
	s.saveBudget(ctx, shop, next)
	if err != nil {
		if client.IsAuthInvalid(err) {
			s.writeCoreError(w, r, shop, err)
			return
		}
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Token validation failed")
		writeError(w, http.StatusBadRequest, msgInvalidToken, "")
		return
	}

	if err := s.tokens.Save(ctx, shop, token); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to store token")
		writeError(w, http.StatusInternalServerError, "Credential store unavailable", "")
		return
	}

	writeJSON(w, http.StatusOK, connectionResponse{Shop: shop, Connected: true, ShopName: name})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shop string `json:"shop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", "")
		return
	}
	shop := credentials.NormalizeShop(body.Shop)
	if shop == "" {
		writeError(w, http.StatusBadRequest, "Missing shop in body", "")
		return
	}

	if err := s.tokens.Delete(r.Context(), shop); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to delete token")
		writeError(w, http.StatusInternalServerError, "Credential store unavailable", "")
		return
	}

	writeJSON(w, http.StatusOK, connectionResponse{Shop: shop, Disconnected: true})
}
