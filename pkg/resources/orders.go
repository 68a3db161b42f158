package resources

import (
	"context"

	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
)

const (
	// OrdersPageSize is the number of orders requested per page.
	OrdersPageSize = 50

	// LineItemsPerOrder is the number of line items fetched with each order.
	LineItemsPerOrder = 50
)

const ordersQuery = `
query Orders($cursor: String, $first: Int!, $lineItems: Int!) {
  orders(first: $first, after: $cursor, query: "status:any") {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        name
        status
        displayFulfillmentStatus
        createdAt
        customer { displayName }
        lineItems(first: $lineItems) {
          edges {
            node {
              id
              title
              quantity
              sku
              variant { id }
            }
          }
        }
      }
    }
  }
}
`

type orderNode struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Status                   string `json:"status"`
	DisplayFulfillmentStatus string `json:"displayFulfillmentStatus"`
	CreatedAt                string `json:"createdAt"`
	Customer                 *struct {
		DisplayName string `json:"displayName"`
	} `json:"customer"`
	LineItems connection[lineItemNode] `json:"lineItems"`
}

type lineItemNode struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Quantity int     `json:"quantity"`
	SKU      *string `json:"sku"`
	Variant  *struct {
		ID string `json:"id"`
	} `json:"variant"`
}

func normalizeLineItem(node lineItemNode) LineItem {
	item := LineItem{
		ID:       node.ID,
		Title:    node.Title,
		Quantity: node.Quantity,
		SKU:      node.SKU,
	}
	if node.Variant != nil {
		id := node.Variant.ID
		item.VariantID = &id
	}
	return item
}

func normalizeOrder(node orderNode) Order {
	order := Order{
		ID:                node.ID,
		Name:              node.Name,
		Status:            node.Status,
		FulfillmentStatus: nonEmpty(node.DisplayFulfillmentStatus),
		CreatedAt:         node.CreatedAt,
		LineItems:         make([]LineItem, 0, len(node.LineItems.Edges)),
	}
	if node.Customer != nil {
		name := node.Customer.DisplayName
		order.CustomerName = &name
	}
	for _, e := range node.LineItems.Edges {
		order.LineItems = append(order.LineItems, normalizeLineItem(e.Node))
	}
	return order
}

// Orders fetches the page of orders after cursor (nil for the first page).
func (s *Service) Orders(ctx context.Context, shop, token string, cursor *string, state ratelimit.State) (pagination.Page[Order], ratelimit.State, error) {
	var data struct {
		Orders connection[orderNode] `json:"orders"`
	}

	next, err := s.query(ctx, "orders", shop, token, ordersQuery, map[string]any{
		"cursor":    cursorVariable(cursor),
		"first":     OrdersPageSize,
		"lineItems": LineItemsPerOrder,
	}, state, &data)
	if err != nil {
		return pagination.Page[Order]{}, next, err
	}

	orders := make([]Order, 0, len(data.Orders.Edges))
	for _, e := range data.Orders.Edges {
		orders = append(orders, normalizeOrder(e.Node))
	}
	return newPage(s, "orders", shop, orders, data.Orders.PageInfo), next, nil
}
