package resources

import (
	"context"

	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
)

// FulfillmentsPageSize is the number of fulfillments requested per page.
const FulfillmentsPageSize = 50

const fulfillmentsQuery = `
query Fulfillments($cursor: String, $first: Int!) {
  fulfillments(first: $first, after: $cursor) {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        status
        createdAt
        order { id }
        trackingInfo {
          number
          url
          company
        }
      }
    }
  }
}
`

type fulfillmentNode struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	Order     *struct {
		ID string `json:"id"`
	} `json:"order"`
	TrackingInfo []*struct {
		Number  *string `json:"number"`
		URL     *string `json:"url"`
		Company *string `json:"company"`
	} `json:"trackingInfo"`
}

func normalizeFulfillment(node fulfillmentNode) Fulfillment {
	f := Fulfillment{
		ID:              node.ID,
		Status:          node.Status,
		CreatedAt:       node.CreatedAt,
		TrackingNumbers: []string{},
		TrackingURLs:    []string{},
	}
	if node.Order != nil {
		f.OrderID = node.Order.ID
	}

	for i, t := range node.TrackingInfo {
		if t == nil {
			continue
		}
		if i == 0 {
			f.CarrierName = t.Company
		}
		if t.Number != nil && *t.Number != "" {
			f.TrackingNumbers = append(f.TrackingNumbers, *t.Number)
		}
		if t.URL != nil && *t.URL != "" {
			f.TrackingURLs = append(f.TrackingURLs, *t.URL)
		}
	}
	return f
}

// Fulfillments fetches the page of fulfillments after cursor (nil for the first page).
func (s *Service) Fulfillments(ctx context.Context, shop, token string, cursor *string, state ratelimit.State) (pagination.Page[Fulfillment], ratelimit.State, error) {
	var data struct {
		Fulfillments connection[fulfillmentNode] `json:"fulfillments"`
	}

	next, err := s.query(ctx, "fulfillments", shop, token, fulfillmentsQuery, map[string]any{
		"cursor": cursorVariable(cursor),
		"first":  FulfillmentsPageSize,
	}, state, &data)
	if err != nil {
		return pagination.Page[Fulfillment]{}, next, err
	}

	fulfillments := make([]Fulfillment, 0, len(data.Fulfillments.Edges))
	for _, e := range data.Fulfillments.Edges {
		fulfillments = append(fulfillments, normalizeFulfillment(e.Node))
	}
	return newPage(s, "fulfillments", shop, fulfillments, data.Fulfillments.PageInfo), next, nil
}
