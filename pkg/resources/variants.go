package resources

import (
	"context"

	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
)

// VariantsPageSize is the number of variants requested per page.
const VariantsPageSize = 250

const productVariantsQuery = `
query ProductVariants($productId: ID!, $cursor: String, $first: Int!) {
  product(id: $productId) {
    id
    title
    variants(first: $first, after: $cursor) {
      pageInfo { hasNextPage endCursor }
      edges {
        node {
          id
          title
          sku
          selectedOptions { name value }
          inventoryQuantity
        }
      }
    }
  }
}
`

// ProductVariants fetches the page of variants of productID after cursor.
// An unknown product yields an empty terminal page, not an error.
func (s *Service) ProductVariants(ctx context.Context, shop, token, productID string, cursor *string, state ratelimit.State) (VariantsPage, ratelimit.State, error) {
	var data struct {
		Product *struct {
			ID       string                  `json:"id"`
			Title    string                  `json:"title"`
			Variants connection[VariantNode] `json:"variants"`
		} `json:"product"`
	}

	next, err := s.query(ctx, "product_variants", shop, token, productVariantsQuery, map[string]any{
		"productId": productID,
		"cursor":    cursorVariable(cursor),
		"first":     VariantsPageSize,
	}, state, &data)
	if err != nil {
		return VariantsPage{}, next, err
	}

	if data.Product == nil {
		s.logger.Debug().Str("shop", shop).Str("product_id", productID).Msg("Product not found")
		return VariantsPage{
			ProductID: productID,
			Page:      pagination.Empty[Variant](),
		}, next, nil
	}

	return VariantsPage{
		ProductID:    data.Product.ID,
		ProductTitle: data.Product.Title,
		Page:         newPage(s, "product_variants", shop, normalizeVariants(data.Product.Variants.Edges), data.Product.Variants.PageInfo),
	}, next, nil
}
