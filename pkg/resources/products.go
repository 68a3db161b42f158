package resources

import (
	"context"

	"github.com/Sternrassler/shopify-connector/pkg/pagination"
	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
)

// ProductsPageSize is the number of products requested per page. Kept low
// because each product carries up to VariantsPageSize variants.
const ProductsPageSize = 25

const productsQuery = `
query Products($cursor: String, $first: Int!, $variants: Int!) {
  products(first: $first, after: $cursor, query: "status:active") {
    pageInfo { hasNextPage endCursor }
    edges {
      node {
        id
        title
        descriptionHtml
        variants(first: $variants) {
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
  }
}
`

type productNode struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	DescriptionHTML string                  `json:"descriptionHtml"`
	Variants        connection[VariantNode] `json:"variants"`
}

func normalizeProduct(node productNode) Product {
	return Product{
		ID:          node.ID,
		Title:       node.Title,
		Description: PlainText(node.DescriptionHTML),
		Variants:    normalizeVariants(node.Variants.Edges),
	}
}

// Products fetches the page of active products after cursor (nil for the first page).
func (s *Service) Products(ctx context.Context, shop, token string, cursor *string, state ratelimit.State) (pagination.Page[Product], ratelimit.State, error) {
	var data struct {
		Products connection[productNode] `json:"products"`
	}

	next, err := s.query(ctx, "products", shop, token, productsQuery, map[string]any{
		"cursor":   cursorVariable(cursor),
		"first":    ProductsPageSize,
		"variants": VariantsPageSize,
	}, state, &data)
	if err != nil {
		return pagination.Page[Product]{}, next, err
	}

	products := make([]Product, 0, len(data.Products.Edges))
	for _, e := range data.Products.Edges {
		products = append(products, normalizeProduct(e.Node))
	}
	return newPage(s, "products", shop, products, data.Products.PageInfo), next, nil
}
