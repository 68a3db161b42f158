package resources

import (
	"context"

	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
)

const shopQuery = `
query Shop {
  shop { name }
}
`

// ShopName fetches the shop's display name. It is the cheapest authenticated
// query and is used to validate a token before storing it.
func (s *Service) ShopName(ctx context.Context, shop, token string, state ratelimit.State) (string, ratelimit.State, error) {
	var data struct {
		Shop struct {
			Name string `json:"name"`
		} `json:"shop"`
	}

	next, err := s.query(ctx, "shop", shop, token, shopQuery, nil, state, &data)
	if err != nil {
		return "", next, err
	}
	return data.Shop.Name, next, nil
}
