// Package pagination defines the page shape every resource returns and a
// caller-driven loop that walks a cursor-paged list to the end.
//
// Shopify connections are cursor based: each page reports hasNextPage and an
// opaque endCursor that must be echoed back to get the following page. Pages
// are therefore fetched strictly in sequence, never in parallel.
//
// Example usage:
//
//	orders, state, err := pagination.Collect(ctx, func(ctx context.Context, cursor *string, s ratelimit.State) (pagination.Page[resources.Order], ratelimit.State, error) {
//		return svc.Orders(ctx, shop, token, cursor, s)
//	}, state, pagination.DefaultConfig())
//
// Collect:
//   - Starts with a nil cursor (first page)
//   - Threads the budget state from each page into the next call
//   - Concatenates items in upstream order
//   - Stops at the first page without a next page, or after MaxPages
package pagination
