package pagination

// PageInfo is the pageInfo block of a GraphQL connection.
type PageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

// MissingCursor reports whether the connection claims more pages without
// a cursor to request them with.
func (p PageInfo) MissingCursor() bool {
	return p.HasNextPage && p.EndCursor == nil
}

// Page is one page of normalized records.
// Cursor is nil exactly when there is no next page.
type Page[T any] struct {
	Items       []T     `json:"items"`
	HasNextPage bool    `json:"hasNextPage"`
	Cursor      *string `json:"cursor"`
}

// NewPage builds a page from mapped items and the connection's page info.
// A next page without an end cursor cannot be followed, so it is dropped.
func NewPage[T any](items []T, info PageInfo) Page[T] {
	if items == nil {
		items = []T{}
	}

	page := Page[T]{Items: items}
	if info.HasNextPage && info.EndCursor != nil {
		page.HasNextPage = true
		page.Cursor = info.EndCursor
	}
	return page
}

// Empty returns a terminal page without items.
func Empty[T any]() Page[T] {
	return Page[T]{Items: []T{}}
}
