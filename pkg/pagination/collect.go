package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/shopify-connector/pkg/ratelimit"
	"github.com/rs/zerolog/log"
)

// ErrTooManyPages is returned when a walk exceeds Config.MaxPages.
var ErrTooManyPages = errors.New("page limit reached")

// Config holds collector configuration
type Config struct {
	// MaxPages bounds one walk. A cursor that never ends would otherwise loop forever.
	MaxPages int
}

// DefaultConfig returns safe default configuration
func DefaultConfig() Config {
	return Config{
		MaxPages: 100,
	}
}

// FetchFunc fetches the page after cursor (nil for the first page).
type FetchFunc[T any] func(ctx context.Context, cursor *string, state ratelimit.State) (Page[T], ratelimit.State, error)

// Collect walks every page and returns all items in upstream order together with
// the budget state after the last call. On error the items fetched so far are returned.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], state ratelimit.State, config Config) ([]T, ratelimit.State, error) {
	if config.MaxPages <= 0 {
		config.MaxPages = DefaultConfig().MaxPages
	}

	start := time.Now()
	items := []T{}
	var cursor *string

	for pageNum := 1; ; pageNum++ {
		if pageNum > config.MaxPages {
			return items, state, fmt.Errorf("%w: %d pages", ErrTooManyPages, config.MaxPages)
		}

		page, next, err := fetch(ctx, cursor, state)
		state = next
		if err != nil {
			log.Warn().
				Err(err).
				Int("page", pageNum).
				Int("items", len(items)).
				Msg("Page fetch failed - returning partial results")
			return items, state, fmt.Errorf("fetch page %d: %w", pageNum, err)
		}

		items = append(items, page.Items...)

		if !page.HasNextPage || page.Cursor == nil {
			log.Debug().
				Int("pages", pageNum).
				Int("items", len(items)).
				Dur("duration", time.Since(start)).
				Msg("Fetch complete")
			return items, state, nil
		}

		if pageNum%10 == 0 {
			log.Info().
				Int("pages", pageNum).
				Int("items", len(items)).
				Msg("Fetch progress")
		}
		cursor = page.Cursor
	}
}
