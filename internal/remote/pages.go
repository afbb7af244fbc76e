package remote

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// PagedEndpoint is a collection URL with {page} and {size} placeholders.
type PagedEndpoint struct {
	Template string
	Size     int
}

// URL expands the placeholders for the given 1-based page number.
func (e PagedEndpoint) URL(page int) string {
	return strings.NewReplacer(
		"{page}", strconv.Itoa(page),
		"{size}", strconv.Itoa(e.Size),
	).Replace(e.Template)
}

// Page is one response of a paged collection.
type Page[T any] struct {
	Data []T `json:"data"`
	Meta struct {
		TotalPages *int `json:"totalPages"`
	} `json:"meta"`
}

// totalPages reports the page count the response carries, if any.
func (p Page[T]) totalPages() (int, bool) {
	if p.Meta.TotalPages == nil {
		return 0, false
	}
	return *p.Meta.TotalPages, true
}

// Walk requests pages sequentially starting at 1 until the reported page count
// is reached. A collection without metadata is a single page, and a later page
// without metadata keeps the count already reported. Any failed page discards
// everything fetched so far.
func Walk[T any](ctx context.Context, c *Client, endpoint PagedEndpoint) ([]T, bool) {
	logger := log.Ctx(ctx)

	var records []T
	for page, total := 1, 1; page <= total; page++ {
		resp, ok := Fetch[Page[T]](ctx, c, endpoint.URL(page))
		if !ok {
			logger.Warn().
				Int("page", page).
				Int("fetched", len(records)).
				Msg("Paged fetch aborted")
			return nil, false
		}
		records = append(records, resp.Data...)
		if n, ok := resp.totalPages(); ok {
			total = n
		}
	}

	if records == nil {
		records = []T{}
	}
	return records, true
}
