// Package registry adapts the public practitioner register: driving its
// search form, fetching detail pages, and parsing records out of them.
package registry

import (
	"context"
	"errors"
)

// ErrBlocked indicates the site served a block page instead of content.
// Callers treat it as a failure for throttling purposes and honor whatever
// cooldown the throttle controller signals.
var ErrBlocked = errors.New("registry: request blocked")

// ErrIncomplete indicates a parsed record had too few populated fields to be
// worth keeping. The ID stays pending for a later retry.
var ErrIncomplete = errors.New("registry: record incomplete")

// Query is one search against the register. NamePrefix is always set; the
// other dimensions narrow the search in combination modes.
type Query struct {
	Profession string
	State      string
	Suburb     string
	NamePrefix string
}

// ResultPage is one page of search results.
type ResultPage struct {
	IDs     []string
	HasNext bool
}

// QueryDriver executes register searches. Implementations own a browser or
// HTTP session; ResetSession discards it after a long cooldown.
type QueryDriver interface {
	Search(ctx context.Context, q Query, page int) (*ResultPage, error)
	ResetSession(ctx context.Context) error
	Close() error
}

// DetailFetcher retrieves the raw detail page for a registration ID.
type DetailFetcher interface {
	Fetch(ctx context.Context, regID string) ([]byte, error)
	ResetSession()
}

// RecordParser extracts a Record from a detail page.
type RecordParser interface {
	Parse(html []byte) (*Record, error)
}
