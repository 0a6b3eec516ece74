package search

import (
	"fmt"
	"strconv"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

const (
	// DefaultLimit is used when neither the options nor the finder set one.
	DefaultLimit = 20

	// MaxLimit is the largest page a caller may request. A configured
	// default above it is lowered to it.
	MaxLimit = 1000
)

// applyDefaults fills in the limit and validates paging.
func applyDefaults(opts SearchOptions, defaultLimit int) (SearchOptions, error) {
	if opts.Offset < 0 {
		return opts, amerrors.ValidationError(fmt.Sprintf("offset must not be negative, got %d", opts.Offset), nil)
	}
	if opts.Limit < 0 {
		return opts, amerrors.ValidationError(fmt.Sprintf("limit must not be negative, got %d", opts.Limit), nil)
	}
	if opts.Limit > MaxLimit {
		return opts, amerrors.ValidationError(fmt.Sprintf("limit must not exceed %d, got %d", MaxLimit, opts.Limit), nil).
			WithDetail("max_limit", strconv.Itoa(MaxLimit)).
			WithSuggestion("Page through larger result sets with offset")
	}
	if opts.Limit == 0 {
		opts.Limit = min(defaultLimit, MaxLimit)
		if opts.Limit <= 0 {
			opts.Limit = DefaultLimit
		}
	}
	return opts, nil
}
