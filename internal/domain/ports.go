package domain

import (
	"context"
	"errors"
)

// Upstream failure classes that survive the retry policy. Anything wrapping
// ErrUnauthorized is a credential problem and fatal for the whole scan;
// ErrNotFound on an optional record just means the record does not exist.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// CatalogClient is the read-only upstream directory API. Implementations own
// rate limiting and retries; errors that reach the caller are final for that
// call (see ErrUnauthorized for the non-retryable credential case).
type CatalogClient interface {
	Countries(ctx context.Context) ([]Country, error)
	Cities(ctx context.Context, countryID int64) ([]City, error)
	// HotelsPage returns one page; a page shorter than perPage is the last.
	HotelsPage(ctx context.Context, cityID int64, countryID *int64, page, perPage int) ([]HotelRecord, error)
	HotelDetail(ctx context.Context, hotelID int64) (HotelDetail, error)
	// SetRate adjusts the shared token bucket for the requested scan rate.
	SetRate(rps float64)
	Stats() UpstreamStats
}

// Cache is a TTL'd key/value store used to short-circuit repeated hotel
// detail lookups. Misses are (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
