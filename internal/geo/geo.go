// Package geo resolves network addresses to approximate locations and
// computes distances between them. Lookups are best-effort: every
// caller must tolerate an error and proceed without coordinates.
package geo

import (
	"context"
	"errors"
)

// ErrUnavailable means no location could be determined for the address.
var ErrUnavailable = errors.New("geo lookup unavailable")

// Location is an approximate position for a network address.
type Location struct {
	Latitude  float64
	Longitude float64
	City      string
	Country   string
}

// Resolver maps a network address to an approximate location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (Location, error)
}

// NoopResolver is used when no lookup service is configured; every
// resolve fails and callers fall back to location-free records.
type NoopResolver struct{}

func (NoopResolver) Resolve(ctx context.Context, ip string) (Location, error) {
	return Location{}, ErrUnavailable
}
