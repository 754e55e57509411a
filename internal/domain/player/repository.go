package player

import (
	"context"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// Repository persists all-time player profiles. Every write is an idempotent
// upsert keyed by the resolved player key: the reconciliation sweep may
// overlap the live refresh timer against the same store.
type Repository interface {
	// FindByKey returns a profile or shared.ErrPlayerNotFound.
	FindByKey(ctx context.Context, key shared.PlayerKey) (*Profile, error)

	// FindAll returns every profile.
	FindAll(ctx context.Context) ([]*Profile, error)

	// RatingTable loads the current rating of every player for one track.
	RatingTable(ctx context.Context, track shared.Track) (RatingTable, error)

	// Save upserts a profile with its per-track ratings.
	Save(ctx context.Context, p *Profile) error

	// SaveAll upserts the given profiles in one batch.
	SaveAll(ctx context.Context, ps []*Profile) error
}
