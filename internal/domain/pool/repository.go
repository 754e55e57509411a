package pool

import (
	"context"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// Repository persists the map pool and best scores. Score writes are
// conditional upserts (only improvements), safe to repeat.
type Repository interface {
	// FindMaps returns the fixed map pool.
	FindMaps(ctx context.Context) ([]*Map, error)

	// SaveMap upserts a pool map.
	SaveMap(ctx context.Context, m *Map) error

	// FindScores returns every recorded best score.
	FindScores(ctx context.Context) ([]*Score, error)

	// FindScoresByUser returns one player's scores.
	FindScoresByUser(ctx context.Context, userID shared.OsuUserID) ([]*Score, error)

	// SaveScore upserts a score keyed by (user, map), keeping the maximum
	// of the stored and given best.
	SaveScore(ctx context.Context, s *Score) error
}
