package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pp-arena/pp-arena/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StandingsCache caches the assembled leaderboard table as one JSON blob.
//
// It implements both sides of the standings cache contract: the query layer
// reads and primes it, the command layer invalidates it after every write.
// The table is small (hundreds of rows at most), so one blob with a short
// TTL beats a sorted-set design here.
type StandingsCache struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewStandingsCache creates a standings cache over the given Redis client.
func NewStandingsCache(cache *Cache, logger *slog.Logger) *StandingsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &StandingsCache{
		cache:  cache,
		ttl:    TTLStandings,
		logger: logger.With(slog.String("component", "standings_cache")),
	}
}

// GetStandings returns the cached table if present. Cache errors are treated
// as a miss: the caller falls back to the database.
func (s *StandingsCache) GetStandings(ctx context.Context) ([]query.LeaderboardRowDTO, bool) {
	var rows []query.LeaderboardRowDTO
	err := s.cache.Get(ctx, StandingsKey(), &rows)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("standings cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return rows, true
}

// SetStandings caches the table with the standard TTL.
func (s *StandingsCache) SetStandings(ctx context.Context, rows []query.LeaderboardRowDTO) error {
	return s.cache.Set(ctx, StandingsKey(), rows, s.ttl)
}

// Invalidate drops the cached standings after a write.
func (s *StandingsCache) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, StandingsKey(), PoolStandingsKey())
}
