package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pp-arena/pp-arena/internal/domain/pool"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POOL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PoolRepository implements pool.Repository for PostgreSQL.
type PoolRepository struct {
	conn *Connection
}

// NewPoolRepository creates a new PoolRepository.
func NewPoolRepository(conn *Connection) *PoolRepository {
	return &PoolRepository{conn: conn}
}

// FindMaps returns the fixed map pool ordered by when maps were added.
func (r *PoolRepository) FindMaps(ctx context.Context) ([]*pool.Map, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT map_id, title, added_at FROM pool_maps ORDER BY added_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool maps: %w", err)
	}
	defer rows.Close()

	maps := make([]*pool.Map, 0)
	for rows.Next() {
		m := &pool.Map{}
		if err := rows.Scan(&m.ID, &m.Title, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pool map: %w", err)
		}
		maps = append(maps, m)
	}

	return maps, rows.Err()
}

// SaveMap upserts a pool map.
func (r *PoolRepository) SaveMap(ctx context.Context, m *pool.Map) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO pool_maps (map_id, title, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (map_id) DO UPDATE SET title = EXCLUDED.title
	`, m.ID, m.Title, m.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to save pool map: %w", err)
	}
	return nil
}

// FindScores returns every recorded best score.
func (r *PoolRepository) FindScores(ctx context.Context) ([]*pool.Score, error) {
	return r.queryScores(ctx, `
		SELECT user_id, map_id, nickname, best, set_at
		FROM pool_scores
		ORDER BY user_id, map_id
	`)
}

// FindScoresByUser returns one player's scores.
func (r *PoolRepository) FindScoresByUser(ctx context.Context, userID shared.OsuUserID) ([]*pool.Score, error) {
	return r.queryScores(ctx, `
		SELECT user_id, map_id, nickname, best, set_at
		FROM pool_scores
		WHERE user_id = $1
		ORDER BY map_id
	`, userID.Int64())
}

// SaveScore upserts a score keyed by (user, map), keeping the maximum of the
// stored and given best. The WHERE guard keeps set_at consistent with best:
// the timestamp only moves when the score actually improves.
func (r *PoolRepository) SaveScore(ctx context.Context, s *pool.Score) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO pool_scores (user_id, map_id, nickname, best, set_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, map_id) DO UPDATE SET
			nickname = EXCLUDED.nickname,
			best = EXCLUDED.best,
			set_at = EXCLUDED.set_at
		WHERE pool_scores.best < EXCLUDED.best
	`, s.UserID.Int64(), s.MapID, s.Nickname.String(), s.Best, s.SetAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrPoolMapNotFound
		}
		return fmt.Errorf("failed to save pool score: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *PoolRepository) queryScores(ctx context.Context, query string, args ...interface{}) ([]*pool.Score, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pool scores: %w", err)
	}
	defer rows.Close()

	scores := make([]*pool.Score, 0)
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool score: %w", err)
		}
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

func scanScore(row pgx.Row) (*pool.Score, error) {
	var (
		userID   int64
		mapID    int64
		nickname string
		best     int64
		setAt    time.Time
	)
	if err := row.Scan(&userID, &mapID, &nickname, &best, &setAt); err != nil {
		return nil, err
	}

	return &pool.Score{
		UserID:   shared.OsuUserID(userID),
		Nickname: shared.Nickname(nickname),
		MapID:    mapID,
		Best:     best,
		SetAt:    setAt,
	}, nil
}
