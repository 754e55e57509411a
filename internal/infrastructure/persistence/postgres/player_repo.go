package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pp-arena/pp-arena/internal/domain/player"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRepository implements player.Repository for PostgreSQL.
type PlayerRepository struct {
	conn *Connection
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{conn: conn}
}

const upsertPlayerQuery = `
	INSERT INTO players (
		key, user_id, nickname, total_participations, total_wins,
		total_points, best_position, suspected_banned, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (key) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		nickname = EXCLUDED.nickname,
		total_participations = EXCLUDED.total_participations,
		total_wins = EXCLUDED.total_wins,
		total_points = EXCLUDED.total_points,
		best_position = EXCLUDED.best_position,
		suspected_banned = EXCLUDED.suspected_banned,
		updated_at = EXCLUDED.updated_at
`

const upsertRatingQuery = `
	INSERT INTO player_ratings (player_key, track, rating)
	VALUES ($1, $2, $3)
	ON CONFLICT (player_key, track) DO UPDATE SET rating = EXCLUDED.rating
`

// FindByKey returns a profile by resolved player key.
func (r *PlayerRepository) FindByKey(ctx context.Context, key shared.PlayerKey) (*player.Profile, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT key, user_id, nickname, total_participations, total_wins,
		       total_points, best_position, suspected_banned, updated_at
		FROM players
		WHERE key = $1
	`, string(key))

	p, err := scanProfile(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	if err := r.loadRatings(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindAll returns every profile with its per-track ratings.
func (r *PlayerRepository) FindAll(ctx context.Context) ([]*player.Profile, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT key, user_id, nickname, total_participations, total_wins,
		       total_points, best_position, suspected_banned, updated_at
		FROM players
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	profiles := make([]*player.Profile, 0)
	byKey := make(map[shared.PlayerKey]*player.Profile)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		profiles = append(profiles, p)
		byKey[p.Key] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ratingRows, err := r.conn.Query(ctx, `SELECT player_key, track, rating FROM player_ratings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer ratingRows.Close()

	for ratingRows.Next() {
		var (
			key    string
			track  string
			rating int
		)
		if err := ratingRows.Scan(&key, &track, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		if p, ok := byKey[shared.PlayerKey(key)]; ok {
			p.SetRating(shared.Track(track), rating)
		}
	}

	return profiles, ratingRows.Err()
}

// RatingTable loads the current rating of every player for one track.
func (r *PlayerRepository) RatingTable(ctx context.Context, track shared.Track) (player.RatingTable, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT player_key, rating FROM player_ratings WHERE track = $1
	`, track.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rating table: %w", err)
	}
	defer rows.Close()

	table := make(player.RatingTable)
	for rows.Next() {
		var (
			key    string
			rating int
		)
		if err := rows.Scan(&key, &rating); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		table[shared.PlayerKey(key)] = rating
	}

	return table, rows.Err()
}

// Save upserts a profile with its per-track ratings.
func (r *PlayerRepository) Save(ctx context.Context, p *player.Profile) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return saveProfileTx(ctx, tx, p)
	})
}

// SaveAll upserts the given profiles in one transaction.
func (r *PlayerRepository) SaveAll(ctx context.Context, ps []*player.Profile) error {
	if len(ps) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, p := range ps {
			if err := saveProfileTx(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func saveProfileTx(ctx context.Context, tx pgx.Tx, p *player.Profile) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := tx.Exec(ctx, upsertPlayerQuery,
		string(p.Key),
		p.UserID.Int64(),
		p.Nickname.String(),
		p.TotalParticipations,
		p.TotalWins,
		int64(p.TotalPoints),
		p.BestPosition.Int(),
		p.SuspectedBanned,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save player %s: %w", p.Key, err)
	}

	for track, rating := range p.Ratings {
		if _, err := tx.Exec(ctx, upsertRatingQuery, string(p.Key), track.String(), rating); err != nil {
			return fmt.Errorf("failed to save rating for %s/%s: %w", p.Key, track, err)
		}
	}
	return nil
}

func (r *PlayerRepository) loadRatings(ctx context.Context, p *player.Profile) error {
	rows, err := r.conn.Query(ctx, `
		SELECT track, rating FROM player_ratings WHERE player_key = $1
	`, string(p.Key))
	if err != nil {
		return fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			track  string
			rating int
		)
		if err := rows.Scan(&track, &rating); err != nil {
			return fmt.Errorf("failed to scan rating: %w", err)
		}
		p.SetRating(shared.Track(track), rating)
	}
	return rows.Err()
}

func scanProfile(row pgx.Row) (*player.Profile, error) {
	var (
		key             string
		userID          int64
		nickname        string
		participations  int
		wins            int
		points          int64
		bestPosition    int
		suspectedBanned bool
		updatedAt       time.Time
	)

	err := row.Scan(
		&key, &userID, &nickname, &participations, &wins,
		&points, &bestPosition, &suspectedBanned, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p := player.NewProfile(shared.PlayerKey(key), shared.OsuUserID(userID), shared.Nickname(nickname))
	p.TotalParticipations = participations
	p.TotalWins = wins
	p.TotalPoints = int(points)
	p.BestPosition = shared.Position(bestPosition)
	p.SuspectedBanned = suspectedBanned
	p.UpdatedAt = updatedAt
	return p, nil
}
