package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository implements tournament.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// SaveSnapshot writes a snapshot with its entries in one transaction.
// A snapshot ID that already exists is left untouched, so a retried
// period close cannot duplicate history.
func (r *HistoryRepository) SaveSnapshot(ctx context.Context, s *tournament.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO snapshots (id, track, snapshot_at, winner_key, processed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, s.ID, s.Track.String(), s.SnapshotAt, winnerKeyArg(s.WinnerKey), s.ProcessedAt)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Already persisted by an earlier attempt.
			return nil
		}

		for _, e := range s.Entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO snapshot_entries (
					snapshot_id, position, user_id, nickname, avatar_url,
					rating_start, rating_end, score, play_count, elo_after
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`,
				s.ID,
				e.Position.Int(),
				e.UserID.Int64(),
				e.Nickname.String(),
				e.AvatarURL,
				e.RatingStart.Float64(),
				e.RatingEnd.Float64(),
				int64(e.Score),
				e.PlayCount,
				e.EloAfter,
			)
			if err != nil {
				return fmt.Errorf("failed to insert snapshot entry %d: %w", e.Position.Int(), err)
			}
		}
		return nil
	})
}

// FindSnapshots returns the snapshots of one track ordered by snapshot_at ascending.
func (r *HistoryRepository) FindSnapshots(ctx context.Context, track shared.Track) ([]*tournament.Snapshot, error) {
	return r.findSnapshots(ctx, `
		SELECT id, track, snapshot_at, winner_key, processed_at
		FROM snapshots
		WHERE track = $1
		ORDER BY snapshot_at ASC
	`, track)
}

// FindUnprocessed returns the snapshots of one track without a reconciliation
// marker, ordered by snapshot_at ascending.
func (r *HistoryRepository) FindUnprocessed(ctx context.Context, track shared.Track) ([]*tournament.Snapshot, error) {
	return r.findSnapshots(ctx, `
		SELECT id, track, snapshot_at, winner_key, processed_at
		FROM snapshots
		WHERE track = $1 AND processed_at IS NULL
		ORDER BY snapshot_at ASC
	`, track)
}

// AnnotateElo records the post-snapshot ratings, the winner determination and
// the processed marker in one transaction.
func (r *HistoryRepository) AnnotateElo(ctx context.Context, snapshotID string, ratings map[shared.Position]int, winner *shared.PlayerKey, processedAt time.Time) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for position, rating := range ratings {
			_, err := tx.Exec(ctx, `
				UPDATE snapshot_entries SET elo_after = $1
				WHERE snapshot_id = $2 AND position = $3
			`, rating, snapshotID, position.Int())
			if err != nil {
				return fmt.Errorf("failed to annotate entry %d: %w", position.Int(), err)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE snapshots SET winner_key = $1, processed_at = $2
			WHERE id = $3
		`, winnerKeyArg(winner), processedAt.UTC(), snapshotID)
		if err != nil {
			return fmt.Errorf("failed to mark snapshot processed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrSnapshotNotFound
		}
		return nil
	})
}

// ClearAnnotations drops every annotation and processed marker of one track.
func (r *HistoryRepository) ClearAnnotations(ctx context.Context, track shared.Track) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE snapshot_entries SET elo_after = NULL
			WHERE snapshot_id IN (SELECT id FROM snapshots WHERE track = $1)
		`, track.String())
		if err != nil {
			return fmt.Errorf("failed to clear entry annotations: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE snapshots SET winner_key = NULL, processed_at = NULL
			WHERE track = $1
		`, track.String())
		if err != nil {
			return fmt.Errorf("failed to clear snapshot markers: %w", err)
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *HistoryRepository) findSnapshots(ctx context.Context, query string, track shared.Track) ([]*tournament.Snapshot, error) {
	rows, err := r.conn.Query(ctx, query, track.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*tournament.Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range snapshots {
		entries, err := r.findEntries(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		s.Entries = entries
	}

	return snapshots, nil
}

func (r *HistoryRepository) findEntries(ctx context.Context, snapshotID string) ([]*tournament.SnapshotEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT position, user_id, nickname, avatar_url,
		       rating_start, rating_end, score, play_count, elo_after
		FROM snapshot_entries
		WHERE snapshot_id = $1
		ORDER BY position ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*tournament.SnapshotEntry, 0)
	for rows.Next() {
		var (
			position    int
			userID      int64
			nickname    string
			avatarURL   string
			ratingStart float64
			ratingEnd   float64
			score       int64
			playCount   int
			eloAfter    *int
		)
		err := rows.Scan(
			&position, &userID, &nickname, &avatarURL,
			&ratingStart, &ratingEnd, &score, &playCount, &eloAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot entry: %w", err)
		}

		entries = append(entries, &tournament.SnapshotEntry{
			Position:    shared.Position(position),
			UserID:      shared.OsuUserID(userID),
			Nickname:    shared.Nickname(nickname),
			AvatarURL:   avatarURL,
			RatingStart: shared.PP(ratingStart),
			RatingEnd:   shared.PP(ratingEnd),
			Score:       int(score),
			PlayCount:   playCount,
			EloAfter:    eloAfter,
		})
	}

	return entries, rows.Err()
}

func scanSnapshot(row pgx.Row) (*tournament.Snapshot, error) {
	var (
		id          string
		track       string
		snapshotAt  time.Time
		winnerKey   *string
		processedAt *time.Time
	)
	if err := row.Scan(&id, &track, &snapshotAt, &winnerKey, &processedAt); err != nil {
		return nil, err
	}

	s := &tournament.Snapshot{
		ID:          id,
		Track:       shared.Track(track),
		SnapshotAt:  snapshotAt,
		ProcessedAt: processedAt,
	}
	if winnerKey != nil {
		key := shared.PlayerKey(*winnerKey)
		s.WinnerKey = &key
	}
	return s, nil
}

func winnerKeyArg(key *shared.PlayerKey) *string {
	if key == nil {
		return nil
	}
	s := string(*key)
	return &s
}
