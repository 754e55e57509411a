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
// PARTICIPANT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ParticipantRepository implements tournament.ParticipantRepository for PostgreSQL.
type ParticipantRepository struct {
	conn *Connection
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(conn *Connection) *ParticipantRepository {
	return &ParticipantRepository{conn: conn}
}

const participantColumns = `user_id, nickname, avatar_url, rating_start, rating_end, points, position, registered_at`

const upsertParticipantQuery = `
	INSERT INTO participants (
		user_id, nickname, avatar_url, rating_start, rating_end,
		points, position, registered_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id) DO UPDATE SET
		nickname = EXCLUDED.nickname,
		avatar_url = EXCLUDED.avatar_url,
		rating_end = EXCLUDED.rating_end,
		points = EXCLUDED.points,
		position = EXCLUDED.position,
		updated_at = EXCLUDED.updated_at
`

// FindByUserID returns a participant by osu! user ID.
func (r *ParticipantRepository) FindByUserID(ctx context.Context, userID shared.OsuUserID) (*tournament.Participant, error) {
	query := fmt.Sprintf(`SELECT %s FROM participants WHERE user_id = $1`, participantColumns)

	row := r.conn.QueryRow(ctx, query, userID.Int64())
	p, err := scanParticipant(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

// FindAll returns all live participants ordered by position.
func (r *ParticipantRepository) FindAll(ctx context.Context) ([]*tournament.Participant, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM participants
		ORDER BY position ASC, registered_at ASC
	`, participantColumns)

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	participants := make([]*tournament.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// Save upserts a participant keyed by user ID.
func (r *ParticipantRepository) Save(ctx context.Context, p *tournament.Participant) error {
	_, err := r.conn.Exec(ctx, upsertParticipantQuery, participantArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to save participant: %w", err)
	}
	return nil
}

// SaveAll upserts the given participants in one transaction.
func (r *ParticipantRepository) SaveAll(ctx context.Context, ps []*tournament.Participant) error {
	if len(ps) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, p := range ps {
			if _, err := tx.Exec(ctx, upsertParticipantQuery, participantArgs(p)...); err != nil {
				return fmt.Errorf("failed to save participant %d: %w", p.UserID.Int64(), err)
			}
		}
		return nil
	})
}

// DeleteAll removes every live participant.
func (r *ParticipantRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM participants`); err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}
	return nil
}

// Count returns the number of live participants.
func (r *ParticipantRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM participants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func participantArgs(p *tournament.Participant) []interface{} {
	return []interface{}{
		p.UserID.Int64(),
		p.Nickname.String(),
		p.AvatarURL,
		p.RatingStart.Float64(),
		p.RatingEnd.Float64(),
		p.Points.Int(),
		p.Position.Int(),
		p.RegisteredAt,
		time.Now().UTC(),
	}
}

func scanParticipant(row pgx.Row) (*tournament.Participant, error) {
	var (
		userID       int64
		nickname     string
		avatarURL    string
		ratingStart  float64
		ratingEnd    float64
		points       int
		position     int
		registeredAt time.Time
	)

	err := row.Scan(
		&userID,
		&nickname,
		&avatarURL,
		&ratingStart,
		&ratingEnd,
		&points,
		&position,
		&registeredAt,
	)
	if err != nil {
		return nil, err
	}

	return &tournament.Participant{
		UserID:       shared.OsuUserID(userID),
		Nickname:     shared.Nickname(nickname),
		AvatarURL:    avatarURL,
		RatingStart:  shared.PP(ratingStart),
		RatingEnd:    shared.PP(ratingEnd),
		Points:       shared.Points(points),
		Position:     shared.Position(position),
		RegisteredAt: registeredAt,
	}, nil
}
