package tournament

import (
	"context"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/shared"
)

// ParticipantRepository persists the live participants of the open tournament.
// All writes are idempotent upserts keyed by user ID: two timers may run
// against the same store concurrently.
type ParticipantRepository interface {
	// FindByUserID returns a participant or shared.ErrParticipantNotFound.
	FindByUserID(ctx context.Context, userID shared.OsuUserID) (*Participant, error)

	// FindAll returns all live participants ordered by position.
	FindAll(ctx context.Context) ([]*Participant, error)

	// Save upserts a participant keyed by user ID.
	Save(ctx context.Context, p *Participant) error

	// SaveAll upserts the given participants in one batch.
	SaveAll(ctx context.Context, ps []*Participant) error

	// DeleteAll removes every live participant. Called after the durable
	// history copy has been confirmed, never before.
	DeleteAll(ctx context.Context) error

	// Count returns the number of live participants.
	Count(ctx context.Context) (int, error)
}

// HistoryRepository persists history snapshots and their reconciliation state.
type HistoryRepository interface {
	// SaveSnapshot writes a snapshot with its entries. Idempotent per
	// snapshot ID so a retried close cannot duplicate history.
	SaveSnapshot(ctx context.Context, s *Snapshot) error

	// FindSnapshots returns the snapshots of one track ordered by
	// SnapshotAt ascending.
	FindSnapshots(ctx context.Context, track shared.Track) ([]*Snapshot, error)

	// FindUnprocessed returns the snapshots of one track without a
	// reconciliation marker, ordered by SnapshotAt ascending.
	FindUnprocessed(ctx context.Context, track shared.Track) ([]*Snapshot, error)

	// AnnotateElo records the post-snapshot ratings on the entries, the
	// winner determination and the processed marker in the same transaction.
	// ratings is keyed by entry position; winner is nil when nobody
	// qualified. Safe to repeat.
	AnnotateElo(ctx context.Context, snapshotID string, ratings map[shared.Position]int, winner *shared.PlayerKey, processedAt time.Time) error

	// ClearAnnotations drops every EloAfter annotation and processed marker
	// of one track. Used by a full rebuild before replaying history.
	ClearAnnotations(ctx context.Context, track shared.Track) error
}
