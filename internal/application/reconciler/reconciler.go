// Package reconciler replays the tournament history in chronological order:
// it determines each tournament's legitimate winner, propagates the pairwise
// ratings across snapshots and rebuilds per-player all-time aggregates.
//
// The sweep is safe to re-run at any time. Rating propagation is guarded by a
// durable per-snapshot marker, and aggregates are always recomputed from the
// full history rather than incremented, so repeated runs over unchanged
// history produce identical state.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pp-arena/pp-arena/internal/domain/player"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the reconciliation sweep.
type Config struct {
	// Eligibility thresholds for win qualification.
	Eligibility player.EligibilityConfig

	// Tracks to reconcile, in order. Empty means all tracks.
	Tracks []shared.Track
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Eligibility: player.DefaultEligibilityConfig(),
		Tracks:      shared.AllTracks(),
	}
}

// Scope restricts which players' aggregates a run recomputes. A nil scope
// means every player. Rating propagation is always global regardless of
// scope: it is order-dependent and cannot be computed per player.
type Scope map[shared.PlayerKey]bool

// Contains reports whether a key is in scope (nil scope contains everything).
func (s Scope) Contains(key shared.PlayerKey) bool {
	return s == nil || s[key]
}

// RunStats contains statistics from one reconciliation run.
type RunStats struct {
	StartedAt          time.Time
	CompletedAt        time.Time
	Duration           time.Duration
	SnapshotsProcessed int
	SnapshotsSkipped   int
	EntriesSkipped     int
	FallbackMatches    int
	WinnersCredited    int
	ProfilesUpdated    int
	SuspectedBanned    int
	Errors             []error
}

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILER
// ══════════════════════════════════════════════════════════════════════════════

// Reconciler orchestrates eligibility filtering, rating propagation and
// aggregate folding over the history log.
type Reconciler struct {
	historyRepo tournament.HistoryRepository
	playerRepo  player.Repository
	playCounts  player.PlayCountSource
	logger      *slog.Logger
	config      Config
}

// New creates a Reconciler.
func New(
	historyRepo tournament.HistoryRepository,
	playerRepo player.Repository,
	playCounts player.PlayCountSource,
	logger *slog.Logger,
	config Config,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(config.Tracks) == 0 {
		config.Tracks = shared.AllTracks()
	}
	return &Reconciler{
		historyRepo: historyRepo,
		playerRepo:  playerRepo,
		playCounts:  playCounts,
		logger:      logger,
		config:      config,
	}
}

// Run performs one reconciliation sweep: propagates every unprocessed
// snapshot in chronological order, then recomputes aggregates for the players
// in scope from the full (now annotated) history.
//
// A persistence failure fails the run; partial writes are not rolled back but
// every write is idempotent, so the next scheduled run picks up cleanly.
func (r *Reconciler) Run(ctx context.Context, scope Scope) (*RunStats, error) {
	stats := &RunStats{StartedAt: time.Now().UTC()}

	// One filter per run: memoizes live play-count re-fetches.
	filter := player.NewEligibilityFilter(r.config.Eligibility, r.playCounts, r.logger)

	// One identity index per run: nickname-only entries resolve against it
	// so the same human never splits into an id profile and a nick profile.
	idx, err := r.buildIdentityIndex(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		return r.finish(stats), fmt.Errorf("build identity index: %w", err)
	}

	for _, track := range r.config.Tracks {
		if err := r.propagateTrack(ctx, track, idx, filter, stats); err != nil {
			stats.Errors = append(stats.Errors, err)
			return r.finish(stats), fmt.Errorf("reconcile track %s: %w", track, err)
		}
	}

	if err := r.foldAggregates(ctx, scope, idx, stats); err != nil {
		stats.Errors = append(stats.Errors, err)
		return r.finish(stats), fmt.Errorf("fold aggregates: %w", err)
	}

	if err := r.flagSuspectedBanned(ctx, filter, stats); err != nil {
		// Observability-only flag; never fails the run.
		r.logger.Warn("failed to flag suspected banned accounts", "error", err)
	}

	return r.finish(stats), nil
}

func (r *Reconciler) finish(stats *RunStats) *RunStats {
	stats.CompletedAt = time.Now().UTC()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	return stats
}

// ─────────────────────────────────────────────────────────────────────────────
// IDENTITY RESOLUTION
// ─────────────────────────────────────────────────────────────────────────────

// identityIndex maps normalized nicknames to the id-backed player key of the
// same human. Old history entries recorded before user IDs were stored carry
// only a nickname; resolving them through the index lands them on the same
// profile as the player's later id-backed entries.
type identityIndex map[shared.Nickname]shared.PlayerKey

// buildIdentityIndex collects nickname-to-id associations from every history
// entry that carries both, plus the already persisted id-backed profiles.
// Entries are scanned oldest first, so on a nickname handover the most
// recent owner wins.
func (r *Reconciler) buildIdentityIndex(ctx context.Context) (identityIndex, error) {
	idx := make(identityIndex)

	profiles, err := r.playerRepo.FindAll(ctx)
	if err != nil {
		return nil, shared.WrapError("reconciler", "Identity", shared.ErrPersistence, "load profiles", err)
	}
	for _, p := range profiles {
		if !p.Key.IsFallback() && p.Nickname.IsValid() {
			idx[p.Nickname.Normalize()] = p.Key
		}
	}

	for _, track := range r.config.Tracks {
		snapshots, err := r.historyRepo.FindSnapshots(ctx, track)
		if err != nil {
			return nil, shared.WrapError("reconciler", "Identity", shared.ErrPersistence, "load history for "+track.String(), err)
		}
		tournament.SortSnapshots(snapshots)
		for _, snap := range snapshots {
			for _, e := range snap.Entries {
				if !e.UserID.IsValid() || !e.Nickname.IsValid() {
					continue
				}
				if key, _, err := shared.ResolvePlayerKey(e.UserID, ""); err == nil {
					idx[e.Nickname.Normalize()] = key
				}
			}
		}
	}

	return idx, nil
}

// canonical redirects a nickname-fallback key to the known id-backed key of
// the same nickname. Keys with no known id pass through unchanged.
func (idx identityIndex) canonical(key shared.PlayerKey) shared.PlayerKey {
	if !key.IsFallback() {
		return key
	}
	nick := shared.Nickname(strings.TrimPrefix(key.String(), "nick:"))
	if id, ok := idx[nick]; ok {
		return id
	}
	return key
}

// resolve returns the entry's canonical player key.
func (idx identityIndex) resolve(e *tournament.SnapshotEntry) (shared.PlayerKey, bool, error) {
	key, usedFallback, err := e.Key()
	if err != nil {
		return "", false, err
	}
	return idx.canonical(key), usedFallback, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// RATING PROPAGATION
// ─────────────────────────────────────────────────────────────────────────────

// propagateTrack runs the Elo engine over every unprocessed snapshot of one
// track, oldest first, starting from the rating table as it stood after the
// last processed snapshot.
func (r *Reconciler) propagateTrack(ctx context.Context, track shared.Track, idx identityIndex, filter *player.EligibilityFilter, stats *RunStats) error {
	table, err := r.playerRepo.RatingTable(ctx, track)
	if err != nil {
		return shared.WrapError("reconciler", "Propagate", shared.ErrPersistence, "load rating table", err)
	}

	snapshots, err := r.historyRepo.FindUnprocessed(ctx, track)
	if err != nil {
		return shared.WrapError("reconciler", "Propagate", shared.ErrPersistence, "load unprocessed snapshots", err)
	}
	tournament.SortSnapshots(snapshots)

	for _, snap := range snapshots {
		if snap.Processed() || snap.FullyAnnotated() {
			// A concurrent sweep got here first, or the annotations landed
			// while the processed marker write was lost.
			stats.SnapshotsSkipped++
			continue
		}
		if err := r.processSnapshot(ctx, track, snap, idx, table, filter, stats); err != nil {
			return err
		}
	}

	return nil
}

// processSnapshot propagates one snapshot and commits the annotations.
// The in-memory table advances afterwards: it becomes the pre-snapshot
// baseline for the next chronological snapshot.
func (r *Reconciler) processSnapshot(
	ctx context.Context,
	track shared.Track,
	snap *tournament.Snapshot,
	idx identityIndex,
	table player.RatingTable,
	filter *player.EligibilityFilter,
	stats *RunStats,
) error {
	standings, contenders, keyByPosition := r.resolveEntries(snap, idx, stats)

	var winnerKey *shared.PlayerKey
	if track == shared.TrackWeekly {
		if winner, ok := filter.Winner(ctx, contenders); ok {
			if key, _, err := shared.ResolvePlayerKey(winner.UserID, winner.Nickname); err == nil {
				key = idx.canonical(key)
				winnerKey = &key
				stats.WinnersCredited++
			}
		}
	}

	updated := player.PropagateRatings(standings, table)

	ratingsByPosition := make(map[shared.Position]int, len(updated))
	for pos, key := range keyByPosition {
		if rating, ok := updated[key]; ok {
			ratingsByPosition[pos] = rating
		}
	}

	// The annotation (with its processed marker) is the durable commit of
	// this snapshot's propagation. It lands before any profile write so a
	// half-finished run can never double-apply deltas.
	if err := r.historyRepo.AnnotateElo(ctx, snap.ID, ratingsByPosition, winnerKey, time.Now().UTC()); err != nil {
		return shared.WrapError("reconciler", "Propagate", shared.ErrPersistence, "annotate snapshot "+snap.ID, err)
	}

	if err := r.commitRatings(ctx, track, snap, idx, updated); err != nil {
		return err
	}

	for key, rating := range updated {
		table[key] = rating
	}

	stats.SnapshotsProcessed++
	r.logger.Info("snapshot reconciled",
		"track", track.String(),
		"snapshot_id", snap.ID,
		"snapshot_at", snap.SnapshotAt.Format(time.RFC3339),
		"participants", len(standings),
		"has_winner", winnerKey != nil,
	)
	return nil
}

// resolveEntries maps snapshot entries to rating standings and win
// contenders, skipping entries without a resolvable identity.
func (r *Reconciler) resolveEntries(snap *tournament.Snapshot, idx identityIndex, stats *RunStats) ([]player.Standing, []player.Contender, map[shared.Position]shared.PlayerKey) {
	standings := make([]player.Standing, 0, len(snap.Entries))
	contenders := make([]player.Contender, 0, len(snap.Entries))
	keyByPosition := make(map[shared.Position]shared.PlayerKey, len(snap.Entries))

	for _, e := range snap.Entries {
		key, usedFallback, err := idx.resolve(e)
		if err != nil {
			// DataIntegrityAmbiguity: skip the entry, never abort.
			stats.EntriesSkipped++
			r.logger.Warn("skipping history entry without resolvable identity",
				"snapshot_id", snap.ID,
				"position", e.Position.Int(),
			)
			continue
		}
		if usedFallback {
			stats.FallbackMatches++
			r.logger.Info("identity resolved by nickname fallback",
				"snapshot_id", snap.ID,
				"nickname", e.Nickname.String(),
				"key", key.String(),
			)
		}

		standings = append(standings, player.Standing{Key: key, Score: e.Score})
		contenders = append(contenders, player.Contender{
			UserID:      e.UserID,
			Nickname:    e.Nickname,
			Position:    e.Position,
			RatingStart: e.RatingStart.Float64(),
			PlayCount:   e.PlayCount,
		})
		keyByPosition[e.Position] = key
	}

	return standings, contenders, keyByPosition
}

// commitRatings upserts the propagated ratings into the player profiles.
func (r *Reconciler) commitRatings(ctx context.Context, track shared.Track, snap *tournament.Snapshot, idx identityIndex, updated map[shared.PlayerKey]int) error {
	profiles := make([]*player.Profile, 0, len(updated))
	for _, e := range snap.Entries {
		key, _, err := idx.resolve(e)
		if err != nil {
			continue
		}
		rating, ok := updated[key]
		if !ok {
			continue
		}
		p, err := r.loadOrCreate(ctx, key, e.UserID, e.Nickname)
		if err != nil {
			return err
		}
		p.SetRating(track, rating)
		p.UpdatedAt = time.Now().UTC()
		profiles = append(profiles, p)
	}

	if err := r.playerRepo.SaveAll(ctx, profiles); err != nil {
		return shared.WrapError("reconciler", "Propagate", shared.ErrPersistence, "save propagated ratings", err)
	}
	return nil
}

func (r *Reconciler) loadOrCreate(ctx context.Context, key shared.PlayerKey, userID shared.OsuUserID, nickname shared.Nickname) (*player.Profile, error) {
	p, err := r.playerRepo.FindByKey(ctx, key)
	switch {
	case err == nil:
		if userID.IsValid() && !p.UserID.IsValid() {
			p.UserID = userID
		}
		if nickname.IsValid() {
			p.Nickname = nickname
		}
		return p, nil
	case errors.Is(err, shared.ErrNotFound):
		return player.NewProfile(key, userID, nickname), nil
	default:
		return nil, shared.WrapError("reconciler", "LoadProfile", shared.ErrPersistence, "find profile "+key.String(), err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// AGGREGATE FOLDING
// ─────────────────────────────────────────────────────────────────────────────

// foldAggregates recomputes participation/win/points/best-position aggregates
// for every in-scope player from the full weekly history. Aggregates are
// derived state: recomputing from scratch each sweep (instead of incrementing)
// keeps the sweep idempotent even after a half-finished previous run.
func (r *Reconciler) foldAggregates(ctx context.Context, scope Scope, idx identityIndex, stats *RunStats) error {
	snapshots, err := r.historyRepo.FindSnapshots(ctx, shared.TrackWeekly)
	if err != nil {
		return shared.WrapError("reconciler", "Fold", shared.ErrPersistence, "load weekly history", err)
	}
	tournament.SortSnapshots(snapshots)

	type appearance struct {
		position shared.Position
		score    int
		won      bool
	}
	type fold struct {
		userID      shared.OsuUserID
		nickname    shared.Nickname
		appearances []appearance
	}
	folded := make(map[shared.PlayerKey]*fold)

	for _, snap := range snapshots {
		if !snap.Processed() {
			// Winner not determined yet; the next sweep picks it up.
			continue
		}
		var winnerKey shared.PlayerKey
		if snap.WinnerKey != nil {
			// Winner keys annotated before the id became known redirect
			// to the canonical key the same way entries do.
			winnerKey = idx.canonical(*snap.WinnerKey)
		}
		for _, e := range snap.Entries {
			key, _, err := idx.resolve(e)
			if err != nil {
				continue
			}
			if !scope.Contains(key) {
				continue
			}
			f, ok := folded[key]
			if !ok {
				f = &fold{userID: e.UserID, nickname: e.Nickname}
				folded[key] = f
			}
			if e.UserID.IsValid() {
				f.userID = e.UserID
				f.nickname = e.Nickname
			}
			f.appearances = append(f.appearances, appearance{
				position: e.Position,
				score:    e.Score,
				won:      snap.WinnerKey != nil && winnerKey == key,
			})
		}
	}

	profiles := make([]*player.Profile, 0, len(folded))
	now := time.Now().UTC()
	for key, f := range folded {
		p, err := r.loadOrCreate(ctx, key, f.userID, f.nickname)
		if err != nil {
			return err
		}
		// Replace, never increment: aggregates are derived state.
		p.TotalParticipations = 0
		p.TotalWins = 0
		p.TotalPoints = 0
		p.BestPosition = 0
		for _, a := range f.appearances {
			p.RecordAppearance(a.position, a.score, a.won, now)
		}
		profiles = append(profiles, p)
	}

	if err := r.playerRepo.SaveAll(ctx, profiles); err != nil {
		return shared.WrapError("reconciler", "Fold", shared.ErrPersistence, "save aggregates", err)
	}
	stats.ProfilesUpdated = len(profiles)
	return nil
}

// flagSuspectedBanned marks profiles whose live play-count re-fetch failed.
func (r *Reconciler) flagSuspectedBanned(ctx context.Context, filter *player.EligibilityFilter, stats *RunStats) error {
	banned := filter.SuspectedBanned()
	stats.SuspectedBanned = len(banned)
	if len(banned) == 0 {
		return nil
	}

	profiles := make([]*player.Profile, 0, len(banned))
	for _, userID := range banned {
		key, _, err := shared.ResolvePlayerKey(userID, "")
		if err != nil {
			continue
		}
		p, err := r.loadOrCreate(ctx, key, userID, "")
		if err != nil {
			return err
		}
		p.SuspectedBanned = true
		profiles = append(profiles, p)
	}
	return r.playerRepo.SaveAll(ctx, profiles)
}

// ─────────────────────────────────────────────────────────────────────────────
// FULL REBUILD
// ─────────────────────────────────────────────────────────────────────────────

// Rebuild clears every annotation and derived aggregate, then replays the
// whole history from scratch. Used after fixing bad history data; routine
// sweeps use Run.
func (r *Reconciler) Rebuild(ctx context.Context) (*RunStats, error) {
	for _, track := range r.config.Tracks {
		if err := r.historyRepo.ClearAnnotations(ctx, track); err != nil {
			return nil, shared.WrapError("reconciler", "Rebuild", shared.ErrPersistence, "clear annotations", err)
		}
	}

	profiles, err := r.playerRepo.FindAll(ctx)
	if err != nil {
		return nil, shared.WrapError("reconciler", "Rebuild", shared.ErrPersistence, "load profiles", err)
	}
	for _, p := range profiles {
		p.ResetAggregates()
	}
	if err := r.playerRepo.SaveAll(ctx, profiles); err != nil {
		return nil, shared.WrapError("reconciler", "Rebuild", shared.ErrPersistence, "reset profiles", err)
	}

	return r.Run(ctx, nil)
}
