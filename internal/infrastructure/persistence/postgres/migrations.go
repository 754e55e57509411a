package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Migration 001: Live tournament participants.
const migration001Up = `
-- Live participants of the currently open weekly tournament.
-- The table is emptied at period close, after the history snapshot
-- has been confirmed durable.
CREATE TABLE IF NOT EXISTS participants (
    user_id BIGINT PRIMARY KEY,
    nickname TEXT NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    rating_start DOUBLE PRECISION NOT NULL CHECK (rating_start >= 0),
    rating_end DOUBLE PRECISION NOT NULL CHECK (rating_end >= 0),
    points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
    position INTEGER NOT NULL DEFAULT 0,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_participants_position ON participants(position);
CREATE INDEX IF NOT EXISTS idx_participants_registered_at ON participants(registered_at);
`

const migration001Down = `
DROP TABLE IF EXISTS participants;
`

// Migration 002: Tournament history snapshots.
const migration002Up = `
-- Append-only history. One snapshot per closed tournament period;
-- entries are the frozen standings. winner_key and processed_at are
-- written once by reconciliation and mark the snapshot as propagated.
CREATE TABLE IF NOT EXISTS snapshots (
    id UUID PRIMARY KEY,
    track TEXT NOT NULL CHECK (track IN ('weekly', 'pool')),
    snapshot_at TIMESTAMP WITH TIME ZONE NOT NULL,
    winner_key TEXT,
    processed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_track_at ON snapshots(track, snapshot_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_unprocessed ON snapshots(track, snapshot_at)
    WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS snapshot_entries (
    snapshot_id UUID NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
    position INTEGER NOT NULL CHECK (position > 0),
    user_id BIGINT NOT NULL DEFAULT 0,
    nickname TEXT NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    rating_start DOUBLE PRECISION NOT NULL DEFAULT 0,
    rating_end DOUBLE PRECISION NOT NULL DEFAULT 0,
    score BIGINT NOT NULL DEFAULT 0,
    play_count INTEGER NOT NULL DEFAULT 0,
    elo_after INTEGER,
    PRIMARY KEY (snapshot_id, position)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_entries_user ON snapshot_entries(user_id)
    WHERE user_id > 0;
`

const migration002Down = `
DROP TABLE IF EXISTS snapshot_entries;
DROP TABLE IF EXISTS snapshots;
`

// Migration 003: All-time player profiles.
const migration003Up = `
-- Cross-tournament player profiles keyed by resolved identity
-- ('id:N' or 'nick:lowercase' for pre-ID entries). Rebuilt entirely
-- from history by reconciliation; never written by request handlers.
CREATE TABLE IF NOT EXISTS players (
    key TEXT PRIMARY KEY,
    user_id BIGINT NOT NULL DEFAULT 0,
    nickname TEXT NOT NULL,
    total_participations INTEGER NOT NULL DEFAULT 0,
    total_wins INTEGER NOT NULL DEFAULT 0,
    total_points BIGINT NOT NULL DEFAULT 0,
    best_position INTEGER NOT NULL DEFAULT 0,
    suspected_banned BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_players_user_id ON players(user_id) WHERE user_id > 0;

CREATE TABLE IF NOT EXISTS player_ratings (
    player_key TEXT NOT NULL REFERENCES players(key) ON DELETE CASCADE,
    track TEXT NOT NULL CHECK (track IN ('weekly', 'pool')),
    rating INTEGER NOT NULL,
    PRIMARY KEY (player_key, track)
);

CREATE INDEX IF NOT EXISTS idx_player_ratings_track ON player_ratings(track, rating DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS player_ratings;
DROP TABLE IF EXISTS players;
`

// Migration 004: Map pool competition.
const migration004Up = `
CREATE TABLE IF NOT EXISTS pool_maps (
    map_id BIGINT PRIMARY KEY,
    title TEXT NOT NULL,
    added_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Best scores per (player, map). The stored best is monotonically
-- non-decreasing: the upsert keeps the maximum of old and new.
CREATE TABLE IF NOT EXISTS pool_scores (
    user_id BIGINT NOT NULL,
    map_id BIGINT NOT NULL REFERENCES pool_maps(map_id) ON DELETE CASCADE,
    nickname TEXT NOT NULL,
    best BIGINT NOT NULL CHECK (best >= 0),
    set_at TIMESTAMP WITH TIME ZONE NOT NULL,
    PRIMARY KEY (user_id, map_id)
);

CREATE INDEX IF NOT EXISTS idx_pool_scores_map ON pool_scores(map_id, best DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS pool_scores;
DROP TABLE IF EXISTS pool_maps;
`

// GetMigrations returns all migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_participants",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_snapshots",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_players",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_pool",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}
