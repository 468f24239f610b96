package store

import (
	"database/sql"
	"fmt"
)

// createSchema creates all tables needed by the server.
// Safe to call multiple times - uses IF NOT EXISTS.
func createSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const schema = `
-- Party sessions
CREATE TABLE IF NOT EXISTS party_session (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    state INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_party_session_code ON party_session(code);

-- Memberships
CREATE TABLE IF NOT EXISTS membership (
    participant_id TEXT NOT NULL,
    session_id TEXT NOT NULL REFERENCES party_session(id) ON DELETE CASCADE,
    is_host INTEGER NOT NULL DEFAULT 0,
    vote_song_id TEXT,
    PRIMARY KEY (participant_id, session_id)
);

CREATE INDEX IF NOT EXISTS idx_membership_session ON membership(session_id);

-- Playlists
CREATE TABLE IF NOT EXISTS playlist (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES party_session(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    is_selected INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_playlist_session ON playlist(session_id);

-- Songs
CREATE TABLE IF NOT EXISTS song (
    id TEXT PRIMARY KEY,
    playlist_id TEXT NOT NULL REFERENCES playlist(id) ON DELETE CASCADE,
    external_id TEXT NOT NULL,
    name TEXT NOT NULL,
    artist TEXT NOT NULL,
    length TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
    is_playing INTEGER NOT NULL DEFAULT 0,
    is_votable INTEGER NOT NULL DEFAULT 0,
    UNIQUE (playlist_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_song_playlist ON song(playlist_id);

-- Last broadcast countdown value per session
CREATE TABLE IF NOT EXISTS countdown (
    session_id TEXT PRIMARY KEY REFERENCES party_session(id) ON DELETE CASCADE,
    remaining INTEGER NOT NULL
);

-- Button increment counters
CREATE TABLE IF NOT EXISTS button_count (
    session_id TEXT NOT NULL REFERENCES party_session(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL,
    button TEXT NOT NULL,
    value INTEGER NOT NULL,
    PRIMARY KEY (session_id, participant_id, button)
);
`
