package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/partywave/partywave/internal/domain"
)

// SQLite implements Store on a single sqlite database.
// The driver serializes writes; every method is atomic on its own.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for throwaway databases in tests.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// In-memory databases vanish when their last connection closes.
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("module", "store").Str("path", path).Msg("sqlite ready")
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateSession(ctx context.Context, code domain.SessionCode) (*domain.PartySession, error) {
	id := domain.SessionID(uuid.NewString())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO party_session (id, code, state) VALUES (?, ?, ?)`,
		string(id), string(code), int(domain.StateIdle))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &domain.PartySession{ID: id, Code: code, State: domain.StateIdle}, nil
}

func (s *SQLite) SessionByCode(ctx context.Context, code domain.SessionCode) (*domain.PartySession, error) {
	var sess domain.PartySession
	var state int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, state FROM party_session WHERE code = ?`, string(code)).
		Scan(&sess.ID, &sess.Code, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session by code: %w", err)
	}
	sess.State = domain.SessionState(state)
	return &sess, nil
}

func (s *SQLite) SetSessionState(ctx context.Context, id domain.SessionID, state domain.SessionState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE party_session SET state = ? WHERE id = ?`, int(state), string(id))
	if err != nil {
		return fmt.Errorf("set session state: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteSession(ctx context.Context, id domain.SessionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM button_count WHERE session_id = ?`,
		`DELETE FROM countdown WHERE session_id = ?`,
		`DELETE FROM song WHERE playlist_id IN (SELECT id FROM playlist WHERE session_id = ?)`,
		`DELETE FROM playlist WHERE session_id = ?`,
		`DELETE FROM membership WHERE session_id = ?`,
		`DELETE FROM party_session WHERE id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, string(id)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) CreateMembership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID, isHost bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO membership (participant_id, session_id, is_host) VALUES (?, ?, ?)
		 ON CONFLICT (participant_id, session_id) DO NOTHING`,
		string(participant), string(session), boolToInt(isHost))
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

func (s *SQLite) Membership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID) (*domain.Participant, error) {
	var isHost int
	err := s.db.QueryRowContext(ctx,
		`SELECT is_host FROM membership WHERE participant_id = ? AND session_id = ?`,
		string(participant), string(session)).Scan(&isHost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership: %w", err)
	}
	return domain.NewParticipant(participant, session, isHost != 0), nil
}

func (s *SQLite) CountMemberships(ctx context.Context, session domain.SessionID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM membership WHERE session_id = ?`, string(session)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return n, nil
}

func (s *SQLite) DeleteMembership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM membership WHERE participant_id = ? AND session_id = ?`,
		string(participant), string(session))
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

func (s *SQLite) CreatePlaylist(ctx context.Context, session domain.SessionID, name string, selected bool) (*domain.Playlist, error) {
	id := domain.PlaylistID(uuid.NewString())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlist (id, session_id, name, is_selected) VALUES (?, ?, ?, ?)`,
		string(id), string(session), name, boolToInt(selected))
	if err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}
	return &domain.Playlist{ID: id, Session: session, Name: name, IsSelected: selected}, nil
}

func (s *SQLite) SelectedPlaylist(ctx context.Context, session domain.SessionID) (*domain.Playlist, error) {
	var pl domain.Playlist
	var selected int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, name, is_selected FROM playlist
		 WHERE session_id = ? AND is_selected = 1`, string(session)).
		Scan(&pl.ID, &pl.Session, &pl.Name, &selected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selected playlist: %w", err)
	}
	pl.IsSelected = selected != 0
	return &pl, nil
}

func (s *SQLite) AddSong(ctx context.Context, song *domain.Song) error {
	if song.ID == "" {
		song.ID = domain.SongID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO song (id, playlist_id, external_id, name, artist, length, votes, is_playing, is_votable)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(song.ID), string(song.Playlist), song.ExternalID, song.Name, song.Artist,
		song.Length, song.Votes, boolToInt(song.IsPlaying), boolToInt(song.IsVotable))
	if err != nil {
		return fmt.Errorf("add song: %w", err)
	}
	return nil
}

func (s *SQLite) SongByExternalID(ctx context.Context, externalID string, playlist domain.PlaylistID) (*domain.Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx,
		`SELECT id, playlist_id, external_id, name, artist, length, votes, is_playing, is_votable
		 FROM song WHERE external_id = ? AND playlist_id = ?`, externalID, string(playlist)))
}

func (s *SQLite) PlayingSong(ctx context.Context, playlist domain.PlaylistID) (*domain.Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx,
		`SELECT id, playlist_id, external_id, name, artist, length, votes, is_playing, is_votable
		 FROM song WHERE playlist_id = ? AND is_playing = 1`, string(playlist)))
}

func (s *SQLite) VotableSongs(ctx context.Context, playlist domain.PlaylistID) ([]domain.Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, playlist_id, external_id, name, artist, length, votes, is_playing, is_votable
		 FROM song WHERE playlist_id = ? AND is_votable = 1 ORDER BY rowid`, string(playlist))
	if err != nil {
		return nil, fmt.Errorf("votable songs: %w", err)
	}
	defer rows.Close()

	var out []domain.Song
	for rows.Next() {
		var song domain.Song
		var playing, votable int
		if err := rows.Scan(&song.ID, &song.Playlist, &song.ExternalID, &song.Name,
			&song.Artist, &song.Length, &song.Votes, &playing, &votable); err != nil {
			return nil, fmt.Errorf("votable songs: %w", err)
		}
		song.IsPlaying = playing != 0
		song.IsVotable = votable != 0
		out = append(out, song)
	}
	return out, rows.Err()
}

func (s *SQLite) SetPlaying(ctx context.Context, playlist domain.PlaylistID, song domain.SongID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set playing: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE song SET is_playing = 0 WHERE playlist_id = ?`, string(playlist)); err != nil {
		return fmt.Errorf("set playing: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE song SET is_playing = 1, is_votable = 0 WHERE id = ?`, string(song)); err != nil {
		return fmt.Errorf("set playing: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) SetVotable(ctx context.Context, song domain.SongID, votable bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE song SET is_votable = ? WHERE id = ?`, boolToInt(votable), string(song))
	if err != nil {
		return fmt.Errorf("set votable: %w", err)
	}
	return nil
}

func (s *SQLite) ApplyVote(ctx context.Context, participant domain.ParticipantID, session domain.SessionID, prev *domain.SongID, song domain.SongID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply vote: %w", err)
	}
	defer tx.Rollback()

	if prev != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE song SET votes = MAX(votes - 1, 0) WHERE id = ?`, string(*prev)); err != nil {
			return fmt.Errorf("apply vote: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE membership SET vote_song_id = ? WHERE participant_id = ? AND session_id = ?`,
		string(song), string(participant), string(session)); err != nil {
		return fmt.Errorf("apply vote: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE song SET votes = votes + 1 WHERE id = ?`, string(song)); err != nil {
		return fmt.Errorf("apply vote: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) AdjustSongVotes(ctx context.Context, song domain.SongID, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE song SET votes = MAX(votes + ?, 0) WHERE id = ?`, delta, string(song))
	if err != nil {
		return fmt.Errorf("adjust song votes: %w", err)
	}
	return nil
}

func (s *SQLite) ResetVotes(ctx context.Context, playlist domain.PlaylistID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset votes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE song SET votes = 0 WHERE playlist_id = ?`, string(playlist)); err != nil {
		return fmt.Errorf("reset votes: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE membership SET vote_song_id = NULL
		 WHERE session_id = (SELECT session_id FROM playlist WHERE id = ?)`, string(playlist)); err != nil {
		return fmt.Errorf("reset votes: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) SaveCountdown(ctx context.Context, session domain.SessionID, remaining int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO countdown (session_id, remaining) VALUES (?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET remaining = excluded.remaining`,
		string(session), remaining)
	if err != nil {
		return fmt.Errorf("save countdown: %w", err)
	}
	return nil
}

func (s *SQLite) SaveButtonCount(ctx context.Context, session domain.SessionID, participant domain.ParticipantID, button string, value int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO button_count (session_id, participant_id, button, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, participant_id, button) DO UPDATE SET value = excluded.value`,
		string(session), string(participant), button, value)
	if err != nil {
		return fmt.Errorf("save button count: %w", err)
	}
	return nil
}

func (s *SQLite) scanSong(row *sql.Row) (*domain.Song, error) {
	var song domain.Song
	var playing, votable int
	err := row.Scan(&song.ID, &song.Playlist, &song.ExternalID, &song.Name,
		&song.Artist, &song.Length, &song.Votes, &playing, &votable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan song: %w", err)
	}
	song.IsPlaying = playing != 0
	song.IsVotable = votable != 0
	return &song, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
