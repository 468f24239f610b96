// Package store is the persistence boundary for sessions, memberships,
// playlists and songs. The coordinator only ever talks to the Store
// interface; the sqlite implementation lives alongside it.
package store

import (
	"context"

	"github.com/partywave/partywave/internal/domain"
)

// Store is the repository contract required by the session coordinator.
// Every call is atomic on its own; callers never compose transactions.
type Store interface {
	// Sessions.
	CreateSession(ctx context.Context, code domain.SessionCode) (*domain.PartySession, error)
	SessionByCode(ctx context.Context, code domain.SessionCode) (*domain.PartySession, error)
	SetSessionState(ctx context.Context, id domain.SessionID, state domain.SessionState) error
	// DeleteSession cascades: memberships, playlists, songs, countdown rows.
	DeleteSession(ctx context.Context, id domain.SessionID) error

	// Memberships. CreateMembership is idempotent for an existing pair.
	CreateMembership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID, isHost bool) error
	Membership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID) (*domain.Participant, error)
	CountMemberships(ctx context.Context, session domain.SessionID) (int, error)
	DeleteMembership(ctx context.Context, participant domain.ParticipantID, session domain.SessionID) error

	// Playlists and songs.
	CreatePlaylist(ctx context.Context, session domain.SessionID, name string, selected bool) (*domain.Playlist, error)
	SelectedPlaylist(ctx context.Context, session domain.SessionID) (*domain.Playlist, error)
	AddSong(ctx context.Context, song *domain.Song) error
	SongByExternalID(ctx context.Context, externalID string, playlist domain.PlaylistID) (*domain.Song, error)
	PlayingSong(ctx context.Context, playlist domain.PlaylistID) (*domain.Song, error)
	VotableSongs(ctx context.Context, playlist domain.PlaylistID) ([]domain.Song, error)
	// SetPlaying moves the playing flag to song and clears it elsewhere in
	// the playlist; the previous playing song leaves the votable pool.
	SetPlaying(ctx context.Context, playlist domain.PlaylistID, song domain.SongID) error
	SetVotable(ctx context.Context, song domain.SongID, votable bool) error

	// Voting. ApplyVote is one transaction: the prior song's tally goes
	// down (if any), the membership vote moves, the new song's tally goes
	// up; a failure leaves all three untouched.
	ApplyVote(ctx context.Context, participant domain.ParticipantID, session domain.SessionID, prev *domain.SongID, song domain.SongID) error
	AdjustSongVotes(ctx context.Context, song domain.SongID, delta int) error
	// ResetVotes zeroes every tally in the playlist and clears the votes of
	// all members of the owning session.
	ResetVotes(ctx context.Context, playlist domain.PlaylistID) error

	// Round bookkeeping.
	SaveCountdown(ctx context.Context, session domain.SessionID, remaining int) error
	SaveButtonCount(ctx context.Context, session domain.SessionID, participant domain.ParticipantID, button string, value int) error
}
