package domain

import "errors"

var (
	// ErrRoomNotFound means the session code resolves to no live session.
	ErrRoomNotFound = errors.New("room not found")
	// ErrUnauthorized means a non-host issued a host-only command.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidVoteTarget means the vote referenced a missing or non-votable song.
	ErrInvalidVoteTarget = errors.New("invalid vote target")
	// ErrNotFound is the generic store miss for lookups other than sessions.
	ErrNotFound = errors.New("not found")
)
