// Package domain contains entities without logic, just meta-data.
package domain

type ParticipantID string

// Participant is a user's membership in one party session.
// No transport or lifecycle logic here.
type Participant struct {
	ID      ParticipantID
	Session SessionID
	IsHost  bool
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, session SessionID, isHost bool) *Participant {
	return &Participant{ID: id, Session: session, IsHost: isHost}
}
