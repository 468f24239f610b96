package party

import (
	"github.com/partywave/partywave/internal/core"
	"github.com/partywave/partywave/internal/domain"
)

// Events are the tagged inputs of a room's state machine. Everything a
// room does - transport events, client commands, timer callbacks - enters
// through one of these and is consumed by the single room loop.
type event interface{ isEvent() }

type connectEvent struct {
	participant domain.ParticipantID
	conn        core.Conn
	reply       chan error
}

type startSessionEvent struct {
	participant domain.ParticipantID
}

type castVoteEvent struct {
	participant    domain.ParticipantID
	songExternalID string
}

type incrementEvent struct {
	participant domain.ParticipantID
	button      string
	value       int
	payload     map[string]any
}

type startCountdownEvent struct{}

type tickEvent struct {
	remaining int
}

type expireEvent struct{}

type disconnectEvent struct {
	participant domain.ParticipantID
}

func (connectEvent) isEvent()        {}
func (startSessionEvent) isEvent()   {}
func (castVoteEvent) isEvent()       {}
func (incrementEvent) isEvent()      {}
func (startCountdownEvent) isEvent() {}
func (tickEvent) isEvent()           {}
func (expireEvent) isEvent()         {}
func (disconnectEvent) isEvent()     {}
