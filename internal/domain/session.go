package domain

type (
	SessionID   string
	SessionCode string
)

// SessionState is the lifecycle of one party session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// PartySession is one voting group, addressed by its external session code.
type PartySession struct {
	ID    SessionID
	Code  SessionCode
	State SessionState
}
