// Package party owns the session coordination protocol: one serialized
// event loop per room consumes participant commands, transport events and
// timer callbacks, mutates the vote ledger and the store, and fans state
// out to every connected member.
package party

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/partywave/partywave/internal/core"
	"github.com/partywave/partywave/internal/domain"
	"github.com/partywave/partywave/internal/store"
)

// Options tune per-room behavior. Zero values fall back to defaults.
type Options struct {
	// CountdownFrom is the voting window start value in ticks.
	CountdownFrom int
	// TickInterval is the wall-clock gap between countdown ticks.
	TickInterval time.Duration
	// StrictAuth sends an error payload back to a participant violating a
	// host-only command instead of dropping it silently.
	StrictAuth bool
	// EventBuffer is the per-room event queue capacity.
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.CountdownFrom <= 0 {
		o.CountdownFrom = 5
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 64
	}
	return o
}

// Coordinator maps session codes to live rooms and spins one event loop
// per room. Rooms are fully independent; the coordinator itself only
// guards the code -> room map.
type Coordinator struct {
	store    store.Store
	resolver Resolver
	opts     Options

	mu    sync.RWMutex
	rooms map[domain.SessionCode]*partyRoom
}

func NewCoordinator(st store.Store, resolver Resolver, opts Options) *Coordinator {
	if resolver == nil {
		resolver = HighestTally{Store: st}
	}
	return &Coordinator{
		store:    st,
		resolver: resolver,
		opts:     opts.withDefaults(),
		rooms:    make(map[domain.SessionCode]*partyRoom),
	}
}

// RoomInfo is a read-only room view for the API surface.
type RoomInfo struct {
	Code         domain.SessionCode `json:"code"`
	MemberCount  int                `json:"member_count"`
	State        string             `json:"state"`
	Participants []string           `json:"participants"`
}

func (c *Coordinator) Rooms() []RoomInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]RoomInfo, 0, len(c.rooms))
	for code, r := range c.rooms {
		members := r.reg.Snapshot()
		participants := make([]string, 0, len(members))
		for _, m := range members {
			participants = append(participants, string(m.Meta.ID))
		}
		out = append(out, RoomInfo{
			Code:         code,
			MemberCount:  len(members),
			State:        r.currentState().String(),
			Participants: participants,
		})
	}
	return out
}

// Lookup reports whether code resolves to a session, without joining it.
// Used by the transport to reject a connect before the upgrade handshake.
func (c *Coordinator) Lookup(ctx context.Context, code domain.SessionCode) error {
	_, err := c.store.SessionByCode(ctx, code)
	return err
}

// Connect resolves the session behind code, registers the participant's
// connection and membership, and returns the command handle the transport
// drives. Reconnecting the same identity does not duplicate membership.
func (c *Coordinator) Connect(ctx context.Context, code domain.SessionCode, participant domain.ParticipantID, conn core.Conn) (*Client, error) {
	sess, err := c.store.SessionByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	room := c.getOrCreateRoom(sess)
	reply := make(chan error, 1)
	if !room.enqueue(connectEvent{participant: participant, conn: conn, reply: reply}) {
		return nil, domain.ErrRoomNotFound
	}
	select {
	case err := <-reply:
		if err != nil {
			return nil, err
		}
	case <-room.ctx.Done():
		return nil, domain.ErrRoomNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Client{room: room, participant: participant}, nil
}

func (c *Coordinator) getOrCreateRoom(sess *domain.PartySession) *partyRoom {
	c.mu.RLock()
	room, ok := c.rooms[sess.Code]
	c.mu.RUnlock()
	if ok {
		return room
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok = c.rooms[sess.Code]; ok {
		return room
	}
	room = newPartyRoom(c, sess)
	c.rooms[sess.Code] = room
	go room.run()
	log.Info().Str("module", "party").Str("room", string(sess.Code)).Msg("room loop started")
	return room
}

func (c *Coordinator) removeRoom(code domain.SessionCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, code)
}

// Client is the per-connection command handle. The transport adapter
// translates inbound messages into these calls; each call only enqueues
// an event for the room loop, so arrival order is preserved.
type Client struct {
	room        *partyRoom
	participant domain.ParticipantID
}

func (cl *Client) Code() domain.SessionCode { return cl.room.sess.Code }

func (cl *Client) StartSession() {
	cl.room.enqueue(startSessionEvent{participant: cl.participant})
}

func (cl *Client) CastVote(songExternalID string) {
	cl.room.enqueue(castVoteEvent{participant: cl.participant, songExternalID: songExternalID})
}

func (cl *Client) Increment(button string, value int, payload map[string]any) {
	cl.room.enqueue(incrementEvent{participant: cl.participant, button: button, value: value, payload: payload})
}

func (cl *Client) StartCountdown() {
	cl.room.enqueue(startCountdownEvent{})
}

func (cl *Client) Disconnect() {
	cl.room.enqueue(disconnectEvent{participant: cl.participant})
}
