package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/partywave/partywave/internal/domain"
)

// Member binds a participant's membership meta to its transport endpoint.
type Member struct {
	Meta *domain.Participant
	Conn Conn
}

// Room is the connection registry for one party session: the set of
// currently reachable participants. It owns membership handles but never
// touches persisted state. All mutations happen inside the owning
// session's event loop; reads may come from API handlers concurrently.
type Room struct {
	mu   sync.RWMutex
	byID map[domain.ParticipantID]*Member
}

func NewRoom() *Room {
	return &Room{byID: make(map[domain.ParticipantID]*Member)}
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Join registers a participant's connection. Rejoining the same identity
// replaces the previous handle; the superseded handle is closed so its
// pumps do not linger.
func (r *Room) Join(meta *domain.Participant, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[meta.ID]; ok {
		old.Conn.Close()
	}
	r.byID[meta.ID] = &Member{Meta: meta, Conn: conn}
	log.Info().Str("module", "core.room").Str("participant", string(meta.ID)).Bool("host", meta.IsHost).Msg("member joined")
}

func (r *Room) Leave(id domain.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	log.Info().Str("module", "core.room").Str("participant", string(id)).Msg("member left")
}

// Snapshot returns the current member set for read-only consumers.
func (r *Room) Snapshot() []*Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Member, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	return out
}

func (r *Room) Member(id domain.ParticipantID) (*Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// Broadcast delivers data to every joined handle, best effort. A failed
// send to one member never blocks delivery to the rest.
func (r *Room) Broadcast(data Frame) DeliveryResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := DeliveryResult{}
	for _, m := range r.byID {
		if err := m.Conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// SendTo delivers data to a single member, if still joined.
func (r *Room) SendTo(id domain.ParticipantID, data Frame) error {
	r.mu.RLock()
	m, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	return m.Conn.TrySend(data)
}

// CloseAll force-disconnects every handle and empties the registry.
// Used on host-initiated teardown.
func (r *Room) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.byID {
		m.Conn.Close()
		delete(r.byID, id)
	}
	log.Info().Str("module", "core.room").Msg("room closed")
}
