package party

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/partywave/partywave/internal/core"
	"github.com/partywave/partywave/internal/domain"
)

// partyRoom is one room's serialization domain. Every mutation of the
// registry, the ledger and the session state happens on the run goroutine;
// event N+1 is not taken from the queue before event N has applied its
// mutation and queued its broadcast.
type partyRoom struct {
	co     *Coordinator
	sess   *domain.PartySession
	reg    *core.Room
	ledger *core.Ledger
	timer  *core.Countdown

	// state mirrors sess.State for readers outside the loop (Rooms).
	state atomic.Int32

	// playlist is nil until the host starts the session.
	playlist *domain.Playlist

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func newPartyRoom(co *Coordinator, sess *domain.PartySession) *partyRoom {
	ctx, cancel := context.WithCancel(context.Background())
	r := &partyRoom{
		co:     co,
		sess:   sess,
		reg:    core.NewRoom(),
		ledger: core.NewLedger(),
		timer:  &core.Countdown{},
		events: make(chan event, co.opts.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	r.state.Store(int32(sess.State))
	return r
}

// setState is called from the loop only; readers use currentState.
func (r *partyRoom) setState(s domain.SessionState) {
	r.sess.State = s
	r.state.Store(int32(s))
}

func (r *partyRoom) currentState() domain.SessionState {
	return domain.SessionState(r.state.Load())
}

// enqueue feeds the room loop. Events for a closed room are dropped.
func (r *partyRoom) enqueue(ev event) bool {
	select {
	case <-r.ctx.Done():
		return false
	case r.events <- ev:
		return true
	}
}

func (r *partyRoom) run() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			r.handle(ev)
			if r.closed {
				return
			}
		}
	}
}

func (r *partyRoom) handle(ev event) {
	switch ev := ev.(type) {
	case connectEvent:
		r.handleConnect(ev)
	case startSessionEvent:
		r.handleStartSession(ev)
	case castVoteEvent:
		r.handleCastVote(ev)
	case incrementEvent:
		r.handleIncrement(ev)
	case startCountdownEvent:
		r.handleStartCountdown()
	case tickEvent:
		r.handleTick(ev)
	case expireEvent:
		r.handleExpire()
	case disconnectEvent:
		r.handleDisconnect(ev)
	}
}

func (r *partyRoom) handleConnect(ev connectEvent) {
	meta, err := r.co.store.Membership(r.ctx, ev.participant, r.sess.ID)
	if errors.Is(err, domain.ErrNotFound) {
		n, cerr := r.co.store.CountMemberships(r.ctx, r.sess.ID)
		if cerr != nil {
			ev.reply <- cerr
			return
		}
		// The first participant ever to join a session hosts it.
		isHost := n == 0
		if cerr := r.co.store.CreateMembership(r.ctx, ev.participant, r.sess.ID, isHost); cerr != nil {
			ev.reply <- cerr
			return
		}
		meta = domain.NewParticipant(ev.participant, r.sess.ID, isHost)
	} else if err != nil {
		ev.reply <- err
		return
	}

	r.reg.Join(meta, ev.conn)
	ev.reply <- nil
}

func (r *partyRoom) handleStartSession(ev startSessionEvent) {
	m, ok := r.reg.Member(ev.participant)
	if !ok {
		return
	}
	if !m.Meta.IsHost {
		r.rejectUnauthorized(ev.participant, "start_party_session")
		return
	}
	if r.sess.State != domain.StateIdle {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Msg("session already started")
		return
	}

	pl, err := r.co.store.SelectedPlaylist(r.ctx, r.sess.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("selected playlist")
		return
	}
	playing, err := r.co.store.PlayingSong(r.ctx, pl.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("playing song")
		return
	}
	// A fresh session starts with clean tallies; counts left over from a
	// crashed round would put the wire out of step with the empty ledger.
	if err := r.co.store.ResetVotes(r.ctx, pl.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("reset votes")
		return
	}
	votable, err := r.co.store.VotableSongs(r.ctx, pl.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("votable songs")
		return
	}
	if err := r.co.store.SetSessionState(r.ctx, r.sess.ID, domain.StateActive); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("set session state")
		return
	}

	r.playlist = pl
	r.setState(domain.StateActive)
	r.ledger.SeedRound(votable)

	if frame, ok := marshalFrame(sessionInitMsg{
		Type:         msgSessionInit,
		PlayingSong:  newPlayingView(playing),
		VotableSongs: newVotableViews(votable),
	}); ok {
		r.broadcast(frame)
	}
	log.Info().Str("module", "party").Str("room", string(r.sess.Code)).Int("votable", len(votable)).Msg("session started")
}

func (r *partyRoom) handleCastVote(ev castVoteEvent) {
	if r.playlist == nil {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Msg("vote before session start")
		return
	}
	song, err := r.co.store.SongByExternalID(r.ctx, ev.songExternalID, r.playlist.ID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Str("song", ev.songExternalID).Msg("vote for unknown song")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("song lookup")
		return
	}
	if !r.ledger.IsVotable(song.ID) {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Str("song", ev.songExternalID).Msg("vote for non-votable song")
		return
	}
	prev, hadPrev := r.ledger.CurrentVote(ev.participant)
	if hadPrev && prev == song.ID {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Str("song", ev.songExternalID).Msg("song already voted for")
		return
	}

	// Persist first, in one transaction; the in-memory swap only happens
	// once the store committed the full decrement/set/increment.
	var prevID *domain.SongID
	if hadPrev {
		prevID = &prev
	}
	if err := r.co.store.ApplyVote(r.ctx, ev.participant, r.sess.ID, prevID, song.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("persist vote")
		return
	}
	if _, err := r.ledger.ApplyVote(ev.participant, song.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("apply vote")
		return
	}

	r.broadcastVotesRefresh()
}

func (r *partyRoom) handleIncrement(ev incrementEvent) {
	value := ev.value + 1
	if err := r.co.store.SaveButtonCount(r.ctx, r.sess.ID, ev.participant, ev.button, value); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("save button count")
		return
	}

	// Echo the inbound payload with the bumped counter.
	payload := make(map[string]any, len(ev.payload)+1)
	for k, v := range ev.payload {
		payload[k] = v
	}
	payload["type"] = msgVotingCount
	payload["button_val"] = strconv.Itoa(value)
	if frame, ok := marshalFrame(payload); ok {
		r.broadcast(frame)
	}
}

func (r *partyRoom) handleStartCountdown() {
	started := r.timer.Start(r.co.opts.CountdownFrom, r.co.opts.TickInterval,
		func(remaining int) { r.enqueue(tickEvent{remaining: remaining}) },
		func() { r.enqueue(expireEvent{}) },
	)
	if !started {
		log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Msg("countdown already running")
		return
	}
	log.Info().Str("module", "party").Str("room", string(r.sess.Code)).Int("from", r.co.opts.CountdownFrom).Msg("countdown started")
}

func (r *partyRoom) handleTick(ev tickEvent) {
	if err := r.co.store.SaveCountdown(r.ctx, r.sess.ID, ev.remaining); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("save countdown")
		return
	}
	if frame, ok := marshalFrame(votingTimerMsg{Type: msgVotingTimer, Text: strconv.Itoa(ev.remaining)}); ok {
		r.broadcast(frame)
	}
}

func (r *partyRoom) handleExpire() {
	if r.playlist == nil {
		return
	}
	tallies := r.ledger.Tallies()
	if err := r.co.resolver.Resolve(r.ctx, r.playlist.ID, tallies); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("resolve round")
	}
	if err := r.co.store.ResetVotes(r.ctx, r.playlist.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("reset votes")
		return
	}
	r.ledger.ResetRound()

	// Resolution may have moved the playing flag, so the votable pool is
	// reloaded rather than patched.
	votable, err := r.co.store.VotableSongs(r.ctx, r.playlist.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("reload votable songs")
		return
	}
	r.ledger.SeedRound(votable)

	if frame, ok := marshalFrame(votesRefreshMsg{Type: msgVotesRefresh, VotableSongs: newVotableViews(votable)}); ok {
		r.broadcast(frame)
	}
	log.Info().Str("module", "party").Str("room", string(r.sess.Code)).Msg("voting round resolved")
}

func (r *partyRoom) handleDisconnect(ev disconnectEvent) {
	m, ok := r.reg.Member(ev.participant)
	if !ok {
		return
	}
	if m.Meta.IsHost {
		log.Info().Str("module", "party").Str("room", string(r.sess.Code)).Str("participant", string(ev.participant)).Msg("host disconnected, closing room")
		r.teardown(ev.participant)
		return
	}

	if err := r.co.store.DeleteMembership(r.ctx, ev.participant, r.sess.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("delete membership")
	}
	// The departing participant's vote is retracted so tallies keep
	// matching the number of voters; peers see the change with the next
	// refresh, there is no broadcast for a guest leaving.
	if prev, had := r.ledger.DropParticipant(ev.participant); had {
		if err := r.co.store.AdjustSongVotes(r.ctx, prev, -1); err != nil {
			log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("retract vote")
		}
	}
	r.reg.Leave(ev.participant)
}

// teardown is the host-disconnect cascade: the room closes, every
// remaining member gets exactly one force_disconnect, persisted state is
// cascade-deleted and the loop stops. The timer is stopped first so a
// late tick cannot resurrect the closed room.
func (r *partyRoom) teardown(host domain.ParticipantID) {
	r.closed = true
	r.setState(domain.StateClosed)
	r.timer.Stop()

	r.reg.Leave(host)
	if frame, ok := marshalFrame(forceDisconnectMsg{Type: msgForceDisconnect}); ok {
		r.broadcast(frame)
	}
	if err := r.co.store.DeleteSession(r.ctx, r.sess.ID); err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("delete session")
	}
	r.reg.CloseAll()
	r.co.removeRoom(r.sess.Code)
	r.cancel()
}

// broadcast fans a frame out and evicts members whose transport could not
// take it; a stale handle must not survive a failed delivery.
func (r *partyRoom) broadcast(frame core.Frame) {
	res := r.reg.Broadcast(frame)
	for _, m := range res.Dropped {
		log.Warn().Str("module", "party").Str("room", string(r.sess.Code)).Str("participant", string(m.Meta.ID)).Msg("send failed, evicting member")
		r.reg.Leave(m.Meta.ID)
		m.Conn.Close()
	}
}

func (r *partyRoom) broadcastVotesRefresh() {
	votable, err := r.co.store.VotableSongs(r.ctx, r.playlist.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("votable songs for refresh")
		return
	}
	if frame, ok := marshalFrame(votesRefreshMsg{Type: msgVotesRefresh, VotableSongs: newVotableViews(votable)}); ok {
		r.broadcast(frame)
	}
}

func (r *partyRoom) rejectUnauthorized(p domain.ParticipantID, command string) {
	log.Debug().Str("module", "party").Str("room", string(r.sess.Code)).Str("participant", string(p)).Str("command", command).Msg("unauthorized command ignored")
	if !r.co.opts.StrictAuth {
		return
	}
	if frame, ok := marshalFrame(errorMsg{Type: msgError, Error: domain.ErrUnauthorized.Error()}); ok {
		if err := r.reg.SendTo(p, frame); err != nil {
			log.Debug().Err(err).Str("module", "party").Str("room", string(r.sess.Code)).Msg("unauthorized reply")
		}
	}
}
