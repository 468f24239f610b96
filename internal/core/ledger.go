package core

import (
	"github.com/partywave/partywave/internal/domain"
)

// VoteSwap is the outcome of one applied vote, for broadcast construction.
// Applied is false when the vote was an idempotent re-vote.
type VoteSwap struct {
	Old     *domain.SongID
	New     domain.SongID
	Applied bool
}

// Ledger tracks each participant's current vote and per-song tallies for
// one voting round. It is owned by the session's event loop and is not
// safe for concurrent use; that single-writer rule is what keeps the
// swap in ApplyVote atomic.
type Ledger struct {
	votes   map[domain.ParticipantID]domain.SongID
	tallies map[domain.SongID]int
	votable map[domain.SongID]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		votes:   make(map[domain.ParticipantID]domain.SongID),
		tallies: make(map[domain.SongID]int),
		votable: make(map[domain.SongID]bool),
	}
}

// SeedRound installs the votable pool for a round, dropping all prior
// votes and tallies. Tallies start at zero: nobody holds a vote yet, so
// any other count would break the tally-sum invariant.
func (l *Ledger) SeedRound(songs []domain.Song) {
	l.votes = make(map[domain.ParticipantID]domain.SongID)
	l.tallies = make(map[domain.SongID]int)
	l.votable = make(map[domain.SongID]bool)
	for _, s := range songs {
		l.votable[s.ID] = true
		l.tallies[s.ID] = 0
	}
}

func (l *Ledger) CurrentVote(p domain.ParticipantID) (domain.SongID, bool) {
	id, ok := l.votes[p]
	return id, ok
}

func (l *Ledger) IsVotable(s domain.SongID) bool { return l.votable[s] }

func (l *Ledger) Tally(s domain.SongID) int { return l.tallies[s] }

// TotalVotes is the sum of all tallies, which always equals the number of
// participants currently holding a vote.
func (l *Ledger) TotalVotes() int {
	n := 0
	for _, t := range l.tallies {
		n += t
	}
	return n
}

// Tallies returns a snapshot of the round's per-song counts.
func (l *Ledger) Tallies() map[domain.SongID]int {
	out := make(map[domain.SongID]int, len(l.tallies))
	for id, t := range l.tallies {
		out[id] = t
	}
	return out
}

// ApplyVote moves p's vote to song: the prior vote's tally (if any) goes
// down by one, the new song's goes up by one, and the swap is reported
// for broadcast construction. Re-voting the current choice applies
// nothing; a non-votable target is rejected.
func (l *Ledger) ApplyVote(p domain.ParticipantID, song domain.SongID) (VoteSwap, error) {
	if !l.votable[song] {
		return VoteSwap{}, domain.ErrInvalidVoteTarget
	}
	if prev, ok := l.votes[p]; ok {
		if prev == song {
			return VoteSwap{New: song}, nil
		}
		l.tallies[prev]--
		l.votes[p] = song
		l.tallies[song]++
		return VoteSwap{Old: &prev, New: song, Applied: true}, nil
	}
	l.votes[p] = song
	l.tallies[song]++
	return VoteSwap{New: song, Applied: true}, nil
}

// DropParticipant retracts p's vote, if any, returning the song it was on.
func (l *Ledger) DropParticipant(p domain.ParticipantID) (domain.SongID, bool) {
	prev, ok := l.votes[p]
	if !ok {
		return "", false
	}
	delete(l.votes, p)
	l.tallies[prev]--
	return prev, true
}

// ResetRound zeroes every tally and clears all votes; the votable pool
// stays as seeded.
func (l *Ledger) ResetRound() {
	l.votes = make(map[domain.ParticipantID]domain.SongID)
	for id := range l.tallies {
		l.tallies[id] = 0
	}
}
