package party

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/partywave/partywave/internal/domain"
	"github.com/partywave/partywave/internal/store"
)

// Resolver consumes the final tally snapshot when a voting round expires.
// The coordinator does not pick the winner itself; it only hands off the
// counts and afterwards resets the round.
type Resolver interface {
	Resolve(ctx context.Context, playlist domain.PlaylistID, tallies map[domain.SongID]int) error
}

// HighestTally promotes the top-voted song to now-playing and rotates
// the replaced song back into the votable pool. Songs with a zero tally
// never win; on a tie the lexicographically smallest song ID wins, so
// resolution is deterministic.
type HighestTally struct {
	Store store.Store
}

func (r HighestTally) Resolve(ctx context.Context, playlist domain.PlaylistID, tallies map[domain.SongID]int) error {
	var winner domain.SongID
	best := 0
	for id, n := range tallies {
		if n > best || (n == best && n > 0 && id < winner) {
			winner = id
			best = n
		}
	}
	if winner == "" {
		log.Info().Str("module", "party.resolver").Str("playlist", string(playlist)).Msg("round ended with no votes")
		return nil
	}

	prev, err := r.Store.PlayingSong(ctx, playlist)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := r.Store.SetPlaying(ctx, playlist, winner); err != nil {
		return err
	}
	if prev != nil && prev.ID != winner {
		if err := r.Store.SetVotable(ctx, prev.ID, true); err != nil {
			return err
		}
	}
	log.Info().Str("module", "party.resolver").Str("playlist", string(playlist)).Str("song", string(winner)).Int("votes", best).Msg("round winner")
	return nil
}
