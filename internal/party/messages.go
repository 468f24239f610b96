package party

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/partywave/partywave/internal/core"
	"github.com/partywave/partywave/internal/domain"
)

// Outbound wire messages. Every payload carries a type discriminator.
const (
	msgSessionInit     = "session_init"
	msgVotesRefresh    = "votes_refresh"
	msgVotingTimer     = "voting_timer"
	msgVotingCount     = "voting_count"
	msgForceDisconnect = "force_disconnect"
	msgError           = "error"
)

type playingSongView struct {
	TitleAndArtist string `json:"title_and_artist"`
	Length         string `json:"length"`
	SongID         string `json:"song_id"`
}

type votableSongView struct {
	TitleAndArtist string `json:"title_and_artist"`
	Length         string `json:"length"`
	Votes          int    `json:"votes"`
	SongID         string `json:"song_id"`
}

type sessionInitMsg struct {
	Type         string            `json:"type"`
	PlayingSong  playingSongView   `json:"playing_song"`
	VotableSongs []votableSongView `json:"votable_songs"`
}

type votesRefreshMsg struct {
	Type         string            `json:"type"`
	VotableSongs []votableSongView `json:"votable_songs"`
}

type votingTimerMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type forceDisconnectMsg struct {
	Type string `json:"type"`
}

type errorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newPlayingView(s *domain.Song) playingSongView {
	return playingSongView{
		TitleAndArtist: s.TitleAndArtist(),
		Length:         s.Length,
		SongID:         s.ExternalID,
	}
}

func newVotableViews(songs []domain.Song) []votableSongView {
	out := make([]votableSongView, 0, len(songs))
	for i := range songs {
		s := &songs[i]
		out = append(out, votableSongView{
			TitleAndArtist: s.TitleAndArtist(),
			Length:         s.Length,
			Votes:          s.Votes,
			SongID:         s.ExternalID,
		})
	}
	return out
}

func marshalFrame(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "party").Msg("marshal frame")
		return nil, false
	}
	return b, true
}
