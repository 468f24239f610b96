package domain

type (
	PlaylistID string
	SongID     string
)

// Playlist is an ordered set of songs attached to a session.
// Exactly one playlist per session is selected at a time.
type Playlist struct {
	ID         PlaylistID
	Session    SessionID
	Name       string
	IsSelected bool
}

// Song carries display metadata plus the mutable voting fields.
// At most one song per playlist has IsPlaying set.
type Song struct {
	ID         SongID
	Playlist   PlaylistID
	ExternalID string
	Name       string
	Artist     string
	Length     string
	Votes      int
	IsPlaying  bool
	IsVotable  bool
}

// TitleAndArtist is the display string sent over the wire.
func (s *Song) TitleAndArtist() string {
	return s.Name + " - " + s.Artist
}
