package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/partywave/partywave/internal/config"
	"github.com/partywave/partywave/internal/domain"
	"github.com/partywave/partywave/internal/party"
	"github.com/partywave/partywave/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Mode:         "release",
		Secret:       "test-secret",
		StaticPath:   t.TempDir(),
		SendBuffer:   16,
		WriteTimeout: time.Second,
	}
}

func setupServer(t *testing.T) (*httptest.Server, *party.Coordinator) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	sess, err := st.CreateSession(ctx, "ABCD")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	pl, err := st.CreatePlaylist(ctx, sess.ID, "Mix", true)
	if err != nil {
		t.Fatalf("create playlist: %v", err)
	}
	songs := []domain.Song{
		{Playlist: pl.ID, ExternalID: "now", Name: "Opener", Artist: "Host", Length: "3:00", IsPlaying: true},
		{Playlist: pl.ID, ExternalID: "x", Name: "Song X", Artist: "A", Length: "3:10", IsVotable: true},
		{Playlist: pl.ID, ExternalID: "y", Name: "Song Y", Artist: "B", Length: "2:50", IsVotable: true},
	}
	for i := range songs {
		if err := st.AddSong(ctx, &songs[i]); err != nil {
			t.Fatalf("add song: %v", err)
		}
	}

	coord := party.NewCoordinator(st, nil, party.Options{})
	router := SetupRouter(ctx, testConfig(t), coord)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, coord
}

func TestHealthz(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestClientTokenIssuedOnce(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == "ct" {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("no ct cookie issued")
	}

	// A request presenting the token must not get a new one.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.AddCookie(&http.Cookie{Name: "ct", Value: token})
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == "ct" {
			t.Errorf("ct cookie reissued as %q", c.Value)
		}
	}
}

func TestRoomsEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var rooms []party.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// No one connected, no live rooms.
	if len(rooms) != 0 {
		t.Errorf("rooms = %v, want empty", rooms)
	}
}

func wsURL(srv *httptest.Server, code string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/party/" + code
}

func dialParty(t *testing.T, srv *httptest.Server, code, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", "ct="+token)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, code), header)
	if err != nil {
		t.Fatalf("dial %s: %v (resp %v)", code, err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("bad frame %q: %v", data, err)
	}
	return m
}

func TestPartyUnknownRoomRejectedBeforeUpgrade(t *testing.T) {
	srv, _ := setupServer(t)

	header := http.Header{}
	header.Set("Cookie", "ct=someone")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "NOPE"), header)
	if err == nil {
		t.Fatal("dial to unknown room succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("resp = %v, want 404", resp)
	}
}

func TestPartySessionOverWebsocket(t *testing.T) {
	srv, coord := setupServer(t)

	host := dialParty(t, srv, "ABCD", "host-token")
	guest := dialParty(t, srv, "ABCD", "guest-token")

	// The dial returns at the upgrade handshake; membership registration
	// follows it, so wait for both members before starting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rooms := coord.Rooms()
		if len(rooms) == 1 && rooms[0].MemberCount == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("rooms = %v, want one room with two members", rooms)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := host.WriteMessage(websocket.TextMessage, []byte("start_party_session")); err != nil {
		t.Fatalf("write: %v", err)
	}
	init := readMessage(t, host)
	if init["type"] != "session_init" {
		t.Fatalf("host got %v, want session_init", init)
	}
	if init = readMessage(t, guest); init["type"] != "session_init" {
		t.Fatalf("guest got %v, want session_init", init)
	}

	if err := guest.WriteMessage(websocket.TextMessage, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	refresh := readMessage(t, guest)
	if refresh["type"] != "votes_refresh" {
		t.Fatalf("guest got %v, want votes_refresh", refresh)
	}
	for _, e := range refresh["votable_songs"].([]any) {
		song := e.(map[string]any)
		want := 0.0
		if song["song_id"] == "x" {
			want = 1.0
		}
		if song["votes"] != want {
			t.Errorf("song %v votes = %v, want %v", song["song_id"], song["votes"], want)
		}
	}

	// Host leaving kills the room; the guest is pushed out.
	if err := host.Close(); err != nil {
		t.Fatalf("close host: %v", err)
	}
	force := readMessage(t, guest)
	if force["type"] != "force_disconnect" {
		t.Errorf("guest got %v, want force_disconnect", force)
	}
}
