// Package ws is the per-participant transport adapter: it upgrades the
// connection, decodes inbound messages into tagged commands for the
// coordinator and drains coordinator broadcasts back to the socket.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/partywave/partywave/internal/domain"
	"github.com/partywave/partywave/internal/party"
)

type Controller struct {
	Coord *party.Coordinator

	ReadLimit    int64
	WriteTimeout time.Duration
	PingPeriod   time.Duration
	SendBuffer   int
	VoteRate     rate.Limit
	VoteBurst    int
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleParty joins the participant identified by its client token to the
// room addressed in the route. The upgrade only happens once the session
// code resolves; membership registration happens before the first read.
func (ctl *Controller) HandleParty(ctx context.Context, c *gin.Context) {
	pid := domain.ParticipantID(c.GetString("client_token"))
	code := domain.SessionCode(c.Param("code"))
	if pid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing client token"})
		return
	}

	if err := ctl.Coord.Lookup(c.Request.Context(), code); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			log.Info().Str("module", "ws").Str("room", string(code)).Msg("connect to unknown room rejected")
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		log.Error().Err(err).Str("module", "ws").Str("room", string(code)).Msg("room lookup")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		sock.SetReadLimit(ctl.ReadLimit)
	}

	conn := NewConn(sock, ctl.SendBuffer)
	client, err := ctl.Coord.Connect(c.Request.Context(), code, pid, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("room", string(code)).Str("participant", string(pid)).Msg("connect")
		conn.Close()
		sock.Close()
		return
	}
	log.Info().Str("module", "ws").Str("room", string(code)).Str("participant", string(pid)).Msg("participant connected")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, client, conn)
}
