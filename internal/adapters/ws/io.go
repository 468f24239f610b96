package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/partywave/partywave/internal/party"
)

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	timeout := ctl.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ping := time.NewTicker(ctl.pingPeriod())
	defer ping.Stop()
	defer c.ws.Close()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Msg("writePump ctx done")
			return
		case <-ping.C:
			deadline := time.Now().Add(timeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug().Err(err).Str("module", "ws").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				// Drained after Close; say goodbye properly.
				deadline := time.Now().Add(timeout)
				_ = c.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				log.Debug().Str("module", "ws").Msg("writePump channel closed")
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		}
	}
}

// pingPeriod must stay under the peer's pong wait; the read side allows
// one missed ping before the deadline trips.
func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.PingPeriod > 0 {
		return ctl.PingPeriod
	}
	return 54 * time.Second
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, client *party.Client, c *Conn) {
	voteRate := ctl.VoteRate
	if voteRate <= 0 {
		voteRate = rate.Inf
	}
	votes := rate.NewLimiter(voteRate, ctl.VoteBurst)

	pongWait := 2 * ctl.pingPeriod()
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	defer func() {
		log.Info().Str("module", "ws").Str("room", string(client.Code())).Msg("readPump closing")
		client.Disconnect()
		c.Close()
		cancel()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "ws").Str("room", string(client.Code())).Msg("readPump read error")
				return
			}
			ctl.dispatch(client, votes, data)
		}
	}
}

// dispatch forwards one decoded command to the coordinator. Malformed
// payloads are dropped here; they never reach the room loop.
func (ctl *Controller) dispatch(client *party.Client, votes *rate.Limiter, data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("room", string(client.Code())).Msg("dropping malformed message")
		return
	}

	switch cmd := cmd.(type) {
	case StartCommand:
		client.StartSession()
	case TimerCommand:
		client.StartCountdown()
	case VoteCommand:
		if !votes.Allow() {
			log.Warn().Str("module", "ws").Str("room", string(client.Code())).Msg("vote rate limit exceeded, dropping")
			return
		}
		client.CastVote(cmd.SongID)
	case IncrementCommand:
		client.Increment(cmd.Button, cmd.Value, cmd.Payload)
	}
}
