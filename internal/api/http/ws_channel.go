package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/axenix_roulette/internal/config"
	"github.com/immxrtalbeast/axenix_roulette/internal/domain"
	"github.com/immxrtalbeast/axenix_roulette/internal/matchmaking"
	"github.com/immxrtalbeast/axenix_roulette/internal/service"
	"github.com/immxrtalbeast/axenix_roulette/lib/logger/sl"
)

// wsChannel is the WebSocket push channel of one client. Events are written
// by writePump only; inbound frames are read by readPump only.
type wsChannel struct {
	*eventQueue
	id   domain.ClientID
	conn *websocket.Conn
	cfg  config.SignalingConfig
	log  *slog.Logger
}

func newWSChannel(id domain.ClientID, conn *websocket.Conn, cfg config.SignalingConfig, log *slog.Logger) *wsChannel {
	return &wsChannel{
		eventQueue: newEventQueue(cfg.EventBuffer),
		id:         id,
		conn:       conn,
		cfg:        cfg,
		log:        log,
	}
}

// readPump feeds inbound signals to calls until the connection fails.
func (c *wsChannel) readPump(ctx context.Context, calls service.CallInteractor) {
	defer c.conn.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", slog.String("client_id", c.id.String()), sl.Err(err))
			}
			return
		}

		var sig domain.Signal
		if err := json.Unmarshal(frame, &sig); err != nil {
			err = fmt.Errorf("decode signal: %w: %v", matchmaking.ErrMalformedSignal, err)
			calls.RejectSignal(ctx, c.id, err)
			c.reject("", err)
			continue
		}

		if err := calls.HandleSignal(ctx, c.id, sig); err != nil {
			c.reject(sig.Type, err)
		}
	}
}

// reject tells the sender its signal was refused. A full buffer is left for
// the matchmaker to detect on its next delivery.
func (c *wsChannel) reject(t domain.SignalType, err error) {
	if sendErr := c.Send(domain.SignalRejectedEvent(t, err)); sendErr != nil {
		c.log.Debug("rejection not delivered", slog.String("client_id", c.id.String()), sl.Err(sendErr))
	}
}

// writePump drains queued events to the socket and keeps the peer alive with
// pings. Events still buffered when the channel is closed are flushed first.
func (c *wsChannel) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.events:
			if err := c.write(ev); err != nil {
				c.log.Debug("websocket write failed", slog.String("client_id", c.id.String()), sl.Err(err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			for _, ev := range c.pending() {
				if err := c.write(ev); err != nil {
					return
				}
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsChannel) write(ev domain.Event) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteJSON(ev)
}
