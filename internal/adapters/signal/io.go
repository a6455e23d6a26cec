package signal

import (
	"context"
	"time"

	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, sid domain.ParticipantID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping")
				return
			}
		}
	}
}

// readPump is the only reader of the socket, so one participant's messages,
// audio included, are handled strictly in arrival order.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid domain.ParticipantID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Disconnect(sid)
		cancel()
		c.Close()
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := newLimiter(ctl.opts.RateLimit)

	for {
		if ctx.Err() != nil {
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if kind == websocket.BinaryMessage {
			ctl.handleAudio(sid, data)
			continue
		}
		if !ctl.handleSignal(sid, c, data, limiter) {
			return
		}
	}
}

// handleSignal dispatches one text frame. It returns false when the
// connection must be closed.
func (ctl *SignalWSController) handleSignal(sid domain.ParticipantID, c *WsSignalConn, data []byte, limiter *rateLimiter) bool {
	typ, payload, err := protocol.Decode(data)
	if err != nil {
		ctl.Orch.Stats.ProtocolViolations.Add(1)
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", string(typ)).Msg("rejected message")
		ctl.fail(sid, err)
		return true
	}
	if typ != protocol.TypeAudioChunk && !limiter.Allow() {
		ctl.Orch.Stats.ProtocolViolations.Add(1)
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", string(typ)).Msg("rate limited")
		ctl.fail(sid, errRateLimited)
		return true
	}

	switch p := payload.(type) {
	case *protocol.JoinRoom:
		ctl.handleJoin(sid, p)
	case *protocol.Languages:
		ctl.handleLanguages(sid, p.Spoken, p.Target)
	case *protocol.SetPreferredLanguage:
		ctl.handleLanguages(sid, "", p.Language)
	case *protocol.AudioChunk:
		ctl.handleAudio(sid, p.Audio)
	case *protocol.ChatMessage:
		ctl.handleChat(sid, p)
	case *protocol.Signal:
		ctl.handleRelay(sid, p)
	case *protocol.UpdateStatus:
		ctl.handleStatus(sid, p)
	case *protocol.EndCall:
		ctl.handleEndCall(sid, p)
	case *protocol.Rename:
		ctl.handleRename(sid, p)
	case *protocol.Empty:
		switch typ {
		case protocol.TypeLeave:
			ctl.handleLeave(sid)
		case protocol.TypeWhoAmI:
			ctl.handleWhoAmI(sid)
		case protocol.TypePing:
			ctl.handlePing(sid)
		case protocol.TypeDisconnectCall:
			ctl.handleDisconnectCall(sid, c)
			return false
		}
	}
	return true
}
