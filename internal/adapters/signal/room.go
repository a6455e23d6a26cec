package signal

import (
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sid domain.ParticipantID, p *protocol.JoinRoom) {
	if p.Languages != nil {
		if err := ctl.Orch.SetLanguages(sid, p.Languages.Spoken, p.Languages.Target); err != nil {
			ctl.fail(sid, err)
			return
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join")
	if err := ctl.Orch.Join(sid, p.RoomID, p.DisplayName); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join rejected")
		ctl.fail(sid, err)
	}
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sid domain.ParticipantID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if err := ctl.Orch.Leave(sid); err != nil {
		ctl.fail(sid, err)
	}
}

func (ctl *SignalWSController) handleEndCall(sid domain.ParticipantID, p *protocol.EndCall) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("end call")
	if err := ctl.Orch.EndCall(sid, p.RoomID); err != nil {
		ctl.fail(sid, err)
	}
}

// handleDisconnectCall tears the participant down and then closes the socket.
func (ctl *SignalWSController) handleDisconnectCall(sid domain.ParticipantID, c *WsSignalConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("disconnect call")
	ctl.Orch.Disconnect(sid)
	c.Close()
}
