package signal

import (
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleAudio(sid domain.ParticipantID, chunk []byte) {
	if err := ctl.Orch.OnAudio(sid, chunk); err != nil {
		ctl.fail(sid, err)
	}
}

func (ctl *SignalWSController) handleRelay(sid domain.ParticipantID, p *protocol.Signal) {
	ctl.Orch.Relay(domain.SignalMessage{
		SenderID: sid,
		TargetID: domain.ParticipantID(p.TargetID),
		Payload:  p.Signal,
	})
}

func (ctl *SignalWSController) handleChat(sid domain.ParticipantID, p *protocol.ChatMessage) {
	msg, err := ctl.Orch.Chat(sid, p.Message)
	if err != nil {
		ctl.fail(sid, err)
		return
	}
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", string(msg.RoomID)).Str("message_id", msg.ID).Msg("chat")
}
