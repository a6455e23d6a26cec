package orch

import (
	"encoding/json"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Relay forwards an opaque negotiation payload to a member of the sender's
// room. Unknown or departed targets are dropped and counted, never returned
// as an error.
func (o *Orchestrator) Relay(msg domain.SignalMessage) {
	err := o.Registry.View(msg.SenderID, func(self app.Peer, others []app.Peer) {
		target, ok := lo.Find(others, func(p app.Peer) bool { return p.ID == msg.TargetID })
		if !ok {
			o.Stats.RoutingDrops.Add(1)
			log.Warn().Str("module", "orch").Str("sid", string(msg.SenderID)).Str("target", string(msg.TargetID)).Msg("signal target not in room")
			return
		}
		o.Outbox.Send(target, protocol.SignalRelay{
			Type:       protocol.OutSignal,
			SenderID:   self.ID,
			SenderName: self.Name,
			Signal:     json.RawMessage(msg.Payload),
		})
	})
	if err != nil {
		o.Stats.RoutingDrops.Add(1)
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(msg.SenderID)).Str("target", string(msg.TargetID)).Msg("signal dropped")
	}
}

// Chat sanitizes raw and delivers it to every member of the sender's room,
// the sender included.
func (o *Orchestrator) Chat(id domain.ParticipantID, raw string) (domain.ChatMessage, error) {
	text, err := chat.Sanitize(raw)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	text = o.Moderator.Censor(text)

	var msg domain.ChatMessage
	err = o.Registry.View(id, func(self app.Peer, others []app.Peer) {
		msg = domain.ChatMessage{
			ID:         uuid.NewString(),
			RoomID:     self.Room,
			SenderID:   self.ID,
			SenderName: self.Name,
			Text:       text,
			Timestamp:  o.now().UTC(),
		}
		o.Outbox.Broadcast(append([]app.Peer{self}, others...), protocol.Chat{
			Type:      protocol.OutChatMessage,
			ID:        msg.ID,
			Message:   msg.Text,
			UserID:    msg.SenderName,
			SenderID:  msg.SenderID,
			Timestamp: msg.Timestamp,
		})
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return msg, nil
}

// UpdateStatus stores the media flags and tells the rest of the room.
func (o *Orchestrator) UpdateStatus(id domain.ParticipantID, status domain.Status) error {
	return o.Registry.UpdateStatus(id, status, func(self app.Peer, others []app.Peer) {
		o.Outbox.Broadcast(others, protocol.UserStatusUpdated{
			Type:   protocol.OutUserStatusUpdated,
			ID:     self.ID,
			Status: self.Status,
		})
	})
}

// Rename changes the display name, confirms it to the caller and tells the
// rest of the room.
func (o *Orchestrator) Rename(id domain.ParticipantID, raw string) error {
	name, err := domain.NewDisplayName(raw, "")
	if err != nil {
		return err
	}
	if name == "" {
		return domain.ErrUsernameInvalid
	}
	err = o.Registry.Rename(id, name, func(self app.Peer, others []app.Peer) {
		o.Outbox.Broadcast(others, protocol.UserUpdated{
			Type: protocol.OutUserUpdated,
			ID:   self.ID,
			Name: self.Name,
		})
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("name", name).Msg("rename")
	return o.WhoAmI(id)
}

// SetLanguages updates the language preference. Empty fields keep their
// current value. The spoken language also becomes the recognition hint.
func (o *Orchestrator) SetLanguages(id domain.ParticipantID, spoken, target string) error {
	self, ok := o.Registry.Get(id)
	if !ok {
		return app.ErrUnknownParticipant
	}
	langs := self.Languages
	if spoken != "" {
		langs.Spoken = spoken
	}
	if target != "" {
		langs.Target = target
	}
	if err := o.Registry.SetLanguages(id, langs); err != nil {
		return err
	}
	if o.Segmenters != nil && spoken != "" {
		o.Segmenters.SetLanguage(id, spoken)
	}
	log.Debug().Str("module", "orch").Str("sid", string(id)).Str("spoken", langs.Spoken).Str("target", langs.Target).Msg("languages updated")
	return nil
}
