package orch

import (
	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/transcribe"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Join validates the room id and display name, admits the participant and
// fans out presence. The joiner's existing-users is queued before anyone
// else can change the room.
func (o *Orchestrator) Join(id domain.ParticipantID, rawRoom, rawName string) error {
	roomID, err := domain.NewRoomID(rawRoom)
	if err != nil {
		return err
	}
	name, err := domain.NewDisplayName(rawName, o.DefaultName)
	if err != nil {
		return err
	}
	err = o.Registry.Join(id, roomID, name, func(joiner app.Peer, others []app.Peer) {
		o.Outbox.Send(joiner, protocol.ExistingUsers{
			Type:  protocol.OutExistingUsers,
			Users: lo.Map(others, func(p app.Peer, _ int) protocol.UserInfo { return userInfo(p) }),
		})
		o.Outbox.Broadcast(others, protocol.UserConnected{
			Type: protocol.OutUserConnected,
			ID:   joiner.ID,
			Name: joiner.Name,
		})
	})
	if err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(roomID)).Str("name", name).Msg("joined")
	return nil
}

// Leave removes the participant from its room but keeps the connection.
func (o *Orchestrator) Leave(id domain.ParticipantID) error {
	roomID, err := o.Registry.Leave(id, o.announceLeave)
	if err != nil {
		return err
	}
	o.teardownMedia(id)
	if self, ok := o.Registry.Get(id); ok {
		o.Outbox.Send(self, protocol.Bare{Type: protocol.OutLeft})
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(roomID)).Msg("left")
	return nil
}

// EndCall terminates the caller's room for everyone. Members receive
// call-ended and stay connected outside any room.
func (o *Orchestrator) EndCall(id domain.ParticipantID, rawRoom string) error {
	roomID, err := domain.NewRoomID(rawRoom)
	if err != nil {
		return err
	}
	if !o.Registry.IsMember(roomID, id) {
		return app.ErrNotInRoom
	}
	var detached []*transcribe.Segmenter
	ended, err := o.Registry.EndRoom(roomID, func(members []app.Peer) {
		// media is unhooked before anyone can rejoin
		for _, m := range members {
			if s := o.detachMedia(m.ID); s != nil {
				detached = append(detached, s)
			}
		}
		o.Outbox.Broadcast(members, protocol.Bare{Type: protocol.OutCallEnded})
	})
	if err != nil {
		return err
	}
	for _, s := range detached {
		s.Stop()
	}
	log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(roomID)).Int("members", len(ended)).Msg("call ended")
	return nil
}

func userInfo(p app.Peer) protocol.UserInfo {
	return protocol.UserInfo{ID: p.ID, Name: p.Name, Status: p.Status}
}
