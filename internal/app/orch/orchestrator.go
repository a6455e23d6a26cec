package orch

import (
	"errors"
	"time"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/chat"
	"github.com/dkeye/babel/internal/app/pipeline"
	"github.com/dkeye/babel/internal/app/transcribe"
	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrChunkTooLarge = errors.New("audio chunk too large")
)

const DefaultMaxChunkBytes = 64 << 10

// Orchestrator carries every connection-scoped operation. Handlers in the
// transport adapter translate inbound messages into calls on it.
type Orchestrator struct {
	Registry   *app.Registry
	Outbox     *app.Outbox
	Stats      *app.Stats
	Segmenters *transcribe.Manager
	Pipeline   *pipeline.Coordinator
	Moderator  *chat.Moderator

	DefaultName   string
	MaxChunkBytes int
	Now           func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Connect binds a fresh connection under a new participant id.
func (o *Orchestrator) Connect(conn core.SignalConnection, langs domain.Languages) (domain.ParticipantID, error) {
	id := domain.NewParticipantID()
	if err := o.Registry.Connect(id, o.DefaultName, langs, conn); err != nil {
		return "", err
	}
	return id, nil
}

// Disconnect tears the participant down: remaining room members get one
// user-disconnected, its segmenter is discarded and in-flight translations
// touching it are abandoned. Calling it twice is harmless.
func (o *Orchestrator) Disconnect(id domain.ParticipantID) {
	last, ok := o.Registry.Disconnect(id, o.announceLeave)
	o.teardownMedia(id)
	if ok {
		log.Info().Str("module", "orch").Str("sid", string(id)).Str("room", string(last.Room)).Msg("disconnected")
	}
}

// WhoAmI answers with the connection's current identity.
func (o *Orchestrator) WhoAmI(id domain.ParticipantID) error {
	self, ok := o.Registry.Get(id)
	if !ok {
		return app.ErrUnknownParticipant
	}
	o.Outbox.Send(self, protocol.WhoAmI{
		Type:      protocol.OutWhoAmI,
		ID:        self.ID,
		Name:      self.Name,
		Room:      self.Room,
		Languages: self.Languages,
	})
	return nil
}

func (o *Orchestrator) Pong(id domain.ParticipantID) {
	if self, ok := o.Registry.Get(id); ok {
		o.Outbox.Send(self, protocol.Bare{Type: protocol.OutPong})
	}
}

// Fail reports a rejected inbound message to its sender.
func (o *Orchestrator) Fail(id domain.ParticipantID, reason string) {
	if self, ok := o.Registry.Get(id); ok {
		o.Outbox.Send(self, protocol.NewError(reason))
	}
}

func (o *Orchestrator) teardownMedia(id domain.ParticipantID) {
	if s := o.detachMedia(id); s != nil {
		s.Stop()
	}
}

// detachMedia abandons the participant's translations and unhooks its
// segmenter. It never blocks, so it may run under the registry lock; the
// returned segmenter still has to be stopped.
func (o *Orchestrator) detachMedia(id domain.ParticipantID) *transcribe.Segmenter {
	if o.Pipeline != nil {
		o.Pipeline.Abandon(id)
	}
	if o.Segmenters == nil {
		return nil
	}
	return o.Segmenters.Detach(id)
}

func (o *Orchestrator) announceLeave(left app.Peer, remaining []app.Peer) {
	o.Outbox.Broadcast(remaining, protocol.UserDisconnected{
		Type: protocol.OutUserDisconnected,
		ID:   left.ID,
		Name: left.Name,
	})
}
