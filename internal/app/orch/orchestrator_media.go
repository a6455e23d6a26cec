package orch

import (
	"errors"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/transcribe"
	"github.com/dkeye/babel/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnAudio feeds one audio chunk into the sender's segmenter, creating it on
// the first chunk after join. Chunks from participants outside any room are
// protocol violations and are dropped without a reply.
func (o *Orchestrator) OnAudio(id domain.ParticipantID, chunk []byte) error {
	limit := o.MaxChunkBytes
	if limit <= 0 {
		limit = DefaultMaxChunkBytes
	}
	if len(chunk) > limit {
		o.Stats.ProtocolViolations.Add(1)
		log.Warn().Str("module", "orch").Str("sid", string(id)).Int("bytes", len(chunk)).Msg("audio chunk too large")
		return ErrChunkTooLarge
	}

	var seg *transcribe.Segmenter
	err := o.Registry.View(id, func(self app.Peer, _ []app.Peer) {
		seg = o.Segmenters.GetOrCreate(id, self.Languages.Spoken)
	})
	if err != nil {
		o.Stats.ProtocolViolations.Add(1)
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(id)).Msg("audio outside a room")
		return nil
	}
	switch err := seg.Feed(chunk); {
	case errors.Is(err, transcribe.ErrQueueFull):
		o.Stats.AudioDrops.Add(1)
		log.Warn().Str("module", "orch").Str("sid", string(id)).Int("bytes", len(chunk)).Msg("segmenter busy, audio chunk dropped")
	case err != nil:
		log.Debug().Err(err).Str("module", "orch").Str("sid", string(id)).Msg("audio after teardown")
	}
	return nil
}
