package app

import (
	"errors"

	"github.com/dkeye/babel/internal/core"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Outbox encodes server events and queues them on member connections,
// applying the backpressure Policy when a queue is full.
type Outbox struct {
	Policy Policy
	Stats  *Stats
}

func NewOutbox(policy Policy, stats *Stats) *Outbox {
	if policy == nil {
		policy = SimplePolicy{}
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &Outbox{Policy: policy, Stats: stats}
}

// Send reports whether the event was queued for delivery.
func (o *Outbox) Send(to Peer, msg any) bool {
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.outbox").Msg("encode failed")
		return false
	}
	return o.deliver(to, frame)
}

// Broadcast encodes msg once and queues it for every peer.
func (o *Outbox) Broadcast(to []Peer, msg any) {
	if len(to) == 0 {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.outbox").Msg("encode failed")
		return
	}
	for _, p := range to {
		o.deliver(p, frame)
	}
}

func (o *Outbox) deliver(to Peer, frame core.Frame) bool {
	if to.Conn == nil {
		return false
	}
	err := to.Conn.TrySend(frame)
	switch {
	case err == nil:
		return true
	case errors.Is(err, core.ErrBackpressure):
		o.Stats.BackpressureDrops.Add(1)
		switch o.Policy.OnBackPressure(to.Room, to.ID) {
		case KickMember:
			log.Warn().Str("module", "app.outbox").Str("id", string(to.ID)).Msg("slow consumer kicked")
			to.Conn.Close()
		case DropFrame, NoAction:
			log.Debug().Str("module", "app.outbox").Str("id", string(to.ID)).Msg("frame dropped")
		}
	case errors.Is(err, core.ErrConnectionClosed):
		log.Debug().Str("module", "app.outbox").Str("id", string(to.ID)).Msg("connection closed")
	default:
		log.Warn().Err(err).Str("module", "app.outbox").Str("id", string(to.ID)).Msg("send failed")
	}
	return false
}
