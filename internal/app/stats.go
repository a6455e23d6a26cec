package app

import "sync/atomic"

// Stats is the observability sink for failures that are never surfaced to clients.
type Stats struct {
	ProtocolViolations atomic.Int64
	RoutingDrops       atomic.Int64
	BackpressureDrops  atomic.Int64
	AudioDrops         atomic.Int64
	CollaboratorErrors atomic.Int64
	FinalUtterances    atomic.Int64
	Translations       atomic.Int64
	AbandonedPipelines atomic.Int64
}

type StatsSnapshot struct {
	ProtocolViolations int64 `json:"protocol_violations"`
	RoutingDrops       int64 `json:"routing_drops"`
	BackpressureDrops  int64 `json:"backpressure_drops"`
	AudioDrops         int64 `json:"audio_drops"`
	CollaboratorErrors int64 `json:"collaborator_errors"`
	FinalUtterances    int64 `json:"final_utterances"`
	Translations       int64 `json:"translations"`
	AbandonedPipelines int64 `json:"abandoned_pipelines"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		ProtocolViolations: s.ProtocolViolations.Load(),
		RoutingDrops:       s.RoutingDrops.Load(),
		BackpressureDrops:  s.BackpressureDrops.Load(),
		AudioDrops:         s.AudioDrops.Load(),
		CollaboratorErrors: s.CollaboratorErrors.Load(),
		FinalUtterances:    s.FinalUtterances.Load(),
		Translations:       s.Translations.Load(),
		AbandonedPipelines: s.AbandonedPipelines.Load(),
	}
}
