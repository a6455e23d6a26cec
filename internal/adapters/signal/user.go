package signal

import (
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRename(sid domain.ParticipantID, p *protocol.Rename) {
	if err := ctl.Orch.Rename(sid, p.Name); err != nil {
		ctl.fail(sid, err)
	}
}

func (ctl *SignalWSController) handleWhoAmI(sid domain.ParticipantID) {
	if err := ctl.Orch.WhoAmI(sid); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("whoami")
	}
}

func (ctl *SignalWSController) handleLanguages(sid domain.ParticipantID, spoken, target string) {
	if err := ctl.Orch.SetLanguages(sid, spoken, target); err != nil {
		ctl.fail(sid, err)
	}
}

func (ctl *SignalWSController) handleStatus(sid domain.ParticipantID, p *protocol.UpdateStatus) {
	if err := ctl.Orch.UpdateStatus(sid, domain.Status{Audio: p.Audio, Video: p.Video}); err != nil {
		ctl.fail(sid, err)
	}
}
