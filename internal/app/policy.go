package app

import "github.com/dkeye/babel/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a member whose outbound queue is full.
type Policy interface {
	OnBackPressure(room domain.RoomID, member domain.ParticipantID) BackpressureAction
}

// SimplePolicy drops the frame; signaling is best-effort and the peer layer retries.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.ParticipantID) BackpressureAction {
	return DropFrame
}

// KickSlowPolicy disconnects members that cannot keep up.
type KickSlowPolicy struct{}

func (KickSlowPolicy) OnBackPressure(domain.RoomID, domain.ParticipantID) BackpressureAction {
	return KickMember
}

// PolicyByName maps the config value to a Policy. Unknown names fall back to SimplePolicy.
func PolicyByName(name string) Policy {
	if name == "kick" {
		return KickSlowPolicy{}
	}
	return SimplePolicy{}
}
