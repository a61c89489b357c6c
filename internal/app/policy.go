package app

import "github.com/dkeye/Duet/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a client whose send buffer is full.
type Policy interface {
	OnBackPressure(pid domain.ParticipantID, msg any) BackpressureAction
}

// SimplePolicy disconnects slow clients: a dropped notification would leave
// their view of presence or conversation state permanently stale.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.ParticipantID, any) BackpressureAction {
	return KickMember
}
