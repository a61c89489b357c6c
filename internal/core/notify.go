package core

import "github.com/dkeye/Duet/internal/domain"

type Audience int

const (
	// Targeted delivers to a single participant.
	Targeted Audience = iota
	// Everyone delivers to every connected client.
	Everyone
)

// Notification is an outbound message decided by the coordinator.
type Notification struct {
	Audience Audience
	To       domain.ParticipantID
	Message  any
}

func To(id domain.ParticipantID, msg any) Notification {
	return Notification{Audience: Targeted, To: id, Message: msg}
}

func All(msg any) Notification {
	return Notification{Audience: Everyone, Message: msg}
}

// Notifier is the broadcast layer. Deliver must not block on slow clients.
type Notifier interface {
	Deliver(notes []Notification)
}
