package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConversationID string

// NewConversationID returns an id that is also a valid media channel name.
func NewConversationID() ConversationID {
	return ConversationID("conv_" + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Conversation is an active two-party pairing. Participants never change after creation.
type Conversation struct {
	ID           ConversationID   `json:"id"`
	Participants [2]ParticipantID `json:"participants"`
	IsRecording  bool             `json:"isRecording"`
	CreatedAt    time.Time        `json:"createdAt"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	EndedAt      *time.Time       `json:"endedAt,omitempty"`
}

func (c *Conversation) Has(id ParticipantID) bool {
	return c.Participants[0] == id || c.Participants[1] == id
}

// Peer returns the other member of the conversation.
func (c *Conversation) Peer(id ParticipantID) (ParticipantID, bool) {
	switch id {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return "", false
}
