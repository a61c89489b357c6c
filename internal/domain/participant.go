// Package domain contains entities without transport logic, just state and its rules.
package domain

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ParticipantID string

// NewParticipantID is assigned once per live connection.
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.NewString())
}

// Participant is a connected user in the presence pool.
// InConversation and ActiveConversationID are only ever changed together.
type Participant struct {
	ID                   ParticipantID  `json:"id"`
	DisplayName          string         `json:"name"`
	InConversation       bool           `json:"inConversation"`
	ActiveConversationID ConversationID `json:"activeConversationId,omitempty"`
	JoinedAt             time.Time      `json:"joinedAt"`
}

func NewParticipant(id ParticipantID, displayName string) (*Participant, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	return &Participant{ID: id, DisplayName: name, JoinedAt: time.Now().UTC()}, nil
}

// NormalizeDisplayName trims the name and checks its length in runes.
func NormalizeDisplayName(displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "", ErrDisplayNameEmpty
	}
	if err := validate.Var(name, "max="+strconv.Itoa(MaxDisplayNameLen)); err != nil {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}

func (p *Participant) Idle() bool { return !p.InConversation }

// PresenceEntry is the public view of a participant pushed to every client.
type PresenceEntry struct {
	ID             ParticipantID `json:"id"`
	DisplayName    string        `json:"name"`
	InConversation bool          `json:"inConversation"`
}

func (p *Participant) Presence() PresenceEntry {
	return PresenceEntry{ID: p.ID, DisplayName: p.DisplayName, InConversation: p.InConversation}
}
