package core

import (
	"time"

	"github.com/dkeye/Duet/internal/domain"
)

// Client to server events.
const (
	EventJoinPlatform      = "join-platform"
	EventStartConversation = "start-conversation"
	EventStartRecording    = "start-recording"
	EventStopRecording     = "stop-recording"
	EventEndConversation   = "end-conversation"
	EventLeavePlatform     = "leave-platform"
	EventPing              = "ping"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventCandidate         = "candidate"
)

// Server to client events.
const (
	EventJoinedPlatform      = "joined-platform"
	EventUserListUpdated     = "user-list-updated"
	EventConversationStarted = "conversation-started"
	EventRecordingStarted    = "recording-started"
	EventRecordingStopped    = "recording-stopped"
	EventConversationEnded   = "conversation-ended"
	EventError               = "error"
	EventPong                = "pong"
)

type JoinedPlatformMsg struct {
	Type          string                 `json:"type"`
	ParticipantID domain.ParticipantID   `json:"participantId"`
	Users         []domain.PresenceEntry `json:"users"`
}

type UserListMsg struct {
	Type  string                 `json:"type"`
	Users []domain.PresenceEntry `json:"users"`
}

// ConversationStartedMsg is built per recipient: Peer and Credential differ.
type ConversationStartedMsg struct {
	Type        string                `json:"type"`
	SessionID   domain.ConversationID `json:"sessionId"`
	Peer        domain.PresenceEntry  `json:"peer"`
	Credential  string                `json:"credential"`
	ChannelName string                `json:"channelName"`
	AppID       string                `json:"appId,omitempty"`
	DemoMode    bool                  `json:"demoMode"`
	ExpiresAt   time.Time             `json:"expiresAt"`
}

type RecordingMsg struct {
	Type      string                `json:"type"`
	SessionID domain.ConversationID `json:"sessionId"`
}

type ConversationEndedMsg struct {
	Type      string                `json:"type"`
	SessionID domain.ConversationID `json:"sessionId"`
}

type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type SDPMsg struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type CandidateMsg struct {
	Type          string `json:"type"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

func NewUserList(users []domain.PresenceEntry) UserListMsg {
	return UserListMsg{Type: EventUserListUpdated, Users: users}
}

func NewError(err error) ErrorMsg {
	return ErrorMsg{Type: EventError, Error: err.Error()}
}
