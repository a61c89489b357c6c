package orch

import (
	"context"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Command is one inbound event for the coordinator loop.
type Command interface {
	command() string
}

type LeaveReason string

const (
	LeaveExplicit   LeaveReason = "explicit"
	LeaveDisconnect LeaveReason = "disconnect"
)

type Join struct {
	ID          domain.ParticipantID
	DisplayName string
}

type StartConversation struct {
	Requester domain.ParticipantID
	Target    domain.ParticipantID
}

type SetRecording struct {
	Requester    domain.ParticipantID
	Conversation domain.ConversationID
	Recording    bool
}

type EndConversation struct {
	Requester    domain.ParticipantID
	Conversation domain.ConversationID
}

// Leave covers both the explicit leave-platform event and a transport disconnect.
type Leave struct {
	ID     domain.ParticipantID
	Reason LeaveReason
}

// Sweep prunes mirrored participants that are no longer registered.
type Sweep struct{}

// AuthorizeMedia checks that a participant may publish into a conversation channel.
type AuthorizeMedia struct {
	ID         domain.ParticipantID
	Channel    domain.ConversationID
	Credential string
}

// MediaReady attaches a negotiated media connection to its conversation.
type MediaReady struct {
	ID      domain.ParticipantID
	Channel domain.ConversationID
	Conn    core.MediaConnection
}

type TrackPublished struct {
	ID    domain.ParticipantID
	Ctx   context.Context
	Track *webrtc.TrackRemote
}

type MediaClosed struct {
	ID   domain.ParticipantID
	Conn core.MediaConnection
}

func (Join) command() string { return "join" }
func (StartConversation) command() string { return "start-conversation" }
func (SetRecording) command() string { return "set-recording" }
func (EndConversation) command() string { return "end-conversation" }
func (Leave) command() string { return "leave" }
func (Sweep) command() string { return "sweep" }
func (AuthorizeMedia) command() string { return "authorize-media" }
func (MediaReady) command() string { return "media-ready" }
func (TrackPublished) command() string { return "track-published" }
func (MediaClosed) command() string { return "media-closed" }
