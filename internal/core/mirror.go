//go:generate go run go.uber.org/mock/mockgen -source=mirror.go -destination=../mocks/mock_mirror.go -package=mocks
package core

import (
	"context"
	"time"

	"github.com/dkeye/Duet/internal/domain"
)

// Mirror is a write-only, best-effort copy of presence and conversation state.
// The coordinator never reads from it.
type Mirror interface {
	UpsertParticipant(ctx context.Context, p domain.Participant) error
	DeleteParticipant(ctx context.Context, id domain.ParticipantID) error
	PutConversation(ctx context.Context, c domain.Conversation) error
	EndConversation(ctx context.Context, id domain.ConversationID, at time.Time) error
	// PruneParticipants removes mirrored participants that are not in keep.
	PruneParticipants(ctx context.Context, keep []domain.ParticipantID) (int, error)
}

// NopMirror is used when mirroring is disabled.
type NopMirror struct{}

func (NopMirror) UpsertParticipant(context.Context, domain.Participant) error { return nil }
func (NopMirror) DeleteParticipant(context.Context, domain.ParticipantID) error { return nil }
func (NopMirror) PutConversation(context.Context, domain.Conversation) error { return nil }
func (NopMirror) EndConversation(context.Context, domain.ConversationID, time.Time) error {
	return nil
}
func (NopMirror) PruneParticipants(context.Context, []domain.ParticipantID) (int, error) {
	return 0, nil
}
