//go:generate go run go.uber.org/mock/mockgen -source=storage.go -destination=../mocks/mock_storage.go -package=mocks
package core

import (
	"context"
	"io"
	"time"

	"github.com/dkeye/Duet/internal/domain"
)

// Upload describes a recorded blob handed to a Sink.
type Upload struct {
	ConversationID domain.ConversationID
	ParticipantID  domain.ParticipantID
	Tag            string
	OriginalName   string
	ContentType    string
	// Name is the storage name; empty lets the sink choose one.
	Name string
}

// StoredFile is what a Sink returns and the Catalog keeps.
type StoredFile struct {
	ID             string                `json:"id"`
	Filename       string                `json:"filename"`
	OriginalName   string                `json:"originalName,omitempty"`
	ConversationID domain.ConversationID `json:"conversationId"`
	ParticipantID  domain.ParticipantID  `json:"userId"`
	Tag            string                `json:"audioType"`
	Size           int64                 `json:"size"`
	UploadedAt     time.Time             `json:"uploadTime"`
	Locator        string                `json:"downloadUrl"`
	Backend        string                `json:"backend"`
}

// Sink stores a blob and returns its locator.
type Sink interface {
	Upload(ctx context.Context, blob io.Reader, meta Upload) (StoredFile, error)
}

// Catalog indexes stored files by conversation.
type Catalog interface {
	Record(ctx context.Context, f StoredFile) error
	ListConversation(ctx context.Context, id domain.ConversationID) ([]StoredFile, error)
}
