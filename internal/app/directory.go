package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Directory is the session directory: it exclusively owns active conversations.
type Directory struct {
	mu            sync.RWMutex
	conversations map[domain.ConversationID]*domain.Conversation
	byParticipant map[domain.ParticipantID]domain.ConversationID
	now           func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		byParticipant: make(map[domain.ParticipantID]domain.ConversationID),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create pairs a and b in a new conversation with a fresh id.
func (d *Directory) Create(a, b domain.ParticipantID) (domain.Conversation, error) {
	if a == b {
		return domain.Conversation{}, fmt.Errorf("%w: cannot pair %s with itself", domain.ErrParticipantBusy, a)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range []domain.ParticipantID{a, b} {
		if conv, ok := d.byParticipant[id]; ok {
			return domain.Conversation{}, fmt.Errorf("%w: %s in %s", domain.ErrParticipantBusy, id, conv)
		}
	}
	c := &domain.Conversation{
		ID:           domain.NewConversationID(),
		Participants: [2]domain.ParticipantID{a, b},
		CreatedAt:    d.now(),
	}
	d.conversations[c.ID] = c
	d.byParticipant[a] = c.ID
	d.byParticipant[b] = c.ID
	log.Info().Str("module", "app.directory").Str("conversation", string(c.ID)).Str("a", string(a)).Str("b", string(b)).Msg("conversation created")
	return *c, nil
}

func (d *Directory) Get(id domain.ConversationID) (domain.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conversations[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	return *c, nil
}

// ConversationOf returns the active conversation of a participant, if any.
func (d *Directory) ConversationOf(pid domain.ParticipantID) (domain.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byParticipant[pid]
	if !ok {
		return domain.Conversation{}, false
	}
	return *d.conversations[id], true
}

// End stamps EndedAt and drops the conversation from the active index.
// Ending an absent conversation is a no-op reported as false.
func (d *Directory) End(id domain.ConversationID) (domain.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[id]
	if !ok {
		return domain.Conversation{}, false
	}
	at := d.now()
	c.EndedAt = &at
	c.IsRecording = false
	delete(d.conversations, id)
	for _, pid := range c.Participants {
		if d.byParticipant[pid] == id {
			delete(d.byParticipant, pid)
		}
	}
	log.Info().Str("module", "app.directory").Str("conversation", string(id)).Msg("conversation ended")
	return *c, true
}

// SetRecording flips the recording flag. Starting stamps StartedAt, stopping stamps EndedAt.
func (d *Directory) SetRecording(id domain.ConversationID, recording bool) (domain.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.conversations[id]
	if !ok {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	at := d.now()
	c.IsRecording = recording
	if recording {
		c.StartedAt = &at
		c.EndedAt = nil
	} else {
		c.EndedAt = &at
	}
	log.Info().Str("module", "app.directory").Str("conversation", string(id)).Bool("recording", recording).Msg("recording flag set")
	return *c, nil
}

func (d *Directory) List() []domain.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Conversation, 0, len(d.conversations))
	for _, c := range d.conversations {
		out = append(out, *c)
	}
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conversations)
}
