package app

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry is the presence registry: it exclusively owns participant records.
type Registry struct {
	mu           sync.RWMutex
	participants map[domain.ParticipantID]*domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[domain.ParticipantID]*domain.Participant),
	}
}

func (r *Registry) Add(p *domain.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[p.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, p.ID)
	}
	cp := *p
	r.participants[p.ID] = &cp
	log.Info().Str("module", "app.registry").Str("pid", string(p.ID)).Str("name", p.DisplayName).Msg("participant added")
	return nil
}

// Remove is a no-op for unknown ids; it reports whether something was removed.
func (r *Registry) Remove(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Msg("participant removed")
	return true
}

func (r *Registry) Get(id domain.ParticipantID) (domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: participant %s", domain.ErrNotFound, id)
	}
	return *p, nil
}

func (r *Registry) Has(id domain.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.participants[id]
	return ok
}

func (r *Registry) Rename(id domain.ParticipantID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("%w: participant %s", domain.ErrNotFound, id)
	}
	p.DisplayName = name
	log.Info().Str("module", "app.registry").Str("pid", string(id)).Str("name", name).Msg("updated display name")
	return nil
}

// SetConversationState sets InConversation and ActiveConversationID as a pair.
// An empty conversation id returns the participant to idle.
func (r *Registry) SetConversationState(id domain.ParticipantID, conv domain.ConversationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("%w: participant %s", domain.ErrNotFound, id)
	}
	p.ActiveConversationID = conv
	p.InConversation = conv != ""
	log.Debug().Str("module", "app.registry").Str("pid", string(id)).Str("conversation", string(conv)).Msg("conversation state set")
	return nil
}

// Snapshot is computed fresh on every call, ordered by join time.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	return lo.Map(r.List(), func(p domain.Participant, _ int) domain.PresenceEntry {
		return p.Presence()
	})
}

// List returns copies of all participants ordered by join time.
func (r *Registry) List() []domain.Participant {
	r.mu.RLock()
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (r *Registry) IDs() []domain.ParticipantID {
	return lo.Map(r.List(), func(p domain.Participant, _ int) domain.ParticipantID { return p.ID })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}
