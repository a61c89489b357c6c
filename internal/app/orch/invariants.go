package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Duet/internal/domain"
)

// CheckInvariants cross-checks the registry against the directory. It must
// run on the loop goroutine, or after Run has returned.
func (c *Coordinator) CheckInvariants() error {
	var errs []error

	conversations := make(map[domain.ConversationID]domain.Conversation)
	seen := make(map[domain.ParticipantID]domain.ConversationID)
	for _, conv := range c.Directory.List() {
		conversations[conv.ID] = conv
		if conv.Participants[0] == conv.Participants[1] {
			errs = append(errs, fmt.Errorf("conversation %s pairs %s with itself", conv.ID, conv.Participants[0]))
		}
		for _, pid := range conv.Participants {
			if other, ok := seen[pid]; ok {
				errs = append(errs, fmt.Errorf("%s is in %s and %s", pid, other, conv.ID))
			}
			seen[pid] = conv.ID
			p, err := c.Registry.Get(pid)
			if err != nil {
				errs = append(errs, fmt.Errorf("conversation %s references unknown %s", conv.ID, pid))
				continue
			}
			if p.ActiveConversationID != conv.ID {
				errs = append(errs, fmt.Errorf("%s belongs to %s but points at %q", pid, conv.ID, p.ActiveConversationID))
			}
		}
	}

	for _, p := range c.Registry.List() {
		if p.InConversation != (p.ActiveConversationID != "") {
			errs = append(errs, fmt.Errorf("%s has in-conversation=%t with conversation %q", p.ID, p.InConversation, p.ActiveConversationID))
		}
		if !p.InConversation {
			continue
		}
		conv, ok := conversations[p.ActiveConversationID]
		if !ok {
			errs = append(errs, fmt.Errorf("%s points at missing conversation %s", p.ID, p.ActiveConversationID))
			continue
		}
		if !conv.Has(p.ID) {
			errs = append(errs, fmt.Errorf("%s points at %s without being a member", p.ID, conv.ID))
		}
	}

	for pid, entry := range c.media {
		if seen[pid] != entry.conv {
			errs = append(errs, fmt.Errorf("media of %s outlived conversation %s", pid, entry.conv))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvariant, errors.Join(errs...))
}
