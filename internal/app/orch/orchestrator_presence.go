package orch

import (
	"fmt"

	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// join registers the participant as idle. A second join on the same
// connection only renames it; its conversation state is left alone.
func (c *Coordinator) join(cmd Join) Outcome {
	name, err := domain.NormalizeDisplayName(cmd.DisplayName)
	if err != nil {
		return reject(cmd.ID, err)
	}

	if c.Registry.Has(cmd.ID) {
		if err := c.Registry.Rename(cmd.ID, name); err != nil {
			return reject(cmd.ID, err)
		}
		log.Info().Str("module", "orch").Str("pid", string(cmd.ID)).Msg("duplicate join, display name overwritten")
	} else {
		p, err := domain.NewParticipant(cmd.ID, name)
		if err != nil {
			return reject(cmd.ID, err)
		}
		if err := c.Registry.Add(p); err != nil {
			return reject(cmd.ID, err)
		}
	}

	p, err := c.Registry.Get(cmd.ID)
	if err != nil {
		return reject(cmd.ID, fmt.Errorf("%w: %w", domain.ErrInvariant, err))
	}
	snap := c.Registry.Snapshot()
	return Outcome{
		Notifications: []core.Notification{
			core.All(core.NewUserList(snap)),
			core.To(cmd.ID, core.JoinedPlatformMsg{
				Type:          core.EventJoinedPlatform,
				ParticipantID: cmd.ID,
				Users:         snap,
			}),
		},
		Effects: []effects.Effect{c.mirrorParticipant(p)},
	}
}

// leave removes the participant and ends its conversation for the peer.
// Leaving twice is a no-op: only registered participants can leave.
func (c *Coordinator) leave(cmd Leave) Outcome {
	p, err := c.Registry.Get(cmd.ID)
	if err != nil {
		log.Debug().Str("module", "orch").Str("pid", string(cmd.ID)).Str("reason", string(cmd.Reason)).Msg("leave for unregistered participant ignored")
		return Outcome{Effects: c.teardownMedia(cmd.ID)}
	}

	var out Outcome
	conv, ok := c.Directory.ConversationOf(p.ID)
	switch {
	case ok:
		if conv.ID != p.ActiveConversationID {
			log.Error().Err(domain.ErrInvariant).Str("module", "orch").Str("pid", string(p.ID)).
				Str("conversation", string(conv.ID)).Str("active", string(p.ActiveConversationID)).Msg("participant and directory disagree on conversation")
		}
		peer, _ := conv.Peer(p.ID)
		out = c.finishConversation(conv, peer)
		log.Info().Str("module", "orch").Str("pid", string(p.ID)).Str("conversation", string(conv.ID)).Str("reason", string(cmd.Reason)).Msg("conversation ended by leave")
	case p.InConversation:
		log.Error().Err(fmt.Errorf("%w: conversation %s", domain.ErrInvariant, p.ActiveConversationID)).Str("module", "orch").Str("pid", string(p.ID)).Msg("participant points at a missing conversation")
	}
	out.Effects = append(out.Effects, c.teardownMedia(p.ID)...)

	c.Registry.Remove(p.ID)
	out.Notifications = append(out.Notifications, c.presence())
	out.Effects = append(out.Effects, c.mirrorParticipantGone(p.ID))
	log.Info().Str("module", "orch").Str("pid", string(p.ID)).Str("reason", string(cmd.Reason)).Int("remaining", c.Registry.Len()).Msg("participant left")
	return out
}

func (c *Coordinator) sweep() Outcome {
	return Outcome{Effects: []effects.Effect{c.mirrorPrune(c.Registry.IDs())}}
}
