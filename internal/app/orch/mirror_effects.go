package orch

import (
	"context"
	"time"

	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (c *Coordinator) mirrorParticipant(p domain.Participant) effects.Effect {
	return effects.Effect{
		Name: "mirror.upsert-participant",
		Run:  func(ctx context.Context) error { return c.Mirror.UpsertParticipant(ctx, p) },
	}
}

func (c *Coordinator) mirrorParticipantGone(id domain.ParticipantID) effects.Effect {
	return effects.Effect{
		Name: "mirror.delete-participant",
		Run:  func(ctx context.Context) error { return c.Mirror.DeleteParticipant(ctx, id) },
	}
}

func (c *Coordinator) mirrorConversation(conv domain.Conversation) effects.Effect {
	return effects.Effect{
		Name: "mirror.put-conversation",
		Run:  func(ctx context.Context) error { return c.Mirror.PutConversation(ctx, conv) },
	}
}

func (c *Coordinator) mirrorConversationEnded(id domain.ConversationID, at time.Time) effects.Effect {
	return effects.Effect{
		Name: "mirror.end-conversation",
		Run:  func(ctx context.Context) error { return c.Mirror.EndConversation(ctx, id, at) },
	}
}

func (c *Coordinator) mirrorPrune(keep []domain.ParticipantID) effects.Effect {
	return effects.Effect{
		Name: "mirror.prune-participants",
		Run: func(ctx context.Context) error {
			n, err := c.Mirror.PruneParticipants(ctx, keep)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Str("module", "orch").Int("pruned", n).Msg("mirror cleanup completed")
			}
			return nil
		},
	}
}
