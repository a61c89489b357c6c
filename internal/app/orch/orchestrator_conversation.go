package orch

import (
	"fmt"

	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// startConversation checks and commits Idle -> Paired for both participants
// in one step, then hands each of them its own credential.
func (c *Coordinator) startConversation(cmd StartConversation) Outcome {
	requester, err := c.Registry.Get(cmd.Requester)
	if err != nil {
		return reject(cmd.Requester, err)
	}
	target, err := c.Registry.Get(cmd.Target)
	if err != nil {
		return reject(cmd.Requester, err)
	}
	if requester.ID == target.ID {
		return reject(cmd.Requester, domain.ErrSelfPairing)
	}
	if !requester.Idle() {
		return reject(cmd.Requester, fmt.Errorf("%w: you are already in a conversation", domain.ErrAlreadyBusy))
	}
	if !target.Idle() {
		return reject(cmd.Requester, fmt.Errorf("%w: %s is already in a conversation", domain.ErrAlreadyBusy, target.DisplayName))
	}

	conv, err := c.Directory.Create(requester.ID, target.ID)
	if err != nil {
		// The registry said both were idle; the directory disagrees.
		return reject(cmd.Requester, fmt.Errorf("%w: %w", domain.ErrInvariant, err))
	}
	if err := c.pair(conv); err != nil {
		c.Directory.End(conv.ID)
		return reject(cmd.Requester, fmt.Errorf("%w: %w", domain.ErrInvariant, err))
	}
	requester, _ = c.Registry.Get(requester.ID)
	target, _ = c.Registry.Get(target.ID)

	out := Outcome{
		Notifications: []core.Notification{
			core.To(requester.ID, c.conversationStarted(conv, requester, target)),
			core.To(target.ID, c.conversationStarted(conv, target, requester)),
			c.presence(),
		},
		Effects: []effects.Effect{
			c.mirrorConversation(conv),
			c.mirrorParticipant(requester),
			c.mirrorParticipant(target),
		},
	}
	log.Info().Str("module", "orch").Str("conversation", string(conv.ID)).Str("requester", string(requester.ID)).Str("target", string(target.ID)).Msg("conversation started")
	return out
}

// pair flips both members to Paired, undoing the first flip if the second fails.
func (c *Coordinator) pair(conv domain.Conversation) error {
	a, b := conv.Participants[0], conv.Participants[1]
	if err := c.Registry.SetConversationState(a, conv.ID); err != nil {
		return err
	}
	if err := c.Registry.SetConversationState(b, conv.ID); err != nil {
		_ = c.Registry.SetConversationState(a, "")
		return err
	}
	return nil
}

func (c *Coordinator) conversationStarted(conv domain.Conversation, self, peer domain.Participant) core.ConversationStartedMsg {
	cred := c.Issuer.Issue(string(conv.ID), string(self.ID), c.tokenTTL)
	if cred.Demo {
		log.Info().Str("module", "orch").Str("pid", string(self.ID)).Str("conversation", string(conv.ID)).Msg("media credentials not configured, issuing demo credential")
	}
	return core.ConversationStartedMsg{
		Type:        core.EventConversationStarted,
		SessionID:   conv.ID,
		Peer:        peer.Presence(),
		Credential:  cred.Token,
		ChannelName: string(conv.ID),
		AppID:       cred.AppID,
		DemoMode:    cred.Demo,
		ExpiresAt:   cred.ExpiresAt,
	}
}

// member loads a conversation and checks that requester belongs to it.
func (c *Coordinator) member(requester domain.ParticipantID, id domain.ConversationID) (domain.Conversation, error) {
	conv, err := c.Directory.Get(id)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.Has(requester) {
		return domain.Conversation{}, fmt.Errorf("%w: %s", domain.ErrForbidden, id)
	}
	return conv, nil
}

// setRecording tells both members, so the non-initiating side converges
// to the same flag without holding write authority itself.
func (c *Coordinator) setRecording(cmd SetRecording) Outcome {
	if _, err := c.member(cmd.Requester, cmd.Conversation); err != nil {
		return reject(cmd.Requester, err)
	}
	conv, err := c.Directory.SetRecording(cmd.Conversation, cmd.Recording)
	if err != nil {
		return reject(cmd.Requester, err)
	}

	event := core.EventRecordingStopped
	if conv.IsRecording {
		event = core.EventRecordingStarted
	}
	msg := core.RecordingMsg{Type: event, SessionID: conv.ID}
	return Outcome{
		Notifications: lo.Map(conv.Participants[:], func(id domain.ParticipantID, _ int) core.Notification {
			return core.To(id, msg)
		}),
		Effects: []effects.Effect{c.mirrorConversation(conv)},
	}
}

func (c *Coordinator) endConversation(cmd EndConversation) Outcome {
	conv, err := c.member(cmd.Requester, cmd.Conversation)
	if err != nil {
		return reject(cmd.Requester, err)
	}
	out := c.finishConversation(conv, conv.Participants[:]...)
	out.Notifications = append(out.Notifications, c.presence())
	log.Info().Str("module", "orch").Str("conversation", string(conv.ID)).Str("by", string(cmd.Requester)).Msg("conversation ended")
	return out
}

// finishConversation returns both members to idle, tells the ones listed in
// notify, drops the conversation and tears down its media. The caller
// broadcasts presence.
func (c *Coordinator) finishConversation(conv domain.Conversation, notify ...domain.ParticipantID) Outcome {
	var out Outcome
	for _, id := range conv.Participants {
		if c.Registry.Has(id) {
			_ = c.Registry.SetConversationState(id, "")
		}
		out.Effects = append(out.Effects, c.teardownMedia(id)...)
	}

	ended, ok := c.Directory.End(conv.ID)
	if ok {
		out.Effects = append(out.Effects, c.mirrorConversationEnded(ended.ID, *ended.EndedAt))
	}

	msg := core.ConversationEndedMsg{Type: core.EventConversationEnded, SessionID: conv.ID}
	for _, id := range notify {
		p, err := c.Registry.Get(id)
		if err != nil {
			continue
		}
		out.Notifications = append(out.Notifications, core.To(id, msg))
		out.Effects = append(out.Effects, c.mirrorParticipant(p))
	}
	return out
}
