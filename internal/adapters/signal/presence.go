package signal

import (
	"context"
	"errors"

	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrRateLimited = errors.New("too many conversation requests, slow down")

// submit forwards a command to the coordinator; the coordinator answers the
// client itself through the hub.
func (ctl *SignalWSController) submit(ctx context.Context, cl *client, cmd orch.Command) {
	if err := ctl.Coord.Submit(ctx, cmd); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("submit")
	}
}

func (ctl *SignalWSController) handleJoin(ctx context.Context, cl *client, in inbound) {
	log.Info().Str("module", "signal").Str("pid", string(cl.pid)).Msg("join")
	ctl.submit(ctx, cl, orch.Join{ID: cl.pid, DisplayName: in.displayName()})
}

func (ctl *SignalWSController) handleStartConversation(ctx context.Context, cl *client, in inbound) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(cl.pid) {
		log.Info().Str("module", "signal").Str("pid", string(cl.pid)).Msg("start-conversation rate limited")
		ctl.sendError(cl.conn, ErrRateLimited)
		return
	}
	ctl.submit(ctx, cl, orch.StartConversation{
		Requester: cl.pid,
		Target:    domain.ParticipantID(in.target()),
	})
}

func (ctl *SignalWSController) handleRecording(ctx context.Context, cl *client, in inbound, recording bool) {
	ctl.submit(ctx, cl, orch.SetRecording{
		Requester:    cl.pid,
		Conversation: domain.ConversationID(in.session()),
		Recording:    recording,
	})
}

func (ctl *SignalWSController) handleEndConversation(ctx context.Context, cl *client, in inbound) {
	ctl.submit(ctx, cl, orch.EndConversation{
		Requester:    cl.pid,
		Conversation: domain.ConversationID(in.session()),
	})
}

// handleLeave removes the participant but keeps the connection open, so the
// client may join again.
func (ctl *SignalWSController) handleLeave(ctx context.Context, cl *client) {
	log.Info().Str("module", "signal").Str("pid", string(cl.pid)).Msg("leave")
	if m := cl.setMedia(nil); m != nil {
		m.Close()
	}
	ctl.submit(ctx, cl, orch.Leave{ID: cl.pid, Reason: orch.LeaveExplicit})
}
