package signal

import (
	"context"
	"errors"

	"github.com/dkeye/Duet/internal/adapters/rtc"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoMedia = errors.New("no media connection, send an offer first")

func (ctl *SignalWSController) sendCandidate(c core.SignalConnection, ci webrtc.ICECandidateInit) {
	resp := core.CandidateMsg{Type: core.EventCandidate, Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	ctl.sendJSON(c, resp)
}

// handleOffer authorizes the offer against the conversation credential, then
// negotiates a server-side peer connection. A second offer on a live
// connection is treated as client renegotiation.
func (ctl *SignalWSController) handleOffer(ctx context.Context, cl *client, in inbound) {
	channel := domain.ConversationID(in.session())
	out, err := ctl.Coord.Do(ctx, orch.AuthorizeMedia{ID: cl.pid, Channel: channel, Credential: in.Credential})
	if err != nil || out.Err != nil {
		return
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: in.SDP}

	if m := cl.currentMedia(); m != nil && !m.IsClosed() {
		answer, err := m.ApplyOfferAndCreateAnswer(offer)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("webrtc renegotiate")
			ctl.sendError(cl.conn, err)
			return
		}
		ctl.sendJSON(cl.conn, core.SDPMsg{Type: core.EventAnswer, SDP: answer.SDP})
		return
	}

	wc, err := rtc.NewWebRTCConnection(ctl.opts.WebRTC, cl.pid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		ctl.sendError(cl.conn, err)
		return
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(cl.conn, ci)
	})
	ctl.Coord.BindMedia(ctx, cl.pid, wc, func() { cl.clearMedia(wc) })

	if err := wc.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		wc.Close()
		return
	}
	answer, err := wc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("webrtc apply offer")
		ctl.sendError(cl.conn, err)
		wc.Close()
		return
	}
	if old := cl.setMedia(wc); old != nil {
		old.Close()
	}
	ctl.sendJSON(cl.conn, core.SDPMsg{Type: core.EventAnswer, SDP: answer.SDP})
	ctl.submit(ctx, cl, orch.MediaReady{ID: cl.pid, Channel: channel, Conn: wc})
}

// handleAnswer completes a server-initiated renegotiation.
func (ctl *SignalWSController) handleAnswer(cl *client, in inbound) {
	m := cl.currentMedia()
	if m == nil {
		ctl.sendError(cl.conn, ErrNoMedia)
		return
	}
	if err := m.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: in.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("webrtc apply answer")
		ctl.sendError(cl.conn, err)
	}
}

func (ctl *SignalWSController) handleCandidate(cl *client, in inbound) {
	m := cl.currentMedia()
	if m == nil {
		log.Debug().Str("module", "signal").Str("pid", string(cl.pid)).Msg("candidate: no media connection")
		return
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     in.Candidate,
		SDPMid:        in.SDPMid,
		SDPMLineIndex: in.SDPMLineIndex,
	}
	if err := m.AddICECandidate(cand); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("add ice candidate")
	}
}
