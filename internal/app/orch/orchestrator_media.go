package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrRelayDisabled = errors.New("media relay is disabled")

type mediaEntry struct {
	conn core.MediaConnection
	conv domain.ConversationID
}

// BindMedia routes connection callbacks back into the loop as commands.
// onClosed hooks run before MediaClosed is submitted.
func (c *Coordinator) BindMedia(ctx context.Context, id domain.ParticipantID, mc core.MediaConnection, onClosed ...func()) {
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		_ = c.Submit(ctx, TrackPublished{ID: id, Ctx: trackCtx, Track: track})
	})
	mc.OnClosed(func() {
		for _, fn := range onClosed {
			fn()
		}
		_ = c.Submit(context.WithoutCancel(ctx), MediaClosed{ID: id, Conn: mc})
	})
}

// mediaAllowed checks that id is a member of channel right now.
func (c *Coordinator) mediaAllowed(id domain.ParticipantID, channel domain.ConversationID) error {
	if c.Relays == nil {
		return ErrRelayDisabled
	}
	if !c.Registry.Has(id) {
		return domain.ErrNotJoined
	}
	_, err := c.member(id, channel)
	return err
}

func (c *Coordinator) authorizeMedia(cmd AuthorizeMedia) Outcome {
	if err := c.mediaAllowed(cmd.ID, cmd.Channel); err != nil {
		return reject(cmd.ID, err)
	}
	if err := c.Issuer.Verify(cmd.Credential, string(cmd.Channel), string(cmd.ID)); err != nil {
		return reject(cmd.ID, fmt.Errorf("%w: %w", domain.ErrForbidden, err))
	}
	return Outcome{}
}

// mediaReady attaches the negotiated connection and subscribes it to the
// peer's audio if the peer is already publishing.
func (c *Coordinator) mediaReady(cmd MediaReady) Outcome {
	if err := c.mediaAllowed(cmd.ID, cmd.Channel); err != nil {
		out := reject(cmd.ID, err)
		out.Effects = []effects.Effect{closeMedia(cmd.ID, cmd.Conn)}
		return out
	}

	out := Outcome{Effects: c.teardownMedia(cmd.ID)}
	c.media[cmd.ID] = mediaEntry{conn: cmd.Conn, conv: cmd.Channel}

	conv, _ := c.Directory.Get(cmd.Channel)
	peer, _ := conv.Peer(cmd.ID)
	if track, ok := c.Relays.SrcTrack(peer); ok {
		out.Effects = append(out.Effects, c.subscribe(peer, cmd.ID, cmd.Conn, track))
	}
	log.Info().Str("module", "orch").Str("pid", string(cmd.ID)).Str("conversation", string(cmd.Channel)).Msg("media attached")
	return out
}

// trackPublished starts a relay for the speaker and feeds the peer from it.
func (c *Coordinator) trackPublished(cmd TrackPublished) Outcome {
	entry, ok := c.media[cmd.ID]
	if !ok || c.Relays == nil {
		return Outcome{}
	}
	relays := c.Relays
	start := effects.Effect{
		Name: "media.start-relay",
		Run: func(context.Context) error {
			relays.StartRelay(cmd.Ctx, cmd.ID, cmd.Track)
			return nil
		},
	}
	out := Outcome{Effects: []effects.Effect{start}}

	conv, err := c.Directory.Get(entry.conv)
	if err != nil {
		return out
	}
	peer, _ := conv.Peer(cmd.ID)
	if pe, ok := c.media[peer]; ok {
		out.Effects = append(out.Effects, c.subscribe(cmd.ID, peer, pe.conn, cmd.Track))
	}
	return out
}

func (c *Coordinator) mediaClosed(cmd MediaClosed) Outcome {
	entry, ok := c.media[cmd.ID]
	if !ok || entry.conn != cmd.Conn {
		return Outcome{}
	}
	return Outcome{Effects: c.teardownMedia(cmd.ID)}
}

// teardownMedia forgets the participant's connection and returns the effects
// that stop its relay and close it.
func (c *Coordinator) teardownMedia(id domain.ParticipantID) []effects.Effect {
	entry, ok := c.media[id]
	if !ok {
		return nil
	}
	delete(c.media, id)
	relays := c.Relays
	return []effects.Effect{
		{
			Name: "media.stop-relay",
			Run: func(context.Context) error {
				if relays != nil {
					relays.StopRelay(id)
					relays.DropSubscriber(id)
				}
				return nil
			},
		},
		closeMedia(id, entry.conn),
	}
}

// subscribe attaches src's track to dst and sends dst a renegotiation offer.
func (c *Coordinator) subscribe(src, dst domain.ParticipantID, dstConn core.MediaConnection, track *webrtc.TrackRemote) effects.Effect {
	relays, notifier := c.Relays, c.Notifier
	return effects.Effect{
		Name: "media.subscribe",
		Run: func(context.Context) error {
			if dstConn.IsClosed() {
				return nil
			}
			if err := relays.Subscribe(src, dst, dstConn, track); err != nil {
				return err
			}
			offer, err := dstConn.CreateAndSetOffer()
			if err != nil {
				return err
			}
			if notifier != nil {
				notifier.Deliver([]core.Notification{
					core.To(dst, core.SDPMsg{Type: core.EventOffer, SDP: offer.SDP}),
				})
			}
			return nil
		},
	}
}

func closeMedia(id domain.ParticipantID, conn core.MediaConnection) effects.Effect {
	return effects.Effect{
		Name: "media.close",
		Run: func(context.Context) error {
			if conn != nil && !conn.IsClosed() {
				conn.Close()
			}
			log.Debug().Str("module", "orch").Str("pid", string(id)).Msg("media connection closed")
			return nil
		},
	}
}
