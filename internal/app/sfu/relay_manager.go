package sfu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoRelay = errors.New("no relay for source")

// RelayManager owns one relay per publishing participant.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[domain.ParticipantID]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[domain.ParticipantID]*Relay),
	}
}

// StartRelay creates a relay for src and starts forwarding. An existing relay
// for the same participant is replaced.
func (m *RelayManager) StartRelay(ctx context.Context, src domain.ParticipantID, track PacketSource) {
	logger := log.With().Str("module", "sfu").Str("src", string(src)).Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(track, cancel)

	m.mu.Lock()
	if old, ok := m.relays[src]; ok {
		logger.Info().Msg("replacing existing relay")
		old.markAllDelete()
		old.cancel()
	}
	m.relays[src] = relay
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)
}

// AddSubscriber attaches sink to the relay of src on behalf of dst.
func (m *RelayManager) AddSubscriber(src, dst domain.ParticipantID, sink PacketSink) error {
	m.mu.RLock()
	relay, ok := m.relays[src]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRelay, src)
	}
	relay.AddOutTrack(dst, NewOutTrack(sink))
	return nil
}

// Subscribe adds a local copy of track to dstConn and feeds it from the relay
// of src. The caller renegotiates dstConn afterwards.
func (m *RelayManager) Subscribe(src, dst domain.ParticipantID, dstConn core.MediaConnection, track *webrtc.TrackRemote) error {
	local, err := webrtc.NewTrackLocalStaticRTP(track.Codec().RTPCodecCapability, "audio", string(src))
	if err != nil {
		return err
	}
	sender, err := dstConn.AddLocalTrack(local)
	if err != nil {
		return err
	}
	go drainRTCP(sender)

	if err := m.AddSubscriber(src, dst, local); err != nil {
		return err
	}
	log.Info().Str("module", "sfu").Str("src", string(src)).Str("dst", string(dst)).Msg("subscribed")
	return nil
}

// DropSubscriber detaches dst from every relay.
func (m *RelayManager) DropSubscriber(dst domain.ParticipantID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, relay := range m.relays {
		if ot, ok := relay.outTrack(dst); ok {
			ot.MarkDelete()
		}
	}
}

// StopRelay stops the relay of src and removes it.
func (m *RelayManager) StopRelay(src domain.ParticipantID) {
	m.mu.Lock()
	relay, ok := m.relays[src]
	if ok {
		delete(m.relays, src)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	relay.markAllDelete()
	relay.cancel()
	log.Info().Str("module", "sfu").Str("src", string(src)).Msg("relay stopped")
}

func (m *RelayManager) HasRelay(src domain.ParticipantID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[src]
	return ok
}

// SrcTrack returns the remote track a relay was started from.
func (m *RelayManager) SrcTrack(src domain.ParticipantID) (*webrtc.TrackRemote, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	relay, ok := m.relays[src]
	if !ok || relay.Info == nil {
		return nil, false
	}
	return relay.Info, true
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
