package sfu

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type chanSource struct{ ch chan *rtp.Packet }

func (s *chanSource) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-s.ch
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, nil, nil
}

type recordingSink struct {
	mu   sync.Mutex
	seqs []uint16
	err  error
}

func (s *recordingSink) WriteRTP(p *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seqs = append(s.seqs, p.SequenceNumber)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seqs)
}

func packet(seq uint16) *rtp.Packet {
	return &rtp.Packet{Header: rtp.Header{SequenceNumber: seq}}
}

func TestRelayManager_ForwardsToSubscriber(t *testing.T) {
	r := require.New(t)

	// Given
	m := NewRelayManager()
	src := &chanSource{ch: make(chan *rtp.Packet)}
	sink := &recordingSink{}
	alice, bob := domain.ParticipantID("alice"), domain.ParticipantID("bob")

	// When
	m.StartRelay(context.Background(), alice, src)
	r.NoError(m.AddSubscriber(alice, bob, sink))
	src.ch <- packet(1)
	src.ch <- packet(2)

	// Then
	r.True(m.HasRelay(alice))
	r.Eventually(func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	close(src.ch)
}

func TestRelayManager_AddSubscriberWithoutRelay(t *testing.T) {
	r := require.New(t)

	m := NewRelayManager()
	err := m.AddSubscriber("alice", "bob", &recordingSink{})

	r.ErrorIs(err, ErrNoRelay)
}

func TestRelayManager_DropSubscriberStopsForwarding(t *testing.T) {
	r := require.New(t)

	// Given
	m := NewRelayManager()
	src := &chanSource{ch: make(chan *rtp.Packet)}
	sink := &recordingSink{}
	m.StartRelay(context.Background(), "alice", src)
	r.NoError(m.AddSubscriber("alice", "bob", sink))
	src.ch <- packet(1)
	r.Eventually(func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	// When
	m.DropSubscriber("bob")
	src.ch <- packet(2)
	src.ch <- packet(3)

	// Then
	r.Equal(1, sink.count())
	close(src.ch)
}

func TestRelay_WriteErrorRemovesOutTrack(t *testing.T) {
	r := require.New(t)

	relay := NewRelay(&chanSource{}, func() {})
	broken := &recordingSink{err: errors.New("closed pipe")}
	relay.AddOutTrack("bob", NewOutTrack(broken))
	logger := zerologNop()

	relay.forward(packet(1), &logger)

	r.Zero(relay.Subscribers())
}

func TestRelay_MutedTrackIsSkipped(t *testing.T) {
	r := require.New(t)

	relay := NewRelay(&chanSource{}, func() {})
	sink := &recordingSink{}
	ot := NewOutTrack(sink)
	ot.MarkMuted()
	relay.AddOutTrack("bob", ot)
	logger := zerologNop()

	relay.forward(packet(1), &logger)
	ot.MarkOk()
	relay.forward(packet(2), &logger)

	r.Equal([]uint16{2}, sink.seqs)
	r.Equal(1, relay.Subscribers())
}

func TestRelayManager_StopRelay(t *testing.T) {
	r := require.New(t)

	m := NewRelayManager()
	src := &chanSource{ch: make(chan *rtp.Packet)}
	m.StartRelay(context.Background(), "alice", src)

	m.StopRelay("alice")
	m.StopRelay("alice")

	r.False(m.HasRelay("alice"))
	_, ok := m.SrcTrack("alice")
	r.False(ok)
	close(src.ch)
}

func zerologNop() zerolog.Logger { return zerolog.Nop() }
