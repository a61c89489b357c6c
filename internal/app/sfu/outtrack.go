package sfu

import "sync/atomic"

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// OutTrack is a single outgoing copy of a speaker's audio for one subscriber.
type OutTrack struct {
	Sink  PacketSink
	state atomic.Int32
}

func NewOutTrack(sink PacketSink) *OutTrack {
	return &OutTrack{Sink: sink}
}

func (ot *OutTrack) GetState() TrackState { return TrackState(ot.state.Load()) }

func (ot *OutTrack) MarkOk() { ot.state.Store(int32(TrackStateOk)) }
func (ot *OutTrack) MarkMuted() { ot.state.Store(int32(TrackStateMuted)) }
func (ot *OutTrack) MarkDelete() { ot.state.Store(int32(TrackStateDelete)) }
