package app

import (
	"testing"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDirectory_Create_RejectsBusyParticipants(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()

	// Given a conversation between a and b
	conv, err := dir.Create("a", "b")
	req.NoError(err)
	req.Equal([2]domain.ParticipantID{"a", "b"}, conv.Participants)
	req.False(conv.IsRecording)

	// When either of them is paired again
	_, err = dir.Create("c", "b")

	// Then the directory refuses
	req.ErrorIs(err, domain.ErrParticipantBusy)
	_, err = dir.Create("a", "c")
	req.ErrorIs(err, domain.ErrParticipantBusy)
	_, err = dir.Create("c", "c")
	req.ErrorIs(err, domain.ErrParticipantBusy)
	req.Equal(1, dir.Len())
}

func TestDirectory_End_IsIdempotent(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	conv, err := dir.Create("a", "b")
	req.NoError(err)

	ended, ok := dir.End(conv.ID)
	req.True(ok)
	req.NotNil(ended.EndedAt)

	_, ok = dir.End(conv.ID)
	req.False(ok)

	_, err = dir.Get(conv.ID)
	req.ErrorIs(err, domain.ErrNotFound)
	_, busy := dir.ConversationOf("a")
	req.False(busy)

	// Both members are free again
	_, err = dir.Create("a", "b")
	req.NoError(err)
}

func TestDirectory_SetRecording(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	conv, err := dir.Create("a", "b")
	req.NoError(err)

	on, err := dir.SetRecording(conv.ID, true)
	req.NoError(err)
	req.True(on.IsRecording)
	req.NotNil(on.StartedAt)
	req.Nil(on.EndedAt)

	off, err := dir.SetRecording(conv.ID, false)
	req.NoError(err)
	req.False(off.IsRecording)
	req.NotNil(off.EndedAt)

	_, err = dir.SetRecording("conv_missing", true)
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestDirectory_ConversationOf(t *testing.T) {
	req := require.New(t)
	dir := NewDirectory()
	conv, err := dir.Create("a", "b")
	req.NoError(err)

	got, ok := dir.ConversationOf("b")
	req.True(ok)
	req.Equal(conv.ID, got.ID)
	req.Len(dir.List(), 1)
}
