package orch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/app/credential"
	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type notes struct {
	mu  sync.Mutex
	all []core.Notification
}

func (n *notes) Deliver(batch []core.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.all = append(n.all, batch...)
}

func (n *notes) snapshot() []core.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Notification(nil), n.all...)
}

// runEffects executes effects inline, in order.
func runEffects(t *testing.T, out Outcome) {
	t.Helper()
	for _, e := range out.Effects {
		require.NoError(t, e.Run(context.Background()), e.Name)
	}
}

func newCoordinator(t *testing.T, mirror core.Mirror) *Coordinator {
	t.Helper()
	c := New(Deps{
		Issuer:           credential.NewIssuer("duet-app", "s3cret").WithClock(func() time.Time { return epoch }),
		Mirror:           mirror,
		StrictInvariants: true,
	})
	return c
}

func join(t *testing.T, c *Coordinator, id domain.ParticipantID, name string) {
	t.Helper()
	out := c.Apply(Join{ID: id, DisplayName: name})
	require.NoError(t, out.Err)
	runEffects(t, out)
}

func pairUp(t *testing.T, c *Coordinator, a, b domain.ParticipantID) domain.ConversationID {
	t.Helper()
	out := c.Apply(StartConversation{Requester: a, Target: b})
	require.NoError(t, out.Err)
	runEffects(t, out)
	p, err := c.Registry.Get(a)
	require.NoError(t, err)
	return p.ActiveConversationID
}

func messagesFor(out Outcome, id domain.ParticipantID) []any {
	var msgs []any
	for _, n := range out.Notifications {
		if n.Audience == core.Everyone || n.To == id {
			msgs = append(msgs, n.Message)
		}
	}
	return msgs
}

func count[T any](out Outcome) int {
	n := 0
	for _, note := range out.Notifications {
		if _, ok := note.Message.(T); ok {
			n++
		}
	}
	return n
}

func TestCoordinator_Join(t *testing.T) {
	r := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.Participant) error {
			r.Equal("Alice", p.DisplayName)
			r.False(p.InConversation)
			return nil
		})
	c := newCoordinator(t, mirror)

	// When
	out := c.Apply(Join{ID: "alice", DisplayName: "  Alice  "})
	runEffects(t, out)

	// Then
	r.NoError(out.Err)
	r.Len(out.Notifications, 2)
	r.Equal(core.Everyone, out.Notifications[0].Audience)
	joined, ok := out.Notifications[1].Message.(core.JoinedPlatformMsg)
	r.True(ok)
	r.Equal(domain.ParticipantID("alice"), joined.ParticipantID)
	r.Equal([]domain.PresenceEntry{{ID: "alice", DisplayName: "Alice"}}, joined.Users)
}

func TestCoordinator_JoinRejectsBadNames(t *testing.T) {
	c := newCoordinator(t, nil)

	t.Run("should reject an empty name", func(t *testing.T) {
		out := c.Apply(Join{ID: "alice", DisplayName: "   "})

		require.ErrorIs(t, out.Err, domain.ErrDisplayNameEmpty)
		require.Len(t, out.Notifications, 1)
		require.IsType(t, core.ErrorMsg{}, out.Notifications[0].Message)
		require.False(t, c.Registry.Has("alice"))
	})

	t.Run("should reject a name above the limit", func(t *testing.T) {
		out := c.Apply(Join{ID: "alice", DisplayName: fmt.Sprintf("%065d", 0)})

		require.ErrorIs(t, out.Err, domain.ErrDisplayNameTooLong)
		require.False(t, c.Registry.Has("alice"))
	})
}

func TestCoordinator_DuplicateJoinRenamesOnly(t *testing.T) {
	r := require.New(t)

	// Given
	c := newCoordinator(t, nil)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	conv := pairUp(t, c, "alice", "bob")

	// When
	out := c.Apply(Join{ID: "alice", DisplayName: "Alicia"})

	// Then
	r.NoError(out.Err)
	p, err := c.Registry.Get("alice")
	r.NoError(err)
	r.Equal("Alicia", p.DisplayName)
	r.Equal(conv, p.ActiveConversationID)
	r.Equal(2, c.Registry.Len())
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_StartConversation(t *testing.T) {
	r := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).Return(nil).Times(4)
	mirror.EXPECT().PutConversation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, conv domain.Conversation) error {
			r.Equal([2]domain.ParticipantID{"alice", "bob"}, conv.Participants)
			r.False(conv.IsRecording)
			return nil
		})
	c := newCoordinator(t, mirror)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")

	// When
	out := c.Apply(StartConversation{Requester: "alice", Target: "bob"})
	runEffects(t, out)

	// Then
	r.NoError(out.Err)
	r.Len(out.Notifications, 3)

	toAlice, ok := out.Notifications[0].Message.(core.ConversationStartedMsg)
	r.True(ok)
	toBob, ok := out.Notifications[1].Message.(core.ConversationStartedMsg)
	r.True(ok)
	r.Equal(toAlice.SessionID, toBob.SessionID)
	r.Equal(string(toAlice.SessionID), toAlice.ChannelName)
	r.Equal(domain.ParticipantID("bob"), toAlice.Peer.ID)
	r.Equal(domain.ParticipantID("alice"), toBob.Peer.ID)
	r.NotEqual(toAlice.Credential, toBob.Credential)
	r.False(toAlice.DemoMode)
	r.Equal("duet-app", toAlice.AppID)
	r.Equal(epoch.Add(DefaultTokenTTL), toAlice.ExpiresAt)
	r.NoError(c.Issuer.Verify(toAlice.Credential, toAlice.ChannelName, "alice"))
	r.NoError(c.Issuer.Verify(toBob.Credential, toBob.ChannelName, "bob"))

	users, ok := out.Notifications[2].Message.(core.UserListMsg)
	r.True(ok)
	r.Equal(core.Everyone, out.Notifications[2].Audience)
	for _, u := range users.Users {
		r.True(u.InConversation)
	}
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_StartConversationInDemoMode(t *testing.T) {
	r := require.New(t)

	c := New(Deps{})
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")

	out := c.Apply(StartConversation{Requester: "alice", Target: "bob"})

	r.NoError(out.Err)
	msg := out.Notifications[0].Message.(core.ConversationStartedMsg)
	r.True(msg.DemoMode)
	r.Equal(credential.DemoToken, msg.Credential)
	r.Equal(credential.DemoAppID, msg.AppID)
}

func TestCoordinator_StartConversationRejections(t *testing.T) {
	c := newCoordinator(t, nil)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	join(t, c, "carol", "Carol")
	pairUp(t, c, "alice", "bob")

	cases := []struct {
		name      string
		cmd       StartConversation
		expectErr error
	}{
		{"should reject an unknown target", StartConversation{Requester: "carol", Target: "dave"}, domain.ErrNotFound},
		{"should reject an unknown requester", StartConversation{Requester: "dave", Target: "carol"}, domain.ErrNotFound},
		{"should reject pairing with oneself", StartConversation{Requester: "carol", Target: "carol"}, domain.ErrSelfPairing},
		{"should reject a busy target", StartConversation{Requester: "carol", Target: "alice"}, domain.ErrAlreadyBusy},
		{"should reject a busy requester", StartConversation{Requester: "bob", Target: "carol"}, domain.ErrAlreadyBusy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := c.Apply(tc.cmd)

			require.ErrorIs(t, out.Err, tc.expectErr)
			require.Len(t, out.Notifications, 1)
			require.Equal(t, tc.cmd.Requester, out.Notifications[0].To)
			require.Empty(t, out.Effects)
		})
	}

	require.Equal(t, 1, c.Directory.Len())
	require.NoError(t, c.CheckInvariants())
}

func TestCoordinator_Recording(t *testing.T) {
	r := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mirror.EXPECT().PutConversation(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	c := newCoordinator(t, mirror)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	join(t, c, "carol", "Carol")
	conv := pairUp(t, c, "alice", "bob")

	t.Run("should tell both members when recording starts", func(t *testing.T) {
		mirror.EXPECT().PutConversation(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, got domain.Conversation) error {
				require.True(t, got.IsRecording)
				require.NotNil(t, got.StartedAt)
				return nil
			})

		out := c.Apply(SetRecording{Requester: "bob", Conversation: conv, Recording: true})
		runEffects(t, out)

		require.NoError(t, out.Err)
		require.Len(t, out.Notifications, 2)
		for i, id := range []domain.ParticipantID{"alice", "bob"} {
			require.Equal(t, id, out.Notifications[i].To)
			require.Equal(t, core.RecordingMsg{Type: core.EventRecordingStarted, SessionID: conv}, out.Notifications[i].Message)
		}
	})

	t.Run("should reject a non member", func(t *testing.T) {
		out := c.Apply(SetRecording{Requester: "carol", Conversation: conv, Recording: false})

		require.ErrorIs(t, out.Err, domain.ErrForbidden)
		got, err := c.Directory.Get(conv)
		require.NoError(t, err)
		require.True(t, got.IsRecording)
	})

	t.Run("should reject an unknown conversation", func(t *testing.T) {
		out := c.Apply(SetRecording{Requester: "alice", Conversation: "conv_missing", Recording: true})

		require.ErrorIs(t, out.Err, domain.ErrNotFound)
	})

	t.Run("should tell both members when recording stops", func(t *testing.T) {
		out := c.Apply(SetRecording{Requester: "alice", Conversation: conv, Recording: false})

		require.NoError(t, out.Err)
		require.Equal(t, 2, count[core.RecordingMsg](out))
		require.Equal(t, core.EventRecordingStopped, out.Notifications[0].Message.(core.RecordingMsg).Type)
	})

	r.NoError(c.CheckInvariants())
}

func TestCoordinator_EndConversation(t *testing.T) {
	r := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mirror.EXPECT().PutConversation(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	c := newCoordinator(t, mirror)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	join(t, c, "carol", "Carol")
	conv := pairUp(t, c, "alice", "bob")

	// When
	forbidden := c.Apply(EndConversation{Requester: "carol", Conversation: conv})
	mirror.EXPECT().EndConversation(gomock.Any(), conv, gomock.Any()).Return(nil)
	out := c.Apply(EndConversation{Requester: "bob", Conversation: conv})
	runEffects(t, out)

	// Then
	r.ErrorIs(forbidden.Err, domain.ErrForbidden)
	r.NoError(out.Err)
	r.Equal(2, count[core.ConversationEndedMsg](out))
	r.Equal(1, count[core.UserListMsg](out))
	r.Zero(c.Directory.Len())
	for _, id := range []domain.ParticipantID{"alice", "bob"} {
		p, err := c.Registry.Get(id)
		r.NoError(err)
		r.True(p.Idle())
		r.Empty(p.ActiveConversationID)
	}

	again := c.Apply(EndConversation{Requester: "alice", Conversation: conv})
	r.ErrorIs(again.Err, domain.ErrNotFound)

	// Both are free to pair with someone else.
	next := c.Apply(StartConversation{Requester: "carol", Target: "alice"})
	r.NoError(next.Err)
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_LeaveEndsConversationForPeer(t *testing.T) {
	r := require.New(t)

	// Given
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mirror.EXPECT().PutConversation(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	c := newCoordinator(t, mirror)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	conv := pairUp(t, c, "alice", "bob")

	mirror.EXPECT().EndConversation(gomock.Any(), conv, gomock.Any()).Return(nil).Times(1)
	mirror.EXPECT().DeleteParticipant(gomock.Any(), domain.ParticipantID("alice")).Return(nil).Times(1)

	// When
	first := c.Apply(Leave{ID: "alice", Reason: LeaveDisconnect})
	runEffects(t, first)
	second := c.Apply(Leave{ID: "alice", Reason: LeaveExplicit})
	runEffects(t, second)

	// Then
	r.Equal(1, count[core.ConversationEndedMsg](first))
	r.Equal(domain.ParticipantID("bob"), first.Notifications[0].To)
	r.Equal(1, count[core.UserListMsg](first))
	users := first.Notifications[len(first.Notifications)-1].Message.(core.UserListMsg)
	r.Equal([]domain.PresenceEntry{{ID: "bob", DisplayName: "Bob"}}, users.Users)

	r.Empty(second.Notifications)
	r.Empty(second.Effects)
	r.NoError(second.Err)

	bob, err := c.Registry.Get("bob")
	r.NoError(err)
	r.True(bob.Idle())
	r.Zero(c.Directory.Len())
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_LeaveUsesDirectoryIndex(t *testing.T) {
	r := require.New(t)

	// Given a conversation whose leaver lost its registry pointer
	c := newCoordinator(t, nil)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	pairUp(t, c, "alice", "bob")
	r.NoError(c.Registry.SetConversationState("alice", ""))
	r.Error(c.CheckInvariants())

	// When
	out := c.Apply(Leave{ID: "alice", Reason: LeaveDisconnect})

	// Then the directory still ends it for the peer
	r.NoError(out.Err)
	r.Equal(1, count[core.ConversationEndedMsg](out))
	r.Equal(domain.ParticipantID("bob"), out.Notifications[0].To)
	r.Zero(c.Directory.Len())
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_LeaveWhileIdle(t *testing.T) {
	r := require.New(t)

	c := newCoordinator(t, nil)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")

	out := c.Apply(Leave{ID: "bob", Reason: LeaveExplicit})

	r.NoError(out.Err)
	r.Len(out.Notifications, 1)
	r.Equal(core.Everyone, out.Notifications[0].Audience)
	r.Equal([]any{core.NewUserList([]domain.PresenceEntry{{ID: "alice", DisplayName: "Alice"}})}, messagesFor(out, "alice"))
}

func TestCoordinator_Sweep(t *testing.T) {
	r := require.New(t)

	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockMirror(ctrl)
	mirror.EXPECT().UpsertParticipant(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mirror.EXPECT().PruneParticipants(gomock.Any(), []domain.ParticipantID{"alice"}).Return(3, nil)
	c := newCoordinator(t, mirror)
	join(t, c, "alice", "Alice")

	out := c.Apply(Sweep{})
	runEffects(t, out)

	r.Empty(out.Notifications)
	r.Len(out.Effects, 1)
}

func TestCoordinator_RunDeliversThenEnqueues(t *testing.T) {
	r := require.New(t)

	// Given
	sink := &notes{}
	dispatcher := effects.NewDispatcher(16, time.Second)
	c := New(Deps{Notifier: sink, Effects: dispatcher, StrictInvariants: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()
	go func() { _ = dispatcher.Run(ctx) }()

	// When
	r.NoError(c.Submit(ctx, Join{ID: "alice", DisplayName: "Alice"}))
	out, err := c.Do(ctx, Join{ID: "bob", DisplayName: "Bob"})

	// Then
	r.NoError(err)
	r.NoError(out.Err)
	r.Len(sink.snapshot(), 4)
	r.Eventually(func() bool { return dispatcher.Stats().Done == 2 }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_ConcurrentStartsNeverDoubleBook(t *testing.T) {
	r := require.New(t)

	// Given
	c := New(Deps{Notifier: &notes{}, StrictInvariants: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	ids := make([]domain.ParticipantID, 8)
	for i := range ids {
		ids[i] = domain.ParticipantID(fmt.Sprintf("p%d", i))
		_, err := c.Do(ctx, Join{ID: ids[i], DisplayName: string(ids[i])})
		r.NoError(err)
	}

	// When every participant tries to pair with every other one at once
	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			wg.Add(1)
			go func(a, b domain.ParticipantID) {
				defer wg.Done()
				out, err := c.Do(ctx, StartConversation{Requester: a, Target: b})
				if err == nil && out.Err == nil {
					mu.Lock()
					started++
					mu.Unlock()
				}
			}(a, b)
		}
	}
	wg.Wait()
	cancel()

	// Then
	r.Equal(len(ids)/2, started)
	r.Equal(len(ids)/2, c.Directory.Len())
	r.NoError(c.CheckInvariants())
}

func TestCoordinator_PresenceMatchesRegistry(t *testing.T) {
	r := require.New(t)

	c := newCoordinator(t, nil)
	join(t, c, "alice", "Alice")
	join(t, c, "bob", "Bob")
	join(t, c, "carol", "Carol")
	pairUp(t, c, "carol", "alice")

	out := c.Apply(Leave{ID: "bob", Reason: LeaveExplicit})

	users := out.Notifications[len(out.Notifications)-1].Message.(core.UserListMsg)
	r.Equal(c.Registry.Snapshot(), users.Users)
	r.Len(users.Users, 2)
	for _, u := range users.Users {
		r.True(u.InConversation)
	}
}
