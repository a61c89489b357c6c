package effects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_IsolatesFailures(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(8, time.Second)

	var mu sync.Mutex
	var ran []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
			return nil
		}
	}

	// Given a failing and a panicking effect between two healthy ones
	d.Enqueue(
		Effect{Name: "first", Run: record("first")},
		Effect{Name: "fails", Run: func(context.Context) error { return errors.New("mirror down") }},
		Effect{Name: "panics", Run: func(context.Context) error { panic("boom") }},
		Effect{Name: "last", Run: record("last")},
	)

	// When the dispatcher runs
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()
	req.Eventually(func() bool { return d.Stats().Done+d.Stats().Failed == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	// Then the healthy effects still ran, in order
	mu.Lock()
	defer mu.Unlock()
	req.Equal([]string{"first", "last"}, ran)
	req.Equal(Stats{Done: 2, Failed: 2}, d.Stats())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(1, time.Second)
	noop := Effect{Name: "noop", Run: func(context.Context) error { return nil }}

	d.Enqueue(noop, noop, noop)

	req.Equal(int64(2), d.Stats().Dropped)
}

func TestDispatcher_DrainsOnShutdown(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(4, time.Second)
	var count int
	d.Enqueue(
		Effect{Name: "a", Run: func(context.Context) error { count++; return nil }},
		Effect{Name: "b", Run: func(context.Context) error { count++; return nil }},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.NoError(d.Run(ctx))
	req.Equal(2, count)
}

func TestDispatcher_AppliesTimeout(t *testing.T) {
	req := require.New(t)
	d := NewDispatcher(1, 10*time.Millisecond)
	d.Enqueue(Effect{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req.NoError(d.Run(ctx))
	req.Equal(int64(1), d.Stats().Failed)
}
