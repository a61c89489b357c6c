// Package effects runs the secondary effects of coordinator transitions
// (mirror writes, media teardown) away from the coordinator loop. Every
// effect is failure-isolated: an error or panic is logged and the next
// effect runs.
package effects

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

// Effect is a best-effort side effect of a committed transition.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

type Stats struct {
	Done    int64
	Failed  int64
	Dropped int64
}

type Dispatcher struct {
	queue   chan Effect
	timeout time.Duration

	done    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

func NewDispatcher(size int, timeout time.Duration) *Dispatcher {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{queue: make(chan Effect, size), timeout: timeout}
}

// Enqueue never blocks: when the queue is full the effect is dropped.
func (d *Dispatcher) Enqueue(effects ...Effect) {
	for _, e := range effects {
		select {
		case d.queue <- e:
		default:
			d.dropped.Add(1)
			log.Warn().Str("module", "effects").Str("effect", e.Name).Msg("queue full, effect dropped")
		}
	}
}

// Run executes effects in arrival order until ctx is done, then drains what is queued.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-d.queue:
			d.execute(ctx, e)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			d.execute(context.Background(), e)
		default:
			return
		}
	}
}

func (d *Dispatcher) execute(parent context.Context, e Effect) {
	ctx, cancel := context.WithTimeout(parent, d.timeout)
	defer cancel()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = e.Run(ctx) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err != nil {
		d.failed.Add(1)
		log.Warn().Err(err).Str("module", "effects").Str("effect", e.Name).Msg("effect failed")
		return
	}
	d.done.Add(1)
	log.Debug().Str("module", "effects").Str("effect", e.Name).Msg("effect done")
}

func (d *Dispatcher) Stats() Stats {
	return Stats{Done: d.done.Load(), Failed: d.failed.Load(), Dropped: d.dropped.Load()}
}
