package orch

import (
	"context"
	"time"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/credential"
	"github.com/dkeye/Duet/internal/app/effects"
	"github.com/dkeye/Duet/internal/app/sfu"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultTokenTTL = time.Hour

// EffectQueue accepts secondary effects; it must never block.
type EffectQueue interface {
	Enqueue(effects ...effects.Effect)
}

// Outcome is the result of one transition: what to tell whom, what to do
// afterwards, and the validation error reported to the requester, if any.
type Outcome struct {
	Notifications []core.Notification
	Effects       []effects.Effect
	Err           error
}

type Deps struct {
	Registry  *app.Registry
	Directory *app.Directory
	Issuer    *credential.Issuer
	Mirror    core.Mirror
	Notifier  core.Notifier
	Effects   EffectQueue
	// Relays is nil when the built-in media relay is disabled.
	Relays *sfu.RelayManager

	TokenTTL         time.Duration
	InboxSize        int
	SweepInterval    time.Duration
	StrictInvariants bool
}

type envelope struct {
	cmd   Command
	reply chan Outcome
}

// Coordinator is the only writer of the registry and the directory. All
// mutations happen on the goroutine running Run, one command at a time.
type Coordinator struct {
	Registry  *app.Registry
	Directory *app.Directory
	Issuer    *credential.Issuer
	Mirror    core.Mirror
	Notifier  core.Notifier
	Effects   EffectQueue
	Relays    *sfu.RelayManager

	tokenTTL      time.Duration
	sweepInterval time.Duration
	strict        bool

	inbox chan envelope
	media map[domain.ParticipantID]mediaEntry
}

func New(d Deps) *Coordinator {
	if d.Registry == nil {
		d.Registry = app.NewRegistry()
	}
	if d.Directory == nil {
		d.Directory = app.NewDirectory()
	}
	if d.Issuer == nil {
		d.Issuer = credential.NewIssuer("", "")
	}
	if d.Mirror == nil {
		d.Mirror = core.NopMirror{}
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = DefaultTokenTTL
	}
	if d.InboxSize <= 0 {
		d.InboxSize = 256
	}
	return &Coordinator{
		Registry:      d.Registry,
		Directory:     d.Directory,
		Issuer:        d.Issuer,
		Mirror:        d.Mirror,
		Notifier:      d.Notifier,
		Effects:       d.Effects,
		Relays:        d.Relays,
		tokenTTL:      d.TokenTTL,
		sweepInterval: d.SweepInterval,
		strict:        d.StrictInvariants,
		inbox:         make(chan envelope, d.InboxSize),
		media:         make(map[domain.ParticipantID]mediaEntry),
	}
}

// Run processes commands until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	log.Info().Str("module", "orch").Bool("demo_credentials", !c.Issuer.Configured()).Msg("coordinator started")

	var tick <-chan time.Time
	if c.sweepInterval > 0 {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		tick = ticker.C
		c.process(Sweep{})
	}

	for {
		select {
		case env := <-c.inbox:
			out := c.process(env.cmd)
			if env.reply != nil {
				env.reply <- out
			}
		case <-tick:
			c.process(Sweep{})
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("coordinator stopped")
			return nil
		}
	}
}

// Submit queues cmd without waiting for it to be processed.
func (c *Coordinator) Submit(ctx context.Context, cmd Command) error {
	select {
	case c.inbox <- envelope{cmd: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues cmd and waits for its outcome.
func (c *Coordinator) Do(ctx context.Context, cmd Command) (Outcome, error) {
	reply := make(chan Outcome, 1)
	select {
	case c.inbox <- envelope{cmd: cmd, reply: reply}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// process applies cmd, then hands its notifications to the broadcast layer
// and its effects to the dispatcher, in that order.
func (c *Coordinator) process(cmd Command) Outcome {
	out := c.Apply(cmd)
	if out.Err != nil {
		ev := log.Info()
		if !domain.IsValidation(out.Err) {
			ev = log.Warn()
		}
		ev.Err(out.Err).Str("module", "orch").Str("command", cmd.command()).Msg("command rejected")
	}
	if c.Notifier != nil && len(out.Notifications) > 0 {
		c.Notifier.Deliver(out.Notifications)
	}
	if c.Effects != nil && len(out.Effects) > 0 {
		c.Effects.Enqueue(out.Effects...)
	}
	if c.strict {
		if err := c.CheckInvariants(); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("command", cmd.command()).Msg("invariant violation")
		}
	}
	return out
}

// Apply is the transition function. It must only be called from one
// goroutine at a time; Run guarantees that.
func (c *Coordinator) Apply(cmd Command) Outcome {
	switch cmd := cmd.(type) {
	case Join:
		return c.join(cmd)
	case StartConversation:
		return c.startConversation(cmd)
	case SetRecording:
		return c.setRecording(cmd)
	case EndConversation:
		return c.endConversation(cmd)
	case Leave:
		return c.leave(cmd)
	case Sweep:
		return c.sweep()
	case AuthorizeMedia:
		return c.authorizeMedia(cmd)
	case MediaReady:
		return c.mediaReady(cmd)
	case TrackPublished:
		return c.trackPublished(cmd)
	case MediaClosed:
		return c.mediaClosed(cmd)
	}
	log.Error().Str("module", "orch").Str("command", cmd.command()).Msg("unhandled command")
	return Outcome{}
}

func reject(to domain.ParticipantID, err error) Outcome {
	return Outcome{
		Notifications: []core.Notification{core.To(to, core.NewError(err))},
		Err:           err,
	}
}

func (c *Coordinator) presence() core.Notification {
	return core.All(core.NewUserList(c.Registry.Snapshot()))
}
