package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub is the broadcast layer: it maps participant ids to live connections
// and fans coordinator notifications out without blocking.
type Hub struct {
	policy app.Policy

	mu    sync.RWMutex
	conns map[domain.ParticipantID]core.SignalConnection
}

func NewHub(policy app.Policy) *Hub {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &Hub{
		policy: policy,
		conns:  make(map[domain.ParticipantID]core.SignalConnection),
	}
}

func (h *Hub) Register(id domain.ParticipantID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
}

// Unregister removes id only if it is still bound to conn.
func (h *Hub) Unregister(id domain.ParticipantID, conn core.SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[id] == conn {
		delete(h.conns, id)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Deliver sends each notification in order. Messages are encoded once per
// notification regardless of the audience size.
func (h *Hub) Deliver(notes []core.Notification) {
	for _, n := range notes {
		frame, err := json.Marshal(n.Message)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("notification marshal")
			continue
		}
		switch n.Audience {
		case core.Everyone:
			h.mu.RLock()
			targets := make(map[domain.ParticipantID]core.SignalConnection, len(h.conns))
			for id, c := range h.conns {
				targets[id] = c
			}
			h.mu.RUnlock()
			for id, c := range targets {
				h.send(id, c, frame, n.Message)
			}
		case core.Targeted:
			h.mu.RLock()
			c, ok := h.conns[n.To]
			h.mu.RUnlock()
			if !ok {
				log.Debug().Str("module", "signal").Str("pid", string(n.To)).Msg("no connection for notification")
				continue
			}
			h.send(n.To, c, frame, n.Message)
		}
	}
}

func (h *Hub) send(id domain.ParticipantID, c core.SignalConnection, frame core.Frame, msg any) {
	err := c.TrySend(frame)
	if err == nil || errors.Is(err, ErrConnClosed) {
		return
	}
	switch h.policy.OnBackPressure(id, msg) {
	case app.KickMember:
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(id)).Msg("send buffer full, disconnecting client")
		c.Close()
	case app.DropFrame:
		log.Warn().Err(err).Str("module", "signal").Str("pid", string(id)).Msg("send buffer full, frame dropped")
	case app.NoAction:
	}
}
