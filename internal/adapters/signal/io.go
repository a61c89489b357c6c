package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var errBadPayload = errors.New("bad payload")

// inbound is the union of every client event payload. Events are flat JSON
// objects discriminated by type.
type inbound struct {
	Type string `json:"type"`

	Name        string `json:"name"`
	DisplayName string `json:"displayName"`

	TargetID     string `json:"targetId"`
	TargetUserID string `json:"targetUserId"`

	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`

	SDP        string `json:"sdp"`
	Credential string `json:"credential"`

	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

func (in inbound) displayName() string {
	if in.DisplayName != "" {
		return in.DisplayName
	}
	return in.Name
}

func (in inbound) target() string {
	if in.TargetID != "" {
		return in.TargetID
	}
	return in.TargetUserID
}

func (in inbound) session() string {
	if in.SessionID != "" {
		return in.SessionID
	}
	return in.ConversationID
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Info().Err(err).Str("module", "signal").Msg("ping failed")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cl *client) {
	defer func() {
		log.Info().Str("module", "signal").Str("pid", string(cl.pid)).Msg("readPump closing")
		cl.conn.Close()
		ctl.disconnect(ctx, cl)
	}()

	ws := cl.conn.conn
	ws.SetReadLimit(ctl.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("readPump read error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		ctl.handleSignal(ctx, cl, data)
		if ctx.Err() != nil {
			return
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, cl *client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		log.Info().Err(err).Str("module", "signal").Str("pid", string(cl.pid)).Msg("bad json")
		ctl.sendError(cl.conn, errBadPayload)
		return
	}

	switch in.Type {
	case core.EventJoinPlatform:
		ctl.handleJoin(ctx, cl, in)
	case core.EventStartConversation:
		ctl.handleStartConversation(ctx, cl, in)
	case core.EventStartRecording:
		ctl.handleRecording(ctx, cl, in, true)
	case core.EventStopRecording:
		ctl.handleRecording(ctx, cl, in, false)
	case core.EventEndConversation:
		ctl.handleEndConversation(ctx, cl, in)
	case core.EventLeavePlatform:
		ctl.handleLeave(ctx, cl)
	case core.EventPing:
		ctl.handlePing(cl.conn)
	case core.EventOffer:
		ctl.handleOffer(ctx, cl, in)
	case core.EventAnswer:
		ctl.handleAnswer(cl, in)
	case core.EventCandidate:
		ctl.handleCandidate(cl, in)
	default:
		log.Info().Str("module", "signal").Str("type", in.Type).Msg("unknown signal")
		ctl.sendError(cl.conn, errors.New("unknown event "+in.Type))
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, err error) {
	ctl.sendJSON(c, core.NewError(err))
}
