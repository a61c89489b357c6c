package signal

import "github.com/dkeye/Duet/internal/core"

func (ctl *SignalWSController) handlePing(conn core.SignalConnection) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: core.EventPong})
}
