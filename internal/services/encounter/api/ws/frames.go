package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/visibility"
)

// Frame types.
const (
	frameJoin         = "sheet.join"
	frameAction       = "sheet.action"
	frameRoll         = "sheet.roll"
	frameSnapshot     = "sheet.snapshot"
	frameChanged      = "sheet.changed"
	frameAck          = "sheet.ack"
	frameRolled       = "sheet.rolled"
	frameNotification = "sheet.notification"
	frameError        = "sheet.error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinPayload struct {
	SheetID string `json:"sheet_id"`
	Locale  string `json:"locale,omitempty"`
}

// actionPayload carries every sheet action; each action reads only the
// fields it needs.
type actionPayload struct {
	Action      string               `json:"action"`
	CombatantID string               `json:"combatant_id,omitempty"`
	Modifier    string               `json:"modifier,omitempty"`
	Amount      int                  `json:"amount,omitempty"`
	Box         string               `json:"box,omitempty"`
	Slot        int                  `json:"slot,omitempty"`
	Hard        bool                 `json:"hard,omitempty"`
	From        int                  `json:"from,omitempty"`
	To          int                  `json:"to,omitempty"`
	Value       int                  `json:"value,omitempty"`
	Combatant   *combatant.Combatant `json:"combatant,omitempty"`
	Settings    *sheet.Settings      `json:"settings,omitempty"`
}

type rollPayload struct {
	Dice []string `json:"dice"`
}

type rolledPayload struct {
	Rolls   []rolledDie `json:"rolls"`
	Total   int         `json:"total"`
	Average int         `json:"average"`
}

type rolledDie struct {
	Spec    string `json:"spec"`
	Results []int  `json:"results"`
	Total   int    `json:"total"`
}

// viewPayload is a sheet together with what the settings make visible.
type viewPayload struct {
	Sheet   sheet.Sheet         `json:"sheet"`
	Columns []visibility.Column `json:"columns"`
	Widgets []visibility.Widget `json:"widgets"`
}

func newViewPayload(s sheet.Sheet) viewPayload {
	widgets := visibility.ShownWidgets(s.Settings)
	if widgets == nil {
		widgets = []visibility.Widget{}
	}
	return viewPayload{
		Sheet:   s,
		Columns: visibility.Columns(s.Settings),
		Widgets: widgets,
	}
}

type notificationPayload struct {
	SheetID     string `json:"sheet_id"`
	Kind        string `json:"kind"`
	CombatantID string `json:"combatant_id,omitempty"`
	Message     string `json:"message"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func writeWSError(peer *wsPeer, requestID string, code string, message string) error {
	return peer.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:    code,
				Message: message,
			},
		}),
	})
}

func writeAck(peer *wsPeer, requestID string, result ackResult) error {
	return peer.writeFrame(wsFrame{
		Type:      frameAck,
		RequestID: requestID,
		Payload:   mustJSON(ackEnvelope{Result: result}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: marshal frame payload: %v", err)
		return nil
	}
	return b
}
