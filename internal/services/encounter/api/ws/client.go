package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/deathsave"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/dice"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/modifier"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/session"
)

// client is the state of one WebSocket connection. Frames are handled on
// the connection's read loop; only the change feed writes from elsewhere.
type client struct {
	store session.Store
	peer  *wsPeer
	opts  Options

	dice *dice.Roller

	mu      sync.Mutex
	locale  string
	session *session.Session
}

func newClient(store session.Store, peer *wsPeer, opts Options) *client {
	return &client{store: store, peer: peer, opts: opts}
}

func (c *client) currentLocale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

func (c *client) currentSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *client) close() {
	c.mu.Lock()
	current := c.session
	c.session = nil
	c.mu.Unlock()
	if current == nil {
		return
	}
	if err := current.Close(); err != nil {
		log.Printf("ws: close session: %v", err)
	}
}

func (c *client) roller() (*dice.Roller, error) {
	if c.dice != nil {
		return c.dice, nil
	}
	roller, err := c.opts.NewRoller()
	if err != nil {
		return nil, err
	}
	c.dice = roller
	return roller, nil
}

func (c *client) handleJoin(ctx context.Context, frame wsFrame) {
	var payload joinPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid join payload")
		return
	}
	c.close()

	c.mu.Lock()
	c.locale = strings.TrimSpace(payload.Locale)
	c.mu.Unlock()

	opts := session.Options{
		AllowNegativeHealth: c.opts.AllowNegativeHealth,
		RollbackOnFailure:   c.opts.RollbackOnFailure,
		OnReceive:           c.pushChanged,
	}
	if roller, err := c.roller(); err == nil {
		opts.Roller = roller
	} else {
		log.Printf("ws: build dice roller: %v", err)
	}

	next := session.New(c.store, session.NotifierFunc(c.pushNotification), opts)
	if err := next.Open(ctx, payload.SheetID); err != nil {
		writeDomainError(c.peer, frame.RequestID, c.currentLocale(), err)
		return
	}
	c.mu.Lock()
	c.session = next
	c.mu.Unlock()

	current, ok := next.Sheet()
	if !ok {
		_ = writeWSError(c.peer, frame.RequestID, "FAILED_PRECONDITION", "sheet closed")
		return
	}
	_ = c.peer.writeFrame(wsFrame{
		Type:      frameSnapshot,
		RequestID: frame.RequestID,
		Payload:   mustJSON(newViewPayload(current)),
	})
}

func (c *client) handleAction(ctx context.Context, frame wsFrame) {
	current := c.currentSession()
	if current == nil {
		_ = writeWSError(c.peer, frame.RequestID, "FAILED_PRECONDITION", "join a sheet first")
		return
	}
	var payload actionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid action payload")
		return
	}
	if err := c.runAction(ctx, current, payload); err != nil {
		var invalid invalidActionError
		if errors.As(err, &invalid) {
			_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", invalid.Error())
			return
		}
		writeDomainError(c.peer, frame.RequestID, c.currentLocale(), err)
		return
	}
	_ = writeAck(c.peer, frame.RequestID, ackResult{Status: "ok"})
}

func (c *client) runAction(ctx context.Context, s *session.Session, payload actionPayload) error {
	name := strings.ToLower(strings.TrimSpace(payload.Action))
	switch name {
	case "apply_health", "apply_armor":
		action, err := modifier.ParseAction(payload.Modifier)
		if err != nil {
			return invalidActionError{message: err.Error()}
		}
		if payload.Amount < 0 {
			return invalidActionError{message: "amount must not be negative"}
		}
		if name == "apply_armor" {
			return s.ApplyArmor(ctx, payload.CombatantID, action, payload.Amount)
		}
		return s.ApplyHealth(ctx, payload.CombatantID, action, payload.Amount)
	case "toggle_death_save":
		box := deathsave.Box(payload.Box)
		if box != deathsave.BoxFail && box != deathsave.BoxSave {
			return invalidActionError{message: "box must be fail or save"}
		}
		return s.ToggleDeathSave(ctx, payload.CombatantID, box, payload.Slot)
	case "update_combatant":
		if payload.Combatant == nil {
			return invalidActionError{message: "combatant is required"}
		}
		return s.UpdateCombatant(ctx, *payload.Combatant)
	case "next":
		return s.Next(ctx)
	case "previous":
		return s.Previous(ctx)
	case "reset":
		return s.Reset(ctx, payload.Hard)
	case "update_settings":
		if payload.Settings == nil {
			return invalidActionError{message: "settings are required"}
		}
		return s.UpdateSettings(ctx, *payload.Settings)
	case "add_combatant":
		if payload.Combatant == nil {
			return invalidActionError{message: "combatant is required"}
		}
		return s.AddCombatant(ctx, *payload.Combatant)
	case "remove_combatant":
		return s.RemoveCombatant(ctx, payload.CombatantID)
	case "move_combatant":
		return s.MoveCombatant(ctx, payload.From, payload.To)
	case "set_initiative":
		return s.SetInitiative(ctx, payload.CombatantID, payload.Value)
	case "roll_initiative":
		return s.RollInitiative(ctx, payload.CombatantID)
	default:
		return invalidActionError{message: "unsupported action"}
	}
}

func (c *client) handleRoll(frame wsFrame) {
	var payload rollPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = writeWSError(c.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid roll payload")
		return
	}
	// Invalid terms are dropped; only an empty result is an error.
	specs := dice.Decompose(payload.Dice)
	if len(specs) == 0 {
		err := apperrors.WithMetadata(apperrors.CodeDiceInvalidSpec, "no valid dice expression", map[string]string{
			"Expression": strings.Join(payload.Dice, " "),
		})
		writeDomainError(c.peer, frame.RequestID, c.currentLocale(), err)
		return
	}
	roller, err := c.roller()
	if err != nil {
		writeDomainError(c.peer, frame.RequestID, c.currentLocale(), err)
		return
	}
	result, err := roller.Roll(specs)
	if err != nil {
		_ = writeWSError(c.peer, frame.RequestID, string(apperrors.CodeDiceInvalidSpec), err.Error())
		return
	}

	rolled := rolledPayload{
		Rolls:   make([]rolledDie, 0, len(result.Rolls)),
		Total:   result.Total,
		Average: dice.Average(specs),
	}
	for _, roll := range result.Rolls {
		rolled.Rolls = append(rolled.Rolls, rolledDie{
			Spec:    roll.Spec.String(),
			Results: roll.Results,
			Total:   roll.Total,
		})
	}
	_ = c.peer.writeFrame(wsFrame{
		Type:      frameRolled,
		RequestID: frame.RequestID,
		Payload:   mustJSON(rolled),
	})
}

func (c *client) pushChanged(changed sheet.Sheet) {
	if err := c.peer.writeFrame(wsFrame{
		Type:    frameChanged,
		Payload: mustJSON(newViewPayload(changed)),
	}); err != nil {
		log.Printf("ws: push sheet %s: %v", changed.ID, err)
	}
}

func (c *client) pushNotification(n session.Notification) {
	_ = c.peer.writeFrame(wsFrame{
		Type: frameNotification,
		Payload: mustJSON(notificationPayload{
			SheetID:     n.SheetID,
			Kind:        string(n.Kind),
			CombatantID: n.CombatantID,
			Message:     notificationMessage(c.currentLocale(), n),
		}),
	})
}

type invalidActionError struct {
	message string
}

func (e invalidActionError) Error() string {
	return e.message
}
