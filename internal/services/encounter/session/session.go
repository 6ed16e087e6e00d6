package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	platformotel "github.com/louisbranch/initiative/internal/platform/otel"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/deathsave"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/dice"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/modifier"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/turnorder"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/initiative/internal/services/encounter/session"

// Options configures a Session.
type Options struct {
	// AllowNegativeHealth keeps health below zero instead of clamping it.
	AllowNegativeHealth bool
	// RollbackOnFailure restores the pre-action sheet when the update fails
	// and no newer state has arrived from the feed in the meantime.
	RollbackOnFailure bool
	// Roller rolls initiative. Defaults to a crypto-seeded d20 roller.
	Roller turnorder.DieRoller
	// OnReceive is called with the new local sheet after every change
	// arriving from the feed.
	OnReceive func(sheet.Sheet)
}

// Session holds one client's copy of an open sheet.
type Session struct {
	store    Store
	notifier Notifier
	opts     Options
	tracer   trace.Tracer

	// writeMu orders actions end to end; mu guards the fields below and is
	// the only lock the feed callback takes.
	writeMu sync.Mutex
	mu      sync.Mutex
	sheetID string
	current *sheet.Sheet
	sub     Subscription
	// received counts feed deliveries so Open can tell whether its re-fetch
	// is older than what the feed already delivered.
	received uint64
}

// New builds a session bound to store. A nil notifier discards notifications.
func New(store Store, notifier Notifier, opts Options) *Session {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &Session{
		store:    store,
		notifier: notifier,
		opts:     opts,
		tracer:   platformotel.Tracer(tracerName),
	}
}

// Open fetches the sheet and subscribes to its changes. Opening a session
// that is already open closes the previous subscription first.
func (s *Session) Open(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.New(apperrors.CodeSheetEmptyID, "sheet id is required")
	}
	if s.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	if err := s.Close(); err != nil {
		log.Printf("session: close previous subscription: %v", err)
	}

	fetched, err := s.store.Fetch(ctx, id)
	if err != nil {
		s.notifier.Notify(Notification{SheetID: id, Kind: KindFetchFailed, Err: err})
		return apperrors.Wrap(apperrors.CodeTransportFetchFailed, "fetch sheet", err)
	}
	fetched = fetched.Normalize()

	s.mu.Lock()
	s.sheetID = id
	s.current = &fetched
	s.mu.Unlock()

	sub, err := s.store.Subscribe(ctx, id, s.receive)
	if err != nil {
		s.notifier.Notify(Notification{SheetID: id, Kind: KindFetchFailed, Err: err})
		return apperrors.Wrap(apperrors.CodeTransportFetchFailed, "subscribe sheet", err)
	}
	s.mu.Lock()
	s.sub = sub
	seen := s.received
	s.mu.Unlock()

	// A change committed between the fetch and the subscription reaches no
	// callback, so read the sheet once more now that the feed is live.
	refetched, err := s.store.Fetch(ctx, id)
	if err != nil {
		log.Printf("session: re-fetch sheet %s after subscribe: %v", id, err)
		return nil
	}
	refetched = refetched.Normalize()
	s.mu.Lock()
	if s.current != nil && s.sheetID == id && s.received == seen {
		s.current = &refetched
	}
	s.mu.Unlock()
	return nil
}

// Close drops the subscription and the local sheet. Later actions are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.current = nil
	s.sheetID = ""
	s.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close()
}

// Sheet returns a copy of the local sheet, if one is open.
func (s *Session) Sheet() (sheet.Sheet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return sheet.Sheet{}, false
	}
	return s.current.Clone(), true
}

// receive overwrites the local sheet with a change from the feed.
func (s *Session) receive(changed sheet.Sheet) {
	s.mu.Lock()
	if s.current == nil || changed.ID != s.sheetID {
		s.mu.Unlock()
		return
	}
	next := changed.Normalize()
	s.current = &next
	s.received++
	s.mu.Unlock()

	if s.opts.OnReceive != nil {
		s.opts.OnReceive(next.Clone())
	}
}

// mutation computes the next sheet from a copy of the current one.
type mutation func(current sheet.Sheet) (sheet.Sheet, []Notification, error)

// apply runs one action: local update, index correction, partial update,
// notifications. Without an open sheet it does nothing.
func (s *Session) apply(ctx context.Context, action string, fn mutation) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	id := s.sheetID
	before := s.current.Clone()
	after, notes, err := fn(before.Clone())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	patch := sheet.Diff(before, after)
	if patch.Rows != nil {
		after.Rows = turnorder.IndexCorrect(after.Rows)
		patch = patch.WithRows(after.Rows)
	}
	if patch.Empty() {
		s.mu.Unlock()
		s.notify(id, notes)
		return nil
	}
	local := after.Clone()
	s.current = &local
	s.mu.Unlock()

	s.notify(id, notes)
	if err := s.submit(ctx, id, action, patch); err != nil {
		s.notifier.Notify(Notification{SheetID: id, Kind: KindUpdateFailed, Err: err})
		log.Printf("session: %s on sheet %s failed: %v", action, id, err)
		if s.opts.RollbackOnFailure {
			s.rollback(id, before, after)
		}
		return apperrors.Wrap(apperrors.CodeTransportUpdateFailed, action, err)
	}
	return nil
}

func (s *Session) submit(ctx context.Context, id, action string, patch sheet.Patch) error {
	fields := patch.Fields()
	names := make([]string, len(fields))
	for i, field := range fields {
		names[i] = string(field)
	}
	ctx, span := s.tracer.Start(ctx, "session."+action, trace.WithAttributes(
		attribute.String("sheet.id", id),
		attribute.StringSlice("sheet.fields", names),
	))
	defer span.End()

	if err := s.store.Update(ctx, id, patch); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	return nil
}

// rollback restores before unless the local sheet moved on since the failed
// action was applied.
func (s *Session) rollback(id string, before, after sheet.Sheet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.sheetID != id {
		return
	}
	if !sheet.Diff(after, *s.current).Empty() {
		return
	}
	restored := before.Clone()
	s.current = &restored
}

func (s *Session) notify(id string, notes []Notification) {
	for _, n := range notes {
		n.SheetID = id
		s.notifier.Notify(n)
	}
}

// ApplyHealth runs a modifier action against one row's health with the
// death rules around it.
func (s *Session) ApplyHealth(ctx context.Context, combatantID string, action modifier.Action, amount int) error {
	return s.apply(ctx, "apply_health", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		row, err := current.Row(combatantID)
		if err != nil {
			return current, nil, err
		}
		outcome := deathsave.ApplyHealthChange(row, action, amount, deathsave.Options{AllowNegative: s.opts.AllowNegativeHealth})
		next, err := current.ReplaceRow(outcome.Combatant)
		return next, notificationFor(outcome), err
	})
}

// ApplyArmor runs a modifier action against one row's armor class.
func (s *Session) ApplyArmor(ctx context.Context, combatantID string, action modifier.Action, amount int) error {
	return s.apply(ctx, "apply_armor", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		row, err := current.Row(combatantID)
		if err != nil {
			return current, nil, err
		}
		next, err := current.ReplaceRow(deathsave.ApplyArmorChange(row, action, amount).Combatant)
		return next, nil, err
	})
}

// ToggleDeathSave flips one death-save checkbox.
func (s *Session) ToggleDeathSave(ctx context.Context, combatantID string, box deathsave.Box, slot int) error {
	return s.apply(ctx, "toggle_death_save", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		row, err := current.Row(combatantID)
		if err != nil {
			return current, nil, err
		}
		outcome := deathsave.Toggle(row, box, slot)
		next, err := current.ReplaceRow(outcome.Combatant)
		return next, notificationFor(outcome), err
	})
}

// UpdateCombatant replaces a row's editable fields (name, note, link,
// conditions, concentration, stats) with those of c.
func (s *Session) UpdateCombatant(ctx context.Context, c combatant.Combatant) error {
	return s.apply(ctx, "update_combatant", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		row, err := current.Row(c.ID)
		if err != nil {
			return current, nil, err
		}
		edited := combatant.Normalize(c)
		edited.Index = row.Index
		if err := edited.Validate(); err != nil {
			return current, nil, err
		}
		next, err := current.ReplaceRow(edited)
		return next, nil, err
	})
}

// Next advances the turn.
func (s *Session) Next(ctx context.Context) error {
	return s.apply(ctx, "next", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		return current.WithTurn(turnorder.Next(current.Turn(), len(current.Rows))), nil, nil
	})
}

// Previous steps the turn back.
func (s *Session) Previous(ctx context.Context) error {
	return s.apply(ctx, "previous", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		return current.WithTurn(turnorder.Previous(current.Turn(), len(current.Rows))), nil, nil
	})
}

// Reset rewinds the encounter; a hard reset also clears combat state.
func (s *Session) Reset(ctx context.Context, hard bool) error {
	return s.apply(ctx, "reset", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		rows, turn := turnorder.Reset(current.Rows, hard)
		next := current.WithTurn(turn)
		next.Rows = rows
		return next, nil, nil
	})
}

// UpdateSettings replaces the display settings.
func (s *Session) UpdateSettings(ctx context.Context, settings sheet.Settings) error {
	return s.apply(ctx, "update_settings", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		current.Settings = settings.Clone()
		return current, nil, nil
	})
}

// AddCombatant appends a row. A full sheet is rejected before anything else.
func (s *Session) AddCombatant(ctx context.Context, c combatant.Combatant) error {
	return s.apply(ctx, "add_combatant", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		next, err := current.AddCombatant(c)
		return next, nil, err
	})
}

// RemoveCombatant deletes a row, keeping the turn on the same combatant when
// possible.
func (s *Session) RemoveCombatant(ctx context.Context, combatantID string) error {
	return s.apply(ctx, "remove_combatant", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		rows, turn, err := turnorder.Remove(current.Rows, current.Turn(), combatantID)
		if err != nil {
			return current, nil, err
		}
		next := current.WithTurn(turn)
		next.Rows = rows
		return next, nil, nil
	})
}

// MoveCombatant places the row at from at position to.
func (s *Session) MoveCombatant(ctx context.Context, from, to int) error {
	return s.apply(ctx, "move_combatant", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		current.Rows = turnorder.Move(current.Rows, from, to)
		return current, nil, nil
	})
}

// SetInitiative records a manually entered initiative.
func (s *Session) SetInitiative(ctx context.Context, combatantID string, value int) error {
	return s.apply(ctx, "set_initiative", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		row, err := current.Row(combatantID)
		if err != nil {
			return current, nil, err
		}
		next, err := current.ReplaceRow(turnorder.SetInitiative(row, value))
		return next, nil, err
	})
}

// RollInitiative rolls d20 plus modifier for one row, or for every unrolled
// row when combatantID is empty.
func (s *Session) RollInitiative(ctx context.Context, combatantID string) error {
	roller, err := s.roller()
	if err != nil {
		return err
	}
	return s.apply(ctx, "roll_initiative", func(current sheet.Sheet) (sheet.Sheet, []Notification, error) {
		if strings.TrimSpace(combatantID) == "" {
			current.Rows = turnorder.RollAll(current.Rows, roller)
			return current, nil, nil
		}
		row, err := current.Row(combatantID)
		if err != nil {
			return current, nil, err
		}
		next, err := current.ReplaceRow(turnorder.Roll(row, roller))
		return next, nil, err
	})
}

func (s *Session) roller() (turnorder.DieRoller, error) {
	if s.opts.Roller != nil {
		return s.opts.Roller, nil
	}
	return dice.NewRandomRoller()
}

func notificationFor(outcome deathsave.Outcome) []Notification {
	if outcome.Notification == deathsave.NotificationNone {
		return nil
	}
	return []Notification{{
		Kind:          Kind(outcome.Notification),
		CombatantID:   outcome.Combatant.ID,
		CombatantName: outcome.Combatant.Name,
	}}
}
