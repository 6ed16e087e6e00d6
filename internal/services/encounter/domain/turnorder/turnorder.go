// Package turnorder owns the turn cursor (active index and round) of an
// encounter and the canonical display order of its rows.
package turnorder

import (
	"slices"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/deathsave"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/modifier"
)

// FirstRound is the round every encounter starts and resets to.
const FirstRound = 1

// Turn is the cursor over a sheet's rows.
type Turn struct {
	ActiveIndex int
	Round       int
}

// Start returns the cursor of a fresh encounter.
func Start() Turn {
	return Turn{ActiveIndex: 0, Round: FirstRound}
}

// Next advances to the following row, wrapping to the first row and starting
// a new round after the last one. It is a no-op without rows.
func Next(t Turn, rowCount int) Turn {
	if rowCount <= 0 {
		return t
	}
	if t.ActiveIndex >= rowCount-1 {
		return Turn{ActiveIndex: 0, Round: t.Round + 1}
	}
	return Turn{ActiveIndex: t.ActiveIndex + 1, Round: t.Round}
}

// Previous steps back one row. From the first row it wraps to the last row of
// the previous round, unless this is already the first round.
func Previous(t Turn, rowCount int) Turn {
	if rowCount <= 0 {
		return t
	}
	if t.ActiveIndex <= 0 {
		if t.Round <= FirstRound {
			return t
		}
		return Turn{ActiveIndex: rowCount - 1, Round: t.Round - 1}
	}
	return Turn{ActiveIndex: min(t.ActiveIndex, rowCount) - 1, Round: t.Round}
}

// Reset rewinds the cursor. A hard reset also clears every row back to its
// pre-combat state: initiative unrolled, no conditions, concentration and
// death saves cleared, overrides restored and temp pools dropped.
func Reset(rows []combatant.Combatant, hard bool) ([]combatant.Combatant, Turn) {
	out := cloneRows(rows)
	if hard {
		for i := range out {
			out[i] = hardReset(out[i])
		}
	}
	return out, Start()
}

func hardReset(c combatant.Combatant) combatant.Combatant {
	c = deathsave.Reset(c)
	c.Initiative = combatant.NotRolled
	c.Conditions = []combatant.Condition{}
	if c.Concentration != nil {
		c.Concentration = combatant.Bool(false)
	}
	c.Health = modifier.Restore(c.Health)
	c.AC = modifier.Restore(c.AC)
	return c
}

// IndexCorrect returns rows in canonical display order: a stable sort by
// initiative descending with unrolled rows last, and Index set to each row's
// position. Every row-set mutation goes through it before persistence.
func IndexCorrect(rows []combatant.Combatant) []combatant.Combatant {
	out := cloneRows(rows)
	slices.SortStableFunc(out, compareInitiative)
	for i := range out {
		out[i].Index = i
	}
	return out
}

func compareInitiative(a, b combatant.Combatant) int {
	aRolled, bRolled := a.HasInitiative(), b.HasInitiative()
	switch {
	case aRolled && !bRolled:
		return -1
	case !aRolled && bRolled:
		return 1
	case !aRolled && !bRolled:
		return 0
	}
	// Descending.
	return b.Initiative - a.Initiative
}

// Remove deletes the row with id. The cursor keeps pointing at the same
// combatant when it survives; removing the active row hands the turn to the
// row that slides into its place, or to the new last row.
func Remove(rows []combatant.Combatant, t Turn, id string) ([]combatant.Combatant, Turn, error) {
	at := slices.IndexFunc(rows, func(c combatant.Combatant) bool { return c.ID == id })
	if at < 0 {
		return rows, t, apperrors.WithMetadata(apperrors.CodeCombatantNotFound, "combatant not found", map[string]string{"CombatantID": id})
	}

	out := slices.Delete(cloneRows(rows), at, at+1)
	next := t
	if at < t.ActiveIndex {
		next.ActiveIndex--
	}
	next.ActiveIndex = max(min(next.ActiveIndex, len(out)-1), 0)
	return out, next, nil
}

// Move places the row at from at position to. The moved row takes the
// initiative of its new neighbour so IndexCorrect keeps it there; the rest of
// the rows keep their relative order.
func Move(rows []combatant.Combatant, from, to int) []combatant.Combatant {
	out := cloneRows(rows)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	out = slices.Delete(out, from, from+1)
	out = slices.Insert(out, to, moved)

	switch {
	case to > 0:
		out[to].Initiative = out[to-1].Initiative
	case len(out) > 1:
		out[to].Initiative = out[1].Initiative
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// SetInitiative records a manually entered initiative.
func SetInitiative(c combatant.Combatant, value int) combatant.Combatant {
	out := c.Clone()
	out.Initiative = value
	return out
}

// DieRoller rolls one die.
type DieRoller interface {
	Die(sides int) int
}

// Roll sets initiative to d20 plus the row's initiative modifier.
func Roll(c combatant.Combatant, roller DieRoller) combatant.Combatant {
	value := roller.Die(20)
	if c.InitiativeModifier != nil {
		value += *c.InitiativeModifier
	}
	return SetInitiative(c, value)
}

// RollAll rolls initiative for every row that has not rolled yet.
func RollAll(rows []combatant.Combatant, roller DieRoller) []combatant.Combatant {
	out := cloneRows(rows)
	for i := range out {
		if !out[i].HasInitiative() {
			out[i] = Roll(out[i], roller)
		}
	}
	return out
}

// Cursor returns the row a selection cursor snaps to for activeIndex: the
// active row when it exists, the first row otherwise.
func Cursor(rows []combatant.Combatant, activeIndex int) int {
	if activeIndex < 0 || activeIndex >= len(rows) {
		return 0
	}
	return activeIndex
}

func cloneRows(rows []combatant.Combatant) []combatant.Combatant {
	if rows == nil {
		return nil
	}
	out := make([]combatant.Combatant, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out
}
