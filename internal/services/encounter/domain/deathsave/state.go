// Package deathsave runs the death-saving-throw state machine and the
// "apply HP change" operation that drives it.
package deathsave

import "github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"

// State is the derived death-save state of a combatant.
type State string

const (
	// StateStable means no boxes are checked.
	StateStable State = "stable"
	// StateStabilizing means at least one save and no fails are checked.
	StateStabilizing State = "stabilizing"
	// StateFailing means at least one fail is checked and neither side has three.
	StateFailing State = "failing"
	// StateDead is terminal: three fails and fewer than three saves.
	StateDead State = "dead"
	// StateSaved is terminal for the current down: three saves and fewer than three fails.
	StateSaved State = "saved"
)

// Terminal reports whether s ends the current down.
func (s State) Terminal() bool {
	return s == StateDead || s == StateSaved
}

// Evaluate derives the state from the checkboxes. A sheet with three boxes
// checked on both sides is treated as failing, since neither outcome applies.
func Evaluate(saves combatant.DeathSaves) State {
	fails, passed := saves.Fails(), saves.Saves()
	switch {
	case fails == 3 && passed < 3:
		return StateDead
	case passed == 3 && fails < 3:
		return StateSaved
	case fails >= 1:
		return StateFailing
	case passed >= 1:
		return StateStabilizing
	default:
		return StateStable
	}
}

// Box selects the fail or save row of checkboxes.
type Box string

const (
	BoxFail Box = "fail"
	BoxSave Box = "save"
)

// AddFails checks the next n unchecked fail boxes. It never overflows the
// three slots.
func AddFails(saves combatant.DeathSaves, n int) combatant.DeathSaves {
	for i := range saves.Fail {
		if n <= 0 {
			break
		}
		if !saves.Fail[i] {
			saves.Fail[i] = true
			n--
		}
	}
	return saves
}
