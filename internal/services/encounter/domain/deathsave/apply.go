package deathsave

import (
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/modifier"
)

// failsPerHitWhileDown is how many fail boxes a hit on a downed combatant checks.
const failsPerHitWhileDown = 2

// Notification is the single side effect one action can raise.
type Notification string

const (
	NotificationNone          Notification = ""
	NotificationConcentration Notification = "concentration"
	NotificationDowned        Notification = "downed"
	NotificationDead          Notification = "dead"
	NotificationStable        Notification = "stable"
)

// Options tunes ApplyHealthChange.
type Options struct {
	// AllowNegative keeps health below zero instead of clamping it for display.
	AllowNegative bool
}

// Outcome is the row produced by an action and the notification it raised.
type Outcome struct {
	Combatant    combatant.Combatant
	Notification Notification
}

// ApplyHealthChange applies a modifier action to health and runs the death
// rules around it:
//   - healing a downed combatant clears every death-save box first;
//   - damage to a combatant already at or below zero checks two fail boxes;
//   - damage that drops a combatant to zero clears concentration and
//     conditions and raises downed, while damage that leaves them standing
//     raises a concentration check if they were concentrating;
//   - damage leaving health negative by at least maxHealth kills outright;
//   - three fails kill, three saves stabilize.
//
// Death is decided on the raw value, before the display clamp to zero.
func ApplyHealthChange(c combatant.Combatant, action modifier.Action, amount int, opts Options) Outcome {
	out := c.Clone()
	before := out.Health.Value

	if action == modifier.ActionHeal && before != nil && *before <= 0 && out.DeathSaves != nil {
		out.DeathSaves = &combatant.DeathSaves{}
	}

	out = modifier.Apply(out, combatant.StatHealth, action, amount)
	after := out.Health.Value

	note := NotificationNone
	if action == modifier.ActionDamage && amount > 0 && before != nil && after != nil {
		note = applyDamageRules(&out, *before, *after)
	}

	if !opts.AllowNegative && after != nil && *after < 0 {
		out.Health.Value = combatant.Int(0)
	}
	return Outcome{Combatant: out, Notification: note}
}

func applyDamageRules(out *combatant.Combatant, before, after int) Notification {
	note := NotificationNone
	var previous State
	savesChanged := false

	switch {
	case before <= 0:
		if out.DeathSaves != nil {
			previous = Evaluate(*out.DeathSaves)
			updated := AddFails(*out.DeathSaves, failsPerHitWhileDown)
			out.DeathSaves = &updated
			savesChanged = true
		}
	case after <= 0:
		if out.Concentration != nil {
			out.Concentration = combatant.Bool(false)
		}
		out.Conditions = []combatant.Condition{}
		note = NotificationDowned
	case out.Concentrating():
		note = NotificationConcentration
	}

	if after < 0 && out.Health.Max != nil && -after >= *out.Health.Max {
		return NotificationDead
	}
	if savesChanged {
		if next := Evaluate(*out.DeathSaves); next != previous {
			note = terminalNotification(next, note)
		}
	}
	return note
}

// ApplyArmorChange applies a modifier action to armor class. Armor has no
// death rules, so the outcome never carries a notification.
func ApplyArmorChange(c combatant.Combatant, action modifier.Action, amount int) Outcome {
	return Outcome{Combatant: modifier.Apply(c, combatant.StatArmor, action, amount)}
}

// Toggle flips one death-save checkbox. Entering a terminal state raises
// dead or stable. Rows without death saves and out-of-range slots are
// returned unchanged.
func Toggle(c combatant.Combatant, box Box, slot int) Outcome {
	out := c.Clone()
	if out.DeathSaves == nil || slot < 0 || slot >= len(out.DeathSaves.Fail) {
		return Outcome{Combatant: out}
	}
	previous := Evaluate(*out.DeathSaves)
	switch box {
	case BoxFail:
		out.DeathSaves.Fail[slot] = !out.DeathSaves.Fail[slot]
	case BoxSave:
		out.DeathSaves.Save[slot] = !out.DeathSaves.Save[slot]
	default:
		return Outcome{Combatant: out}
	}
	note := NotificationNone
	if next := Evaluate(*out.DeathSaves); next != previous {
		note = terminalNotification(next, note)
	}
	return Outcome{Combatant: out, Notification: note}
}

// Reset clears every death-save box on rows that track them.
func Reset(c combatant.Combatant) combatant.Combatant {
	out := c.Clone()
	if out.DeathSaves != nil {
		out.DeathSaves = &combatant.DeathSaves{}
	}
	return out
}

func terminalNotification(state State, fallback Notification) Notification {
	switch state {
	case StateDead:
		return NotificationDead
	case StateSaved:
		return NotificationStable
	default:
		return fallback
	}
}
