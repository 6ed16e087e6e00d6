// Package modifier implements the stat algebra behind the sheet's
// heal/damage/temp/override buttons.
//
// Every function is pure: it takes a Stat (or a Combatant) and returns a new
// one. Arithmetic is exact integer arithmetic; only Override and
// OverrideReset touch ceilings.
package modifier

import (
	"fmt"
	"strings"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
)

// Action names one scalar modifier.
type Action string

const (
	ActionHeal          Action = "heal"
	ActionDamage        Action = "damage"
	ActionTemp          Action = "temp"
	ActionOverride      Action = "override"
	ActionOverrideReset Action = "override_reset"
)

// ParseAction validates and normalizes an action name.
func ParseAction(value string) (Action, error) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case ActionHeal, ActionDamage, ActionTemp, ActionOverride, ActionOverrideReset:
		return action, nil
	}
	return "", fmt.Errorf("modifier action %q is not supported", value)
}

// Apply runs action against the selected stat of c.
func Apply(c combatant.Combatant, stat combatant.StatKind, action Action, amount int) combatant.Combatant {
	return c.WithStat(stat, ApplyStat(c.Stat(stat), action, amount))
}

// ApplyStat runs action against s. Unknown actions return s unchanged.
func ApplyStat(s combatant.Stat, action Action, amount int) combatant.Stat {
	switch action {
	case ActionHeal:
		return Heal(s, amount)
	case ActionDamage:
		return Damage(s, amount)
	case ActionTemp:
		return Temp(s, amount)
	case ActionOverride:
		return Override(s, amount)
	case ActionOverrideReset:
		return OverrideReset(s, amount)
	default:
		return s.Clone()
	}
}

// Heal adds amount to the value without exceeding the ceiling. It is a no-op
// unless both value and ceiling are set.
func Heal(s combatant.Stat, amount int) combatant.Stat {
	out := s.Clone()
	if out.Value == nil || out.Max == nil {
		return out
	}
	out.Value = combatant.Int(min(*out.Value+amount, *out.Max))
	return out
}

// Damage drains the temp pool first and the value with whatever is left.
// Without a temp pool the whole amount hits the value, which may go negative.
func Damage(s combatant.Stat, amount int) combatant.Stat {
	out := s.Clone()
	remaining := amount
	if out.Temp != nil {
		if remaining <= *out.Temp {
			out.Temp = combatant.Int(*out.Temp - remaining)
			return out
		}
		remaining -= *out.Temp
		out.Temp = combatant.Int(0)
	}
	if out.Value != nil {
		out.Value = combatant.Int(*out.Value - remaining)
	}
	return out
}

// Temp sets the temp pool to amount while the value is above zero. Negative
// amounts set an empty pool.
func Temp(s combatant.Stat, amount int) combatant.Stat {
	out := s.Clone()
	if out.Value == nil || *out.Value <= 0 {
		return out
	}
	out.Temp = combatant.Int(max(amount, 0))
	return out
}

// Override moves the ceiling to amount. Lowering the ceiling sets the value
// to the new ceiling; raising it keeps the gap the value had below the old
// ceiling. The first override stashes the original ceiling in MaxOld; later
// overrides keep that stash so a reset still finds the original.
func Override(s combatant.Stat, amount int) combatant.Stat {
	out := s.Clone()
	if out.Value == nil || out.Max == nil {
		return out
	}
	oldMax, oldValue := *out.Max, *out.Value
	if amount < oldMax {
		out.Value = combatant.Int(amount)
	} else {
		out.Value = combatant.Int(amount - (oldMax - oldValue))
	}
	if out.MaxOld == nil {
		out.MaxOld = combatant.Int(oldMax)
	}
	out.Max = combatant.Int(amount)
	return out
}

// OverrideReset ends an active override: the value is recomputed against the
// stashed ceiling, the stash is cleared and the ceiling becomes amount. It is
// a no-op when no override is active.
func OverrideReset(s combatant.Stat, amount int) combatant.Stat {
	out := s.Clone()
	if out.MaxOld == nil {
		return out
	}
	old := *out.MaxOld
	if out.Value != nil && out.Max != nil {
		if old < *out.Max {
			out.Value = combatant.Int(old)
		} else {
			out.Value = combatant.Int(old - (*out.Max - *out.Value))
		}
	}
	out.MaxOld = nil
	out.Max = combatant.Int(amount)
	return out
}

// Restore ends an active override using the stashed ceiling as the new
// ceiling and clears the temp pool. Hard resets use it.
func Restore(s combatant.Stat) combatant.Stat {
	out := s.Clone()
	if out.MaxOld != nil {
		out = OverrideReset(out, *out.MaxOld)
	}
	out.Temp = nil
	return out
}
