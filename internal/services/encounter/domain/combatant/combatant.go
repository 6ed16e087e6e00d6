package combatant

import (
	"encoding/json"
	"slices"
	"strings"
)

// NotRolled is the initiative sentinel for a combatant that has not rolled yet.
const NotRolled = -1

// StatKind selects which stat the modifier algebra operates on.
type StatKind string

const (
	StatHealth StatKind = "health"
	StatArmor  StatKind = "ac"
)

// Valid reports whether s names a known stat.
func (s StatKind) Valid() bool {
	return s == StatHealth || s == StatArmor
}

// Stat is a current value with its ceiling, a stashed ceiling while an
// override is active, and a temporary pool. Any field may be absent.
type Stat struct {
	Value  *int
	Max    *int
	MaxOld *int
	Temp   *int
}

// OverrideActive reports whether the ceiling has been overridden and the
// original ceiling is stashed in MaxOld.
func (s Stat) OverrideActive() bool {
	return s.MaxOld != nil
}

// Clone returns a copy that shares no pointers with s.
func (s Stat) Clone() Stat {
	return Stat{
		Value:  cloneInt(s.Value),
		Max:    cloneInt(s.Max),
		MaxOld: cloneInt(s.MaxOld),
		Temp:   cloneInt(s.Temp),
	}
}

// Condition references a condition applied to a combatant. Level is used by
// stacking conditions such as exhaustion.
type Condition struct {
	ID    string `json:"id"`
	Level *int   `json:"level,omitempty"`
}

// DeathSaves holds the three fail and three save checkboxes.
type DeathSaves struct {
	Fail [3]bool `json:"fail"`
	Save [3]bool `json:"save"`
}

// Fails counts checked fail boxes.
func (d DeathSaves) Fails() int {
	return countChecked(d.Fail)
}

// Saves counts checked save boxes.
func (d DeathSaves) Saves() int {
	return countChecked(d.Save)
}

func countChecked(boxes [3]bool) int {
	n := 0
	for _, checked := range boxes {
		if checked {
			n++
		}
	}
	return n
}

// Combatant is one participant in an encounter.
type Combatant struct {
	ID                 string
	Index              int
	Initiative         int
	InitiativeModifier *int
	Name               string
	Type               Kind
	Health             Stat
	AC                 Stat
	Conditions         []Condition
	Concentration      *bool
	DeathSaves         *DeathSaves
	Note               string
	Link               string
	// Actions holds ability blocks verbatim; the combat engine never reads them.
	Actions json.RawMessage
}

// New returns a row of the given kind with the optional blocks its kind
// supports initialised and initiative not rolled.
func New(id, name string, kind Kind) Combatant {
	c := Combatant{
		ID:         strings.TrimSpace(id),
		Name:       strings.TrimSpace(name),
		Type:       kind,
		Initiative: NotRolled,
	}
	if kind.SupportsDeathSaves() {
		c.DeathSaves = &DeathSaves{}
	}
	if kind.CanConcentrate() {
		c.Concentration = Bool(false)
	}
	return c
}

// Stat returns the stat selected by kind.
func (c Combatant) Stat(kind StatKind) Stat {
	if kind == StatArmor {
		return c.AC
	}
	return c.Health
}

// WithStat returns a copy of c with the selected stat replaced.
func (c Combatant) WithStat(kind StatKind, stat Stat) Combatant {
	out := c.Clone()
	if kind == StatArmor {
		out.AC = stat.Clone()
	} else {
		out.Health = stat.Clone()
	}
	return out
}

// Concentrating reports whether the concentration flag is set.
func (c Combatant) Concentrating() bool {
	return c.Concentration != nil && *c.Concentration
}

// HasInitiative reports whether the row has rolled a usable initiative.
func (c Combatant) HasInitiative() bool {
	return c.Initiative != 0 && c.Initiative != NotRolled
}

// Clone returns a deep copy of c.
func (c Combatant) Clone() Combatant {
	out := c
	out.InitiativeModifier = cloneInt(c.InitiativeModifier)
	out.Health = c.Health.Clone()
	out.AC = c.AC.Clone()
	if c.Conditions != nil {
		out.Conditions = make([]Condition, len(c.Conditions))
		for i, cond := range c.Conditions {
			out.Conditions[i] = Condition{ID: cond.ID, Level: cloneInt(cond.Level)}
		}
	}
	if c.Concentration != nil {
		out.Concentration = Bool(*c.Concentration)
	}
	if c.DeathSaves != nil {
		saves := *c.DeathSaves
		out.DeathSaves = &saves
	}
	if c.Actions != nil {
		out.Actions = slices.Clone(c.Actions)
	}
	return out
}

// Normalize drops blocks the kind cannot carry and clamps temp pools to
// non-negative values.
func Normalize(c Combatant) Combatant {
	out := c.Clone()
	if !out.Type.SupportsDeathSaves() {
		out.DeathSaves = nil
	}
	if !out.Type.CanConcentrate() {
		out.Concentration = nil
	}
	out.Health.Temp = clampNonNegative(out.Health.Temp)
	out.AC.Temp = clampNonNegative(out.AC.Temp)
	return out
}

func clampNonNegative(v *int) *int {
	if v == nil || *v >= 0 {
		return v
	}
	return Int(0)
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	return Int(*v)
}
