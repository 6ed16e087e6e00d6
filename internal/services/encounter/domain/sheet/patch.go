package sheet

import (
	"bytes"
	"encoding/json"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
)

// Field names a top-level sheet field a patch can carry.
type Field string

const (
	FieldRows        Field = "rows"
	FieldActiveIndex Field = "activeIndex"
	FieldRound       Field = "round"
	FieldSettings    Field = "settings"
)

// Patch is a partial sheet update. Nil fields are left untouched.
type Patch struct {
	Rows        *[]combatant.Combatant `json:"rows,omitempty"`
	ActiveIndex *int                   `json:"activeIndex,omitempty"`
	Round       *int                   `json:"round,omitempty"`
	Settings    *Settings              `json:"settings,omitempty"`
}

// PatchRows returns a patch that replaces the rows.
func PatchRows(rows []combatant.Combatant) Patch {
	return Patch{}.WithRows(rows)
}

// WithRows returns a copy of p carrying rows.
func (p Patch) WithRows(rows []combatant.Combatant) Patch {
	cloned := make([]combatant.Combatant, len(rows))
	for i, row := range rows {
		cloned[i] = row.Clone()
	}
	p.Rows = &cloned
	return p
}

// WithTurn returns a copy of p carrying the cursor of s.
func (p Patch) WithTurn(s Sheet) Patch {
	activeIndex, round := s.ActiveIndex, s.Round
	p.ActiveIndex = &activeIndex
	p.Round = &round
	return p
}

// WithSettings returns a copy of p carrying settings.
func (p Patch) WithSettings(settings *Settings) Patch {
	if settings == nil {
		settings = &Settings{}
	}
	p.Settings = settings.Clone()
	return p
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the fields p carries.
func (p Patch) Fields() []Field {
	var fields []Field
	if p.Rows != nil {
		fields = append(fields, FieldRows)
	}
	if p.ActiveIndex != nil {
		fields = append(fields, FieldActiveIndex)
	}
	if p.Round != nil {
		fields = append(fields, FieldRound)
	}
	if p.Settings != nil {
		fields = append(fields, FieldSettings)
	}
	return fields
}

// Apply returns s with every field carried by p overwritten.
func (p Patch) Apply(s Sheet) Sheet {
	out := s.Clone()
	if p.Rows != nil {
		out.Rows = make([]combatant.Combatant, len(*p.Rows))
		for i, row := range *p.Rows {
			out.Rows[i] = row.Clone()
		}
	}
	if p.ActiveIndex != nil {
		out.ActiveIndex = *p.ActiveIndex
	}
	if p.Round != nil {
		out.Round = *p.Round
	}
	if p.Settings != nil {
		out.Settings = p.Settings.Clone()
	}
	return out
}

// Diff returns a patch carrying only the fields that differ between before
// and after. Rows are compared by their encoded form.
func Diff(before, after Sheet) Patch {
	var p Patch
	if !rowsEqual(before.Rows, after.Rows) {
		p = p.WithRows(after.Rows)
	}
	if before.ActiveIndex != after.ActiveIndex || before.Round != after.Round {
		p = p.WithTurn(after)
	}
	if !settingsEqual(before.Settings, after.Settings) {
		p = p.WithSettings(after.Settings)
	}
	return p
}

func rowsEqual(a, b []combatant.Combatant) bool {
	if len(a) != len(b) {
		return false
	}
	return encodedEqual(a, b)
}

func settingsEqual(a, b *Settings) bool {
	if a == nil || b == nil {
		return a == b
	}
	return encodedEqual(a, b)
}

func encodedEqual(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}
