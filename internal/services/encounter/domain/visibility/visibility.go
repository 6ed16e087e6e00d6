// Package visibility derives which sheet columns and widgets are shown from
// the sheet settings.
package visibility

import (
	"slices"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
)

// Column is a sheet column key.
type Column string

const (
	ColumnInitiative    Column = "initiative"
	ColumnName          Column = "name"
	ColumnAC            Column = "ac"
	ColumnHealth        Column = "health"
	ColumnConditions    Column = "conditions"
	ColumnConcentration Column = "concentration"
	ColumnDeathSaves    Column = "death_saves"
	ColumnNote          Column = "note"
	ColumnLink          Column = "link"
	ColumnActions       Column = "actions"
)

// DefaultColumns are always shown.
var DefaultColumns = []Column{ColumnInitiative, ColumnName}

// HidableColumns can be switched off through the settings allow-list.
var HidableColumns = []Column{
	ColumnAC,
	ColumnHealth,
	ColumnConditions,
	ColumnConcentration,
	ColumnDeathSaves,
	ColumnNote,
	ColumnLink,
	ColumnActions,
}

// Widget is an optional panel shown around the sheet.
type Widget string

const (
	WidgetDice     Widget = "dice"
	WidgetRound    Widget = "round"
	WidgetSpells   Widget = "spells"
	WidgetMonsters Widget = "monsters"
	WidgetPet      Widget = "pet"
)

// Widgets lists every known widget.
var Widgets = []Widget{WidgetDice, WidgetRound, WidgetSpells, WidgetMonsters, WidgetPet}

// Columns returns the visible columns in display order: the defaults followed
// by the visible hidable columns. Unmodified or absent settings show every
// hidable column; modified settings show only those in the allow-list.
func Columns(settings *sheet.Settings) []Column {
	return Resolve(settings, DefaultColumns, HidableColumns)
}

// Resolve applies the column rule to arbitrary default and hidable sets.
func Resolve(settings *sheet.Settings, defaults, hidable []Column) []Column {
	visible := slices.Clone(defaults)
	for _, column := range hidable {
		if Visible(settings, column) {
			visible = append(visible, column)
		}
	}
	return visible
}

// Visible reports whether one hidable column is shown.
func Visible(settings *sheet.Settings, column Column) bool {
	if settings == nil || !settings.Modified {
		return true
	}
	return slices.Contains(settings.Rows, string(column))
}

// ShownWidgets returns the known widgets named in the settings, in the
// canonical widget order. Widgets are opt-in: no settings, no widgets.
func ShownWidgets(settings *sheet.Settings) []Widget {
	if settings == nil {
		return nil
	}
	var shown []Widget
	for _, widget := range Widgets {
		if slices.Contains(settings.Widgets, string(widget)) {
			shown = append(shown, widget)
		}
	}
	return shown
}
