package visibility

import (
	"slices"
	"testing"

	"github.com/louisbranch/initiative/internal/services/encounter/domain/sheet"
)

func TestColumnsUnmodifiedShowsEverything(t *testing.T) {
	want := append(slices.Clone(DefaultColumns), HidableColumns...)
	for _, settings := range []*sheet.Settings{nil, {Modified: false, Rows: []string{"ac"}}} {
		got := Columns(settings)
		if !slices.Equal(got, want) {
			t.Fatalf("Columns(%+v) = %v, want %v", settings, got, want)
		}
	}
}

func TestColumnsModifiedUsesAllowList(t *testing.T) {
	got := Columns(&sheet.Settings{Modified: true, Rows: []string{"health", "ac"}})
	want := []Column{ColumnInitiative, ColumnName, ColumnAC, ColumnHealth}
	if !slices.Equal(got, want) {
		t.Fatalf("Columns = %v, want %v", got, want)
	}
}

func TestColumnsModifiedEmptyKeepsDefaults(t *testing.T) {
	got := Columns(&sheet.Settings{Modified: true})
	if !slices.Equal(got, DefaultColumns) {
		t.Fatalf("Columns = %v, want %v", got, DefaultColumns)
	}
}

func TestResolveIgnoresUnknownKeys(t *testing.T) {
	got := Resolve(&sheet.Settings{Modified: true, Rows: []string{"mystery", "note"}}, nil, []Column{ColumnNote, ColumnLink})
	if !slices.Equal(got, []Column{ColumnNote}) {
		t.Fatalf("Resolve = %v, want [note]", got)
	}
}

func TestShownWidgets(t *testing.T) {
	if got := ShownWidgets(nil); got != nil {
		t.Fatalf("ShownWidgets(nil) = %v, want nil", got)
	}
	got := ShownWidgets(&sheet.Settings{Widgets: []string{"pet", "unknown", "dice"}})
	if !slices.Equal(got, []Widget{WidgetDice, WidgetPet}) {
		t.Fatalf("ShownWidgets = %v, want [dice pet]", got)
	}
}
