// Package sheet models the encounter aggregate: the ordered combatant rows,
// the turn cursor and the display settings.
package sheet

import (
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
	"github.com/louisbranch/initiative/internal/platform/id"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/combatant"
	"github.com/louisbranch/initiative/internal/services/encounter/domain/turnorder"
)

// MaxRows is the hard cap on combatants per sheet.
const MaxRows = 50

// Sheet is one encounter.
type Sheet struct {
	ID          string                `json:"id"`
	CampaignID  string                `json:"campaign,omitempty"`
	Rows        []combatant.Combatant `json:"rows"`
	ActiveIndex int                   `json:"activeIndex"`
	Round       int                   `json:"round"`
	Settings    *Settings             `json:"settings,omitempty"`
	CreatedAt   time.Time             `json:"createdAt,omitzero"`
	UpdatedAt   time.Time             `json:"updatedAt,omitzero"`
}

// Settings controls how the sheet is displayed.
type Settings struct {
	Spacing  string   `json:"spacing,omitempty"`
	Modified bool     `json:"modified"`
	Rows     []string `json:"rows,omitempty"`
	Widgets  []string `json:"widgets,omitempty"`
	Pet      string   `json:"pet,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	out := *s
	out.Rows = slices.Clone(s.Rows)
	out.Widgets = slices.Clone(s.Widgets)
	return &out
}

// New returns an empty sheet at the start of round one.
func New(id, campaignID string) Sheet {
	start := turnorder.Start()
	return Sheet{
		ID:          strings.TrimSpace(id),
		CampaignID:  strings.TrimSpace(campaignID),
		Rows:        []combatant.Combatant{},
		ActiveIndex: start.ActiveIndex,
		Round:       start.Round,
	}
}

// Turn returns the sheet's cursor.
func (s Sheet) Turn() turnorder.Turn {
	return turnorder.Turn{ActiveIndex: s.ActiveIndex, Round: s.Round}
}

// WithTurn returns a copy of s with the cursor replaced.
func (s Sheet) WithTurn(t turnorder.Turn) Sheet {
	out := s.Clone()
	out.ActiveIndex = t.ActiveIndex
	out.Round = t.Round
	return out
}

// Clone returns a deep copy of s.
func (s Sheet) Clone() Sheet {
	out := s
	if s.Rows != nil {
		out.Rows = make([]combatant.Combatant, len(s.Rows))
		for i, row := range s.Rows {
			out.Rows[i] = row.Clone()
		}
	}
	out.Settings = s.Settings.Clone()
	return out
}

// Find returns the position of the row with id, or -1.
func (s Sheet) Find(id string) int {
	return slices.IndexFunc(s.Rows, func(c combatant.Combatant) bool { return c.ID == id })
}

// Row returns the row with id.
func (s Sheet) Row(id string) (combatant.Combatant, error) {
	at := s.Find(id)
	if at < 0 {
		return combatant.Combatant{}, apperrors.WithMetadata(apperrors.CodeCombatantNotFound, "combatant not found", map[string]string{"CombatantID": id})
	}
	return s.Rows[at], nil
}

// ReplaceRow returns a copy of s with the row sharing c's id replaced by c.
func (s Sheet) ReplaceRow(c combatant.Combatant) (Sheet, error) {
	at := s.Find(c.ID)
	if at < 0 {
		return s, apperrors.WithMetadata(apperrors.CodeCombatantNotFound, "combatant not found", map[string]string{"CombatantID": c.ID})
	}
	out := s.Clone()
	out.Rows[at] = c.Clone()
	return out, nil
}

// AddCombatant appends c to the sheet, assigning an id when c has none. A
// full sheet is rejected before the row is looked at.
func (s Sheet) AddCombatant(c combatant.Combatant) (Sheet, error) {
	if len(s.Rows) >= MaxRows {
		return s, sheetFull(s.ID)
	}
	c = combatant.Normalize(c)
	if err := c.Validate(); err != nil {
		return s, err
	}
	if strings.TrimSpace(c.ID) == "" {
		generated, err := id.NewID()
		if err != nil {
			return s, err
		}
		c.ID = generated
	}
	if s.Find(c.ID) >= 0 {
		return s, apperrors.WithMetadata(apperrors.CodeCombatantDuplicateID, "combatant already exists", map[string]string{"CombatantID": c.ID})
	}
	out := s.Clone()
	out.Rows = append(out.Rows, c)
	return out, nil
}

// Validate checks the sheet-level invariants.
func (s Sheet) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return apperrors.New(apperrors.CodeSheetEmptyID, "sheet id is required")
	}
	if len(s.Rows) > MaxRows {
		return sheetFull(s.ID)
	}
	seen := make(map[string]struct{}, len(s.Rows))
	for _, row := range s.Rows {
		if err := row.Validate(); err != nil {
			return err
		}
		if _, ok := seen[row.ID]; ok {
			return apperrors.WithMetadata(apperrors.CodeCombatantDuplicateID, "combatant already exists", map[string]string{"CombatantID": row.ID})
		}
		seen[row.ID] = struct{}{}
	}
	return nil
}

// Normalize clamps the cursor onto the rows and keeps the round at or above
// the first round.
func (s Sheet) Normalize() Sheet {
	out := s.Clone()
	if out.Rows == nil {
		out.Rows = []combatant.Combatant{}
	}
	out.ActiveIndex = turnorder.Cursor(out.Rows, out.ActiveIndex)
	if out.Round < turnorder.FirstRound {
		out.Round = turnorder.FirstRound
	}
	return out
}

func sheetFull(id string) error {
	return apperrors.WithMetadata(apperrors.CodeSheetFull, "sheet is full", map[string]string{
		"SheetID": id,
		"Max":     strconv.Itoa(MaxRows),
	})
}
