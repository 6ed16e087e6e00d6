package combatant

import (
	"strings"

	apperrors "github.com/louisbranch/initiative/internal/platform/errors"
)

// Validate checks the fields the engine relies on.
func (c Combatant) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.WithMetadata(apperrors.CodeCombatantEmptyName, "combatant name is required", map[string]string{"CombatantID": c.ID})
	}
	if !c.Type.Valid() {
		return apperrors.WithMetadata(apperrors.CodeCombatantInvalidType, "combatant type is not supported", map[string]string{"Type": string(c.Type)})
	}
	return nil
}
