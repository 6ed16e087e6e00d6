package combatant

import (
	"fmt"
	"strings"
)

// Kind discriminates what sort of participant a row represents.
type Kind string

const (
	KindPlayer  Kind = "player"
	KindNPC     Kind = "npc"
	KindMonster Kind = "monster"
	KindLair    Kind = "lair"
	KindSummon  Kind = "summon"
)

var kinds = []Kind{KindPlayer, KindNPC, KindMonster, KindLair, KindSummon}

// ParseKind validates and normalizes a kind value.
func ParseKind(value string) (Kind, error) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	if normalized.Valid() {
		return normalized, nil
	}
	return "", fmt.Errorf("combatant type %q is not supported", value)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// SupportsDeathSaves reports whether rows of this kind track death saves.
func (k Kind) SupportsDeathSaves() bool {
	switch k {
	case KindPlayer, KindNPC, KindMonster:
		return true
	default:
		return false
	}
}

// CanConcentrate reports whether rows of this kind carry a concentration flag.
// A lair is a location effect and never casts.
func (k Kind) CanConcentrate() bool {
	return k.Valid() && k != KindLair
}
