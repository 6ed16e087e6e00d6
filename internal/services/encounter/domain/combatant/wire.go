package combatant

import "encoding/json"

// wireCombatant is the persisted JSON shape: stats are flattened into
// health/maxHealth/maxHealthOld/tempHealth and ac/maxAc/maxAcOld/tempAc.
type wireCombatant struct {
	ID                 string          `json:"id"`
	Index              int             `json:"index"`
	Initiative         int             `json:"initiative"`
	InitiativeModifier *int            `json:"initiative_modifier,omitempty"`
	Name               string          `json:"name"`
	Type               Kind            `json:"type"`
	Health             *int            `json:"health,omitempty"`
	MaxHealth          *int            `json:"maxHealth,omitempty"`
	MaxHealthOld       *int            `json:"maxHealthOld,omitempty"`
	TempHealth         *int            `json:"tempHealth,omitempty"`
	AC                 *int            `json:"ac,omitempty"`
	MaxAC              *int            `json:"maxAc,omitempty"`
	MaxACOld           *int            `json:"maxAcOld,omitempty"`
	TempAC             *int            `json:"tempAc,omitempty"`
	Conditions         []Condition     `json:"conditions"`
	Concentration      *bool           `json:"concentration,omitempty"`
	DeathSaves         *DeathSaves     `json:"deathSaves,omitempty"`
	Note               string          `json:"note,omitempty"`
	Link               string          `json:"link,omitempty"`
	Actions            json.RawMessage `json:"actions,omitempty"`
}

// MarshalJSON encodes c in the flat wire shape.
func (c Combatant) MarshalJSON() ([]byte, error) {
	conditions := c.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	return json.Marshal(wireCombatant{
		ID:                 c.ID,
		Index:              c.Index,
		Initiative:         c.Initiative,
		InitiativeModifier: c.InitiativeModifier,
		Name:               c.Name,
		Type:               c.Type,
		Health:             c.Health.Value,
		MaxHealth:          c.Health.Max,
		MaxHealthOld:       c.Health.MaxOld,
		TempHealth:         c.Health.Temp,
		AC:                 c.AC.Value,
		MaxAC:              c.AC.Max,
		MaxACOld:           c.AC.MaxOld,
		TempAC:             c.AC.Temp,
		Conditions:         conditions,
		Concentration:      c.Concentration,
		DeathSaves:         c.DeathSaves,
		Note:               c.Note,
		Link:               c.Link,
		Actions:            c.Actions,
	})
}

// UnmarshalJSON decodes the flat wire shape and normalizes the result.
func (c *Combatant) UnmarshalJSON(data []byte) error {
	var w wireCombatant
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Normalize(Combatant{
		ID:                 w.ID,
		Index:              w.Index,
		Initiative:         w.Initiative,
		InitiativeModifier: w.InitiativeModifier,
		Name:               w.Name,
		Type:               w.Type,
		Health:             Stat{Value: w.Health, Max: w.MaxHealth, MaxOld: w.MaxHealthOld, Temp: w.TempHealth},
		AC:                 Stat{Value: w.AC, Max: w.MaxAC, MaxOld: w.MaxACOld, Temp: w.TempAC},
		Conditions:         w.Conditions,
		Concentration:      w.Concentration,
		DeathSaves:         w.DeathSaves,
		Note:               w.Note,
		Link:               w.Link,
		Actions:            w.Actions,
	})
	return nil
}
