package monster

import "fmt"

const (
	maxNameLen    = 200
	maxContentLen = 5000
	maxUsageLen   = 200
	maxNotesLen   = 500
)

// ValidationError carries per-field detail for a malformed monster payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid monster: %d field error(s)", len(e.Fields))
}

// Validate checks the boundary constraints on a monster payload. The core
// repositories assume payloads have already passed here.
func Validate(m Monster) error {
	fields := make(map[string]string)

	if len(m.Name) > maxNameLen {
		fields["Name"] = "name too long"
	}
	if m.AC.Value < 1 {
		fields["AC.Value"] = "armor class must be at least 1"
	}
	if m.HP.Value < 1 {
		fields["HP.Value"] = "hit points must be at least 1"
	}
	if len(m.AC.Notes) > maxNotesLen {
		fields["AC.Notes"] = "notes too long"
	}
	if len(m.HP.Notes) > maxNotesLen {
		fields["HP.Notes"] = "notes too long"
	}

	checkAbility(fields, "Abilities.Str", m.Abilities.Str)
	checkAbility(fields, "Abilities.Dex", m.Abilities.Dex)
	checkAbility(fields, "Abilities.Con", m.Abilities.Con)
	checkAbility(fields, "Abilities.Int", m.Abilities.Int)
	checkAbility(fields, "Abilities.Wis", m.Abilities.Wis)
	checkAbility(fields, "Abilities.Cha", m.Abilities.Cha)

	checkEntries(fields, "Traits", m.Traits)
	checkEntries(fields, "Actions", m.Actions)
	checkEntries(fields, "Reactions", m.Reactions)
	checkEntries(fields, "LegendaryActions", m.LegendaryActions)

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func checkAbility(fields map[string]string, name string, score int) {
	if score < 1 || score > 50 {
		fields[name] = "ability score must be between 1 and 50"
	}
}

func checkEntries(fields map[string]string, array string, entries []FeatureEntry) {
	for i, entry := range entries {
		if entry.Name == "" {
			fields[fmt.Sprintf("%s[%d].Name", array, i)] = "name is required"
		}
		if len(entry.Name) > maxNameLen {
			fields[fmt.Sprintf("%s[%d].Name", array, i)] = "name too long"
		}
		if len(entry.Content) > maxContentLen {
			fields[fmt.Sprintf("%s[%d].Content", array, i)] = "content too long"
		}
		if len(entry.Usage) > maxUsageLen {
			fields[fmt.Sprintf("%s[%d].Usage", array, i)] = "usage too long"
		}
	}
}
