// Package monster owns the monster document model and its repository.
//
// A monster carries FeatureIds, the authoritative ordered list of feature
// references, plus four derived category arrays (Traits, Actions, Reactions,
// LegendaryActions) that are always a projection of FeatureIds and get
// recomputed wholesale on every structural change to features.
package monster

import "encoding/json"

// FeatureEntry is one projected entry in a derived category array. The
// feature id and category are implied by which array it sits in.
type FeatureEntry struct {
	Name    string `json:"Name"`
	Content string `json:"Content"`
	Usage   string `json:"Usage,omitempty"`
}

// SkillOrSave is a named modifier.
type SkillOrSave struct {
	Name     string  `json:"Name"`
	Modifier float64 `json:"Modifier"`
}

// Abilities holds the six ability scores.
type Abilities struct {
	Str int `json:"Str"`
	Dex int `json:"Dex"`
	Con int `json:"Con"`
	Int int `json:"Int"`
	Wis int `json:"Wis"`
	Cha int `json:"Cha"`
}

// Stat is an armor class or hit point value with optional notes.
type Stat struct {
	Value int    `json:"Value"`
	Notes string `json:"Notes,omitempty"`
}

// Monster is the stat-block document, Improved Initiative shaped.
//
// FeatureIds is nil on documents that have never been normalized (legacy
// embedded form) and non-nil, possibly empty, on normalized ones. The JSON
// field must therefore not carry omitempty.
type Monster struct {
	Name                  string         `json:"Name,omitempty"`
	Source                string         `json:"Source"`
	Type                  string         `json:"Type"`
	Challenge             string         `json:"Challenge"`
	Abilities             Abilities      `json:"Abilities"`
	AC                    Stat           `json:"AC"`
	HP                    Stat           `json:"HP"`
	InitiativeModifier    int            `json:"InitiativeModifier,omitempty"`
	InitiativeAdvantage   bool           `json:"InitiativeAdvantage,omitempty"`
	Speed                 []string       `json:"Speed"`
	Senses                []string       `json:"Senses"`
	Languages             []string       `json:"Languages"`
	Skills                []SkillOrSave  `json:"Skills"`
	Saves                 []SkillOrSave  `json:"Saves"`
	DamageVulnerabilities []string       `json:"DamageVulnerabilities"`
	DamageResistances     []string       `json:"DamageResistances"`
	DamageImmunities      []string       `json:"DamageImmunities"`
	ConditionImmunities   []string       `json:"ConditionImmunities"`
	Description           string         `json:"Description,omitempty"`
	ImageURL              string         `json:"ImageURL,omitempty"`
	Player                string         `json:"Player,omitempty"`
	Version               string         `json:"Version,omitempty"`
	FeatureIds            []string       `json:"FeatureIds"`
	Traits                []FeatureEntry `json:"Traits"`
	Actions               []FeatureEntry `json:"Actions"`
	Reactions             []FeatureEntry `json:"Reactions"`
	LegendaryActions      []FeatureEntry `json:"LegendaryActions"`
}

// WithID pairs a monster with its document id.
type WithID struct {
	ID string `json:"id"`
	Monster
}

// Normalized reports whether the document already carries a FeatureIds array,
// even an empty one.
func (m Monster) Normalized() bool {
	return m.FeatureIds != nil
}

// Decode unmarshals a stored monster document.
func Decode(data json.RawMessage) (Monster, error) {
	var m Monster
	if err := json.Unmarshal(data, &m); err != nil {
		return Monster{}, err
	}
	return m, nil
}
