// Package feature implements the shared-feature subsystem: the feature
// repository, reference resolution across monsters, rebuilding of embedded
// category arrays, and the scoped edit/delete coordinator.
package feature

import (
	"encoding/json"
	"fmt"
)

// Category is the stat-block section a feature belongs to.
type Category string

const (
	CategoryTraits           Category = "Traits"
	CategoryActions          Category = "Actions"
	CategoryReactions        Category = "Reactions"
	CategoryLegendaryActions Category = "LegendaryActions"
)

// Categories in stat-block order. Rebuilds and migration extraction both
// follow this order.
var Categories = []Category{CategoryTraits, CategoryActions, CategoryReactions, CategoryLegendaryActions}

func (c Category) Valid() bool {
	switch c {
	case CategoryTraits, CategoryActions, CategoryReactions, CategoryLegendaryActions:
		return true
	}
	return false
}

// Feature is a named, categorized block of stat-block text shared by any
// number of monsters.
type Feature struct {
	Name     string   `json:"Name"`
	Content  string   `json:"Content"`
	Usage    string   `json:"Usage,omitempty"`
	Category Category `json:"Category"`
}

// WithID pairs a feature with its document id.
type WithID struct {
	ID string `json:"id"`
	Feature
}

const (
	maxNameLen    = 100
	maxContentLen = 5000
	maxUsageLen   = 200
)

// ValidationError carries per-field detail for a malformed feature payload.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid feature: %d field error(s)", len(e.Fields))
}

// Validate checks the boundary constraints on a feature payload.
func Validate(f Feature) error {
	fields := make(map[string]string)
	if f.Name == "" {
		fields["Name"] = "name is required"
	}
	if len(f.Name) > maxNameLen {
		fields["Name"] = "name too long"
	}
	if f.Content == "" {
		fields["Content"] = "content is required"
	}
	if len(f.Content) > maxContentLen {
		fields["Content"] = "content too long"
	}
	if len(f.Usage) > maxUsageLen {
		fields["Usage"] = "usage too long"
	}
	if !f.Category.Valid() {
		fields["Category"] = "unknown category"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Decode unmarshals a stored feature document.
func Decode(data json.RawMessage) (Feature, error) {
	var f Feature
	if err := json.Unmarshal(data, &f); err != nil {
		return Feature{}, err
	}
	return f, nil
}
