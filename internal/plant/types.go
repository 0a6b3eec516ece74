// Package plant holds the botanical record model and the property
// normalizer that turns raw locale-scoped property rows into a typed,
// ordered view of one plant.
package plant

import "time"

// ValueType is the closed set of property value kinds.
type ValueType string

const (
	TypeRadio  ValueType = "radio"
	TypeCheck  ValueType = "check"
	TypeText   ValueType = "text"
	TypeImages ValueType = "images"
	TypeBool   ValueType = "bool"
	TypeLines  ValueType = "lines"
	TypeString ValueType = "string"
)

var validTypes = map[ValueType]struct{}{
	TypeRadio:  {},
	TypeCheck:  {},
	TypeText:   {},
	TypeImages: {},
	TypeBool:   {},
	TypeLines:  {},
	TypeString: {},
}

// Valid reports whether t belongs to the closed set.
func (t ValueType) Valid() bool {
	_, ok := validTypes[t]
	return ok
}

// Well-known property names.
const (
	PropNames       = "names"
	PropImages      = "images"
	PropGrowthHabit = "growth_habit"
)

// PropertyRow is one locale-scoped named value list attached to a plant,
// as read from the store. EncodedValues is the raw JSON text.
type PropertyRow struct {
	PlantID       int64
	Locale        string
	Name          string
	EncodedValues string
	Type          ValueType
}

// Record is a plant row from the store.
type Record struct {
	ID         int64
	Identifier string
	Names      []string
	Images     []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasImages reports whether at least one image is attached.
func (r Record) HasImages() bool {
	return len(r.Images) > 0
}

// NormalizedProperty is a typed value list owned by a single Proxy.
type NormalizedProperty struct {
	Name   string
	Type   ValueType
	Values []string
}
