package catalog

import (
	"fmt"
	"slices"
)

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

// All entities are immutable once created. Pointers returned by a Catalog stay
// valid for its whole lifetime, even if the entity is evicted from a cache.

// ValueType describes how the values of a property are interpreted
type ValueType uint8

const (
	ValueTypeString ValueType = iota
	ValueTypeInt
	ValueTypeDouble
	ValueTypeBool
	ValueTypeJavaScript
)

var valueTypeNames = []string{"string", "int", "double", "bool", "javascript"}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", uint8(t))
}

// ParseValueType parses the name of a value type ("" = string)
func ParseValueType(s string) (ValueType, error) {
	if s == "" {
		return ValueTypeString, nil
	}
	for i, name := range valueTypeNames {
		if name == s {
			return ValueType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// Component is a device sub-component (e.g. hardware, platform, browser).
// Every profile belongs to exactly one component.
type Component struct {
	Index          int      `json:"index"`
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	DefaultProfile int      `json:"default_profile"` // profile index, -1 if none
	Headers        []string `json:"headers"`         // request headers relevant to this component
}

// HasHeader reports if the header is listed for the component
func (c *Component) HasHeader(name string) bool {
	return slices.Contains(c.Headers, name)
}

// Property is a named attribute whose values are carried by profiles
type Property struct {
	Index        int       `json:"index"`
	Component    int       `json:"component"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	ValueType    ValueType `json:"value_type"`
	DisplayOrder int       `json:"display_order"`
	IsList       bool      `json:"is_list"`
	IsMandatory  bool      `json:"is_mandatory"`
	FirstValue   int       `json:"first_value"` // first value index of the property
	LastValue    int       `json:"last_value"`  // last value index of the property (inclusive)
	DefaultValue int       `json:"default_value"`
}

// ValueCount returns the number of values of the property
func (p *Property) ValueCount() int {
	if p.LastValue < p.FirstValue {
		return 0
	}
	return p.LastValue - p.FirstValue + 1
}

// Value belongs to exactly one property
type Value struct {
	Index       int    `json:"index"`
	Property    int    `json:"property"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Profile is a bundle of values for one component
type Profile struct {
	Index      int     `json:"index"`
	Component  int     `json:"component"`
	ID         int     `json:"id"`
	Rank       int     `json:"rank"`
	Values     []int32 `json:"values"`     // sorted value indexes
	Signatures []int32 `json:"signatures"` // signature indexes referencing the profile
}

// HasValue reports if the profile carries the value index
func (p *Profile) HasValue(value int) bool {
	_, found := slices.BinarySearch(p.Values, int32(value))
	return found
}

// Signature is a reference string with one profile slot per component.
// It is the unit the matchers compare against.
type Signature struct {
	Index    int     `json:"index"`
	Rank     int     `json:"rank"`
	String   string  `json:"string"`
	Profiles []int32 `json:"profiles"` // profile index per component, -1 = absent
}
