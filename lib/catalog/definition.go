package catalog

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// JSON Definition
// --------------------------------------------------------------------------

// Definition is the JSON source of a catalog, entities reference each other by name
// (components, properties, values) or by id (profiles)
type Definition struct {
	Name       string                `json:"name"`
	Published  time.Time             `json:"published"`
	Components []ComponentDefinition `json:"components"`
	Properties []PropertyDefinition  `json:"properties"`
	Profiles   []ProfileDefinition   `json:"profiles"`
	Signatures []SignatureDefinition `json:"signatures"`
}

type ComponentDefinition struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Headers        []string `json:"headers"`
	DefaultProfile int      `json:"default_profile,omitempty"` // profile id
}

type PropertyDefinition struct {
	Name         string   `json:"name"`
	Component    string   `json:"component"`
	Category     string   `json:"category,omitempty"`
	Description  string   `json:"description,omitempty"`
	Type         string   `json:"type,omitempty"`
	DisplayOrder int      `json:"display_order,omitempty"`
	List         bool     `json:"list,omitempty"`
	Mandatory    bool     `json:"mandatory,omitempty"`
	Values       []string `json:"values"`
	Default      string   `json:"default,omitempty"`
}

type ProfileDefinition struct {
	ID        int                 `json:"id"`
	Component string              `json:"component"`
	Rank      int                 `json:"rank"`
	Values    map[string][]string `json:"values"` // property name -> value names
}

type SignatureDefinition struct {
	String   string `json:"string"`
	Rank     int    `json:"rank"`
	Profiles []int  `json:"profiles"` // profile ids
}

// ParseDefinition decodes a JSON definition
func ParseDefinition(r io.Reader) (*Definition, error) {
	def := &Definition{}
	if err := json.NewDecoder(r).Decode(def); err != nil {
		return nil, fmt.Errorf("decode catalog definition: %w", err)
	}
	return def, nil
}

// Builder converts the definition into a catalog builder
func (def *Definition) Builder() (*Builder, error) {
	b := NewBuilder(def.Name, def.Published)

	components := make(map[string]int, len(def.Components))
	for _, c := range def.Components {
		if _, dup := components[c.Name]; dup {
			return nil, fmt.Errorf("duplicate component %q", c.Name)
		}
		components[c.Name] = b.AddComponent(c.ID, c.Name, c.Headers...)
	}

	type propertyRef struct {
		index  int
		values map[string]int
	}
	properties := make(map[string]propertyRef, len(def.Properties))
	for _, p := range def.Properties {
		component, ok := components[p.Component]
		if !ok {
			return nil, fmt.Errorf("property %s: unknown component %q", p.Name, p.Component)
		}
		if _, dup := properties[p.Name]; dup {
			return nil, fmt.Errorf("duplicate property %q", p.Name)
		}
		vt, err := ParseValueType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}

		ref := propertyRef{values: make(map[string]int, len(p.Values))}
		ref.index = b.AddProperty(PropertySpec{
			Component:    component,
			Name:         p.Name,
			Category:     p.Category,
			Description:  p.Description,
			ValueType:    vt,
			DisplayOrder: p.DisplayOrder,
			IsList:       p.List,
			IsMandatory:  p.Mandatory,
		})
		for _, v := range p.Values {
			if _, dup := ref.values[v]; dup {
				return nil, fmt.Errorf("property %s: duplicate value %q", p.Name, v)
			}
			ref.values[v] = b.AddValue(ref.index, v, "")
		}
		if p.Default != "" {
			v, ok := ref.values[p.Default]
			if !ok {
				return nil, fmt.Errorf("property %s: unknown default value %q", p.Name, p.Default)
			}
			b.SetDefaultValue(ref.index, v)
		}
		properties[p.Name] = ref
	}

	profiles := make(map[int]int, len(def.Profiles))
	for _, p := range def.Profiles {
		component, ok := components[p.Component]
		if !ok {
			return nil, fmt.Errorf("profile %d: unknown component %q", p.ID, p.Component)
		}
		var values []int
		for property, names := range p.Values {
			ref, ok := properties[property]
			if !ok {
				return nil, fmt.Errorf("profile %d: %w %q", p.ID, ErrUnknownProperty, property)
			}
			for _, name := range names {
				v, ok := ref.values[name]
				if !ok {
					return nil, fmt.Errorf("profile %d: %w %q for property %s", p.ID, ErrUnknownValue, name, property)
				}
				values = append(values, v)
			}
		}
		profiles[p.ID] = b.AddProfile(component, p.ID, p.Rank, values...)
	}

	for _, c := range def.Components {
		if c.DefaultProfile == 0 {
			continue
		}
		p, ok := profiles[c.DefaultProfile]
		if !ok {
			return nil, fmt.Errorf("component %s: unknown default profile %d", c.Name, c.DefaultProfile)
		}
		b.SetDefaultProfile(components[c.Name], p)
	}

	for _, s := range def.Signatures {
		indexes := make([]int, 0, len(s.Profiles))
		for _, id := range s.Profiles {
			p, ok := profiles[id]
			if !ok {
				return nil, fmt.Errorf("signature %q: unknown profile %d", s.String, id)
			}
			indexes = append(indexes, p)
		}
		b.AddSignature(s.String, s.Rank, indexes...)
	}

	return b, b.Err()
}
