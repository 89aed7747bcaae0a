package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"time"
)

// --------------------------------------------------------------------------
// Builder
// --------------------------------------------------------------------------

// PropertySpec describes a property added to a Builder
type PropertySpec struct {
	Component    int
	Name         string
	Category     string
	Description  string
	ValueType    ValueType
	DisplayOrder int
	IsList       bool
	IsMandatory  bool
}

type builderComponent struct {
	id             int
	name           string
	headers        []string
	defaultProfile int
}

type builderProperty struct {
	spec         PropertySpec
	defaultValue int
}

type builderValue struct {
	property    int
	name        string
	description string
}

type builderProfile struct {
	component int
	id        int
	rank      int
	values    []int
}

type builderSignature struct {
	str      string
	rank     int
	profiles []int
}

// Builder assembles a catalog in memory and writes it in the binary format.
// Indexes returned by the Add methods are builder indexes, values are reordered on
// write so the values of each property are contiguous. The first error is kept and
// reported by WriteTo and Bytes.
//
// Thread-safety: a Builder is NOT thread-safe.
type Builder struct {
	name       string
	published  time.Time
	components []builderComponent
	properties []builderProperty
	values     []builderValue
	profiles   []builderProfile
	signatures []builderSignature
	profileIDs map[int]bool
	err        error
}

// NewBuilder creates an empty catalog builder
func NewBuilder(name string, published time.Time) *Builder {
	return &Builder{
		name:       name,
		published:  published,
		profileIDs: make(map[int]bool),
	}
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}

// Err returns the first error of the Add methods
func (b *Builder) Err() error { return b.err }

// AddComponent adds a component with the request headers relevant to it
func (b *Builder) AddComponent(id int, name string, headers ...string) int {
	b.components = append(b.components, builderComponent{
		id:             id,
		name:           name,
		headers:        headers,
		defaultProfile: -1,
	})
	return len(b.components) - 1
}

// SetDefaultProfile sets the default profile of a component
func (b *Builder) SetDefaultProfile(component, profile int) {
	if component < 0 || component >= len(b.components) {
		b.fail("default profile for unknown component %d", component)
		return
	}
	if profile < 0 || profile >= len(b.profiles) || b.profiles[profile].component != component {
		b.fail("profile %d is not a profile of component %d", profile, component)
		return
	}
	b.components[component].defaultProfile = profile
}

// AddProperty adds a property to a component
func (b *Builder) AddProperty(spec PropertySpec) int {
	if spec.Component < 0 || spec.Component >= len(b.components) {
		b.fail("property %s: unknown component %d", spec.Name, spec.Component)
	}
	b.properties = append(b.properties, builderProperty{spec: spec, defaultValue: -1})
	return len(b.properties) - 1
}

// AddValue adds a value to a property
func (b *Builder) AddValue(property int, name, description string) int {
	if property < 0 || property >= len(b.properties) {
		b.fail("value %s: unknown property %d", name, property)
	}
	b.values = append(b.values, builderValue{property: property, name: name, description: description})
	return len(b.values) - 1
}

// SetDefaultValue sets the default value of a property
func (b *Builder) SetDefaultValue(property, value int) {
	if property < 0 || property >= len(b.properties) || value < 0 || value >= len(b.values) || b.values[value].property != property {
		b.fail("value %d is not a value of property %d", value, property)
		return
	}
	b.properties[property].defaultValue = value
}

// AddProfile adds a profile with the given values to a component
func (b *Builder) AddProfile(component, id, rank int, values ...int) int {
	if component < 0 || component >= len(b.components) {
		b.fail("profile %d: unknown component %d", id, component)
	}
	if b.profileIDs[id] {
		b.fail("duplicate profile id %d", id)
	}
	if id <= 0 {
		b.fail("profile id %d must be positive", id)
	}
	b.profileIDs[id] = true
	for _, v := range values {
		if v < 0 || v >= len(b.values) {
			b.fail("profile %d: unknown value %d", id, v)
		}
	}
	b.profiles = append(b.profiles, builderProfile{component: component, id: id, rank: rank, values: values})
	return len(b.profiles) - 1
}

// AddSignature adds a signature string for a set of profiles (at most one per component)
func (b *Builder) AddSignature(s string, rank int, profiles ...int) int {
	seen := make(map[int]bool, len(profiles))
	for _, p := range profiles {
		if p < 0 || p >= len(b.profiles) {
			b.fail("signature %q: unknown profile %d", s, p)
			continue
		}
		component := b.profiles[p].component
		if seen[component] {
			b.fail("signature %q: two profiles of component %d", s, component)
		}
		seen[component] = true
	}
	b.signatures = append(b.signatures, builderSignature{str: s, rank: rank, profiles: profiles})
	return len(b.signatures) - 1
}

// Bytes returns the binary catalog
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the binary catalog to w
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}

	sections, name, err := b.encode()
	if err != nil {
		return 0, err
	}

	var header recordBuffer
	header = append(header, Magic[:]...)
	header.putUint16(FormatVersion)
	header.putInt64(b.published.Unix())
	header.putInt32(name)

	offset := int32(fileHeaderSize)
	for s := section(0); s < sectionCount; s++ {
		length := int32(len(sections[s].data))
		if s == sectionReserved {
			header.putInt32(0)
			header.putInt32(0)
			header.putInt32(0)
			continue
		}
		header.putInt32(offset)
		header.putInt32(length)
		header.putInt32(int32(sections[s].count))
		offset += length
	}

	total := int64(0)
	n, err := w.Write(header)
	total += int64(n)
	if err != nil {
		return total, err
	}
	for s := section(0); s < sectionCount; s++ {
		n, err := w.Write(sections[s].data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type encodedSection struct {
	data  recordBuffer
	count int
}

// encode renders all sections and returns them with the string index of the catalog name
func (b *Builder) encode() ([sectionCount]encodedSection, int32, error) {
	var sections [sectionCount]encodedSection

	strs := newStringInterner()
	name := strs.ref(b.name)

	// values are stored grouped by property, in insertion order within a property
	order := make([]int, len(b.values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return b.values[order[i]].property < b.values[order[j]].property
	})
	valueIndex := make([]int32, len(b.values))
	for newIdx, oldIdx := range order {
		valueIndex[oldIdx] = int32(newIdx)
	}

	// components and headers
	comps, headers := &sections[sectionComponents], &sections[sectionHeaders]
	for _, c := range b.components {
		comps.data.putInt32(int32(c.id))
		comps.data.putInt32(strs.ref(c.name))
		comps.data.putInt32(int32(c.defaultProfile))
		comps.data.putInt32(int32(headers.count))
		comps.data.putInt32(int32(len(c.headers)))
		comps.count++
		for _, h := range c.headers {
			headers.data.putInt32(strs.ref(h))
			headers.count++
		}
	}

	// properties with their value ranges
	props := &sections[sectionProperties]
	for pi, p := range b.properties {
		first, last := int32(0), int32(-1)
		for newIdx, oldIdx := range order {
			if b.values[oldIdx].property != pi {
				continue
			}
			if last < first {
				first = int32(newIdx)
			}
			last = int32(newIdx)
		}
		def := int32(-1)
		if p.defaultValue >= 0 {
			def = valueIndex[p.defaultValue]
		}

		props.data.putInt32(int32(p.spec.Component))
		props.data.putInt32(strs.ref(p.spec.Name))
		props.data.putInt32(strs.ref(p.spec.Category))
		props.data.putInt32(strs.ref(p.spec.Description))
		props.data.putUint8(uint8(p.spec.ValueType))
		props.data.putInt32(int32(p.spec.DisplayOrder))
		props.data.putBool(p.spec.IsList)
		props.data.putBool(p.spec.IsMandatory)
		props.data.putInt32(first)
		props.data.putInt32(last)
		props.data.putInt32(def)
		props.count++
	}

	// values
	vals := &sections[sectionValues]
	for _, oldIdx := range order {
		v := b.values[oldIdx]
		vals.data.putInt32(int32(v.property))
		vals.data.putInt32(strs.ref(v.name))
		vals.data.putInt32(strs.ref(v.description))
		vals.count++
	}

	// signatures, and the back references of the profiles
	profileSignatures := make([][]int32, len(b.profiles))
	sigs := &sections[sectionSignatures]
	for si, s := range b.signatures {
		slots := make([]int32, len(b.components))
		for i := range slots {
			slots[i] = -1
		}
		for _, p := range s.profiles {
			slots[b.profiles[p].component] = int32(p)
			profileSignatures[p] = append(profileSignatures[p], int32(si))
		}

		sigs.data.putInt32(int32(s.rank))
		sigs.data.putInt32(strs.ref(s.str))
		for _, slot := range slots {
			sigs.data.putInt32(slot)
		}
		sigs.count++
	}

	// profiles and their offsets
	profs, offsets := &sections[sectionProfiles], &sections[sectionProfileOffsets]
	for pi, p := range b.profiles {
		values := make([]int32, len(p.values))
		for i, v := range p.values {
			values[i] = valueIndex[v]
		}
		slices.Sort(values)
		values = slices.Compact(values)

		offsets.data.putInt32(int32(p.id))
		offsets.data.putInt32(int32(len(profs.data)))
		offsets.count++

		profs.data.putInt32(int32(p.component))
		profs.data.putInt32(int32(p.id))
		profs.data.putInt32(int32(p.rank))
		profs.data.putInt32(int32(len(values)))
		profs.data.putInt32(int32(len(profileSignatures[pi])))
		for _, v := range values {
			profs.data.putInt32(v)
		}
		for _, s := range profileSignatures[pi] {
			profs.data.putInt32(s)
		}
		profs.count++
	}

	// the string table is written last, after every reference was interned
	table := &sections[sectionStrings]
	for _, s := range strs.list {
		if len(s) > math.MaxUint16 {
			return sections, 0, fmt.Errorf("string of %d bytes exceeds the maximum length %d", len(s), math.MaxUint16)
		}
		table.data.putUint16(uint16(len(s)))
		table.data = append(table.data, s...)
		table.count++
	}

	total := int64(fileHeaderSize)
	for _, s := range sections {
		total += int64(len(s.data))
	}
	if total > math.MaxInt32 {
		return sections, 0, fmt.Errorf("catalog of %d bytes exceeds the format limit", total)
	}

	return sections, name, nil
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

type stringInterner struct {
	index map[string]int32
	list  []string
}

func newStringInterner() *stringInterner {
	return &stringInterner{index: make(map[string]int32)}
}

func (s *stringInterner) ref(str string) int32 {
	if i, ok := s.index[str]; ok {
		return i
	}
	i := int32(len(s.list))
	s.index[str] = i
	s.list = append(s.list, str)
	return i
}

// recordBuffer appends little-endian values
type recordBuffer []byte

func (r *recordBuffer) putUint8(v uint8) { *r = append(*r, v) }

func (r *recordBuffer) putBool(v bool) {
	if v {
		r.putUint8(1)
	} else {
		r.putUint8(0)
	}
}

func (r *recordBuffer) putUint16(v uint16) { *r = binary.LittleEndian.AppendUint16(*r, v) }

func (r *recordBuffer) putInt32(v int32) { *r = binary.LittleEndian.AppendUint32(*r, uint32(v)) }

func (r *recordBuffer) putInt64(v int64) { *r = binary.LittleEndian.AppendUint64(*r, uint64(v)) }
