package catalog

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/source"
	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// Entity Lists
// --------------------------------------------------------------------------

// entityList gives indexed access to one entity type. Eager lists hold every
// entity in memory, lazy lists decode entities on demand behind a cache.
type entityList[T any] struct {
	name  string
	count int
	items []T

	cache cache.Cache[T]
	load  cache.Loader[T]
}

func eagerList[T any](name string, items []T) *entityList[T] {
	return &entityList[T]{name: name, count: len(items), items: items}
}

func lazyList[T any](name string, count int, c cache.Cache[T], load cache.Loader[T]) *entityList[T] {
	return &entityList[T]{name: name, count: count, cache: c, load: load}
}

func (l *entityList[T]) get(i int) (T, error) {
	if i < 0 || i >= l.count {
		var zero T
		return zero, fmt.Errorf("%s index %d out of range [0, %d)", l.name, i, l.count)
	}
	if l.items != nil {
		return l.items[i], nil
	}
	return l.cache.GetOrLoad(i, l.load)
}

func (l *entityList[T]) len() int { return l.count }

func (l *entityList[T]) reset() {
	if l.cache != nil {
		l.cache.Reset()
	}
}

func (l *entityList[T]) close() error {
	if l.cache != nil {
		return l.cache.Close()
	}
	return nil
}

// jsonCodec encodes entities for the badger cache strategy
type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v T) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// --------------------------------------------------------------------------
// Record Decoders
// --------------------------------------------------------------------------

// stringTable resolves string references of records
type stringTable []string

func (t stringTable) get(ref int32, what string) (string, error) {
	if ref < 0 || int(ref) >= len(t) {
		return "", fmt.Errorf("%w: %s references string %d of %d", ErrCorruptCatalog, what, ref, len(t))
	}
	return t[ref], nil
}

func readInts(d *source.Decoder, n int, what string) ([]int32, error) {
	ints, err := d.Int32s(n)
	if err != nil {
		return nil, decodeError(what, err)
	}
	return ints, nil
}

func decodeStrings(d *source.Decoder, h sectionHeader) (stringTable, error) {
	if err := d.Seek(int64(h.Start)); err != nil {
		return nil, decodeError("strings", err)
	}
	table := make(stringTable, h.Count)
	for i := range table {
		s, err := d.String16()
		if err != nil {
			return nil, decodeError(fmt.Sprintf("string %d", i), err)
		}
		if d.Pos() > h.end() {
			return nil, fmt.Errorf("%w: string %d exceeds the strings section", ErrCorruptCatalog, i)
		}
		table[i] = s
	}
	if d.Pos() != h.end() {
		return nil, fmt.Errorf("%w: strings section has %d trailing bytes", ErrCorruptCatalog, h.end()-d.Pos())
	}
	return table, nil
}

func decodeHeaders(d *source.Decoder, h sectionHeader, strs stringTable) ([]string, error) {
	if err := d.Seek(int64(h.Start)); err != nil {
		return nil, decodeError("headers", err)
	}
	refs, err := readInts(d, int(h.Count), "headers")
	if err != nil {
		return nil, err
	}
	headers := make([]string, len(refs))
	for i, ref := range refs {
		if headers[i], err = strs.get(ref, "header"); err != nil {
			return nil, err
		}
	}
	return headers, nil
}

func decodeComponent(d *source.Decoder, i int, strs stringTable, headers []string) (*Component, error) {
	f, err := readInts(d, 5, "component")
	if err != nil {
		return nil, err
	}
	c := &Component{Index: i, ID: int(f[0]), DefaultProfile: int(f[2])}
	if c.Name, err = strs.get(f[1], "component"); err != nil {
		return nil, err
	}
	first, count := int(f[3]), int(f[4])
	if first < 0 || count < 0 || first+count > len(headers) {
		return nil, fmt.Errorf("%w: component %d references headers [%d, %d) of %d", ErrCorruptCatalog, i, first, first+count, len(headers))
	}
	c.Headers = headers[first : first+count : first+count]
	return c, nil
}

func decodeProperty(d *source.Decoder, i int, strs stringTable) (*Property, error) {
	b, err := d.Bytes(propertyWidth)
	if err != nil {
		return nil, decodeError("property", err)
	}

	le := func(off int) int32 { return int32(binary.LittleEndian.Uint32(b[off:])) }

	p := &Property{
		Index:        i,
		Component:    int(le(0)),
		ValueType:    ValueType(b[16]),
		DisplayOrder: int(le(17)),
		IsList:       b[21] != 0,
		IsMandatory:  b[22] != 0,
		FirstValue:   int(le(23)),
		LastValue:    int(le(27)),
		DefaultValue: int(le(31)),
	}
	if p.Name, err = strs.get(le(4), "property name"); err != nil {
		return nil, err
	}
	if p.Category, err = strs.get(le(8), "property category"); err != nil {
		return nil, err
	}
	if p.Description, err = strs.get(le(12), "property description"); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeValue(d *source.Decoder, i int, strs stringTable) (*Value, error) {
	f, err := readInts(d, 3, "value")
	if err != nil {
		return nil, err
	}
	v := &Value{Index: i, Property: int(f[0])}
	if v.Name, err = strs.get(f[1], "value name"); err != nil {
		return nil, err
	}
	if v.Description, err = strs.get(f[2], "value description"); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeProfile reads a variable width profile record that must end before limit
func decodeProfile(d *source.Decoder, i int, limit int64) (*Profile, error) {
	f, err := readInts(d, 5, "profile")
	if err != nil {
		return nil, err
	}
	valueCount, signatureCount := int64(f[3]), int64(f[4])
	if valueCount < 0 || signatureCount < 0 || d.Pos()+4*(valueCount+signatureCount) > limit {
		return nil, fmt.Errorf("%w: profile %d with %d values and %d signatures exceeds its section", ErrCorruptCatalog, i, valueCount, signatureCount)
	}

	p := &Profile{Index: i, Component: int(f[0]), ID: int(f[1]), Rank: int(f[2])}
	if p.Values, err = readInts(d, int(valueCount), "profile values"); err != nil {
		return nil, err
	}
	if p.Signatures, err = readInts(d, int(signatureCount), "profile signatures"); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeSignature(d *source.Decoder, i int, strs stringTable, components int) (*Signature, error) {
	f, err := readInts(d, 2+components, "signature")
	if err != nil {
		return nil, err
	}
	s := &Signature{Index: i, Rank: int(f[0]), Profiles: f[2:]}
	if s.String, err = strs.get(f[1], "signature"); err != nil {
		return nil, err
	}
	return s, nil
}
