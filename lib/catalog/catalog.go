package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/source"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

// Catalog is an immutable, loaded set of signatures, profiles, properties and values.
//
// Thread-safety: all methods are safe for concurrent use. Entities returned by a
// catalog are shared and must not be modified.
type Catalog struct {
	name      string
	version   uint16
	published time.Time
	mode      Mode
	sections  [sectionCount]sectionHeader

	pool     *source.Pool
	registry metrics.Registry

	// decoded in both modes
	strings        stringTable
	headerNames    []string // headers section, in record order
	headers        []string // distinct header names
	components     []*Component
	properties     []*Property
	profileOffsets []int32
	componentIndex *xsync.MapOf[string, int]
	propertyIndex  *xsync.MapOf[string, int]
	profileIDs     *xsync.MapOf[int, int] // profile id -> profile index

	// eager slices or lazy caches
	values     *entityList[*Value]
	profiles   *entityList[*Profile]
	signatures *entityList[*Signature]

	// profile indexes carrying a value, resolved by scanning all profiles
	valueProfiles cache.Cache[[]int32]

	deviceOnce  sync.Once
	deviceIndex *xsync.MapOf[string, int]
	deviceErr   error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// Name returns the name stored in the catalog
func (c *Catalog) Name() string { return c.name }

// Version returns the format version of the catalog
func (c *Catalog) Version() uint16 { return c.version }

// Published returns the publication date of the catalog
func (c *Catalog) Published() time.Time { return c.published }

// Mode returns the mode the catalog was loaded in
func (c *Catalog) Mode() Mode { return c.mode }

// Source returns the name of the data source
func (c *Catalog) Source() string { return c.pool.Source().Name() }

// Headers returns the distinct request header names the catalog recognises, the
// first one is the primary header used for matching
func (c *Catalog) Headers() []string { return c.headers }

// Components returns all components in catalog order
func (c *Catalog) Components() []*Component { return c.components }

// ComponentByName returns the component with the given name
func (c *Catalog) ComponentByName(name string) (*Component, bool) {
	i, ok := c.componentIndex.Load(name)
	if !ok {
		return nil, false
	}
	return c.components[i], true
}

// Properties returns all properties in catalog order
func (c *Catalog) Properties() []*Property { return c.properties }

// PropertyByName returns the property with the given name
func (c *Catalog) PropertyByName(name string) (*Property, error) {
	i, ok := c.propertyIndex.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return c.properties[i], nil
}

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

func (c *Catalog) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// ValueCount returns the number of values
func (c *Catalog) ValueCount() int { return c.values.len() }

// ProfileCount returns the number of profiles
func (c *Catalog) ProfileCount() int { return c.profiles.len() }

// SignatureCount returns the number of signatures
func (c *Catalog) SignatureCount() int { return c.signatures.len() }

// Value returns the value with index i
func (c *Catalog) Value(i int) (*Value, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.values.get(i)
}

// Profile returns the profile with index i
func (c *Catalog) Profile(i int) (*Profile, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.profiles.get(i)
}

// Signature returns the signature with index i
func (c *Catalog) Signature(i int) (*Signature, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.signatures.get(i)
}

// ProfileByID returns the profile with the given id (nil if there is none)
func (c *Catalog) ProfileByID(id int) (*Profile, error) {
	i, ok := c.profileIDs.Load(id)
	if !ok {
		return nil, nil
	}
	return c.Profile(i)
}

// Values returns the values of a property in catalog order
func (c *Catalog) Values(p *Property) ([]*Value, error) {
	values := make([]*Value, 0, p.ValueCount())
	for i := p.FirstValue; i <= p.LastValue && p.ValueCount() > 0; i++ {
		v, err := c.Value(i)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ValueByName returns the value of a property by name
func (c *Catalog) ValueByName(p *Property, name string) (*Value, error) {
	values, err := c.Values(p)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if v.Name == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q for property %s", ErrUnknownValue, name, p.Name)
}

// ProfileValues returns the values of a profile that belong to a property
func (c *Catalog) ProfileValues(profile *Profile, p *Property) ([]*Value, error) {
	var values []*Value
	for _, vi := range profile.Values {
		if int(vi) < p.FirstValue || int(vi) > p.LastValue {
			continue
		}
		v, err := c.Value(int(vi))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// SignatureProfiles resolves the profiles of a signature in component order, absent
// components are skipped
func (c *Catalog) SignatureProfiles(s *Signature) ([]*Profile, error) {
	profiles := make([]*Profile, 0, len(s.Profiles))
	for _, pi := range s.Profiles {
		if pi < 0 {
			continue
		}
		p, err := c.Profile(int(pi))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// --------------------------------------------------------------------------
// Profile Search
// --------------------------------------------------------------------------

// FindProfiles returns the profiles carrying the value named value of the property
// named property. A nil filter searches all profiles, otherwise only the profiles of
// filter are considered (an empty filter yields an empty result).
func (c *Catalog) FindProfiles(property, value string, filter []*Profile) ([]*Profile, error) {
	p, err := c.PropertyByName(property)
	if err != nil {
		return nil, err
	}
	v, err := c.ValueByName(p, value)
	if err != nil {
		return nil, err
	}

	if filter != nil {
		result := make([]*Profile, 0, len(filter))
		for _, profile := range filter {
			if profile.HasValue(v.Index) {
				result = append(result, profile)
			}
		}
		return result, nil
	}

	indexes, err := c.valueProfiles.GetOrLoad(v.Index, c.scanValueProfiles)
	if err != nil {
		return nil, err
	}

	result := make([]*Profile, 0, len(indexes))
	for _, i := range indexes {
		profile, err := c.Profile(int(i))
		if err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, nil
}

// scanValueProfiles collects the indexes of all profiles carrying value
func (c *Catalog) scanValueProfiles(value int) ([]int32, error) {
	var indexes []int32
	for i := 0; i < c.profiles.len(); i++ {
		p, err := c.Profile(i)
		if err != nil {
			return nil, err
		}
		if p.HasValue(value) {
			indexes = append(indexes, int32(i))
		}
	}
	return indexes, nil
}

// --------------------------------------------------------------------------
// Device IDs
// --------------------------------------------------------------------------

// DeviceIDSeparator joins the profile ids of a device id
const DeviceIDSeparator = "-"

// DeviceID returns the device id of a signature: the ids of its profiles in
// component order joined by "-", 0 for absent components
func (c *Catalog) DeviceID(s *Signature) (string, error) {
	ids := make([]string, len(s.Profiles))
	for i, pi := range s.Profiles {
		if pi < 0 {
			ids[i] = "0"
			continue
		}
		p, err := c.Profile(int(pi))
		if err != nil {
			return "", err
		}
		ids[i] = strconv.Itoa(p.ID)
	}
	return strings.Join(ids, DeviceIDSeparator), nil
}

// ParseDeviceID splits a device id into profile ids. It fails if the id does not
// have exactly one numeric part per component.
func (c *Catalog) ParseDeviceID(id string) ([]int, error) {
	parts := strings.Split(id, DeviceIDSeparator)
	if len(parts) != len(c.components) {
		return nil, fmt.Errorf("device id %q has %d parts, expected %d", id, len(parts), len(c.components))
	}
	ids := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || part == "" || part[0] == '+' {
			return nil, fmt.Errorf("device id %q: invalid profile id %q", id, part)
		}
		ids[i] = n
	}
	return ids, nil
}

// SignatureByDeviceID returns the signature whose profiles form the device id.
// The index of all device ids is built on first use.
func (c *Catalog) SignatureByDeviceID(id string) (*Signature, bool, error) {
	c.deviceOnce.Do(func() {
		index := xsync.NewMapOf[string, int]()
		for i := 0; i < c.signatures.len(); i++ {
			s, err := c.Signature(i)
			if err != nil {
				c.deviceErr = err
				return
			}
			deviceID, err := c.DeviceID(s)
			if err != nil {
				c.deviceErr = err
				return
			}
			// the first signature of a device id wins
			index.LoadOrStore(deviceID, i)
		}
		c.deviceIndex = index
	})
	if c.deviceErr != nil {
		return nil, false, c.deviceErr
	}

	i, ok := c.deviceIndex.Load(id)
	if !ok {
		return nil, false, nil
	}
	s, err := c.Signature(i)
	return s, err == nil, err
}

// --------------------------------------------------------------------------
// Stats & Lifecycle
// --------------------------------------------------------------------------

// Registry returns the metrics registry holding the cache counters
func (c *Catalog) Registry() metrics.Registry { return c.registry }

// CacheStats returns the stats of all entity caches, keyed by entity name.
// Entities without a cache (eager mode) are omitted.
func (c *Catalog) CacheStats() map[cache.Entity]cache.Stats {
	stats := map[cache.Entity]cache.Stats{
		cache.EntityValueProfiles: c.valueProfiles.Stats(),
	}
	if c.values.cache != nil {
		stats[cache.EntityValues] = c.values.cache.Stats()
	}
	if c.profiles.cache != nil {
		stats[cache.EntityProfiles] = c.profiles.cache.Stats()
	}
	if c.signatures.cache != nil {
		stats[cache.EntitySignatures] = c.signatures.cache.Stats()
	}
	return stats
}

// SortedEntities returns the keys of a stats map in a stable order
func SortedEntities(stats map[cache.Entity]cache.Stats) []cache.Entity {
	keys := make([]cache.Entity, 0, len(stats))
	for e := range stats {
		keys = append(keys, e)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// PoolStats returns the stats of the decoder pool
func (c *Catalog) PoolStats() source.PoolStats { return c.pool.Stats() }

// ResetCaches removes all cached entities and clears the counters
func (c *Catalog) ResetCaches() {
	c.valueProfiles.Reset()
	c.values.reset()
	c.profiles.reset()
	c.signatures.reset()
}

// closeCaches closes the entity caches (the pool is closed separately)
func (c *Catalog) closeCaches() error {
	var errs []error
	if c.values != nil {
		errs = append(errs, c.values.close())
	}
	if c.profiles != nil {
		errs = append(errs, c.profiles.close())
	}
	if c.signatures != nil {
		errs = append(errs, c.signatures.close())
	}
	if c.valueProfiles != nil {
		errs = append(errs, c.valueProfiles.Close())
	}
	return errors.Join(errs...)
}

// Close releases the decoder pool and the caches. A temporary copy of the catalog
// file is deleted unless it should be kept. Only the first call has an effect.
func (c *Catalog) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = errors.Join(c.closeCaches(), c.pool.Close())
		Logger.Infof("closed catalog %q", c.name)
	})
	return c.closeErr
}
