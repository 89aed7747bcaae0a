package catalog

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/source"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("catalog")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Mode selects how entities are kept in memory
type Mode int

const (
	// ModeEager decodes every list during load, no reads happen afterwards
	ModeEager Mode = iota

	// ModeLazy decodes values, profiles and signatures on demand through the
	// decoder pool and keeps them in the configured caches
	ModeLazy
)

func (m Mode) String() string {
	switch m {
	case ModeEager:
		return "eager"
	case ModeLazy:
		return "lazy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "eager" or "lazy"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "eager", "":
		return ModeEager, nil
	case "lazy":
		return ModeLazy, nil
	default:
		return 0, fmt.Errorf("unknown catalog mode %q (expected eager or lazy)", s)
	}
}

// Options configure how a catalog is loaded
type Options struct {
	Mode Mode

	// Cache configures the entity caches (lazy mode, and the value-profiles cache in both modes)
	Cache cache.Config

	// Registry receives the cache counters (nil = a registry owned by the catalog)
	Registry metrics.Registry

	// UseTempFile makes LoadFile read from a copy of the file in TempDir
	UseTempFile bool

	// KeepTempFile keeps the temporary copy after Close
	KeepTempFile bool

	// TempDir is the directory of the temporary copy ("" = os.TempDir())
	TempDir string
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// LoadFile loads a catalog from a file. The file (or its temporary copy) is held
// open until the catalog is closed.
func LoadFile(path string, opts Options) (*Catalog, error) {
	var (
		src source.Source
		err error
	)
	if opts.UseTempFile {
		src, err = source.NewTempFileSource(path, opts.TempDir, opts.KeepTempFile)
	} else {
		src, err = source.NewFileSource(path, false)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return Load(src, opts)
}

// LoadBytes loads a catalog from a buffer. The buffer must not be modified afterwards.
func LoadBytes(buf []byte, opts Options) (*Catalog, error) {
	return Load(source.NewMemorySource(buf), opts)
}

// Load loads a catalog from src. The catalog owns src from now on. If loading fails
// src is closed and no catalog is returned.
func Load(src source.Source, opts Options) (*Catalog, error) {
	start := time.Now()
	pool := source.NewPool(src)

	c, err := load(pool, opts)
	if err != nil {
		if cerr := pool.Close(); cerr != nil {
			Logger.Warningf("closing source %s after failed load: %v", src.Name(), cerr)
		}
		return nil, err
	}

	Logger.Infof("loaded catalog %q from %s in %s mode (%d signatures, %d profiles) in %s",
		c.name, src.Name(), c.mode, c.signatures.len(), c.profiles.len(), time.Since(start))
	return c, nil
}

func load(pool *source.Pool, opts Options) (*Catalog, error) {
	d, err := pool.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer pool.Put(d)

	h, err := readFileHeader(d)
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		version:        h.Version,
		published:      time.Unix(h.Published, 0).UTC(),
		mode:           opts.Mode,
		pool:           pool,
		sections:       h.Sections,
		registry:       opts.Registry,
		componentIndex: xsync.NewMapOf[string, int](),
		propertyIndex:  xsync.NewMapOf[string, int](),
		profileIDs:     xsync.NewMapOf[int, int](),
	}
	if c.registry == nil {
		c.registry = metrics.NewRegistry()
	}

	// lists decoded in both modes
	if c.strings, err = decodeStrings(d, h.Sections[sectionStrings]); err != nil {
		return nil, err
	}
	if c.name, err = c.strings.get(h.NameRef, "catalog name"); err != nil {
		return nil, err
	}
	if c.headerNames, err = decodeHeaders(d, h.Sections[sectionHeaders], c.strings); err != nil {
		return nil, err
	}
	if err := c.loadComponents(d); err != nil {
		return nil, err
	}
	if err := c.loadProperties(d); err != nil {
		return nil, err
	}
	if err := c.loadProfileOffsets(d); err != nil {
		return nil, err
	}

	switch opts.Mode {
	case ModeEager:
		err = c.loadEager(d)
	case ModeLazy:
		err = c.loadLazy(opts.Cache)
	default:
		err = fmt.Errorf("unknown catalog mode %d", opts.Mode)
	}
	if err != nil {
		c.closeCaches()
		return nil, err
	}

	if err := c.validate(); err != nil {
		c.closeCaches()
		return nil, err
	}

	c.valueProfiles, err = cache.New[[]int32](opts.Cache.For(cache.EntityValueProfiles), cache.Options[[]int32]{
		Name:     string(cache.EntityValueProfiles),
		Registry: c.registry,
		Codec:    jsonCodec[[]int32]{},
	})
	if err != nil {
		c.closeCaches()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) loadComponents(d *source.Decoder) error {
	h := c.sections[sectionComponents]
	if err := d.Seek(int64(h.Start)); err != nil {
		return decodeError("components", err)
	}

	c.components = make([]*Component, h.Count)
	for i := range c.components {
		comp, err := decodeComponent(d, i, c.strings, c.headerNames)
		if err != nil {
			return err
		}
		c.components[i] = comp
		c.componentIndex.Store(comp.Name, i)
	}

	// distinct header names in order of appearance
	seen := make(map[string]bool, len(c.headerNames))
	for _, name := range c.headerNames {
		if !seen[name] {
			seen[name] = true
			c.headers = append(c.headers, name)
		}
	}
	return nil
}

func (c *Catalog) loadProperties(d *source.Decoder) error {
	h := c.sections[sectionProperties]
	if err := d.Seek(int64(h.Start)); err != nil {
		return decodeError("properties", err)
	}

	c.properties = make([]*Property, h.Count)
	for i := range c.properties {
		p, err := decodeProperty(d, i, c.strings)
		if err != nil {
			return err
		}
		c.properties[i] = p
		c.propertyIndex.Store(p.Name, i)
	}
	return nil
}

func (c *Catalog) loadProfileOffsets(d *source.Decoder) error {
	h := c.sections[sectionProfileOffsets]
	if err := d.Seek(int64(h.Start)); err != nil {
		return decodeError("profile offsets", err)
	}

	ints, err := readInts(d, int(h.Count)*2, "profile offsets")
	if err != nil {
		return err
	}

	profilesLength := c.sections[sectionProfiles].Length
	c.profileOffsets = make([]int32, h.Count)
	for i := range c.profileOffsets {
		id, off := int(ints[2*i]), ints[2*i+1]
		if off < 0 || off+profileHeaderWidth > profilesLength {
			return fmt.Errorf("%w: profile %d at offset %d outside of the profiles section", ErrCorruptCatalog, i, off)
		}
		c.profileOffsets[i] = off
		if _, loaded := c.profileIDs.LoadOrStore(id, i); loaded {
			return fmt.Errorf("%w: duplicate profile id %d", ErrCorruptCatalog, id)
		}
	}
	return nil
}

func (c *Catalog) loadEager(d *source.Decoder) error {
	// values
	h := c.sections[sectionValues]
	if err := d.Seek(int64(h.Start)); err != nil {
		return decodeError("values", err)
	}
	values := make([]*Value, h.Count)
	for i := range values {
		v, err := decodeValue(d, i, c.strings)
		if err != nil {
			return err
		}
		values[i] = v
	}
	c.values = eagerList("values", values)

	// profiles
	h = c.sections[sectionProfiles]
	profiles := make([]*Profile, h.Count)
	for i := range profiles {
		if err := d.Seek(int64(h.Start) + int64(c.profileOffsets[i])); err != nil {
			return decodeError("profiles", err)
		}
		p, err := decodeProfile(d, i, h.end())
		if err != nil {
			return err
		}
		profiles[i] = p
	}
	c.profiles = eagerList("profiles", profiles)

	// signatures
	h = c.sections[sectionSignatures]
	if err := d.Seek(int64(h.Start)); err != nil {
		return decodeError("signatures", err)
	}
	signatures := make([]*Signature, h.Count)
	for i := range signatures {
		s, err := decodeSignature(d, i, c.strings, len(c.components))
		if err != nil {
			return err
		}
		signatures[i] = s
	}
	c.signatures = eagerList("signatures", signatures)

	return c.validateEntities(values, profiles, signatures)
}

func (c *Catalog) loadLazy(conf cache.Config) error {
	var err error

	valuesHeader := c.sections[sectionValues]
	c.values, err = newLazyList(c, conf, cache.EntityValues, int(valuesHeader.Count), func(d *source.Decoder, i int) (*Value, error) {
		if err := d.Seek(int64(valuesHeader.Start) + int64(i)*valueWidth); err != nil {
			return nil, err
		}
		return decodeValue(d, i, c.strings)
	})
	if err != nil {
		return err
	}

	profilesHeader := c.sections[sectionProfiles]
	c.profiles, err = newLazyList(c, conf, cache.EntityProfiles, int(profilesHeader.Count), func(d *source.Decoder, i int) (*Profile, error) {
		if err := d.Seek(int64(profilesHeader.Start) + int64(c.profileOffsets[i])); err != nil {
			return nil, err
		}
		return decodeProfile(d, i, profilesHeader.end())
	})
	if err != nil {
		return err
	}

	signaturesHeader := c.sections[sectionSignatures]
	width := int64(signatureWidth(len(c.components)))
	c.signatures, err = newLazyList(c, conf, cache.EntitySignatures, int(signaturesHeader.Count), func(d *source.Decoder, i int) (*Signature, error) {
		if err := d.Seek(int64(signaturesHeader.Start) + int64(i)*width); err != nil {
			return nil, err
		}
		return decodeSignature(d, i, c.strings, len(c.components))
	})
	return err
}

// newLazyList creates the cache of an entity type and a loader reading through the pool
func newLazyList[T any](c *Catalog, conf cache.Config, entity cache.Entity, count int, decode func(d *source.Decoder, i int) (T, error)) (*entityList[T], error) {
	ch, err := cache.New[T](conf.For(entity), cache.Options[T]{
		Name:     string(entity),
		Registry: c.registry,
		Codec:    jsonCodec[T]{},
	})
	if err != nil {
		return nil, fmt.Errorf("%s cache: %w", entity, err)
	}

	load := func(i int) (T, error) {
		var v T
		err := c.pool.Do(func(d *source.Decoder) error {
			var err error
			v, err = decode(d, i)
			return err
		})
		if err != nil {
			return v, decodeError(fmt.Sprintf("%s %d", entity, i), err)
		}
		return v, nil
	}

	return lazyList[T](string(entity), count, ch, load), nil
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// validate checks the references of the eagerly decoded lists
func (c *Catalog) validate() error {
	values, profiles := c.values.len(), c.profiles.len()

	for _, comp := range c.components {
		if comp.DefaultProfile < -1 || comp.DefaultProfile >= profiles {
			return fmt.Errorf("%w: component %s has default profile %d of %d", ErrCorruptCatalog, comp.Name, comp.DefaultProfile, profiles)
		}
	}

	for _, p := range c.properties {
		if p.Component < 0 || p.Component >= len(c.components) {
			return fmt.Errorf("%w: property %s references component %d", ErrCorruptCatalog, p.Name, p.Component)
		}
		if p.ValueCount() > 0 && (p.FirstValue < 0 || p.LastValue >= values) {
			return fmt.Errorf("%w: property %s references values [%d, %d] of %d", ErrCorruptCatalog, p.Name, p.FirstValue, p.LastValue, values)
		}
		if p.DefaultValue < -1 || p.DefaultValue >= values {
			return fmt.Errorf("%w: property %s has default value %d", ErrCorruptCatalog, p.Name, p.DefaultValue)
		}
	}
	return nil
}

// validateEntities checks the references of fully decoded lists (eager mode)
func (c *Catalog) validateEntities(values []*Value, profiles []*Profile, signatures []*Signature) error {
	for _, v := range values {
		if v.Property < 0 || v.Property >= len(c.properties) {
			return fmt.Errorf("%w: value %d references property %d", ErrCorruptCatalog, v.Index, v.Property)
		}
	}
	for _, p := range profiles {
		if p.Component < 0 || p.Component >= len(c.components) {
			return fmt.Errorf("%w: profile %d references component %d", ErrCorruptCatalog, p.ID, p.Component)
		}
		for _, v := range p.Values {
			if v < 0 || int(v) >= len(values) {
				return fmt.Errorf("%w: profile %d references value %d", ErrCorruptCatalog, p.ID, v)
			}
		}
		for _, s := range p.Signatures {
			if s < 0 || int(s) >= len(signatures) {
				return fmt.Errorf("%w: profile %d references signature %d", ErrCorruptCatalog, p.ID, s)
			}
		}
	}
	for _, s := range signatures {
		for _, p := range s.Profiles {
			if p < -1 || int(p) >= len(profiles) {
				return fmt.Errorf("%w: signature %d references profile %d", ErrCorruptCatalog, s.Index, p)
			}
		}
	}
	return nil
}
