package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Strategies and Entities
// --------------------------------------------------------------------------

// Strategy selects the eviction strategy of a cache
type Strategy string

const (
	StrategyLRU    Strategy = "lru"    // least recently used (default)
	StrategyLFU    Strategy = "lfu"    // least frequently used
	StrategyNone   Strategy = "none"   // caching disabled
	StrategyBadger Strategy = "badger" // LRU index, values kept in a badger store
)

// Entity names a lazily resolved entity type of the catalog
type Entity string

const (
	EntityValues        Entity = "values"
	EntityProfiles      Entity = "profiles"
	EntitySignatures    Entity = "signatures"
	EntityValueProfiles Entity = "value-profiles" // profiles carrying a value (resolved by scanning)
)

// Entities lists all entity types in a stable order
var Entities = []Entity{EntityValues, EntityProfiles, EntitySignatures, EntityValueProfiles}

// --------------------------------------------------------------------------
// Settings
// --------------------------------------------------------------------------

// Setting configures the cache of one entity type
type Setting struct {
	Capacity int      // maximum number of entries (0 = caching disabled)
	Strategy Strategy // eviction strategy ("" = lru)
	Dir      string   // directory for StrategyBadger ("" = in memory)
}

func (s Setting) String() string {
	if s.Capacity == 0 {
		return string(StrategyNone)
	}
	strategy := s.Strategy
	if strategy == "" {
		strategy = StrategyLRU
	}
	return fmt.Sprintf("%s:%d", strategy, s.Capacity)
}

// DefaultSetting is used for entities without an explicit setting
var DefaultSetting = Setting{Capacity: 1000, Strategy: StrategyLRU}

// Config maps entity types to cache settings
type Config map[Entity]Setting

// For returns the setting of an entity (DefaultSetting if absent)
func (c Config) For(e Entity) Setting {
	if s, ok := c[e]; ok {
		return s
	}
	return DefaultSetting
}

// String renders the config in the format accepted by ParseConfig
func (c Config) String() string {
	keys := make([]string, 0, len(c))
	for e := range c {
		keys = append(keys, string(e))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+c[Entity(k)].String())
	}
	return strings.Join(parts, ",")
}

// LowMemoryTemplate keeps only small caches, most reads go to the data source
func LowMemoryTemplate() Config {
	return Config{
		EntityValues:        {Capacity: 500, Strategy: StrategyLRU},
		EntityProfiles:      {Capacity: 500, Strategy: StrategyLRU},
		EntitySignatures:    {Capacity: 1000, Strategy: StrategyLRU},
		EntityValueProfiles: {Capacity: 100, Strategy: StrategyLRU},
	}
}

// HighThroughputTemplate trades memory for fewer reads from the data source
func HighThroughputTemplate() Config {
	return Config{
		EntityValues:        {Capacity: 50_000, Strategy: StrategyLRU},
		EntityProfiles:      {Capacity: 50_000, Strategy: StrategyLRU},
		EntitySignatures:    {Capacity: 200_000, Strategy: StrategyLRU},
		EntityValueProfiles: {Capacity: 5_000, Strategy: StrategyLFU},
	}
}

// Template returns a named template ("low-memory", "high-throughput" or "default")
func Template(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Config{}, nil
	case "low-memory":
		return LowMemoryTemplate(), nil
	case "high-throughput":
		return HighThroughputTemplate(), nil
	default:
		return nil, fmt.Errorf("unknown cache template %q (expected one of: default, low-memory, high-throughput)", name)
	}
}

// ParseConfig parses a comma separated list of ENTITY=STRATEGY:CAPACITY entries,
// e.g. "profiles=lru:5000,values=lfu:2000,signatures=none".
// The strategy may be omitted ("profiles=5000" = lru), "none" disables caching.
// Entries are applied on top of base (which may be nil).
func ParseConfig(s string, base Config) (Config, error) {
	conf := Config{}
	for e, setting := range base {
		conf[e] = setting
	}

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cache entry %q (expected ENTITY=STRATEGY:CAPACITY)", entry)
		}

		entity := Entity(strings.TrimSpace(parts[0]))
		if !isEntity(entity) {
			return nil, fmt.Errorf("unknown cache entity %q", entity)
		}

		setting, err := parseSetting(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("cache entry %q: %w", entry, err)
		}
		conf[entity] = setting
	}

	return conf, nil
}

func parseSetting(s string) (Setting, error) {
	if s == string(StrategyNone) {
		return Setting{Capacity: 0, Strategy: StrategyNone}, nil
	}

	strategy, capacity := StrategyLRU, s
	if i := strings.Index(s, ":"); i >= 0 {
		strategy, capacity = Strategy(s[:i]), s[i+1:]
	}

	switch strategy {
	case StrategyLRU, StrategyLFU, StrategyBadger, StrategyNone:
	default:
		return Setting{}, fmt.Errorf("unknown strategy %q", strategy)
	}

	n, err := strconv.Atoi(capacity)
	if err != nil || n < 0 {
		return Setting{}, fmt.Errorf("invalid capacity %q", capacity)
	}

	return Setting{Capacity: n, Strategy: strategy}, nil
}

func isEntity(e Entity) bool {
	for _, known := range Entities {
		if e == known {
			return true
		}
	}
	return false
}
