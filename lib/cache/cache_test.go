package cache

import (
	"testing"

	"github.com/rcrowley/go-metrics"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	s := newLRU[string](3)

	s.putIfAbsent(1, "a")
	s.putIfAbsent(2, "b")
	s.putIfAbsent(3, "c")
	s.get(1)

	if _, _, evicted := s.putIfAbsent(4, "d"); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}

	if _, ok := s.get(2); ok {
		t.Errorf("Expected key 2 to be evicted")
	}
	for _, key := range []int{1, 3, 4} {
		if _, ok := s.get(key); !ok {
			t.Errorf("Expected key %d to be resident", key)
		}
	}
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	s := newLFU[string](3)

	s.putIfAbsent(1, "a")
	s.putIfAbsent(2, "b")
	s.putIfAbsent(3, "c")
	s.get(1)
	s.get(1)
	s.get(2)

	if _, _, evicted := s.putIfAbsent(4, "d"); evicted != 1 {
		t.Fatalf("Expected 1 eviction, got %d", evicted)
	}

	if _, ok := s.get(3); ok {
		t.Errorf("Expected key 3 to be evicted")
	}
	for _, key := range []int{1, 2, 4} {
		if _, ok := s.get(key); !ok {
			t.Errorf("Expected key %d to be resident", key)
		}
	}
}

func TestLFUTieEvictsOldestAccess(t *testing.T) {
	s := newLFU[string](2)

	s.putIfAbsent(1, "a")
	s.putIfAbsent(2, "b")
	s.putIfAbsent(3, "c")

	if _, ok := s.get(1); ok {
		t.Errorf("Expected key 1 to be evicted")
	}
	if _, ok := s.get(2); !ok {
		t.Errorf("Expected key 2 to be resident")
	}
}

func TestMapHeap(t *testing.T) {
	h := NewMapHeap()
	h.AddItem(1, 30)
	h.AddItem(2, 10)
	h.AddItem(3, 20)

	if it, _ := h.Peek(); it.Key != 2 {
		t.Errorf("Expected key 2 with lowest priority, got %s", it)
	}

	h.AddItem(2, 40)
	if it, _ := h.Peek(); it.Key != 3 {
		t.Errorf("Expected key 3 after priority update, got %s", it)
	}

	if p, ok := h.RemoveByKey(3); !ok || p != 20 {
		t.Errorf("Expected to remove key 3 with priority 20, got %d (%v)", p, ok)
	}
	if h.Contains(3) {
		t.Errorf("Expected key 3 to be removed")
	}

	order := []uint64{}
	for h.Len() > 0 {
		it, _ := h.PopMin()
		order = append(order, it.Key)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("Expected pop order [1 2], got %v", order)
	}

	if _, ok := h.PopMin(); ok {
		t.Errorf("Expected PopMin on empty heap to fail")
	}
}

func TestCountersRegistered(t *testing.T) {
	reg := metrics.NewRegistry()
	c, _ := New[int](Setting{Capacity: 10}, Options[int]{Name: "values", Registry: reg})

	c.GetOrLoad(1, func(key int) (int, error) { return key, nil })
	c.GetOrLoad(1, func(key int) (int, error) { return key, nil })

	requests, ok := reg.Get("cache.values.requests").(metrics.Counter)
	if !ok {
		t.Fatalf("Expected cache.values.requests counter in registry")
	}
	if requests.Count() != 2 {
		t.Errorf("Expected 2 requests, got %d", requests.Count())
	}
	misses := reg.Get("cache.values.misses").(metrics.Counter)
	if misses.Count() != 1 {
		t.Errorf("Expected 1 miss, got %d", misses.Count())
	}
}

func TestParseConfig(t *testing.T) {
	conf, err := ParseConfig("profiles=lru:5000, values=lfu:2000,signatures=none,value-profiles=300", nil)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	expected := Config{
		EntityProfiles:      {Capacity: 5000, Strategy: StrategyLRU},
		EntityValues:        {Capacity: 2000, Strategy: StrategyLFU},
		EntitySignatures:    {Capacity: 0, Strategy: StrategyNone},
		EntityValueProfiles: {Capacity: 300, Strategy: StrategyLRU},
	}
	for e, want := range expected {
		if got := conf.For(e); got != want {
			t.Errorf("%s: expected %+v, got %+v", e, want, got)
		}
	}

	if s := conf.String(); s != "profiles=lru:5000,signatures=none,value-profiles=lru:300,values=lfu:2000" {
		t.Errorf("Unexpected config rendering %q", s)
	}

	for _, invalid := range []string{"profiles", "unknown=lru:10", "profiles=fifo:10", "profiles=lru:-1", "profiles=lru:x"} {
		if _, err := ParseConfig(invalid, nil); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestParseConfigOverridesTemplate(t *testing.T) {
	base, err := Template("low-memory")
	if err != nil {
		t.Fatalf("Template failed: %v", err)
	}

	conf, err := ParseConfig("signatures=lfu:42", base)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if got := conf.For(EntitySignatures); got.Capacity != 42 || got.Strategy != StrategyLFU {
		t.Errorf("Expected override lfu:42, got %+v", got)
	}
	if got := conf.For(EntityProfiles); got != base[EntityProfiles] {
		t.Errorf("Expected template value for profiles, got %+v", got)
	}
	if base[EntitySignatures].Capacity == 42 {
		t.Errorf("ParseConfig must not modify the base config")
	}

	if _, err := Template("huge"); err == nil {
		t.Errorf("Expected error for unknown template")
	}
	if got := (Config{}).For(EntityValues); got != DefaultSetting {
		t.Errorf("Expected default setting, got %+v", got)
	}
}
