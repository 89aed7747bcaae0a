package catalog_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/catalog"
	catalogtesting "github.com/ValentinKolb/dDetect/lib/catalog/testing"
)

func TestLoad(t *testing.T) {
	for _, mode := range catalogtesting.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			c := catalogtesting.Load(t, catalogtesting.Devices(), mode)

			if c.Name() != "devices" {
				t.Errorf("Expected name devices, got %s", c.Name())
			}
			if !c.Published().Equal(catalogtesting.Published) {
				t.Errorf("Expected published %s, got %s", catalogtesting.Published, c.Published())
			}
			if c.Mode() != mode {
				t.Errorf("Expected mode %s, got %s", mode, c.Mode())
			}
			if c.SignatureCount() != 6 || c.ProfileCount() != 10 || c.ValueCount() != 11 {
				t.Errorf("Unexpected counts: %d signatures, %d profiles, %d values",
					c.SignatureCount(), c.ProfileCount(), c.ValueCount())
			}

			expectedHeaders := []string{"User-Agent", "Device-Stock-UA", "X-OperaMini-Phone-UA"}
			if !reflect.DeepEqual(c.Headers(), expectedHeaders) {
				t.Errorf("Expected headers %v, got %v", expectedHeaders, c.Headers())
			}

			hw, ok := c.ComponentByName("HardwarePlatform")
			if !ok {
				t.Fatalf("Expected component HardwarePlatform")
			}
			if !hw.HasHeader("X-OperaMini-Phone-UA") || hw.HasHeader("Accept") {
				t.Errorf("Unexpected headers of HardwarePlatform: %v", hw.Headers)
			}
			if def, _ := c.Profile(hw.DefaultProfile); def == nil || def.ID != 17779 {
				t.Errorf("Expected default profile 17779, got %v", def)
			}
			if _, ok := c.ComponentByName("Missing"); ok {
				t.Errorf("Expected no component named Missing")
			}

			s, err := c.Signature(0)
			if err != nil {
				t.Fatalf("Signature(0) failed: %v", err)
			}
			if !strings.Contains(s.String, "iPhone") || len(s.Profiles) != 3 {
				t.Errorf("Unexpected first signature %+v", s)
			}
			if _, err := c.Signature(c.SignatureCount()); err == nil {
				t.Errorf("Expected error for signature index out of range")
			}
		})
	}
}

func TestPropertiesAndValues(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeLazy)

	p, err := c.PropertyByName("IsMobile")
	if err != nil {
		t.Fatalf("PropertyByName failed: %v", err)
	}
	if p.ValueType != catalog.ValueTypeBool || !p.IsMandatory || p.Category != "Device" {
		t.Errorf("Unexpected property %+v", p)
	}

	values, err := c.Values(p)
	if err != nil {
		t.Fatalf("Values failed: %v", err)
	}
	if len(values) != 2 || values[0].Name != "True" || values[1].Name != "False" {
		t.Errorf("Unexpected values %+v", values)
	}
	if def, _ := c.Value(p.DefaultValue); def.Name != "False" {
		t.Errorf("Expected default value False, got %s", def.Name)
	}

	for _, v := range values {
		if v.Property != p.Index {
			t.Errorf("Value %s belongs to property %d, expected %d", v.Name, v.Property, p.Index)
		}
	}

	if _, err := c.PropertyByName("Missing"); !errors.Is(err, catalog.ErrUnknownProperty) {
		t.Errorf("Expected ErrUnknownProperty, got %v", err)
	}
	if _, err := c.ValueByName(p, "Maybe"); !errors.Is(err, catalog.ErrUnknownValue) {
		t.Errorf("Expected ErrUnknownValue, got %v", err)
	}
}

func TestFindProfiles(t *testing.T) {
	for _, mode := range catalogtesting.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			c := catalogtesting.Load(t, catalogtesting.Devices(), mode)

			profiles, err := c.FindProfiles("IsMobile", "True", nil)
			if err != nil {
				t.Fatalf("FindProfiles failed: %v", err)
			}
			if len(profiles) != catalogtesting.MobileProfiles {
				t.Fatalf("Expected %d mobile profiles, got %d", catalogtesting.MobileProfiles, len(profiles))
			}

			p, _ := c.PropertyByName("IsMobile")
			for _, profile := range profiles {
				values, err := c.ProfileValues(profile, p)
				if err != nil {
					t.Fatalf("ProfileValues failed: %v", err)
				}
				if len(values) != 1 || values[0].Name != "True" {
					t.Errorf("Profile %d has IsMobile values %v", profile.ID, values)
				}
			}

			// cached on the second call
			again, _ := c.FindProfiles("IsMobile", "True", nil)
			if len(again) != len(profiles) {
				t.Errorf("Expected the same result on the second call")
			}
			if s := c.CacheStats()[cache.EntityValueProfiles]; s.Requests != 2 || s.Misses != 1 {
				t.Errorf("Expected 2 requests and 1 miss for value profiles, got %+v", s)
			}

			// filters intersect
			apple, err := c.FindProfiles("HardwareVendor", "Apple", nil)
			if err != nil || len(apple) != 2 {
				t.Fatalf("Expected 2 Apple profiles, got %d (%v)", len(apple), err)
			}
			mobileApple, err := c.FindProfiles("IsMobile", "True", apple)
			if err != nil || len(mobileApple) != 2 {
				t.Errorf("Expected 2 mobile Apple profiles, got %d (%v)", len(mobileApple), err)
			}
			desktopApple, _ := c.FindProfiles("IsMobile", "False", apple)
			if len(desktopApple) != 0 {
				t.Errorf("Expected no desktop Apple profiles, got %d", len(desktopApple))
			}

			empty, err := c.FindProfiles("IsMobile", "True", []*catalog.Profile{})
			if err != nil || empty == nil || len(empty) != 0 {
				t.Errorf("Expected empty result for empty filter, got %v (%v)", empty, err)
			}

			if _, err := c.FindProfiles("IsTablet", "True", nil); !errors.Is(err, catalog.ErrUnknownProperty) {
				t.Errorf("Expected ErrUnknownProperty, got %v", err)
			}
			if _, err := c.FindProfiles("IsMobile", "Maybe", nil); !errors.Is(err, catalog.ErrUnknownValue) {
				t.Errorf("Expected ErrUnknownValue, got %v", err)
			}
		})
	}
}

func TestDeviceIDRoundTrip(t *testing.T) {
	for _, mode := range catalogtesting.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			c := catalogtesting.Load(t, catalogtesting.Devices(), mode)

			for i := 0; i < c.SignatureCount(); i++ {
				s, _ := c.Signature(i)
				id, err := c.DeviceID(s)
				if err != nil {
					t.Fatalf("DeviceID failed: %v", err)
				}

				found, ok, err := c.SignatureByDeviceID(id)
				if err != nil || !ok {
					t.Fatalf("SignatureByDeviceID(%s) failed: ok=%v err=%v", id, ok, err)
				}
				if found.Index != i {
					t.Errorf("Device id %s resolved to signature %d, expected %d", id, found.Index, i)
				}
			}

			// absent components are encoded as 0
			last, _ := c.Signature(c.SignatureCount() - 1)
			if id, _ := c.DeviceID(last); id != "15364-0-0" {
				t.Errorf("Expected device id 15364-0-0, got %s", id)
			}

			if _, ok, _ := c.SignatureByDeviceID("1-2-3"); ok {
				t.Errorf("Expected unknown device id")
			}

			for _, invalid := range []string{"", "1-2", "1-2-x", "1--2", "1-2-3-4", "+1-2-3"} {
				if _, err := c.ParseDeviceID(invalid); err == nil {
					t.Errorf("Expected ParseDeviceID(%q) to fail", invalid)
				}
			}
			ids, err := c.ParseDeviceID("12280-17470-18092")
			if err != nil || !reflect.DeepEqual(ids, []int{12280, 17470, 18092}) {
				t.Errorf("Unexpected ParseDeviceID result %v (%v)", ids, err)
			}
		})
	}
}

func TestEagerAndLazyAgree(t *testing.T) {
	eager := catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager)
	lazy := catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeLazy)

	for i := 0; i < eager.SignatureCount(); i++ {
		a, _ := eager.Signature(i)
		b, _ := lazy.Signature(i)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Signature %d differs: %+v vs %+v", i, a, b)
		}
	}
	for i := 0; i < eager.ProfileCount(); i++ {
		a, _ := eager.Profile(i)
		b, _ := lazy.Profile(i)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Profile %d differs: %+v vs %+v", i, a, b)
		}
	}
	for i := 0; i < eager.ValueCount(); i++ {
		a, _ := eager.Value(i)
		b, _ := lazy.Value(i)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Value %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestLazyCaches(t *testing.T) {
	for _, strategy := range []cache.Strategy{cache.StrategyLRU, cache.StrategyLFU, cache.StrategyBadger, cache.StrategyNone} {
		t.Run(string(strategy), func(t *testing.T) {
			conf := cache.Config{
				cache.EntitySignatures: {Capacity: 2, Strategy: strategy},
				cache.EntityProfiles:   {Capacity: 2, Strategy: strategy},
				cache.EntityValues:     {Capacity: 2, Strategy: strategy},
			}
			c := catalogtesting.LoadWithCache(t, catalogtesting.Devices(), catalog.ModeLazy, conf)

			for round := 0; round < 2; round++ {
				for i := 0; i < c.SignatureCount(); i++ {
					s, err := c.Signature(i)
					if err != nil {
						t.Fatalf("Signature(%d) failed: %v", i, err)
					}
					if s.Index != i {
						t.Errorf("Expected signature %d, got %d", i, s.Index)
					}
				}
			}

			s := c.CacheStats()[cache.EntitySignatures]
			if s.Requests != int64(2*c.SignatureCount()) {
				t.Errorf("Expected %d requests, got %d", 2*c.SignatureCount(), s.Requests)
			}
			if s.Size > 2 {
				t.Errorf("Cache holds %d signatures, capacity is 2", s.Size)
			}
			if s.Misses > s.Requests || s.Misses < int64(c.SignatureCount()) {
				t.Errorf("Unexpected miss count %d", s.Misses)
			}

			c.ResetCaches()
			if s := c.CacheStats()[cache.EntitySignatures]; s.Requests != 0 || s.Size != 0 {
				t.Errorf("Expected cleared cache after reset, got %+v", s)
			}
		})
	}
}

func TestEagerCatalogHasNoEntityCaches(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager)

	stats := c.CacheStats()
	if _, ok := stats[cache.EntitySignatures]; ok {
		t.Errorf("Expected no signature cache in eager mode")
	}
	if _, ok := stats[cache.EntityValueProfiles]; !ok {
		t.Errorf("Expected a value profiles cache in eager mode")
	}
	if keys := catalog.SortedEntities(stats); len(keys) != 1 {
		t.Errorf("Expected one cache, got %v", keys)
	}
}

func TestClose(t *testing.T) {
	c, err := catalog.LoadBytes(catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), catalog.Options{Mode: catalog.ModeLazy})
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if _, err := c.Signature(0); !errors.Is(err, catalog.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

// --------------------------------------------------------------------------
// Load errors
// --------------------------------------------------------------------------

func TestLoadErrors(t *testing.T) {
	valid := catalogtesting.Bytes(t, catalogtesting.ThreeSignatures())

	mutate := func(fn func(b []byte) []byte) []byte {
		b := make([]byte, len(valid))
		copy(b, valid)
		return fn(b)
	}

	// offset of the count of the components section header
	componentsCount := 8 + 2 + 8 + 4 + 12 + 8

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"Empty", []byte{}, catalog.ErrUnsupportedFormat},
		{"BadMagic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), catalog.ErrUnsupportedFormat},
		{"Version", mutate(func(b []byte) []byte { binary.LittleEndian.PutUint16(b[8:], 2); return b }), catalog.ErrUnsupportedFormat},
		{"ShortForeign", []byte("PK"), catalog.ErrUnsupportedFormat},
		{"TruncatedMagic", valid[:4], catalog.ErrCorruptCatalog},
		{"TruncatedHeader", valid[:40], catalog.ErrCorruptCatalog},
		{"TruncatedPayload", valid[:len(valid)-1], catalog.ErrCorruptCatalog},
		{"CountMismatch", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[componentsCount:], 2)
			return b
		}), catalog.ErrCorruptCatalog},
		{"NegativeStart", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[22:], 0xFFFFFFFF)
			return b
		}), catalog.ErrCorruptCatalog},
	}

	for _, tt := range tests {
		for _, mode := range catalogtesting.Modes {
			t.Run(tt.name+"/"+mode.String(), func(t *testing.T) {
				c, err := catalog.LoadBytes(tt.data, catalog.Options{Mode: mode})
				if !errors.Is(err, tt.err) {
					t.Errorf("Expected %v, got %v", tt.err, err)
				}
				if c != nil {
					t.Errorf("Expected no catalog on error")
				}
			})
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.dat")
	if err := os.WriteFile(path, catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}

	c, err := catalog.LoadFile(path, catalog.Options{Mode: catalog.ModeLazy})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if s, err := c.Signature(2); err != nil || s.String != "Opera/9 C" {
		t.Errorf("Unexpected signature %+v (%v)", s, err)
	}
	if c.Source() != path {
		t.Errorf("Expected source %s, got %s", path, c.Source())
	}
	c.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected the original file to remain: %v", err)
	}

	if _, err := catalog.LoadFile(filepath.Join(dir, "missing.dat"), catalog.Options{}); !errors.Is(err, catalog.ErrIO) {
		t.Errorf("Expected ErrIO for missing file, got %v", err)
	}
}

func TestLoadFileTempCopy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.dat")
	if err := os.WriteFile(path, catalogtesting.Bytes(t, catalogtesting.ThreeSignatures()), 0o644); err != nil {
		t.Fatalf("Failed to write catalog: %v", err)
	}

	countTemp := func(tmp string) int {
		entries, err := os.ReadDir(tmp)
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		return len(entries)
	}

	for _, keep := range []bool{false, true} {
		tmp := t.TempDir()
		c, err := catalog.LoadFile(path, catalog.Options{Mode: catalog.ModeLazy, UseTempFile: true, TempDir: tmp, KeepTempFile: keep})
		if err != nil {
			t.Fatalf("LoadFile failed: %v", err)
		}
		if countTemp(tmp) != 1 {
			t.Errorf("Expected one temporary copy")
		}
		if _, err := c.Signature(0); err != nil {
			t.Errorf("Signature(0) failed: %v", err)
		}
		c.Close()

		expected := 0
		if keep {
			expected = 1
		}
		if n := countTemp(tmp); n != expected {
			t.Errorf("keep=%v: expected %d files after Close, got %d", keep, expected, n)
		}
	}
}

// --------------------------------------------------------------------------
// Builder & definition
// --------------------------------------------------------------------------

func TestBuilderErrors(t *testing.T) {
	b := catalog.NewBuilder("broken", catalogtesting.Published)
	comp := b.AddComponent(1, "Browser", "User-Agent")
	b.AddProfile(comp, 1, 1)
	b.AddProfile(comp, 1, 2)
	if _, err := b.Bytes(); err == nil {
		t.Errorf("Expected error for duplicate profile id")
	}

	b = catalog.NewBuilder("broken", catalogtesting.Published)
	comp = b.AddComponent(1, "Browser", "User-Agent")
	p1 := b.AddProfile(comp, 1, 1)
	p2 := b.AddProfile(comp, 2, 1)
	b.AddSignature("x", 1, p1, p2)
	if b.Err() == nil {
		t.Errorf("Expected error for two profiles of the same component")
	}
}

func TestBuilderGroupsValuesByProperty(t *testing.T) {
	b := catalog.NewBuilder("interleaved", catalogtesting.Published)
	comp := b.AddComponent(1, "Browser", "User-Agent")
	name := b.AddProperty(catalog.PropertySpec{Component: comp, Name: "Name"})
	version := b.AddProperty(catalog.PropertySpec{Component: comp, Name: "Version"})
	chrome := b.AddValue(name, "Chrome", "")
	v1 := b.AddValue(version, "1", "")
	firefox := b.AddValue(name, "Firefox", "")
	b.AddProfile(comp, 1, 1, chrome, v1)
	b.AddProfile(comp, 2, 1, firefox, v1)

	c := catalogtesting.Load(t, b, catalog.ModeEager)

	p, _ := c.PropertyByName("Name")
	values, _ := c.Values(p)
	if len(values) != 2 || values[0].Name != "Chrome" || values[1].Name != "Firefox" {
		t.Errorf("Unexpected values of Name: %+v", values)
	}

	profiles, err := c.FindProfiles("Name", "Firefox", nil)
	if err != nil || len(profiles) != 1 || profiles[0].ID != 2 {
		t.Errorf("Expected profile 2 for Firefox, got %v (%v)", profiles, err)
	}
	profiles, _ = c.FindProfiles("Version", "1", nil)
	if len(profiles) != 2 {
		t.Errorf("Expected 2 profiles for version 1, got %d", len(profiles))
	}
}

func TestDefinition(t *testing.T) {
	input := `{
		"name": "from-json",
		"published": "2026-02-01T00:00:00Z",
		"components": [{"id": 1, "name": "HardwarePlatform", "headers": ["User-Agent"], "default_profile": 2}],
		"properties": [{"name": "IsMobile", "component": "HardwarePlatform", "type": "bool", "values": ["True", "False"], "default": "False"}],
		"profiles": [
			{"id": 1, "component": "HardwarePlatform", "rank": 1, "values": {"IsMobile": ["True"]}},
			{"id": 2, "component": "HardwarePlatform", "rank": 2, "values": {"IsMobile": ["False"]}}
		],
		"signatures": [
			{"string": "Phone/1.0", "rank": 1, "profiles": [1]},
			{"string": "Desktop/1.0", "rank": 2, "profiles": [2]}
		]
	}`

	def, err := catalog.ParseDefinition(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}
	b, err := def.Builder()
	if err != nil {
		t.Fatalf("Builder failed: %v", err)
	}

	c := catalogtesting.Load(t, b, catalog.ModeEager)
	if c.Name() != "from-json" {
		t.Errorf("Expected name from-json, got %s", c.Name())
	}
	mobile, err := c.FindProfiles("IsMobile", "True", nil)
	if err != nil || len(mobile) != 1 || mobile[0].ID != 1 {
		t.Errorf("Expected profile 1 to be mobile, got %v (%v)", mobile, err)
	}
	hw, _ := c.ComponentByName("HardwarePlatform")
	if def, _ := c.Profile(hw.DefaultProfile); def.ID != 2 {
		t.Errorf("Expected default profile 2, got %d", def.ID)
	}

	bad := strings.Replace(input, `"IsMobile": ["True"]`, `"IsTablet": ["True"]`, 1)
	def, _ = catalog.ParseDefinition(strings.NewReader(bad))
	if _, err := def.Builder(); !errors.Is(err, catalog.ErrUnknownProperty) {
		t.Errorf("Expected ErrUnknownProperty, got %v", err)
	}
}
