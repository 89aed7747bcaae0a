package match_test

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	catalogtesting "github.com/ValentinKolb/dDetect/lib/catalog/testing"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/rcrowley/go-metrics"
)

const (
	windowsChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.91 Safari/537.36"
	samsungStock  = "SAMSUNG-SM-S918B"
)

func newProvider(t testing.TB, c *catalog.Catalog, opts match.Options) *match.Provider {
	t.Helper()
	p, err := match.NewProvider(c, opts)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return p
}

func sequentialOptions() match.Options {
	opts := match.DefaultOptions()
	opts.Workers = 1
	return opts
}

func mustMatch(t testing.TB, p *match.Provider, target string) match.Result {
	t.Helper()
	res, err := p.Match(target)
	if err != nil {
		t.Fatalf("Match(%q) failed: %v", target, err)
	}
	return res
}

func signatureIndex(r match.Result) int {
	if r.Signature == nil {
		return -1
	}
	return r.Signature.Index
}

// --------------------------------------------------------------------------
// Cascade
// --------------------------------------------------------------------------

func TestMatchThreeSignatures(t *testing.T) {
	for _, mode := range catalogtesting.Modes {
		t.Run(mode.String(), func(t *testing.T) {
			p := newProvider(t, catalogtesting.Load(t, catalogtesting.ThreeSignatures(), mode), sequentialOptions())

			cases := []struct {
				target     string
				signature  int
				method     match.Method
				stage      match.Stage
				difference int
			}{
				{"Mozilla/5.0 A", 0, match.MethodExact, match.StageExact, 0},
				{"Mozilla/5.0 B", 1, match.MethodExact, match.StageExact, 0},
				{"Mozilla/5.0 X", 0, match.MethodClosest, match.StageEditDistance, 1},
				{"Opera/9 D", 2, match.MethodNearest, match.StageEditDistance, 1},
				{"xyz", -1, match.MethodNone, match.StageNone, 0},
				{"", -1, match.MethodNone, match.StageNone, 0},
			}
			for _, tc := range cases {
				res := mustMatch(t, p, tc.target)
				if signatureIndex(res) != tc.signature || res.Method != tc.method ||
					res.Stage != tc.stage || res.Difference != tc.difference {
					t.Errorf("Match(%q): expected signature %d %s/%s difference %d, got %d %s/%s difference %d",
						tc.target, tc.signature, tc.method, tc.stage, tc.difference,
						signatureIndex(res), res.Method, res.Stage, res.Difference)
				}
				if res.Target != tc.target {
					t.Errorf("Expected target %q, got %q", tc.target, res.Target)
				}
			}

			res := mustMatch(t, p, "Mozilla/5.0 A")
			if !reflect.DeepEqual(res.ProfileIDs(), []int{1}) || res.DeviceID != "1" {
				t.Errorf("Unexpected profiles %v / device id %s", res.ProfileIDs(), res.DeviceID)
			}

			none := mustMatch(t, p, "xyz")
			if len(none.Profiles) != 0 || none.DeviceID != "" {
				t.Errorf("Expected no profiles for MethodNone, got %+v", none)
			}
		})
	}
}

func TestMatchDevices(t *testing.T) {
	p := newProvider(t, catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager), sequentialOptions())

	res := mustMatch(t, p, windowsChrome)
	if res.Method != match.MethodExact || res.DeviceID != "17779-17472-18093" {
		t.Errorf("Unexpected exact result %s %s", res.Method, res.DeviceID)
	}

	// one character off the Windows Chrome signature
	near := mustMatch(t, p, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.92 Safari/537.36")
	if near.Method != match.MethodNearest || signatureIndex(near) != 3 || near.Difference != 1 {
		t.Errorf("Expected nearest signature 3 difference 1, got %s %d %d", near.Method, signatureIndex(near), near.Difference)
	}

	// no signature within the edit distance, same number of segments or with versions
	ris := mustMatch(t, p, "Mozilla/5.0 (Nokia 3310)")
	if ris.Method != match.MethodNearest || ris.Stage != match.StageRIS || signatureIndex(ris) != 0 || ris.Difference != 11 {
		t.Errorf("Expected RIS match of signature 0 difference 11, got %s/%s %d %d",
			ris.Method, ris.Stage, signatureIndex(ris), ris.Difference)
	}
	if ris.SignaturesCompared == 0 {
		t.Errorf("Expected compared signatures to be counted")
	}
}

func TestMatchWithStage(t *testing.T) {
	three := newProvider(t, catalogtesting.Load(t, catalogtesting.ThreeSignatures(), catalog.ModeEager), sequentialOptions())
	devices := newProvider(t, catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager), sequentialOptions())
	req := match.NewRequest()

	cases := []struct {
		name      string
		p         *match.Provider
		target    string
		stage     match.Stage
		signature int
		method    match.Method
	}{
		{"exact", three, "Mozilla/5.0 A", match.StageExact, 0, match.MethodExact},
		{"exact miss", three, "Mozilla/5.0 X", match.StageExact, -1, match.MethodNone},
		{"segment", three, "Opera/9 D", match.StageSegment, 2, match.MethodNearest},
		{"segment subset miss", three, "Lynx/2 D", match.StageSegment, -1, match.MethodNone},
		{"version", devices, "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/125.0.0.0 Safari/537.36 XYZ",
			match.StageVersion, 4, match.MethodNumeric},
		{"ris", devices, "Mozilla/5.0 (Nokia 3310)", match.StageRIS, 0, match.MethodNearest},
		{"none", three, "Mozilla/5.0 A", match.StageNone, -1, match.MethodNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.p.MatchWith(tc.target, tc.stage, req); err != nil {
				t.Fatalf("MatchWith failed: %v", err)
			}
			res := req.Result()
			if signatureIndex(*res) != tc.signature || res.Method != tc.method {
				t.Errorf("Expected signature %d %s, got %d %s", tc.signature, tc.method, signatureIndex(*res), res.Method)
			}
		})
	}
}

func TestRequestReuseIsIdempotent(t *testing.T) {
	p := newProvider(t, catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeLazy), sequentialOptions())
	req := match.NewRequest()

	targets := []string{windowsChrome, "Mozilla/5.0 (Nokia 3310)", "", "15364-0-0", samsungStock}
	for _, target := range targets {
		if err := p.MatchInto(target, req); err != nil {
			t.Fatalf("MatchInto failed: %v", err)
		}
		first := req.Result().Clone()

		// a different match in between must not leak into the next one
		if err := p.MatchInto("Mozilla/5.0 X", req); err != nil {
			t.Fatalf("MatchInto failed: %v", err)
		}
		if err := p.MatchInto(target, req); err != nil {
			t.Fatalf("MatchInto failed: %v", err)
		}
		if second := req.Result().Clone(); !reflect.DeepEqual(first, second) {
			t.Errorf("Target %q: results differ:\n%+v\n%+v", target, first, second)
		}
	}
}

func TestEagerAndLazyAgree(t *testing.T) {
	eager := newProvider(t, catalogtesting.Load(t, catalogtesting.Synthetic(300), catalog.ModeEager), sequentialOptions())
	lazy := newProvider(t, catalogtesting.Load(t, catalogtesting.Synthetic(300), catalog.ModeLazy), sequentialOptions())

	for _, target := range syntheticTargets(40) {
		a, b := mustMatch(t, eager, target), mustMatch(t, lazy, target)
		if signatureIndex(a) != signatureIndex(b) || a.Method != b.Method || a.Difference != b.Difference || a.DeviceID != b.DeviceID {
			t.Errorf("Target %q: eager %d %s %d, lazy %d %s %d", target,
				signatureIndex(a), a.Method, a.Difference, signatureIndex(b), b.Method, b.Difference)
		}
	}
}

// --------------------------------------------------------------------------
// Device IDs
// --------------------------------------------------------------------------

func TestMatchDeviceID(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager)
	p := newProvider(t, c, sequentialOptions())

	t.Run("RoundTrip", func(t *testing.T) {
		for i := 0; i < c.SignatureCount(); i++ {
			s, _ := c.Signature(i)
			id, err := c.DeviceID(s)
			if err != nil {
				t.Fatalf("DeviceID failed: %v", err)
			}
			res, err := p.MatchDeviceID(id)
			if err != nil {
				t.Fatalf("MatchDeviceID failed: %v", err)
			}
			if res.Method != match.MethodNumeric || res.Difference != 0 || res.DeviceID != id {
				t.Errorf("Device id %s: unexpected result %s %d %s", id, res.Method, res.Difference, res.DeviceID)
			}
			if got, _ := c.Signature(signatureIndex(res)); got == nil || got.String != s.String {
				t.Errorf("Device id %s: expected signature %q, got %v", id, s.String, res.Signature)
			}
		}
	})

	t.Run("ProfilesOnly", func(t *testing.T) {
		res, err := p.MatchDeviceID("15364-17471-18094")
		if err != nil {
			t.Fatalf("MatchDeviceID failed: %v", err)
		}
		if res.Signature != nil || res.Method != match.MethodNumeric {
			t.Errorf("Expected profiles without signature, got %+v", res)
		}
		if !reflect.DeepEqual(res.ProfileIDs(), []int{15364, 17471, 18094}) {
			t.Errorf("Unexpected profiles %v", res.ProfileIDs())
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, id := range []string{"abc", "1-2", "99999-0-0", "17470-0-0", "0-0-0", "-1-0-0", "15364-0-0-0"} {
			res, err := p.MatchDeviceID(id)
			if err != nil {
				t.Fatalf("MatchDeviceID(%q) failed: %v", id, err)
			}
			if res.Method != match.MethodNone || len(res.Profiles) != 0 {
				t.Errorf("Device id %q: expected MethodNone, got %s %v", id, res.Method, res.ProfileIDs())
			}
		}
	})

	t.Run("Cascade", func(t *testing.T) {
		res := mustMatch(t, p, "15364-0-0")
		if res.Stage != match.StageDeviceID || signatureIndex(res) != 5 {
			t.Errorf("Expected device id stage with signature 5, got %s %d", res.Stage, signatureIndex(res))
		}
	})
}

// --------------------------------------------------------------------------
// Headers
// --------------------------------------------------------------------------

func TestMatchHeaders(t *testing.T) {
	p := newProvider(t, catalogtesting.Load(t, catalogtesting.Devices(), catalog.ModeEager), sequentialOptions())
	req := match.NewRequest()

	matchHeaders := func(t *testing.T, headers map[string]string) *match.Result {
		t.Helper()
		if err := p.MatchHeaders(headers, req); err != nil {
			t.Fatalf("MatchHeaders failed: %v", err)
		}
		return req.Result()
	}

	t.Run("ExactPrimary", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"user-agent": windowsChrome, "Device-Stock-UA": samsungStock})
		if res.Method != match.MethodExact || res.DeviceID != "17779-17472-18093" {
			t.Errorf("Expected the exact primary to win, got %s %s", res.Method, res.DeviceID)
		}
		if len(res.Targets) != 2 || res.Targets["User-Agent"] != windowsChrome {
			t.Errorf("Unexpected targets %v", res.Targets)
		}
	})

	t.Run("AuxiliaryReplacesComponent", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.92 Safari/537.36",
			"device-stock-ua": samsungStock,
		})
		if res.Method != match.MethodNearest {
			t.Errorf("Expected the method of the primary, got %s", res.Method)
		}
		if res.DeviceID != "15364-17472-18093" {
			t.Errorf("Expected the hardware of the stock user agent, got %s", res.DeviceID)
		}
		if !reflect.DeepEqual(res.ProfileIDs(), []int{15364, 17472, 18093}) {
			t.Errorf("Unexpected profiles %v", res.ProfileIDs())
		}
		if res.Signature != nil {
			t.Errorf("Expected no signature for the combined device, got %q", res.Signature.String)
		}
	})

	t.Run("AuxiliaryWithoutMatch", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.92 Safari/537.36",
			"Device-Stock-UA": "zzz",
		})
		if res.DeviceID != "17779-17472-18093" || signatureIndex(*res) != 3 {
			t.Errorf("Expected the primary result, got %s %d", res.DeviceID, signatureIndex(*res))
		}
	})

	t.Run("PrimaryNone", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"User-Agent": "zzz", "Device-Stock-UA": samsungStock})
		if res.Method != match.MethodExact || res.Stage != match.StageExact {
			t.Errorf("Expected the exact auxiliary result, got %s %s", res.Method, res.Stage)
		}
		if signatureIndex(*res) != 5 || res.Target != samsungStock {
			t.Errorf("Expected signature 5 for %q, got %d for %q", samsungStock, signatureIndex(*res), res.Target)
		}
		if !reflect.DeepEqual(res.ProfileIDs(), []int{15364}) {
			t.Errorf("Expected profiles [15364], got %v", res.ProfileIDs())
		}
		if len(res.Targets) != 2 || res.Targets["User-Agent"] != "zzz" {
			t.Errorf("Unexpected targets %v", res.Targets)
		}
	})

	t.Run("PrimaryNoneNearestAuxiliary", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"User-Agent": "zzz", "Device-Stock-UA": "SAMSUNG-SM-S918X"})
		if res.Method != match.MethodNearest || res.Difference != 1 {
			t.Errorf("Expected a nearest auxiliary result with difference 1, got %s %d", res.Method, res.Difference)
		}
		if signatureIndex(*res) != 5 || len(res.Profiles) != 1 {
			t.Errorf("Expected signature 5 with one profile, got %d with %v", signatureIndex(*res), res.ProfileIDs())
		}
	})

	t.Run("NothingMatches", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"User-Agent": "zzz", "Device-Stock-UA": "qqq"})
		if res.Method != match.MethodNone || len(res.Profiles) != 0 || res.DeviceID != "" || res.Signature != nil {
			t.Errorf("Expected an empty MethodNone result, got %s %v %q", res.Method, res.ProfileIDs(), res.DeviceID)
		}
	})

	t.Run("OnlyAuxiliary", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"Device-Stock-UA": samsungStock, "Accept": "text/html"})
		if res.Method != match.MethodExact || signatureIndex(*res) != 5 || res.Target != samsungStock {
			t.Errorf("Expected exact match of the stock user agent, got %s %d", res.Method, signatureIndex(*res))
		}
	})

	t.Run("NoCatalogHeaders", func(t *testing.T) {
		res := matchHeaders(t, map[string]string{"Accept": "text/html", "User-Agent": ""})
		if res.Method != match.MethodNone || len(res.Profiles) != 0 {
			t.Errorf("Expected MethodNone, got %s", res.Method)
		}
	})
}

// --------------------------------------------------------------------------
// Concurrency & Metrics
// --------------------------------------------------------------------------

func syntheticTargets(n int) []string {
	targets := make([]string, 0, n)
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0: // version drift
			targets = append(targets, fmt.Sprintf("Mozilla/5.0 (Linux; Android %d; Model-%d Build/%04d) Chrome/%d.0.1.1 Mobile", 10+i%5, i%37, i*7, 100+i%13))
		case 1: // unknown model
			targets = append(targets, fmt.Sprintf("Mozilla/5.0 (Linux; Android 12; Phone-%d) Chrome/99.0 Mobile", i))
		case 2: // small typo
			targets = append(targets, fmt.Sprintf("Mozilla/5.0 (Linux; Android %d; Model-%d Build/%04d) Chrome/%d.0.%d.%d Mobil", 10+i%5, i%37, i, 100+i%13, i%97, i%11))
		default:
			targets = append(targets, fmt.Sprintf("Mozilla/5.0 (X11; Linux %d)", i))
		}
	}
	return targets
}

func TestParallelMatchesSequential(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.Synthetic(3000), catalog.ModeEager)

	sequential := newProvider(t, c, sequentialOptions())
	parallelOpts := match.DefaultOptions()
	parallelOpts.Workers = 8
	parallelOpts.ParallelThreshold = 0
	parallel := newProvider(t, c, parallelOpts)

	for _, target := range syntheticTargets(60) {
		want, got := mustMatch(t, sequential, target), mustMatch(t, parallel, target)
		if !reflect.DeepEqual(want, got) {
			t.Errorf("Target %q: sequential %d %s %d, parallel %d %s %d", target,
				signatureIndex(want), want.Method, want.Difference, signatureIndex(got), got.Method, got.Difference)
		}
	}
}

func TestConcurrentMatches(t *testing.T) {
	p := newProvider(t, catalogtesting.Load(t, catalogtesting.Synthetic(500), catalog.ModeLazy), match.DefaultOptions())
	targets := syntheticTargets(20)

	expected := make([]match.Result, len(targets))
	for i, target := range targets {
		expected[i] = mustMatch(t, p, target)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8*len(targets))
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := match.NewRequest()
			for i, target := range targets {
				if err := p.MatchInto(target, req); err != nil {
					errs <- err.Error()
					continue
				}
				res := req.Result()
				if signatureIndex(*res) != signatureIndex(expected[i]) || res.Method != expected[i].Method {
					errs <- fmt.Sprintf("target %q: got %d %s", target, signatureIndex(*res), res.Method)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestMethodCounters(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.ThreeSignatures(), catalog.ModeEager)
	p := newProvider(t, c, sequentialOptions())

	mustMatch(t, p, "Mozilla/5.0 A")
	mustMatch(t, p, "Mozilla/5.0 B")
	mustMatch(t, p, "xyz")

	exact := metrics.GetOrRegisterCounter("match.method.Exact", c.Registry())
	if exact.Count() != 2 {
		t.Errorf("Expected 2 exact matches, got %d", exact.Count())
	}
	none := metrics.GetOrRegisterCounter("match.method.None", c.Registry())
	if none.Count() != 1 {
		t.Errorf("Expected 1 failed match, got %d", none.Count())
	}
	timer := metrics.GetOrRegisterTimer("match.duration", c.Registry())
	if timer.Count() != 3 {
		t.Errorf("Expected 3 timed matches, got %d", timer.Count())
	}
}

func TestNewProviderValidatesOptions(t *testing.T) {
	c := catalogtesting.Load(t, catalogtesting.ThreeSignatures(), catalog.ModeEager)

	opts := match.DefaultOptions()
	opts.MaxDistance = 1.5
	if _, err := match.NewProvider(c, opts); err == nil {
		t.Errorf("Expected error for max distance 1.5")
	}

	opts = match.DefaultOptions()
	opts.ParallelThreshold = -1
	if _, err := match.NewProvider(c, opts); err == nil {
		t.Errorf("Expected error for a negative parallel threshold")
	}
}
