package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/cache"
)

// Published is the publication date of all fixtures
var Published = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// ThreeSignatures builds a catalog with one component and three signatures.
// Profile ids are 1, 2 and 3, signature i references profile i+1.
func ThreeSignatures() *catalog.Builder {
	b := catalog.NewBuilder("three-signatures", Published)

	browser := b.AddComponent(1, "Browser", "User-Agent")
	name := b.AddProperty(catalog.PropertySpec{Component: browser, Name: "BrowserName", IsMandatory: true})
	a := b.AddValue(name, "A", "")
	bv := b.AddValue(name, "B", "")
	c := b.AddValue(name, "C", "")

	p1 := b.AddProfile(browser, 1, 1, a)
	p2 := b.AddProfile(browser, 2, 2, bv)
	p3 := b.AddProfile(browser, 3, 3, c)
	b.SetDefaultProfile(browser, p1)

	b.AddSignature("Mozilla/5.0 A", 1, p1)
	b.AddSignature("Mozilla/5.0 B", 2, p2)
	b.AddSignature("Opera/9 C", 3, p3)
	return b
}

// MobileProfiles is the number of hardware profiles of Devices flagged IsMobile=True
const MobileProfiles = 3

// Devices builds a catalog with hardware, platform and browser components
func Devices() *catalog.Builder {
	b := catalog.NewBuilder("devices", Published)

	hw := b.AddComponent(1, "HardwarePlatform", "User-Agent", "Device-Stock-UA", "X-OperaMini-Phone-UA")
	sw := b.AddComponent(2, "SoftwarePlatform", "User-Agent", "Device-Stock-UA")
	br := b.AddComponent(3, "BrowserUA", "User-Agent")

	isMobile := b.AddProperty(catalog.PropertySpec{Component: hw, Name: "IsMobile", Category: "Device", ValueType: catalog.ValueTypeBool, IsMandatory: true})
	mobileTrue := b.AddValue(isMobile, "True", "The device is mobile")
	mobileFalse := b.AddValue(isMobile, "False", "The device is not mobile")
	b.SetDefaultValue(isMobile, mobileFalse)

	vendor := b.AddProperty(catalog.PropertySpec{Component: hw, Name: "HardwareVendor", Category: "Device", DisplayOrder: 1})
	apple := b.AddValue(vendor, "Apple", "")
	samsung := b.AddValue(vendor, "Samsung", "")
	generic := b.AddValue(vendor, "Unknown", "")

	platform := b.AddProperty(catalog.PropertySpec{Component: sw, Name: "PlatformName", Category: "Software"})
	ios := b.AddValue(platform, "iOS", "")
	android := b.AddValue(platform, "Android", "")
	windows := b.AddValue(platform, "Windows", "")

	browser := b.AddProperty(catalog.PropertySpec{Component: br, Name: "BrowserName", Category: "Browser"})
	safari := b.AddValue(browser, "Safari", "")
	chrome := b.AddValue(browser, "Chrome", "")
	edge := b.AddValue(browser, "Edge", "")

	// hardware: three mobile, one desktop
	iphone := b.AddProfile(hw, 12280, 10, mobileTrue, apple)
	ipad := b.AddProfile(hw, 12281, 20, mobileTrue, apple)
	galaxy := b.AddProfile(hw, 15364, 5, mobileTrue, samsung)
	desktop := b.AddProfile(hw, 17779, 1, mobileFalse, generic)
	b.SetDefaultProfile(hw, desktop)

	iosProfile := b.AddProfile(sw, 17470, 3, ios)
	androidProfile := b.AddProfile(sw, 17471, 2, android)
	windowsProfile := b.AddProfile(sw, 17472, 1, windows)

	safariProfile := b.AddProfile(br, 18092, 4, safari)
	chromeProfile := b.AddProfile(br, 18093, 1, chrome)
	edgeProfile := b.AddProfile(br, 18094, 2, edge)

	b.AddSignature("Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 Version/17.4 Mobile/15E148 Safari/604.1", 1, iphone, iosProfile, safariProfile)
	b.AddSignature("Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 Version/17.4 Mobile/15E148 Safari/604.1", 2, ipad, iosProfile, safariProfile)
	b.AddSignature("Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 Chrome/124.0.6367.82 Mobile Safari/537.36", 3, galaxy, androidProfile, chromeProfile)
	b.AddSignature("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.6367.91 Safari/537.36", 4, desktop, windowsProfile, chromeProfile)
	b.AddSignature("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.51", 5, desktop, windowsProfile, edgeProfile)
	b.AddSignature("SAMSUNG-SM-S918B", 6, galaxy)
	return b
}

// Synthetic builds a catalog with n generated user agent like signatures over two
// components. The strings are deterministic, many share their first segment and
// several differ only in a version number.
func Synthetic(n int) *catalog.Builder {
	b := catalog.NewBuilder(fmt.Sprintf("synthetic-%d", n), Published)

	hw := b.AddComponent(1, "HardwarePlatform", "User-Agent")
	br := b.AddComponent(2, "BrowserUA", "User-Agent")
	model := b.AddProperty(catalog.PropertySpec{Component: hw, Name: "HardwareModel"})
	browser := b.AddProperty(catalog.PropertySpec{Component: br, Name: "BrowserVersion"})

	const models, versions = 37, 13
	hwProfiles := make([]int, models)
	for i := range hwProfiles {
		hwProfiles[i] = b.AddProfile(hw, 1000+i, i, b.AddValue(model, fmt.Sprintf("Model %d", i), ""))
	}
	brProfiles := make([]int, versions)
	for i := range brProfiles {
		brProfiles[i] = b.AddProfile(br, 5000+i, i, b.AddValue(browser, fmt.Sprintf("%d.0", 100+i), ""))
	}

	for i := 0; i < n; i++ {
		m, v := i%models, i%versions
		s := fmt.Sprintf("Mozilla/5.0 (Linux; Android %d; Model-%d Build/%04d) Chrome/%d.0.%d.%d Mobile",
			10+i%5, m, i, 100+v, i%97, i%11)
		b.AddSignature(s, i, hwProfiles[m], brProfiles[v])
	}
	return b
}

// Bytes renders a fixture and fails the test on error
func Bytes(t testing.TB, b *catalog.Builder) []byte {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return data
}

// Load loads a fixture from memory and closes it at the end of the test
func Load(t testing.TB, b *catalog.Builder, mode catalog.Mode) *catalog.Catalog {
	t.Helper()
	return LoadWithCache(t, b, mode, nil)
}

// LoadWithCache loads a fixture with a cache config
func LoadWithCache(t testing.TB, b *catalog.Builder, mode catalog.Mode, conf cache.Config) *catalog.Catalog {
	t.Helper()
	c, err := catalog.LoadBytes(Bytes(t, b), catalog.Options{Mode: mode, Cache: conf})
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
	})
	return c
}

// Modes lists all load modes for table tests
var Modes = []catalog.Mode{catalog.ModeEager, catalog.ModeLazy}
