// Package testing provides catalog fixtures shared by the tests of the catalog,
// match and rpc packages.
//
// Fixtures are built with catalog.Builder, so every test exercises the binary
// writer and the loader:
//
//   - ThreeSignatures: a single "Browser" component with the signatures
//     "Mozilla/5.0 A", "Mozilla/5.0 B" and "Opera/9 C"
//   - Devices: three components (hardware, platform, browser), the IsMobile
//     property and a set of realistic User-Agent signatures
//
// Load loads a fixture in the given mode and closes it when the test ends.
package testing
