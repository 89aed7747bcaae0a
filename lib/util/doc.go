// Package util provides small shared helpers for the dDetect libraries.
//
// The package contains:
//   - functions: seeded FNV-1a string hashing and the identity hasher that lets the
//     signature corpus key its xsync map by precomputed hashes
//   - statistics: summary statistics (mean, standard deviation, min/max) and latency
//     percentiles, used to report benchmark results
package util
