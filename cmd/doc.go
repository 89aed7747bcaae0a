// Package cmd implements the command-line interface of dDetect. It provides a
// hierarchical command structure for serving catalogs, matching against them and
// inspecting them.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the match server for one or more catalogs
//   - match: Matches user agents, request headers or device ids (in process or remote)
//   - catalog: Catalog tools (info, build, properties, profiles, stats)
//   - perf: Measures match latency and throughput against a catalog
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Configuration can be given as flags or as environment variables with the DDETECT_
// prefix (e.g. DDETECT_LOG_LEVEL=debug), .env and .env.local files are loaded too.
//
// Exit codes: 0 success, 1 other errors, 2 corrupt catalog, 3 unsupported catalog
// format, 4 i/o error, 5 unknown property or value.
//
// See ddetect -help for a list of all commands.
package cmd
