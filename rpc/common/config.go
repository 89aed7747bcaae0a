package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dDetect/lib/cache"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerCatalog configures one catalog served by the server. Requests address a
// catalog by its ID.
type ServerCatalog struct {
	// CatalogID is the id requests use to address the catalog
	CatalogID uint64
	// Path of the catalog file
	Path string
	// Mode is the load mode (eager or lazy)
	Mode string
}

// ServerConfig holds all configuration parameters of the match server.
type ServerConfig struct {
	// catalogs to load
	Catalogs []ServerCatalog

	// entity caches of lazily loaded catalogs
	Cache cache.Config

	// catalog files are copied to a temp dir before loading
	UseTempFile bool
	TempDir     string

	// Match options
	MaxDistance       float64
	Workers           int
	ParallelThreshold int

	// HTTP api settings
	Endpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Matching
	addSection("Matching")
	addField("Max Distance", strconv.FormatFloat(c.MaxDistance, 'f', 2, 64))
	addField("Workers", strconv.Itoa(c.Workers))
	addField("Parallel Threshold", strconv.Itoa(c.ParallelThreshold))

	// Caches
	addSection("Caches")
	for _, e := range cache.Entities {
		addField(string(e), c.Cache.For(e).String())
	}
	if c.UseTempFile {
		addField("Temp Dir", c.TempDir)
	}

	// Catalogs
	addSection("Catalogs")
	for _, cat := range c.Catalogs {
		addField(strconv.FormatUint(cat.CatalogID, 10), fmt.Sprintf("%s (%s)", cat.Path, cat.Mode))
	}

	return sb.String()
}

// ParseServerCatalogs parses a comma separated list of catalogs in the format
// ID=PATH or ID=PATH:MODE, e.g. "1=/data/devices.dat:lazy,2=/data/bots.dat"
func ParseServerCatalogs(s string) ([]ServerCatalog, error) {
	var catalogs []ServerCatalog
	seen := make(map[uint64]bool)

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid catalog format: %s (expected ID=PATH[:MODE])", entry)
		}

		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog ID %s: %v", parts[0], err)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate catalog ID %d", id)
		}
		seen[id] = true

		path, mode := strings.TrimSpace(parts[1]), "eager"
		if i := strings.LastIndex(path, ":"); i >= 0 {
			switch strings.ToLower(path[i+1:]) {
			case "eager", "lazy":
				path, mode = path[:i], strings.ToLower(path[i+1:])
			}
		}
		if path == "" {
			return nil, fmt.Errorf("catalog %d: empty path", id)
		}

		catalogs = append(catalogs, ServerCatalog{CatalogID: id, Path: path, Mode: mode})
	}

	if len(catalogs) == 0 {
		return nil, fmt.Errorf("no catalogs configured")
	}
	return catalogs, nil
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
