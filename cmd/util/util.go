package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/client"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/serializer"
	"github.com/ValentinKolb/dDetect/rpc/transport"
	"github.com/ValentinKolb/dDetect/rpc/transport/http"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// InitConfig loads .env files and binds environment variables with the DDETECT_ prefix
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddetect")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// SetupCatalogFlags adds the flags to load a catalog in process
func SetupCatalogFlags(cmd *cobra.Command) {
	key := "catalog"
	cmd.PersistentFlags().String(key, "", WrapString("Path of the catalog file to load"))

	key = "mode"
	cmd.PersistentFlags().String(key, "eager", WrapString("How entities are kept in memory (eager, lazy)"))

	key = "cache-template"
	cmd.PersistentFlags().String(key, "default", WrapString("Base cache configuration of lazy catalogs (default, low-memory, high-throughput)"))

	key = "cache"
	cmd.PersistentFlags().String(key, "", WrapString("Cache settings applied on top of the template. Format: ENTITY=STRATEGY:CAPACITY, comma separated (e.g. profiles=lru:5000,values=lfu:2000). Entities: values, profiles, signatures, value-profiles. Strategies: lru, lfu, none, badger"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// SetupMatchFlags adds the options of the match provider
func SetupMatchFlags(cmd *cobra.Command) {
	defaults := match.DefaultOptions()

	key := "max-distance"
	cmd.PersistentFlags().Float64(key, defaults.MaxDistance, WrapString("Maximum edit distance as a fraction of the target length"))

	key = "workers"
	cmd.PersistentFlags().Int(key, defaults.Workers, WrapString("Goroutines scoring candidates of a single match (1 = sequential)"))

	key = "parallel-threshold"
	cmd.PersistentFlags().Int(key, defaults.ParallelThreshold, WrapString("Number of candidates above which a scan runs in parallel"))
}

// GetCacheConfig reads the cache template and the cache settings
func GetCacheConfig() (cache.Config, error) {
	base, err := cache.Template(viper.GetString("cache-template"))
	if err != nil {
		return nil, err
	}
	return cache.ParseConfig(viper.GetString("cache"), base)
}

// GetMatchOptions reads the options of the match provider
func GetMatchOptions() match.Options {
	opts := match.DefaultOptions()
	opts.MaxDistance = viper.GetFloat64("max-distance")
	opts.Workers = viper.GetInt("workers")
	opts.ParallelThreshold = viper.GetInt("parallel-threshold")
	return opts
}

// LoadCatalog loads the catalog configured by the catalog flags
func LoadCatalog() (*catalog.Catalog, error) {
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	path := viper.GetString("catalog")
	if path == "" {
		return nil, fmt.Errorf("no catalog file given (--catalog)")
	}

	mode, err := catalog.ParseMode(viper.GetString("mode"))
	if err != nil {
		return nil, err
	}

	conf, err := GetCacheConfig()
	if err != nil {
		return nil, err
	}

	return catalog.LoadFile(path, catalog.Options{Mode: mode, Cache: conf})
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("The address of the dDetect server. Multiple endpoints can be specified as a comma-separated list. If empty the catalog is loaded in process"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry the request"))

	key = "catalog-id"
	cmd.PersistentFlags().Uint64(key, 1, WrapString("ID of the served catalog to connect to"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("transport-retries"),
		Endpoints:              strings.Split(viper.GetString("transport-endpoints"), ","),
		ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
	}
}

// IsRemote reports if the command talks to a server
func IsRemote() bool {
	return strings.TrimSpace(viper.GetString("transport-endpoints")) != ""
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetTransport creates the client transport
func GetTransport() transport.IRPCClientTransport {
	return http.NewHttpClientTransport()
}

// GetMatcher creates a remote matcher if endpoints are configured, otherwise the
// catalog is loaded in process
func GetMatcher() (client.IMatcher, error) {
	if !IsRemote() {
		c, err := LoadCatalog()
		if err != nil {
			return nil, err
		}
		m, err := client.NewLocalMatcher(c, GetMatchOptions())
		if err != nil {
			return nil, errors.Join(err, c.Close())
		}
		return m, nil
	}

	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	return client.NewRemoteMatcher(viper.GetUint64("catalog-id"), *GetClientConfig(), GetTransport(), s)
}

// --------------------------------------------------------------------------
// Output & Exit Codes
// --------------------------------------------------------------------------

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

const (
	ExitOK                = 0
	ExitError             = 1
	ExitCorruptCatalog    = 2
	ExitUnsupportedFormat = 3
	ExitIO                = 4
	ExitUnknownProperty   = 5
)

// ExitCode maps an error to the exit code of the process
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, catalog.ErrCorruptCatalog):
		return ExitCorruptCatalog
	case errors.Is(err, catalog.ErrUnsupportedFormat):
		return ExitUnsupportedFormat
	case errors.Is(err, catalog.ErrIO), errors.Is(err, os.ErrNotExist):
		return ExitIO
	case errors.Is(err, catalog.ErrUnknownProperty), errors.Is(err, catalog.ErrUnknownValue):
		return ExitUnknownProperty
	default:
		return ExitError
	}
}
