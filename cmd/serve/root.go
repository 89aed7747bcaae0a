package serve

import (
	"fmt"
	"path/filepath"

	cmdUtil "github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/server"
	"github.com/ValentinKolb/dDetect/rpc/transport/http"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dDetect server",
		Long:    `Start the dDetect server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DDETECT_<flag> (e.g. DDETECT_MAX_DISTANCE=0.3)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := match.DefaultOptions()

	// add flags
	key := "catalogs"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of catalogs to serve. Format: ID=PATH or ID=PATH:MODE where MODE is one of: eager, lazy (default eager)"))

	key = "cache-template"
	ServeCmd.PersistentFlags().String(key, "default", cmdUtil.WrapString("Base cache configuration of lazy catalogs (default, low-memory, high-throughput)"))

	key = "cache"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Cache settings applied on top of the template. Format: ENTITY=STRATEGY:CAPACITY, comma separated (e.g. profiles=lru:5000,values=lfu:2000,signatures=badger:100000). Badger caches of the same entity need their own cache-dir per server"))

	key = "cache-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory of badger backed caches (empty = in memory)"))

	key = "temp-file"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Copy catalog files to a temporary directory before loading them"))

	key = "temp-dir"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Directory of the temporary catalog copies (empty = system temp dir)"))

	key = "max-distance"
	ServeCmd.PersistentFlags().Float64(key, defaults.MaxDistance, cmdUtil.WrapString("Maximum edit distance as a fraction of the target length"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, defaults.Workers, cmdUtil.WrapString("Goroutines scoring candidates of a single match (1 = sequential)"))

	key = "parallel-threshold"
	ServeCmd.PersistentFlags().Int(key, defaults.ParallelThreshold, cmdUtil.WrapString("Number of candidates above which a scan runs in parallel"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse catalogs
	catalogs, err := common.ParseServerCatalogs(viper.GetString("catalogs"))
	if err != nil {
		return err
	}
	serveCmdConfig.Catalogs = catalogs

	// parse caches
	serveCmdConfig.Cache, err = cmdUtil.GetCacheConfig()
	if err != nil {
		return err
	}
	if dir := viper.GetString("cache-dir"); dir != "" {
		if lazyCatalogs(catalogs) > 1 {
			return fmt.Errorf("cache-dir can only be used with a single lazy catalog")
		}
		for e, setting := range serveCmdConfig.Cache {
			setting.Dir = filepath.Join(dir, string(e))
			serveCmdConfig.Cache[e] = setting
		}
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.UseTempFile = viper.GetBool("temp-file")
	serveCmdConfig.TempDir = viper.GetString("temp-dir")
	serveCmdConfig.MaxDistance = viper.GetFloat64("max-distance")
	serveCmdConfig.Workers = viper.GetInt("workers")
	serveCmdConfig.ParallelThreshold = viper.GetInt("parallel-threshold")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	return nil
}

// lazyCatalogs counts the catalogs using caches for all entities
func lazyCatalogs(catalogs []common.ServerCatalog) int {
	n := 0
	for _, c := range catalogs {
		if c.Mode == "lazy" {
			n++
		}
	}
	return n
}

// run starts the dDetect server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		http.NewHttpServerTransport(),
		s,
	)
	defer serv.Close()

	return serv.Serve()
}
