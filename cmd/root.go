package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dDetect/cmd/catalog"
	"github.com/ValentinKolb/dDetect/cmd/match"
	"github.com/ValentinKolb/dDetect/cmd/perf"
	"github.com/ValentinKolb/dDetect/cmd/serve"
	"github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.4.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ddetect",
		Short: "device detection from user agents",
		Long: fmt.Sprintf(`dDetect (v%s)

Detects devices, platforms and browsers from user agents and request headers
by matching them against a binary signature catalog. Catalogs can be queried
in process or served over HTTP.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dDetect",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dDetect v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(match.MatchCmd)
	RootCmd.AddCommand(catalog.CatalogCommands)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
// The exit code tells catalog errors apart (see util.ExitCode).
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ExitCode(err))
	}
}
