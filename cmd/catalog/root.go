package catalog

import (
	"github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/spf13/cobra"
)

var (
	// CatalogCommands represents the catalog command group
	CatalogCommands = &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and build catalogs",
	}
)

func init() {
	// Add the flags to load a catalog to all subcommands
	util.SetupCatalogFlags(CatalogCommands)
	util.SetupMatchFlags(CatalogCommands)
	util.SetupRPCClientFlags(CatalogCommands)

	CatalogCommands.PersistentFlags().Bool("json", false, util.WrapString("Print the output as JSON"))

	// Add subcommands
	CatalogCommands.AddCommand(infoCmd)
	CatalogCommands.AddCommand(buildCmd)
	CatalogCommands.AddCommand(propertiesCmd)
	CatalogCommands.AddCommand(profilesCmd)
	CatalogCommands.AddCommand(statsCmd)
}
