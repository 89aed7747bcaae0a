package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	infoCmd = &cobra.Command{
		Use:     "info",
		Short:   "Print the metadata of a catalog",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := util.GetMatcher()
			if err != nil {
				return err
			}
			defer m.Close()

			info, err := m.Info()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return util.PrintJSON(cmd.OutOrStdout(), info)
			}
			return WriteInfo(cmd.OutOrStdout(), info)
		},
	}
	buildCmd = &cobra.Command{
		Use:   "build [definition.json] [output]",
		Short: "Build a binary catalog from a JSON definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := Build(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, args[1])
			return nil
		},
	}
	propertiesCmd = &cobra.Command{
		Use:     "properties",
		Short:   "List the properties of a catalog",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := util.LoadCatalog()
			if err != nil {
				return err
			}
			defer c.Close()

			if viper.GetBool("json") {
				return util.PrintJSON(cmd.OutOrStdout(), c.Properties())
			}
			return WriteProperties(cmd.OutOrStdout(), c)
		},
	}
	profilesCmd = &cobra.Command{
		Use:     "profiles [property] [value]",
		Short:   "List the profiles carrying a property value",
		Args:    cobra.ExactArgs(2),
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := util.GetMatcher()
			if err != nil {
				return err
			}
			defer m.Close()

			profiles, err := m.Profiles(args[0], args[1])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return util.PrintJSON(cmd.OutOrStdout(), profiles)
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10d %-20s rank %d\n", p.ID, p.Component, p.Rank)
			}
			return nil
		},
	}
)

func bindFlags(cmd *cobra.Command, _ []string) error {
	return util.BindCommandFlags(cmd)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// Build reads a JSON definition and writes the binary catalog to output
func Build(definition, output string) (n int64, err error) {
	in, err := os.Open(definition)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", catalog.ErrIO, err)
	}
	defer in.Close()

	def, err := catalog.ParseDefinition(in)
	if err != nil {
		return 0, err
	}
	b, err := def.Builder()
	if err != nil {
		return 0, err
	}

	out, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", catalog.ErrIO, err)
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	return b.WriteTo(out)
}

// WriteInfo renders catalog metadata as text
func WriteInfo(w io.Writer, info *common.CatalogInfo) error {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Catalog")
	addField("Name", info.Name)
	addField("Version", strconv.Itoa(int(info.Version)))
	addField("Published", info.Published.Format(time.DateOnly))
	addField("Mode", info.Mode)
	addField("Signatures", strconv.Itoa(info.Signatures))
	addField("Profiles", strconv.Itoa(info.Profiles))
	addField("Values", strconv.Itoa(info.Values))
	addField("Components", strings.Join(info.Components, ", "))
	addField("Headers", strings.Join(info.Headers, ", "))

	addSection("Caches")
	for _, e := range catalog.SortedEntities(info.Caches) {
		s := info.Caches[e]
		addField(string(e), fmt.Sprintf("%s size %d/%d, %d requests, %.2f%% misses",
			s.Strategy, s.Size, s.Capacity, s.Requests, s.PercentageMisses))
	}

	addSection("Decoder Pool")
	addField("Created", strconv.Itoa(info.Pool.Created))
	addField("Idle", strconv.Itoa(info.Pool.Idle))
	addField("In Use", strconv.Itoa(info.Pool.InUse))

	_, err := fmt.Fprint(w, sb.String())
	return err
}

// WriteProperties lists the properties of a catalog grouped by component
func WriteProperties(w io.Writer, c *catalog.Catalog) error {
	for _, comp := range c.Components() {
		if _, err := fmt.Fprintf(w, "%s\n", comp.Name); err != nil {
			return err
		}
		for _, p := range c.Properties() {
			if p.Component != comp.Index {
				continue
			}
			flags := ""
			if p.IsList {
				flags += " list"
			}
			if p.IsMandatory {
				flags += " mandatory"
			}
			if _, err := fmt.Fprintf(w, "  %-28s %-10s %4d values%s\n", p.Name, p.ValueType, p.ValueCount(), flags); err != nil {
				return err
			}
		}
	}
	return nil
}
