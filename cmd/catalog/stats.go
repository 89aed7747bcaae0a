package catalog

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dDetect/cmd/util"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache, pool and match metrics of a catalog",
	Long: `Load a catalog in process, optionally match the targets of a file (one per line)
to warm the caches and print the metrics in the Prometheus text format.`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := util.LoadCatalog()
		if err != nil {
			return err
		}
		defer c.Close()

		if path := viper.GetString("targets"); path != "" {
			p, err := match.NewProvider(c, util.GetMatchOptions())
			if err != nil {
				return err
			}
			n, err := warmUp(p, path)
			if err != nil {
				return err
			}
			util.Logger.Infof("matched %d targets of %s", n, path)
		}

		server.WriteCatalogMetrics(cmd.OutOrStdout(), 0, c)
		return nil
	},
}

func init() {
	statsCmd.Flags().String("targets", "", util.WrapString("File of targets matched before the metrics are printed"))
}

// warmUp matches every line of a file
func warmUp(p *match.Provider, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	req := match.NewRequest()
	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if target := strings.TrimSpace(scanner.Text()); target != "" {
			if err := p.MatchInto(target, req); err != nil {
				return n, fmt.Errorf("match %q: %w", target, err)
			}
			n++
		}
	}
	return n, scanner.Err()
}
