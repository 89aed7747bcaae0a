package perf

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dDetect/cmd/util"
	statsUtil "github.com/ValentinKolb/dDetect/lib/util"
	"github.com/ValentinKolb/dDetect/rpc/client"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dDetect",
		Long: `Measures the latency and throughput of matches. The catalog is loaded in process
(--catalog) or queried on a server (--transport-endpoints). Targets are read from
--targets (one per line) or derived from the signatures of an in process catalog.`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}
	perfNumThreads = 10
	perfKeys       = 1000
	perfSkip       = make([]string, 0)
)

// result of one benchmark
type result struct {
	bench   testing.BenchmarkResult
	latency statsUtil.LatencyStats
}

func init() {
	util.SetupCatalogFlags(PerfCmd)
	util.SetupMatchFlags(PerfCmd)
	util.SetupRPCClientFlags(PerfCmd)

	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. exact,device-id)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("How many different targets to use for the tests"))
	key = "targets"
	PerfCmd.Flags().String(key, "", util.WrapString("File of targets to match (one per line)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeys = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dDetect")

	matcher, targets, err := setup()
	if err != nil {
		return err
	}
	defer matcher.Close()

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	if util.IsRemote() {
		fmt.Println(util.GetClientConfig().String())
	} else {
		fmt.Println(util.GetMatchOptions().String())
	}
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Targets: %d\n", len(targets))
	fmt.Println()

	// device ids of the exact targets
	var deviceIds []string
	for _, target := range targets {
		res, err := matcher.Match(target)
		if err != nil {
			return err
		}
		if res.DeviceID != "" {
			deviceIds = append(deviceIds, res.DeviceID)
		}
	}

	fmt.Println("staring tests...")

	// Create results map
	results := make(map[string]result)

	results["exact"] = benchmark("exact", targets, matcher.Match)
	results["fuzzy"] = benchmark("fuzzy", mutate(targets), matcher.Match)
	results["device-id"] = benchmark("device-id", deviceIds, matcher.MatchDeviceID)
	results["headers"] = benchmark("headers", targets, func(target string) (*common.MatchResult, error) {
		return matcher.MatchHeaders(map[string]string{"User-Agent": target})
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// setup creates the matcher and collects the targets
func setup() (client.IMatcher, []string, error) {
	var targets []string
	if path := viper.GetString("targets"); path != "" {
		var err error
		if targets, err = readTargets(path); err != nil {
			return nil, nil, err
		}
	}

	// remote: targets must be given
	if util.IsRemote() {
		if len(targets) == 0 {
			return nil, nil, fmt.Errorf("a targets file is required for remote tests (--targets)")
		}
		m, err := util.GetMatcher()
		return m, targets, err
	}

	// in process: targets default to the signature strings
	c, err := util.LoadCatalog()
	if err != nil {
		return nil, nil, err
	}
	for i := 0; len(targets) < perfKeys && i < c.SignatureCount(); i++ {
		s, err := c.Signature(i)
		if err != nil {
			return nil, nil, errors.Join(err, c.Close())
		}
		targets = append(targets, s.String)
	}
	if len(targets) == 0 {
		return nil, nil, errors.Join(fmt.Errorf("catalog has no signatures"), c.Close())
	}

	m, err := client.NewLocalMatcher(c, util.GetMatchOptions())
	if err != nil {
		return nil, nil, errors.Join(err, c.Close())
	}
	return m, targets, nil
}

// benchmark runs fn in parallel for all targets and samples the latency of every call
func benchmark(name string, targets []string, fn func(string) (*common.MatchResult, error)) result {
	var (
		mu      sync.Mutex
		samples []time.Duration
	)

	bench := testing.Benchmark(func(b *testing.B) {
		if shouldSkip(name) || len(targets) == 0 {
			return
		}

		mu.Lock()
		samples = samples[:0]
		mu.Unlock()

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			local := make([]time.Duration, 0, 1024)
			counter := 0
			for pb.Next() {
				start := time.Now()
				if _, err := fn(targets[counter%len(targets)]); err != nil {
					log.Printf("(%s) - error matching: %v\n", name, err)
				}
				local = append(local, time.Since(start))
				counter++
			}
			mu.Lock()
			samples = append(samples, local...)
			mu.Unlock()
		})
	})

	res := result{bench: bench, latency: statsUtil.NewLatencyStats(samples)}
	printResult(name, res)
	return res
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// readTargets reads the non-empty lines of a file
func readTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() && len(targets) < perfKeys {
		if target := strings.TrimSpace(scanner.Text()); target != "" {
			targets = append(targets, target)
		}
	}
	return targets, scanner.Err()
}

// mutate changes one character in the middle of every target, so no target is
// an exact signature anymore
func mutate(targets []string) []string {
	mutated := make([]string, len(targets))
	for i, t := range targets {
		if t == "" {
			continue
		}
		b := []byte(t)
		mid := len(b) / 2
		if b[mid] == 'x' {
			b[mid] = 'y'
		} else {
			b[mid] = 'x'
		}
		mutated[i] = string(b)
	}
	return mutated
}

func printResult(test string, res result) {
	if res.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp95 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, res.latency.P50, res.latency.P95, res.latency.P99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50", "P95", "P99", "StdDeviation",
		"Remote", "Endpoints", "CatalogID", "Serializer",
		"Catalog", "Mode", "Workers", "MaxDistance",
		"Threads", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, res := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if res.bench.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(res.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			res.latency.P50.String(),
			res.latency.P95.String(),
			res.latency.P99.String(),
			time.Duration(res.latency.StdDeviation).String(),
			strconv.FormatBool(util.IsRemote()),
			viper.GetString("transport-endpoints"),
			strconv.FormatUint(viper.GetUint64("catalog-id"), 10),
			viper.GetString("serializer"),
			viper.GetString("catalog"),
			viper.GetString("mode"),
			strconv.Itoa(viper.GetInt("workers")),
			strconv.FormatFloat(viper.GetFloat64("max-distance"), 'f', 2, 64),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeys),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
