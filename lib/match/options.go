package match

import (
	"fmt"
	"runtime"
	"strings"
)

// Options configure a Provider
type Options struct {
	// MaxDistance bounds the edit distance stage as a fraction of the target length.
	// Candidates further away are left to the following stages.
	MaxDistance float64

	// ParallelThreshold is the number of candidates above which scans are parallel
	ParallelThreshold int

	// Workers is the number of goroutines of a parallel scan (<= 1 = sequential)
	Workers int

	// Segments splits targets and signatures for the segment stage and selects the
	// candidate subset of the segment and version stages (by first segment)
	Segments SegmentRule

	// Versions selects the version segments of the version stage
	Versions VersionRule

	// Tolerance is the minimum prefix length of the reduced initial string stage
	Tolerance ToleranceFunc
}

// DefaultOptions returns the default provider options
func DefaultOptions() Options {
	return Options{
		MaxDistance:       0.2,
		ParallelThreshold: 1000,
		Workers:           runtime.NumCPU(),
		Segments:          DefaultSegmentRule(),
		Versions:          DefaultVersionRule(),
		Tolerance:         DefaultTolerance,
	}
}

// limit returns the maximum edit distance for a target
func (o Options) limit(target string) int {
	return int(o.MaxDistance * float64(len(target)))
}

func (o Options) validate() error {
	if o.MaxDistance < 0 || o.MaxDistance > 1 {
		return fmt.Errorf("max distance %f must be between 0 and 1", o.MaxDistance)
	}
	if o.ParallelThreshold < 0 {
		return fmt.Errorf("parallel threshold %d must not be negative", o.ParallelThreshold)
	}
	return nil
}

func (o Options) String() string {
	var sb strings.Builder
	sb.WriteString("Match Options:\n")
	fmt.Fprintf(&sb, "  %-20s %.2f\n", "Max Distance:", o.MaxDistance)
	fmt.Fprintf(&sb, "  %-20s %d\n", "Parallel Threshold:", o.ParallelThreshold)
	fmt.Fprintf(&sb, "  %-20s %d\n", "Workers:", o.Workers)
	fmt.Fprintf(&sb, "  %-20s %d\n", "Version Patterns:", len(o.Versions.Patterns))
	return sb.String()
}
