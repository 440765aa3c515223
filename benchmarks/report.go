// Package benchmarks parses Go benchmark output of the index layer and
// checks it against performance targets.
package benchmarks

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// BenchmarkResult represents a single benchmark result.
type BenchmarkResult struct {
	// Name is the benchmark name without the GOMAXPROCS suffix, including
	// sub-benchmark names (e.g., "BenchmarkForwardLookup/disk")
	Name string `json:"name"`
	// Package is the package containing the benchmark
	Package     string  `json:"package"`
	Iterations  int     `json:"iterations"`
	NsPerOp     float64 `json:"nsPerOp"`
	BytesPerOp  int64   `json:"bytesPerOp"`
	AllocsPerOp int64   `json:"allocsPerOp"`
}

// Target is a performance target for one benchmark. Exactly one of
// MaxNsPerOp and MinOpsPerSec is set.
type Target struct {
	Benchmark    string  `json:"benchmark"`
	Description  string  `json:"description"`
	MaxNsPerOp   float64 `json:"maxNsPerOp,omitempty"`
	MinOpsPerSec float64 `json:"minOpsPerSec,omitempty"`
}

// DefaultTargets returns the targets of the index benchmarks.
func DefaultTargets() []Target {
	return []Target{
		{Benchmark: "BenchmarkForwardLookup/memory", Description: "Memory index point lookup", MaxNsPerOp: 2000},
		{Benchmark: "BenchmarkForwardLookup/disk", Description: "Disk index point lookup", MaxNsPerOp: 20000},
		{Benchmark: "BenchmarkAdd/memory", Description: "Memory index insert throughput", MinOpsPerSec: 100000},
		{Benchmark: "BenchmarkAdd/disk", Description: "Disk index insert throughput", MinOpsPerSec: 10000},
		{Benchmark: "BenchmarkCursorScan/disk", Description: "Full scan of 10,000 disk pairs", MaxNsPerOp: 50000000},
		{Benchmark: "BenchmarkCandidates", Description: "Indexed conjunction evaluation", MaxNsPerOp: 1000000},
	}
}

// Report is a set of benchmark results and the targets they are checked
// against.
type Report struct {
	Timestamp time.Time         `json:"timestamp"`
	GoVersion string            `json:"goVersion,omitempty"`
	OS        string            `json:"os,omitempty"`
	Arch      string            `json:"arch,omitempty"`
	Results   []BenchmarkResult `json:"results"`
	Targets   []Target          `json:"-"`
}

// NewReport creates an empty report with the default targets.
func NewReport() *Report {
	return &Report{
		Timestamp: time.Now(),
		Results:   make([]BenchmarkResult, 0),
		Targets:   DefaultTargets(),
	}
}

// Format: BenchmarkName-N    iterations    ns/op    B/op    allocs/op
var benchRegex = regexp.MustCompile(`^(Benchmark[\w/=.-]*?)(?:-\d+)?\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+(\d+)\s+B/op)?(?:\s+(\d+)\s+allocs/op)?`)

// ParseBenchmarkOutput parses the output of go test -bench.
func ParseBenchmarkOutput(r io.Reader) ([]BenchmarkResult, error) {
	var results []BenchmarkResult
	pkg := ""

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if rest, ok := strings.CutPrefix(line, "pkg:"); ok {
			pkg = strings.TrimSpace(rest)
			continue
		}

		m := benchRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		result := BenchmarkResult{Name: m[1], Package: pkg}
		result.Iterations, _ = strconv.Atoi(m[2])
		result.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			result.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			result.AllocsPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}
		results = append(results, result)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading benchmark output: %w", err)
	}
	return results, nil
}

// AddResults adds benchmark results to the report.
func (r *Report) AddResults(results []BenchmarkResult) {
	r.Results = append(r.Results, results...)
}

// SetSystemInfo sets the system information for the report.
func (r *Report) SetSystemInfo(goVersion, os, arch string) {
	r.GoVersion = goVersion
	r.OS = os
	r.Arch = arch
}

// TargetCheck is the outcome of checking one result against its target.
type TargetCheck struct {
	Benchmark       string  `json:"benchmark"`
	Description     string  `json:"description"`
	Passed          bool    `json:"passed"`
	ActualNsPerOp   float64 `json:"actualNsPerOp"`
	TargetNsPerOp   float64 `json:"targetNsPerOp,omitempty"`
	ActualOpsPerSec float64 `json:"actualOpsPerSec,omitempty"`
	TargetOpsPerSec float64 `json:"targetOpsPerSec,omitempty"`
}

// CheckTargets checks every result that has a target.
func (r *Report) CheckTargets() []TargetCheck {
	targets := make(map[string]Target, len(r.Targets))
	for _, t := range r.Targets {
		targets[t.Benchmark] = t
	}

	var checks []TargetCheck
	for _, result := range r.Results {
		target, ok := targets[result.Name]
		if !ok {
			continue
		}

		check := TargetCheck{
			Benchmark:     result.Name,
			Description:   target.Description,
			ActualNsPerOp: result.NsPerOp,
		}
		switch {
		case target.MaxNsPerOp > 0:
			check.TargetNsPerOp = target.MaxNsPerOp
			check.Passed = result.NsPerOp <= target.MaxNsPerOp
		case target.MinOpsPerSec > 0 && result.NsPerOp > 0:
			check.ActualOpsPerSec = 1e9 / result.NsPerOp
			check.TargetOpsPerSec = target.MinOpsPerSec
			check.Passed = check.ActualOpsPerSec >= target.MinOpsPerSec
		}
		checks = append(checks, check)
	}
	return checks
}

// Passed reports whether every checked target was met.
func (r *Report) Passed() bool {
	for _, c := range r.CheckTargets() {
		if !c.Passed {
			return false
		}
	}
	return true
}

// WriteText writes the results grouped by package, then the target checks.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "=== Index Benchmark Report ===\n\nGenerated: %s\n", r.Timestamp.Format(time.RFC3339))
	if r.GoVersion != "" {
		fmt.Fprintf(w, "Go Version: %s\n", r.GoVersion)
	}
	if r.OS != "" && r.Arch != "" {
		fmt.Fprintf(w, "Platform: %s/%s\n", r.OS, r.Arch)
	}
	fmt.Fprintln(w)

	results := slices.Clone(r.Results)
	slices.SortStableFunc(results, func(a, b BenchmarkResult) int {
		return cmp.Or(cmp.Compare(a.Package, b.Package), cmp.Compare(a.Name, b.Name))
	})
	for group := range chunkByPackage(results) {
		pkg := cmp.Or(group[0].Package, "unknown")
		fmt.Fprintf(w, "--- Package: %s ---\n\n", pkg)
		fmt.Fprintln(tw, "Benchmark\tIterations\tns/op\tB/op\tallocs/op\t")
		for _, res := range group {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\t%d\t\n", res.Name, res.Iterations, res.NsPerOp, res.BytesPerOp, res.AllocsPerOp)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	checks := r.CheckTargets()
	if len(checks) == 0 {
		return nil
	}

	fmt.Fprintf(w, "=== Targets ===\n\n")
	fmt.Fprintln(tw, "Benchmark\tActual\tTarget\tStatus\t")
	passed := true
	for _, c := range checks {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
			passed = false
		}
		actual, target := formatOpsPerSec(c.ActualOpsPerSec), ">= "+formatOpsPerSec(c.TargetOpsPerSec)
		if c.TargetNsPerOp > 0 {
			actual, target = formatDuration(c.ActualNsPerOp), "< "+formatDuration(c.TargetNsPerOp)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", c.Benchmark, actual, target, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)

	if passed {
		fmt.Fprintln(w, "All targets met.")
	} else {
		fmt.Fprintln(w, "WARNING: Some targets not met!")
	}
	return nil
}

// chunkByPackage yields runs of results sharing a package. results must
// be sorted by package.
func chunkByPackage(results []BenchmarkResult) iter.Seq[[]BenchmarkResult] {
	return func(yield func([]BenchmarkResult) bool) {
		for len(results) > 0 {
			n := 1
			for n < len(results) && results[n].Package == results[0].Package {
				n++
			}
			if !yield(results[:n]) {
				return
			}
			results = results[n:]
		}
	}
}

// WriteJSON writes the results and target checks as JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Report
		Checks []TargetCheck `json:"checks"`
	}{r, r.CheckTargets()})
}

func formatDuration(ns float64) string {
	switch {
	case ns < 1e3:
		return fmt.Sprintf("%.2f ns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.2f us", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.2f ms", ns/1e6)
	default:
		return fmt.Sprintf("%.2f s", ns/1e9)
	}
}

func formatOpsPerSec(ops float64) string {
	switch {
	case ops >= 1e6:
		return fmt.Sprintf("%.2fM/s", ops/1e6)
	case ops >= 1e3:
		return fmt.Sprintf("%.2fK/s", ops/1e3)
	default:
		return fmt.Sprintf("%.2f/s", ops)
	}
}
