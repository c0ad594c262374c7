// Package testrun defines the data model shared by the local scheduler,
// the remote submitter, and the reporter: one assembly of tests, the
// processes spawned to run it, and the aggregate outcome of a whole run.
package testrun

import (
	"strings"
	"time"
)

// AssemblyInfo identifies one unit of work: a test assembly plus the
// metadata an executor needs to build its command line. Values are
// immutable once constructed; the full input set is supplied up front.
type AssemblyInfo struct {
	// AssemblyPath is the path to the test binary.
	AssemblyPath string
	// DisplayName is the human-readable name used in reports and log
	// file names. Defaults to the assembly file name when empty.
	DisplayName string
	// TargetFramework distinguishes multiple builds of the same assembly.
	TargetFramework string
	// MethodFilters restricts execution to matching test methods.
	// Empty means run everything in the assembly.
	MethodFilters []string
}

// Name returns the display name, falling back to the assembly path.
func (a AssemblyInfo) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.AssemblyPath
}

// ProcessResult is the outcome of one OS process invocation. An executor
// may spawn more than one process per assembly (partitioned execution),
// so several ProcessResults can back a single TestResult.
type ProcessResult struct {
	ExitCode    int
	CommandLine string
	OutputLines []string
	ErrorLines  []string
}

// Succeeded reports whether the process exited cleanly.
func (p ProcessResult) Succeeded() bool { return p.ExitCode == 0 }

// TestResult is the outcome of running one AssemblyInfo. Succeeded is
// computed by the executor from its constituent processes; the scheduler
// never recomputes it.
type TestResult struct {
	AssemblyName string
	Succeeded    bool
	Elapsed      time.Duration
	// Diagnostics holds free-form text the executor wants surfaced after
	// the summary (environment quirks, retry notes). Often empty.
	Diagnostics string
	// ResultsFilePath points to a rendered results artifact (e.g. an HTML
	// report) when the executor produced one. Empty otherwise.
	ResultsFilePath string
	CommandLine     string
	// StandardOutput is the raw captured stdout of the run, persisted to
	// a log file by the reporter when the result failed.
	StandardOutput string
	ProcessResults []ProcessResult
}

// ErrorOutput returns every captured error line across the constituent
// processes, in process order.
func (t TestResult) ErrorOutput() []string {
	var lines []string
	for _, pr := range t.ProcessResults {
		lines = append(lines, pr.ErrorLines...)
	}
	return lines
}

// RunAllResult aggregates a whole run. Succeeded is true iff zero units
// failed or faulted. TestResults holds every unit that completed with a
// result (faulted units are counted but not represented); ProcessResults
// is the flattened set across all of them.
type RunAllResult struct {
	Succeeded      bool
	TestResults    []TestResult
	ProcessResults []ProcessResult
}

// FlattenProcessResults collects the process results of every test result
// in order.
func FlattenProcessResults(results []TestResult) []ProcessResult {
	var flat []ProcessResult
	for _, tr := range results {
		flat = append(flat, tr.ProcessResults...)
	}
	return flat
}

// unsafeFileChars are characters replaced when deriving artifact file names
// from assembly display names.
const unsafeFileChars = `/\:*?"<>| `

// SafeFileName maps an assembly display name to a deterministic name that is
// safe to use as a file name on every supported platform.
func SafeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(unsafeFileChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
