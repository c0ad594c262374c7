package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seven-liu-jie/roslyn/internal/output"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// PrintSummary renders a completed run: per-failure detail first, then one
// aligned line per result sorted ascending by elapsed time, then collected
// diagnostics. Diagnostics go last deliberately so they appear after the
// scannable summary. The aggregate is not mutated.
//
// For every failed result the raw standard output is persisted as a log
// file under logDir, named deterministically from the display name.
func PrintSummary(result *testrun.RunAllResult, out *output.Writer, logDir string) {
	sorted := make([]testrun.TestResult, len(result.TestResults))
	copy(sorted, result.TestResults)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Elapsed < sorted[j].Elapsed
	})

	for _, tr := range sorted {
		if tr.Succeeded {
			continue
		}
		printFailure(tr, out, logDir)
	}

	out.Println("")
	out.SummaryHeader("Test Summary")
	nameWidth := 0
	for _, tr := range sorted {
		if len(tr.AssemblyName) > nameWidth {
			nameWidth = len(tr.AssemblyName)
		}
	}
	passed, failed := 0, 0
	var testTime time.Duration
	for _, tr := range sorted {
		marker := ""
		if strings.TrimSpace(tr.Diagnostics) != "" {
			marker = "*"
		}
		out.ResultLine(tr.AssemblyName, tr.Succeeded, FormatDuration(tr.Elapsed), marker, nameWidth)
		if tr.Succeeded {
			passed++
		} else {
			failed++
		}
		testTime += tr.Elapsed
	}

	out.Println("")
	if passed > 0 {
		out.SummaryPassed("Passed", fmt.Sprintf("%d", passed))
	}
	if failed > 0 {
		out.SummaryFailed("Failed", fmt.Sprintf("%d", failed))
	}
	out.SummaryItem("Total", fmt.Sprintf("%d", len(sorted)))
	out.SummaryItem("Test time", FormatDuration(testTime))

	printDiagnostics(sorted, out)

	if result.Succeeded {
		out.FinalSuccess("All tests passed.")
	} else {
		out.FinalFailure("Test run failed.")
	}
}

// printFailure emits one failed result's detail: captured error output
// (preferring the rendered results artifact), the reconstructed command
// line, and the persisted log path.
func printFailure(tr testrun.TestResult, out *output.Writer, logDir string) {
	out.Section(tr.AssemblyName)
	if tr.ResultsFilePath != "" {
		out.Println("results: %s", tr.ResultsFilePath)
	} else {
		for _, line := range tr.ErrorOutput() {
			out.Println("%s", line)
		}
	}
	out.Println("command: %s", tr.CommandLine)

	logPath, err := writeLogFile(logDir, tr)
	if err != nil {
		out.Warning("failed to write log for %s: %v", tr.AssemblyName, err)
		return
	}
	out.Println("log: %s", logPath)
}

// writeLogFile persists a failed run's standard output for later
// inspection and returns the log path.
func writeLogFile(logDir string, tr testrun.TestResult) (string, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}
	logPath := filepath.Join(logDir, testrun.SafeFileName(tr.AssemblyName)+".log")
	if err := os.WriteFile(logPath, []byte(tr.StandardOutput), 0644); err != nil {
		return "", err
	}
	return logPath, nil
}

// printDiagnostics prints any non-empty diagnostics text collected across
// all results.
func printDiagnostics(results []testrun.TestResult, out *output.Writer) {
	printedHeader := false
	for _, tr := range results {
		if strings.TrimSpace(tr.Diagnostics) == "" {
			continue
		}
		if !printedHeader {
			out.Section("Diagnostics")
			printedHeader = true
		}
		out.Println("[%s]", tr.AssemblyName)
		out.Println("%s", tr.Diagnostics)
	}
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", m, s)
}
