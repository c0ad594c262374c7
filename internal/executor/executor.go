// Package executor runs a single test assembly as an external process and
// reports its outcome. The scheduler treats executors as opaque: whatever
// Succeeded value they hand up is final.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// Executor runs one assembly and yields a TestResult. A non-nil error means
// the execution itself faulted (the process could not be run at all); a
// failed test run is a TestResult with Succeeded == false, not an error.
//
// CommandLine returns the fully-formed invocation for an assembly. It is
// used by the remote submitter to embed a reproducible command in the job
// manifest, and by the reporter for failure output.
type Executor interface {
	Run(ctx context.Context, assembly testrun.AssemblyInfo) (testrun.TestResult, error)
	CommandLine(assembly testrun.AssemblyInfo) string
}

// ProcessExecutor runs assemblies through a configured test runner binary.
type ProcessExecutor struct {
	// Executable is the runner binary, e.g. "dotnet".
	Executable string
	// BaseArgs are prepended before the assembly path.
	BaseArgs []string
	// ResultsDir, when non-empty, makes each invocation render an HTML
	// results file under it.
	ResultsDir string
}

// buildArgs assembles the argument list for one assembly.
func (e *ProcessExecutor) buildArgs(assembly testrun.AssemblyInfo) []string {
	args := make([]string, 0, len(e.BaseArgs)+2+2*len(assembly.MethodFilters))
	args = append(args, e.BaseArgs...)
	args = append(args, assembly.AssemblyPath)
	for _, m := range assembly.MethodFilters {
		args = append(args, "-method", m)
	}
	if e.ResultsDir != "" {
		args = append(args, "-html", e.resultsFilePath(assembly))
	}
	return args
}

// resultsFilePath returns the rendered results file path for an assembly.
func (e *ProcessExecutor) resultsFilePath(assembly testrun.AssemblyInfo) string {
	return filepath.Join(e.ResultsDir, testrun.SafeFileName(assembly.Name())+".html")
}

// CommandLine returns the invocation for an assembly as a single string,
// quoting arguments that contain whitespace.
func (e *ProcessExecutor) CommandLine(assembly testrun.AssemblyInfo) string {
	parts := append([]string{e.Executable}, e.buildArgs(assembly)...)
	for i, p := range parts {
		if strings.ContainsAny(p, " \t") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// Run executes the assembly's test process, capturing output and exit code.
// A process that starts and exits non-zero is a failed TestResult; a process
// that cannot be started at all is returned as an error.
func (e *ProcessExecutor) Run(ctx context.Context, assembly testrun.AssemblyInfo) (testrun.TestResult, error) {
	args := e.buildArgs(assembly)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Executable, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// The process never ran (bad executable, permission error,
			// cancelled before start). This is a fault, not a test failure.
			return testrun.TestResult{}, fmt.Errorf("failed to run %s: %w", assembly.Name(), runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	proc := testrun.ProcessResult{
		ExitCode:    exitCode,
		CommandLine: e.CommandLine(assembly),
		OutputLines: splitLines(stdout.String()),
		ErrorLines:  splitLines(stderr.String()),
	}

	result := testrun.TestResult{
		AssemblyName:   assembly.Name(),
		Succeeded:      proc.Succeeded(),
		Elapsed:        elapsed,
		CommandLine:    proc.CommandLine,
		StandardOutput: stdout.String(),
		ProcessResults: []testrun.ProcessResult{proc},
	}
	if e.ResultsDir != "" {
		result.ResultsFilePath = e.resultsFilePath(assembly)
	}
	return result, nil
}

// splitLines splits captured output into lines, dropping the trailing
// newline. Empty output yields nil.
func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
