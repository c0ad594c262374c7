// Package runner provides test-run orchestration: a local bounded scheduler,
// a remote job submitter, and the run reporter.
package runner

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/seven-liu-jie/roslyn/internal/executor"
	"github.com/seven-liu-jie/roslyn/internal/output"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

const (
	// minWorkers ensures at least one in-flight execution so the refill
	// step can always make progress.
	minWorkers = 1

	// maxWorkers caps RUNTESTS_PARALLEL at 256. Beyond this, process
	// spawning overhead outweighs any parallelism benefit for test
	// assemblies.
	maxWorkers = 256

	// oversubscribeFactor moderately oversubscribes logical CPUs: most
	// assemblies mix CPU-bound and IO-bound work, so a bound of
	// floor(cpus * 1.5) keeps cores busy while a process waits on IO.
	oversubscribeFactor = 1.5
)

// Options configures a test run.
type Options struct {
	// Sequential forces the concurrency bound to 1. Suites that drive a
	// shared resource (UI automation) must never overlap with themselves.
	Sequential bool
}

// Runner orchestrates test execution across a fixed set of assemblies.
// The waiting, running, and completed collections are owned exclusively by
// the coordinating loop for the lifetime of one run; no locking is needed
// for them. The only concurrent resources are the test processes, each
// owned by its own executor invocation.
type Runner struct {
	exec executor.Executor
	out  *output.Writer
	opts Options
}

// New creates a new Runner.
func New(exec executor.Executor, out *output.Writer, opts Options) *Runner {
	return &Runner{exec: exec, out: out, opts: opts}
}

// unitOutcome is the completion message for one dispatched assembly.
// Exactly one is sent per started unit; a non-nil err means the execution
// faulted and carries no TestResult.
type unitOutcome struct {
	assembly testrun.AssemblyInfo
	result   testrun.TestResult
	err      error
}

// RunAll executes every assembly with a bounded number of concurrent
// executions and aggregates the outcomes. Individual test failures and
// faults never abort the run; the only error returned is a propagated
// cancellation, in which case no aggregate is produced.
func (r *Runner) RunAll(ctx context.Context, assemblies []testrun.AssemblyInfo) (*testrun.RunAllResult, error) {
	bound := r.maxConcurrency()

	// Waiting pool, popped last-in-first-out. Completion order between
	// concurrent units is not guaranteed either way; the reporter re-sorts
	// by elapsed time.
	waiting := make([]testrun.AssemblyInfo, len(assemblies))
	copy(waiting, assemblies)

	// Buffered so a completing goroutine never blocks on an abandoned run.
	done := make(chan unitOutcome, len(assemblies))

	running := 0
	failures := 0
	var completed []testrun.TestResult

	harvest := func(o unitOutcome) {
		running--
		if o.err != nil {
			// Fault isolation: one unit's crash is counted and logged,
			// never propagated out of the loop.
			failures++
			r.out.AssemblyFailed(o.assembly.Name(), o.err.Error())
			return
		}
		if !o.result.Succeeded {
			failures++
			r.emitFailure(o.result)
		}
		completed = append(completed, o.result)
	}

	for len(waiting) > 0 || running > 0 {
		if err := ctx.Err(); err != nil {
			// In-flight executions are abandoned; their processes are
			// killed through the context passed to the executor.
			return nil, err
		}

		// Harvest everything that already finished without blocking, so
		// freed slots are refilled in the same iteration.
	drain:
		for {
			select {
			case o := <-done:
				harvest(o)
			default:
				break drain
			}
		}

		for running < bound && len(waiting) > 0 {
			assembly := waiting[len(waiting)-1]
			waiting = waiting[:len(waiting)-1]
			running++
			go func(a testrun.AssemblyInfo) {
				result, err := r.exec.Run(ctx, a)
				done <- unitOutcome{assembly: a, result: result, err: err}
			}(assembly)
		}

		if failures > 0 {
			r.out.Progress("running %d, queued %d, completed %d, failures %d",
				running, len(waiting), len(completed), failures)
		} else {
			r.out.Progress("running %d, queued %d, completed %d",
				running, len(waiting), len(completed))
		}

		// Single blocking point per iteration: wait for any running unit
		// to complete. Anything that finished earlier was already drained
		// above, so nothing is missed and nothing spins.
		if running > 0 {
			select {
			case o := <-done:
				harvest(o)
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return &testrun.RunAllResult{
		Succeeded:      failures == 0,
		TestResults:    completed,
		ProcessResults: testrun.FlattenProcessResults(completed),
	}, nil
}

// emitFailure prints a failed result's output inline: the rendered results
// path when the executor produced one, otherwise every captured error line.
func (r *Runner) emitFailure(result testrun.TestResult) {
	if result.ResultsFilePath != "" {
		r.out.AssemblyFailed(result.AssemblyName, "results at "+result.ResultsFilePath)
		return
	}
	r.out.AssemblyFailed(result.AssemblyName, "test failures")
	for _, line := range result.ErrorOutput() {
		r.out.Errorln("  %s", line)
	}
}

// maxConcurrency computes the concurrency bound: 1 in sequential mode,
// otherwise floor(logical CPUs * 1.5), overridable via RUNTESTS_PARALLEL.
func (r *Runner) maxConcurrency() int {
	if r.opts.Sequential {
		return 1
	}

	env := os.Getenv("RUNTESTS_PARALLEL")
	if env == "" {
		return r.defaultWorkerCount()
	}

	n, err := strconv.Atoi(env)
	if err != nil {
		r.out.Warning("invalid RUNTESTS_PARALLEL value %q (not a number), using default", env)
		return r.defaultWorkerCount()
	}
	if n < minWorkers || n > maxWorkers {
		r.out.Warning("RUNTESTS_PARALLEL=%d out of range [%d-%d], using default", n, minWorkers, maxWorkers)
		return r.defaultWorkerCount()
	}
	return n
}

// defaultWorkerCount derives the bound from the logical CPU count, falling
// back to runtime.NumCPU when detection fails (containers, restricted
// environments).
func (r *Runner) defaultWorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	return max(minWorkers, int(float64(n)*oversubscribeFactor))
}
