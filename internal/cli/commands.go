package cli

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/seven-liu-jie/roslyn/internal/config"
	"github.com/seven-liu-jie/roslyn/internal/errors"
	"github.com/seven-liu-jie/roslyn/internal/executor"
	"github.com/seven-liu-jie/roslyn/internal/runner"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// Help text alignment width for flag descriptions.
const helpFlagWidth = 18

// loadRun loads the configuration and assembly set shared by both
// strategies. Returns a non-zero exit code on failure.
func loadRun(opts *GlobalOptions) (*config.Config, []testrun.AssemblyInfo, *executor.ProcessExecutor, int) {
	cfg, err := config.LoadAndValidate(opts.ConfigPath)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, nil, nil, errors.GetExitCode(err)
	}

	assemblies, err := config.LoadAssemblies(cfg.Runner.TestList)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, nil, nil, errors.GetExitCode(err)
	}

	exe := &executor.ProcessExecutor{
		Executable: cfg.Runner.Executable,
		BaseArgs:   cfg.Runner.BaseArgs,
		ResultsDir: cfg.Artifacts.ResultsDir,
	}
	return cfg, assemblies, exe, 0
}

// cmdRun executes the assembly set with the local bounded scheduler.
func cmdRun(opts *GlobalOptions) int {
	cfg, assemblies, exe, code := loadRun(opts)
	if code != 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := runner.New(exe, out, runner.Options{
		Sequential: cfg.Runner.Sequential || opts.Sequential,
	})

	result, err := r.RunAll(ctx, assemblies)
	if err != nil {
		// Cancellation: the run is abandoned and no report is produced.
		out.ErrorPrefix("run aborted: %v", err)
		return errors.ExitRuntimeError
	}

	runner.PrintSummary(result, out, cfg.Artifacts.LogDir)

	if !result.Succeeded {
		return errors.ExitRuntimeError
	}
	return 0
}

// cmdSubmit delegates the assembly set to the distributed test farm.
func cmdSubmit(opts *GlobalOptions) int {
	cfg, assemblies, exe, code := loadRun(opts)
	if code != 0 {
		return code
	}

	if cfg.Remote == nil {
		out.ErrorPrefix("submit requires a \"remote\" section in %s", opts.ConfigPath)
		return errors.ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	remote := runner.NewRemoteRunner(exe, out, *cfg.Remote)
	result, err := remote.RunAll(ctx, assemblies)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}

	// The farm build is opaque: a failure is reported as one aggregate
	// result with no per-assembly attribution.
	for _, proc := range result.ProcessResults {
		for _, line := range proc.OutputLines {
			out.Info("%s", line)
		}
		for _, line := range proc.ErrorLines {
			out.Errorln("%s", line)
		}
	}
	if !result.Succeeded {
		out.FinalFailure("Remote test submission failed.")
		return errors.ExitRuntimeError
	}
	out.FinalSuccess("Remote test submission succeeded.")
	return 0
}

// printUsage prints the top-level help text.
func printUsage() {
	titleCase := cases.Title(language.English)

	out.Println("runtests %s - bounded test-assembly orchestrator", Version)
	out.Println("")
	out.Println("Usage:")
	out.Println("  runtests [flags] <command>")
	out.Println("")
	out.Println("Commands:")
	out.Println("  %-*s %s", helpFlagWidth, "run", titleCase.String("run")+" every assembly locally with a bounded scheduler")
	out.Println("  %-*s %s", helpFlagWidth, "submit", titleCase.String("submit")+" the assembly set to the distributed test farm")
	out.Println("  %-*s %s", helpFlagWidth, "version", "Print the version")
	out.Println("  %-*s %s", helpFlagWidth, "help", "Show this help")
	out.Println("")
	out.Println("Flags:")
	out.Println("  %-*s %s", helpFlagWidth, "--config=<path>", "Configuration file (default: runtests.json)")
	out.Println("  %-*s %s", helpFlagWidth, "--sequential", "Run assemblies one at a time")
	out.Println("  %-*s %s", helpFlagWidth, "-q, --quiet", "Minimal output (errors only)")
	out.Println("  %-*s %s", helpFlagWidth, "--no-color", "Disable colored output")
	out.Println("  %-*s %s", helpFlagWidth, "-h, --help", "Show this help")
	out.Println("")
	out.Println("Environment:")
	out.Println("  %-*s %s", helpFlagWidth, "RUNTESTS_PARALLEL", "Override the computed concurrency bound")
}
