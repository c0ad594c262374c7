// Package cli provides command-line interface functionality for runtests.
package cli

import (
	"fmt"
	"strings"

	"github.com/seven-liu-jie/roslyn/internal/errors"
	"github.com/seven-liu-jie/roslyn/internal/output"
)

// Version is set at build time.
var Version = "dev"

// out is the shared output writer for CLI commands.
var out = output.New()

// GlobalOptions holds flags recognized by every command.
type GlobalOptions struct {
	ConfigPath string
	Sequential bool
	Quiet      bool
	NoColor    bool
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 0
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return 0
	case "--version", "version":
		fmt.Printf("runtests %s\n", Version)
		return 0
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}

	out.SetQuiet(opts.Quiet)
	if opts.NoColor {
		out.SetColor(false)
	}

	if len(remaining) == 0 {
		printUsage()
		return 0
	}
	cmd := remaining[0]

	switch cmd {
	case "run":
		return cmdRun(opts)
	case "submit":
		return cmdSubmit(opts)
	default:
		out.ErrorPrefix("unknown command %q", cmd)
		printUsage()
		return errors.ExitConfigError
	}
}

// parseGlobalFlags extracts global flags, returning the remaining args.
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{ConfigPath: "runtests.json"}
	var remaining []string

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "--sequential":
			opts.Sequential = true
			i++
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			i++
		case arg == "--no-color":
			opts.NoColor = true
			i++
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("--config requires a value")
			}
			opts.ConfigPath = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--config="):
			opts.ConfigPath = strings.TrimPrefix(arg, "--config=")
			i++
		case strings.HasPrefix(arg, "-"):
			return nil, nil, fmt.Errorf("unknown flag %q", arg)
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	return opts, remaining, nil
}
