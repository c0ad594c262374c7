package cli

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/seven-liu-jie/roslyn/internal/errors"
)

func TestParseGlobalFlags(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		wantOpts      GlobalOptions
		wantRemaining []string
		wantErr       bool
	}{
		{
			name:          "defaults",
			args:          []string{"run"},
			wantOpts:      GlobalOptions{ConfigPath: "runtests.json"},
			wantRemaining: []string{"run"},
		},
		{
			name:          "all flags",
			args:          []string{"--sequential", "-q", "--no-color", "run"},
			wantOpts:      GlobalOptions{ConfigPath: "runtests.json", Sequential: true, Quiet: true, NoColor: true},
			wantRemaining: []string{"run"},
		},
		{
			name:          "config with equals",
			args:          []string{"--config=custom.json", "submit"},
			wantOpts:      GlobalOptions{ConfigPath: "custom.json"},
			wantRemaining: []string{"submit"},
		},
		{
			name:          "config with separate value",
			args:          []string{"--config", "custom.json", "run"},
			wantOpts:      GlobalOptions{ConfigPath: "custom.json"},
			wantRemaining: []string{"run"},
		},
		{
			name:    "config missing value",
			args:    []string{"run", "--config"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--frobnicate", "run"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, remaining, err := parseGlobalFlags(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseGlobalFlags() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGlobalFlags() error = %v", err)
			}
			if diff := cmp.Diff(&tt.wantOpts, opts); diff != "" {
				t.Errorf("options mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantRemaining, remaining); diff != "" {
				t.Errorf("remaining args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	if got := Run([]string{"help"}); got != 0 {
		t.Errorf("Run(help) = %d, want 0", got)
	}
	if got := Run(nil); got != 0 {
		t.Errorf("Run() = %d, want 0", got)
	}
}

func TestRun_Version(t *testing.T) {
	if got := Run([]string{"version"}); got != 0 {
		t.Errorf("Run(version) = %d, want 0", got)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if got := Run([]string{"frobnicate"}); got != errors.ExitConfigError {
		t.Errorf("Run(frobnicate) = %d, want %d", got, errors.ExitConfigError)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	if got := Run([]string{"--config=" + missing, "run"}); got == 0 {
		t.Error("Run() = 0 with missing config, want non-zero")
	}
}
