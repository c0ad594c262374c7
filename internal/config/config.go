// Package config provides configuration loading and validation for runtests.json.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/seven-liu-jie/roslyn/internal/schema"
)

// Config represents the complete runtests.json configuration.
type Config struct {
	Runner    RunnerConfig     `json:"runner"`
	Artifacts *ArtifactsConfig `json:"artifacts,omitempty"`
	Remote    *RemoteConfig    `json:"remote,omitempty"`
}

// RunnerConfig configures local test execution.
type RunnerConfig struct {
	// Executable is the test runner binary, e.g. "dotnet".
	Executable string `json:"executable"`
	// BaseArgs are prepended before the assembly path on every invocation,
	// e.g. ["exec", "xunit.console.dll"].
	BaseArgs []string `json:"base_args,omitempty"`
	// Sequential forces a concurrency bound of 1. Required for suites that
	// must never run concurrently with themselves (UI-driving tests).
	Sequential bool `json:"sequential,omitempty"`
	// TestList is the path to the YAML assembly list.
	TestList string `json:"test_list,omitempty"`
}

// ArtifactsConfig configures where run artifacts are written.
type ArtifactsConfig struct {
	// LogDir receives one log file per failed assembly.
	LogDir string `json:"log_dir,omitempty"`
	// ResultsDir receives per-assembly rendered results files. When set,
	// the executor passes a results-file argument to the runner.
	ResultsDir string `json:"results_dir,omitempty"`
}

// RemoteConfig configures the distributed test-farm strategy.
type RemoteConfig struct {
	// BuildTool is the external build invocation run against the generated
	// manifest, e.g. "dotnet".
	BuildTool string `json:"build_tool,omitempty"`
	// BuildArgs are the arguments preceding the manifest path.
	BuildArgs []string `json:"build_args,omitempty"`
	// ManifestPath is the fixed filename the job manifest is written to.
	ManifestPath string `json:"manifest_path,omitempty"`
	// ArtifactsURL is the build-system REST endpoint queried for the
	// correlation payload download URL when running in CI.
	ArtifactsURL string `json:"artifacts_url,omitempty"`
	// ArtifactName selects which build artifact backs the payload.
	ArtifactName string `json:"artifact_name,omitempty"`
	// Queue is the farm queue every work item is sent to.
	Queue string `json:"queue,omitempty"`
	// LocalPayload is the fixed artifacts directory used as the correlation
	// payload outside CI.
	LocalPayload string `json:"local_payload,omitempty"`
	// Creator identifies who submitted the job (non-CI runs).
	Creator string `json:"creator,omitempty"`
}

// Load reads and parses a runtests.json configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadAndValidate reads a config file, validates it against the embedded
// schema, applies defaults, and checks semantic constraints.
func LoadAndValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := schema.ValidateConfig(data); err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
