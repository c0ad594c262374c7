package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/seven-liu-jie/roslyn/internal/config"
	runerrors "github.com/seven-liu-jie/roslyn/internal/errors"
	"github.com/seven-liu-jie/roslyn/internal/executor"
	"github.com/seven-liu-jie/roslyn/internal/output"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// Environment variables recognized by the remote strategy. The first four
// are defaulted when absent so the generated manifest is well-formed even
// outside the CI context that normally provides them.
const (
	envSourceBranch = "BUILD_SOURCEBRANCH"
	envRepository   = "BUILD_REPOSITORY_NAME"
	envTeamProject  = "SYSTEM_TEAMPROJECT"
	envBuildReason  = "BUILD_REASON"
	envBuildNumber  = "BUILD_BUILDNUMBER"
	envBuildID      = "BUILD_BUILDID"
	// envAccessToken is used purely as a CI-context detector: its presence
	// means a build-system agent is running us.
	envAccessToken = "SYSTEM_ACCESSTOKEN"
)

// buildEnvDefaults are the values applied for absent variables.
var buildEnvDefaults = map[string]string{
	envSourceBranch: "local",
	envRepository:   "local",
	envTeamProject:  "local",
	envBuildReason:  "pr",
}

// artifactTimeout bounds the correlation payload metadata request.
const artifactTimeout = 30 * time.Second

// BuildEnv holds the build-system environment inputs resolved once at the
// strategy boundary, so the core never reads ambient process state.
type BuildEnv struct {
	SourceBranch string
	Repository   string
	TeamProject  string
	BuildReason  string
	BuildNumber  string
	BuildID      string
	AccessToken  string
}

// InCI reports whether we are running under the expected CI context.
func (e BuildEnv) InCI() bool { return e.AccessToken != "" }

// ResolveBuildEnv reads the recognized variables through lookup, applying
// defaults for the absent ones. Pure over its input; tests supply a map.
func ResolveBuildEnv(lookup func(string) (string, bool)) BuildEnv {
	get := func(key string) string {
		if v, ok := lookup(key); ok {
			return v
		}
		return buildEnvDefaults[key]
	}
	return BuildEnv{
		SourceBranch: get(envSourceBranch),
		Repository:   get(envRepository),
		TeamProject:  get(envTeamProject),
		BuildReason:  get(envBuildReason),
		BuildNumber:  get(envBuildNumber),
		BuildID:      get(envBuildID),
		AccessToken:  get(envAccessToken),
	}
}

// ApplyBuildEnvDefaults writes the default values into the environment for
// variables that are not already set, so the external build invocation sees
// the same view the manifest was generated from. Existing values are never
// overwritten, which makes repeated application idempotent.
func ApplyBuildEnvDefaults(lookup func(string) (string, bool), set func(key, value string) error) error {
	for key, value := range buildEnvDefaults {
		if _, ok := lookup(key); ok {
			continue
		}
		if err := set(key, value); err != nil {
			return fmt.Errorf("failed to default %s: %w", key, err)
		}
	}
	return nil
}

// CorrelationPayload references the shared artifact bundle every remote
// work item depends on: a download URL in CI, a local directory otherwise.
type CorrelationPayload struct {
	URI string
}

// RemoteRunner delegates test execution to a distributed test farm by
// generating a job manifest and handing it to an external build invocation.
// It never runs a test process itself.
type RemoteRunner struct {
	exec executor.Executor
	out  *output.Writer
	cfg  config.RemoteConfig

	// Injection points for tests.
	lookupEnv func(string) (string, bool)
	setEnv    func(string, string) error
	client    *http.Client
}

// NewRemoteRunner creates a RemoteRunner bound to the process environment.
func NewRemoteRunner(exe executor.Executor, out *output.Writer, cfg config.RemoteConfig) *RemoteRunner {
	return &RemoteRunner{
		exec:      exe,
		out:       out,
		cfg:       cfg,
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		client:    &http.Client{Timeout: artifactTimeout},
	}
}

// RunAll generates the job manifest for the assembly set, writes it to the
// configured fixed path, and builds it with the external tool. The aggregate
// carries the single build invocation's ProcessResult; no per-assembly
// TestResults are produced in this mode.
func (r *RemoteRunner) RunAll(ctx context.Context, assemblies []testrun.AssemblyInfo) (*testrun.RunAllResult, error) {
	if err := ApplyBuildEnvDefaults(r.lookupEnv, r.setEnv); err != nil {
		return nil, err
	}
	env := ResolveBuildEnv(r.lookupEnv)

	payload, err := r.resolveCorrelationPayload(ctx, env)
	if err != nil {
		return nil, err
	}

	manifest, err := GenerateJobManifest(assemblies, env, payload, r.cfg, r.exec)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(r.cfg.ManifestPath, []byte(manifest), 0644); err != nil {
		return nil, fmt.Errorf("failed to write job manifest: %w", err)
	}
	r.out.Info("wrote job manifest with %d work items to %s", len(assemblies), r.cfg.ManifestPath)

	proc, err := r.buildManifest(ctx)
	if err != nil {
		return nil, err
	}

	return &testrun.RunAllResult{
		Succeeded:      proc.Succeeded(),
		ProcessResults: []testrun.ProcessResult{proc},
	}, nil
}

// resolveCorrelationPayload determines the payload reference. In CI the
// build-artifact metadata endpoint is queried for the current build's
// download URL; a missing or unparsable build id is a configuration
// precondition failure, fatal and not retried. Outside CI the payload points
// at the fixed local artifacts directory.
func (r *RemoteRunner) resolveCorrelationPayload(ctx context.Context, env BuildEnv) (CorrelationPayload, error) {
	if !env.InCI() {
		return CorrelationPayload{URI: r.cfg.LocalPayload}, nil
	}

	buildID, err := strconv.Atoi(env.BuildID)
	if err != nil {
		return CorrelationPayload{}, runerrors.Configf("%s must be set to a build id in CI, got %q", envBuildID, env.BuildID)
	}

	url := fmt.Sprintf("%s/%d/artifacts?artifactName=%s&api-version=6.0",
		strings.TrimRight(r.cfg.ArtifactsURL, "/"), buildID, r.cfg.ArtifactName)

	downloadURL, err := r.fetchArtifactDownloadURL(ctx, url, env.AccessToken)
	if err != nil {
		return CorrelationPayload{}, err
	}
	return CorrelationPayload{URI: downloadURL}, nil
}

// artifactResponse mirrors the build-system artifact metadata document.
type artifactResponse struct {
	Resource struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"resource"`
}

// fetchArtifactDownloadURL performs the metadata request and extracts the
// nested download URL.
func (r *RemoteRunner) fetchArtifactDownloadURL(ctx context.Context, url, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth("", token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("artifact metadata request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("artifact metadata endpoint returned status %d", resp.StatusCode)
	}

	var artifact artifactResponse
	if err := json.NewDecoder(resp.Body).Decode(&artifact); err != nil {
		return "", fmt.Errorf("failed to parse artifact metadata: %w", err)
	}
	if artifact.Resource.DownloadURL == "" {
		return "", runerrors.New("artifact metadata has no download URL")
	}
	return artifact.Resource.DownloadURL, nil
}

// buildManifest invokes the external build tool against the written
// manifest and captures its outcome.
func (r *RemoteRunner) buildManifest(ctx context.Context) (testrun.ProcessResult, error) {
	args := append(append([]string{}, r.cfg.BuildArgs...), r.cfg.ManifestPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.BuildTool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return testrun.ProcessResult{}, runerrors.Environmentf("failed to run %s: %v", r.cfg.BuildTool, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return testrun.ProcessResult{
		ExitCode:    exitCode,
		CommandLine: r.cfg.BuildTool + " " + strings.Join(args, " "),
		OutputLines: splitOutputLines(stdout.String()),
		ErrorLines:  splitOutputLines(stderr.String()),
	}, nil
}

// Manifest document types. One correlation payload reference plus one work
// item per assembly, marshalled as an MSBuild-style project so the external
// build tool can run the Test target against it. XML marshalling provides
// the command-line escaping.
type jobManifest struct {
	XMLName        xml.Name      `xml:"Project"`
	DefaultTargets string        `xml:"DefaultTargets,attr"`
	Properties     manifestProps `xml:"PropertyGroup"`
	Items          manifestItems `xml:"ItemGroup"`
}

type manifestProps struct {
	Source      string `xml:"FarmSource"`
	Type        string `xml:"FarmType"`
	Build       string `xml:"FarmBuild"`
	TargetQueue string `xml:"FarmTargetQueue"`
	Creator     string `xml:"FarmCreator,omitempty"`
}

type manifestItems struct {
	CorrelationPayload correlationItem `xml:"CorrelationPayload"`
	WorkItems          []workItem      `xml:"WorkItem"`
}

type correlationItem struct {
	Include string `xml:"Include,attr"`
}

type workItem struct {
	Include string `xml:"Include,attr"`
	Command string `xml:"Command"`
}

// GenerateJobManifest assembles the job manifest document for the assembly
// set. Pure function over its inputs; it shares only the data model with
// the local scheduler.
func GenerateJobManifest(assemblies []testrun.AssemblyInfo, env BuildEnv, payload CorrelationPayload, cfg config.RemoteConfig, exe executor.Executor) (string, error) {
	build := env.BuildNumber
	if build == "" {
		build = "local"
	}

	manifest := jobManifest{
		DefaultTargets: "Test",
		Properties: manifestProps{
			Source:      env.Repository + "/" + env.SourceBranch,
			Type:        env.BuildReason,
			Build:       build,
			TargetQueue: cfg.Queue,
		},
		Items: manifestItems{
			CorrelationPayload: correlationItem{Include: payload.URI},
		},
	}
	if !env.InCI() {
		manifest.Properties.Creator = cfg.Creator
	}

	for _, assembly := range assemblies {
		manifest.Items.WorkItems = append(manifest.Items.WorkItems, workItem{
			Include: assembly.Name(),
			Command: exe.CommandLine(assembly),
		})
	}

	data, err := xml.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to generate job manifest: %w", err)
	}
	return string(data) + "\n", nil
}

// splitOutputLines splits captured output into lines, dropping the trailing
// newline. Empty output yields nil.
func splitOutputLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
