package runner

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/seven-liu-jie/roslyn/internal/config"
	runerrors "github.com/seven-liu-jie/roslyn/internal/errors"
	"github.com/seven-liu-jie/roslyn/internal/output"
	"github.com/seven-liu-jie/roslyn/internal/testing/mocks"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// mapEnv returns lookup/set functions backed by a map, so tests never touch
// process-wide environment state.
func mapEnv(initial map[string]string) (map[string]string, func(string) (string, bool), func(string, string) error) {
	env := make(map[string]string, len(initial))
	for k, v := range initial {
		env[k] = v
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	set := func(key, value string) error {
		env[key] = value
		return nil
	}
	return env, lookup, set
}

func newTestRemoteRunner(cfg config.RemoteConfig, env map[string]string) (*RemoteRunner, map[string]string) {
	var stdout, stderr bytes.Buffer
	out := output.NewWithWriters(&stdout, &stderr, false)
	r := NewRemoteRunner(&mocks.Executor{}, out, cfg)
	backing, lookup, set := mapEnv(env)
	r.lookupEnv = lookup
	r.setEnv = set
	return r, backing
}

func TestResolveBuildEnv_Defaults(t *testing.T) {
	_, lookup, _ := mapEnv(nil)

	env := ResolveBuildEnv(lookup)

	want := BuildEnv{
		SourceBranch: "local",
		Repository:   "local",
		TeamProject:  "local",
		BuildReason:  "pr",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("ResolveBuildEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveBuildEnv_ExistingValuesPreserved(t *testing.T) {
	_, lookup, _ := mapEnv(map[string]string{
		"BUILD_SOURCEBRANCH":    "refs/heads/main",
		"BUILD_REPOSITORY_NAME": "contoso/widgets",
		"SYSTEM_ACCESSTOKEN":    "token",
		"BUILD_BUILDID":         "1234",
	})

	env := ResolveBuildEnv(lookup)

	if env.SourceBranch != "refs/heads/main" {
		t.Errorf("SourceBranch = %q, want refs/heads/main", env.SourceBranch)
	}
	if env.Repository != "contoso/widgets" {
		t.Errorf("Repository = %q, want contoso/widgets", env.Repository)
	}
	if !env.InCI() {
		t.Error("InCI() = false with access token set, want true")
	}
	if env.BuildID != "1234" {
		t.Errorf("BuildID = %q, want 1234", env.BuildID)
	}
}

func TestApplyBuildEnvDefaults_Idempotent(t *testing.T) {
	backing, lookup, set := mapEnv(map[string]string{
		"BUILD_REASON": "manual",
	})

	for i := 0; i < 2; i++ {
		if err := ApplyBuildEnvDefaults(lookup, set); err != nil {
			t.Fatalf("ApplyBuildEnvDefaults() error = %v", err)
		}
	}

	want := map[string]string{
		"BUILD_SOURCEBRANCH":    "local",
		"BUILD_REPOSITORY_NAME": "local",
		"SYSTEM_TEAMPROJECT":    "local",
		"BUILD_REASON":          "manual", // existing value never overwritten
	}
	if diff := cmp.Diff(want, backing); diff != "" {
		t.Errorf("environment mismatch after defaulting (-want +got):\n%s", diff)
	}
}

func TestResolveCorrelationPayload_LocalOutsideCI(t *testing.T) {
	r, _ := newTestRemoteRunner(config.RemoteConfig{LocalPayload: "artifacts/testPayload"}, nil)

	payload, err := r.resolveCorrelationPayload(context.Background(), ResolveBuildEnv(r.lookupEnv))
	if err != nil {
		t.Fatalf("resolveCorrelationPayload() error = %v", err)
	}
	if payload.URI != "artifacts/testPayload" {
		t.Errorf("payload URI = %q, want artifacts/testPayload", payload.URI)
	}
}

func TestResolveCorrelationPayload_MissingBuildIDIsFatal(t *testing.T) {
	tests := []struct {
		name    string
		buildID string
	}{
		{"absent", ""},
		{"garbage", "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"SYSTEM_ACCESSTOKEN": "token"}
			if tt.buildID != "" {
				env["BUILD_BUILDID"] = tt.buildID
			}
			r, _ := newTestRemoteRunner(config.RemoteConfig{}, env)

			_, err := r.resolveCorrelationPayload(context.Background(), ResolveBuildEnv(r.lookupEnv))
			if err == nil {
				t.Fatal("resolveCorrelationPayload() error = nil, want config error")
			}
			if got := runerrors.GetExitCode(err); got != runerrors.ExitConfigError {
				t.Errorf("exit code = %d, want %d", got, runerrors.ExitConfigError)
			}
		})
	}
}

func TestResolveCorrelationPayload_CIQueriesArtifactEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.Contains(req.URL.Path, "/42/artifacts") {
			t.Errorf("request path = %q, want build id 42 in path", req.URL.Path)
		}
		if got := req.URL.Query().Get("artifactName"); got != "TestPayload" {
			t.Errorf("artifactName = %q, want TestPayload", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resource":{"downloadUrl":"https://artifacts.example.com/bundle.zip"}}`))
	}))
	defer server.Close()

	r, _ := newTestRemoteRunner(config.RemoteConfig{
		ArtifactsURL: server.URL,
		ArtifactName: "TestPayload",
	}, map[string]string{
		"SYSTEM_ACCESSTOKEN": "token",
		"BUILD_BUILDID":      "42",
	})
	r.client = server.Client()

	payload, err := r.resolveCorrelationPayload(context.Background(), ResolveBuildEnv(r.lookupEnv))
	if err != nil {
		t.Fatalf("resolveCorrelationPayload() error = %v", err)
	}
	if payload.URI != "https://artifacts.example.com/bundle.zip" {
		t.Errorf("payload URI = %q, want download URL", payload.URI)
	}
}

func TestResolveCorrelationPayload_EndpointErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r, _ := newTestRemoteRunner(config.RemoteConfig{ArtifactsURL: server.URL}, map[string]string{
		"SYSTEM_ACCESSTOKEN": "token",
		"BUILD_BUILDID":      "42",
	})
	r.client = server.Client()

	if _, err := r.resolveCorrelationPayload(context.Background(), ResolveBuildEnv(r.lookupEnv)); err == nil {
		t.Fatal("resolveCorrelationPayload() error = nil, want error on HTTP 500")
	}
}

func TestGenerateJobManifest(t *testing.T) {
	exe := &mocks.Executor{
		CommandLineFunc: func(a testrun.AssemblyInfo) string {
			return "dotnet exec xunit.console.dll " + a.AssemblyPath
		},
	}
	assemblies := []testrun.AssemblyInfo{
		{AssemblyPath: "bin/Compilers.UnitTests.dll", DisplayName: "Compilers.UnitTests"},
		{AssemblyPath: "bin/Workspaces.UnitTests.dll", DisplayName: "Workspaces.UnitTests"},
	}
	env := BuildEnv{
		SourceBranch: "refs/heads/main",
		Repository:   "contoso/widgets",
		BuildReason:  "pr",
		BuildNumber:  "20260824.1",
		AccessToken:  "token",
	}
	cfg := config.RemoteConfig{Queue: "ubuntu.22.04.amd64", Creator: "runtests"}

	manifest, err := GenerateJobManifest(assemblies, env, CorrelationPayload{URI: "https://artifacts.example.com/bundle.zip"}, cfg, exe)
	if err != nil {
		t.Fatalf("GenerateJobManifest() error = %v", err)
	}

	for _, want := range []string{
		`<Project DefaultTargets="Test">`,
		`<FarmSource>contoso/widgets/refs/heads/main</FarmSource>`,
		`<FarmType>pr</FarmType>`,
		`<FarmBuild>20260824.1</FarmBuild>`,
		`<FarmTargetQueue>ubuntu.22.04.amd64</FarmTargetQueue>`,
		`<CorrelationPayload Include="https://artifacts.example.com/bundle.zip">`,
		`<WorkItem Include="Compilers.UnitTests">`,
		`<Command>dotnet exec xunit.console.dll bin/Compilers.UnitTests.dll</Command>`,
		`<WorkItem Include="Workspaces.UnitTests">`,
	} {
		if !strings.Contains(manifest, want) {
			t.Errorf("manifest missing %q\nmanifest:\n%s", want, manifest)
		}
	}

	// In CI the creator is attributed by the build system, not the manifest.
	if strings.Contains(manifest, "FarmCreator") {
		t.Error("manifest contains FarmCreator in CI context")
	}
}

func TestGenerateJobManifest_EscapesCommandLine(t *testing.T) {
	exe := &mocks.Executor{
		CommandLineFunc: func(a testrun.AssemblyInfo) string {
			return `runner "a b.dll" -method "M<T> & friends"`
		},
	}
	assemblies := []testrun.AssemblyInfo{{AssemblyPath: "a b.dll", DisplayName: "Spacey"}}

	manifest, err := GenerateJobManifest(assemblies, BuildEnv{}, CorrelationPayload{URI: "payload"}, config.RemoteConfig{Queue: "q"}, exe)
	if err != nil {
		t.Fatalf("GenerateJobManifest() error = %v", err)
	}

	if strings.Contains(manifest, "M<T>") {
		t.Error("manifest contains unescaped angle brackets")
	}
	if !strings.Contains(manifest, "&lt;") || !strings.Contains(manifest, "&amp;") {
		t.Errorf("manifest missing escaped command characters:\n%s", manifest)
	}
}

func TestGenerateJobManifest_CreatorOutsideCI(t *testing.T) {
	manifest, err := GenerateJobManifest(nil, BuildEnv{BuildReason: "pr"}, CorrelationPayload{URI: "payload"},
		config.RemoteConfig{Queue: "q", Creator: "runtests"}, &mocks.Executor{})
	if err != nil {
		t.Fatalf("GenerateJobManifest() error = %v", err)
	}
	if !strings.Contains(manifest, "<FarmCreator>runtests</FarmCreator>") {
		t.Errorf("manifest missing creator outside CI:\n%s", manifest)
	}
	// No build number available: the manifest still identifies the build.
	if !strings.Contains(manifest, "<FarmBuild>local</FarmBuild>") {
		t.Errorf("manifest missing local build fallback:\n%s", manifest)
	}
}
