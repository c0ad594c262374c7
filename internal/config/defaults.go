package config

// Default values applied after schema validation.
const (
	defaultTestList     = "assemblies.yaml"
	defaultLogDir       = "artifacts/log"
	defaultBuildTool    = "dotnet"
	defaultManifestPath = "runtests.proj"
	defaultArtifactName = "TestPayload"
	defaultLocalPayload = "artifacts/testPayload"
	defaultCreator      = "runtests"
)

// applyDefaults fills in default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Runner.TestList == "" {
		cfg.Runner.TestList = defaultTestList
	}

	if cfg.Artifacts == nil {
		cfg.Artifacts = &ArtifactsConfig{}
	}
	if cfg.Artifacts.LogDir == "" {
		cfg.Artifacts.LogDir = defaultLogDir
	}

	if cfg.Remote == nil {
		return
	}
	if cfg.Remote.BuildTool == "" {
		cfg.Remote.BuildTool = defaultBuildTool
	}
	if len(cfg.Remote.BuildArgs) == 0 {
		cfg.Remote.BuildArgs = []string{"build", "-t:Test"}
	}
	if cfg.Remote.ManifestPath == "" {
		cfg.Remote.ManifestPath = defaultManifestPath
	}
	if cfg.Remote.ArtifactName == "" {
		cfg.Remote.ArtifactName = defaultArtifactName
	}
	if cfg.Remote.LocalPayload == "" {
		cfg.Remote.LocalPayload = defaultLocalPayload
	}
	if cfg.Remote.Creator == "" {
		cfg.Remote.Creator = defaultCreator
	}
}
