package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seven-liu-jie/roslyn/internal/errors"
	"github.com/seven-liu-jie/roslyn/internal/testrun"
)

// testListFile represents the on-disk YAML assembly list.
type testListFile struct {
	Assemblies []testListEntry `yaml:"assemblies"`
}

// testListEntry is one assembly entry in the test list.
type testListEntry struct {
	Path      string   `yaml:"path"`
	Name      string   `yaml:"name,omitempty"`
	Framework string   `yaml:"framework,omitempty"`
	Methods   []string `yaml:"methods,omitempty"`
}

// LoadAssemblies reads a YAML test list into the assembly set supplied to
// the scheduler or the remote submitter.
func LoadAssemblies(path string) ([]testrun.AssemblyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test list: %w", err)
	}

	var list testListFile
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse test list: %w", err)
	}

	if len(list.Assemblies) == 0 {
		return nil, errors.Configf("test list %s contains no assemblies", path)
	}

	assemblies := make([]testrun.AssemblyInfo, 0, len(list.Assemblies))
	for i, entry := range list.Assemblies {
		if entry.Path == "" {
			return nil, errors.Configf("test list %s: entry %d has no path", path, i)
		}
		assemblies = append(assemblies, testrun.AssemblyInfo{
			AssemblyPath:    entry.Path,
			DisplayName:     entry.Name,
			TargetFramework: entry.Framework,
			MethodFilters:   entry.Methods,
		})
	}

	return assemblies, nil
}
