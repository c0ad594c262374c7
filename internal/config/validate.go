package config

import (
	"strings"

	"github.com/seven-liu-jie/roslyn/internal/errors"
)

// Validate checks semantic constraints the JSON schema cannot express.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Runner.Executable) == "" {
		return errors.Config("runner.executable must not be empty")
	}

	if cfg.Remote != nil && cfg.Remote.Queue == "" {
		return errors.Config("remote.queue must be set when a remote section is present")
	}

	return nil
}
