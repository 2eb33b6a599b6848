package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/pcdshub/pkgci/errors"
)

// DefaultFileName is the configuration file name searched for during
// discovery.
const DefaultFileName = "pkgci.yaml"

// LoadOptions controls configuration loading behavior.
type LoadOptions struct {
	// SkipValidation skips Validate after parsing. Defaults are still
	// applied.
	SkipValidation bool
}

// Load reads and parses the configuration file at path, applies defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads and parses the configuration file at path with the
// given options.
func LoadWithOptions(path string, opts LoadOptions) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeInvalidConfig,
			"failed to read pipeline configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	return parse(data, path, opts)
}

// Discover locates the configuration file. The search order is: the
// explicit path (if non-empty), DefaultFileName in the working directory
// root, then the pkgci directory under the XDG config home. Returns the
// resolved path.
func Discover(explicit, workdir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.WrapWithContext(
				err,
				errors.CodeInvalidConfig,
				"configuration file not found",
				map[string]interface{}{
					"path": explicit,
				},
			)
		}
		return explicit, nil
	}

	candidates := []string{
		filepath.Join(workdir, DefaultFileName),
		filepath.Join(xdg.ConfigHome, "pkgci", DefaultFileName),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Newf(errors.CodeInvalidConfig,
		"no %s found in %s or %s", DefaultFileName, workdir,
		filepath.Join(xdg.ConfigHome, "pkgci"))
}

func parse(data []byte, path string, opts LoadOptions) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapWithContext(
			err,
			errors.CodeInvalidConfig,
			"failed to parse pipeline configuration",
			map[string]interface{}{
				"path": path,
			},
		)
	}

	cfg.applyDefaults()

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
