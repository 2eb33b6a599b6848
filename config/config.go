// Package config provides parsing, validation, and convenient access to the
// pkgci pipeline configuration.
//
// The configuration is a single YAML document (pkgci.yaml) describing the
// repository identity, the external tool inputs, and the credential variable
// names the deployment gate observes. Load applies defaults and validates
// by default.
package config

import (
	"strings"

	"github.com/pcdshub/pkgci/errors"
)

// Defaults for optional configuration fields.
const (
	// DefaultTrunkBranch is the long-lived integration branch from which
	// development artifacts are published.
	DefaultTrunkBranch = "master"

	// DefaultPagesBranch is the branch documentation is published to.
	DefaultPagesBranch = "gh-pages"

	// DefaultRecipeDir is the conda build recipe directory.
	DefaultRecipeDir = "conda-recipe"

	// DefaultEnvironmentName is the conda environment provisioned for the run.
	DefaultEnvironmentName = "pkgci"

	// DefaultTagTokenVar is the variable carrying the release upload token.
	DefaultTagTokenVar = "CONDA_UPLOAD_TOKEN_TAG"

	// DefaultDevTokenVar is the variable carrying the development upload token.
	DefaultDevTokenVar = "CONDA_UPLOAD_TOKEN_DEV"

	// DefaultDocsDeployKeyVar is the variable carrying the docs deploy key.
	DefaultDocsDeployKeyVar = "DOCTR_DEPLOY_KEY"
)

// Config is the root pipeline configuration.
type Config struct {
	// OfficialRepoSlug is the canonical upstream "owner/name" slug. Forks
	// never publish.
	OfficialRepoSlug string `yaml:"official_repo_slug"`

	// TrunkBranch is the branch development artifacts publish from.
	// Defaults to "master".
	TrunkBranch string `yaml:"trunk_branch"`

	// EnvironmentName is the conda environment provisioned for the run.
	// Defaults to "pkgci".
	EnvironmentName string `yaml:"environment_name"`

	// PythonVersion is the target runtime version for provisioning.
	PythonVersion string `yaml:"python_version"`

	// EnvironmentFile is the dependency specification file passed to the
	// environment provisioner.
	EnvironmentFile string `yaml:"environment_file"`

	// RecipeDir is the build-recipe directory passed to the package
	// builder. Defaults to "conda-recipe".
	RecipeDir string `yaml:"recipe_dir"`

	// OutputDir is where the builder places produced artifacts.
	OutputDir string `yaml:"output_dir"`

	// UploadChannel is the package channel user/organization artifacts are
	// uploaded to.
	UploadChannel string `yaml:"upload_channel"`

	Test        TestConfig        `yaml:"test"`
	Docs        DocsConfig        `yaml:"docs"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// TestConfig configures the test, coverage, and lint steps.
type TestConfig struct {
	// Targets are the file globs handed to the test runner and linter.
	Targets []string `yaml:"targets"`

	// LintTargets are the globs handed to the linter. Defaults to Targets.
	LintTargets []string `yaml:"lint_targets"`
}

// DocsConfig configures documentation build and publish.
type DocsConfig struct {
	// SourceDir is the documentation source directory.
	SourceDir string `yaml:"source_dir"`

	// OutputDir is the static output directory the generator produces.
	OutputDir string `yaml:"output_dir"`

	// PagesBranch is the branch the output is published to. Defaults to
	// "gh-pages".
	PagesBranch string `yaml:"pages_branch"`
}

// CredentialsConfig names the variables the deployment gate observes.
// Only presence is checked at gate time; values are resolved just-in-time
// by the executing action.
type CredentialsConfig struct {
	// TagTokenVar gates the tagged-release publish rule.
	TagTokenVar string `yaml:"tag_token_var"`

	// DevTokenVar gates the development publish rule.
	DevTokenVar string `yaml:"dev_token_var"`

	// DocsDeployKeyVar gates the documentation publish rule.
	DocsDeployKeyVar string `yaml:"docs_deploy_key_var"`
}

// applyDefaults fills unset optional fields.
func (c *Config) applyDefaults() {
	if c.TrunkBranch == "" {
		c.TrunkBranch = DefaultTrunkBranch
	}
	if c.EnvironmentName == "" {
		c.EnvironmentName = DefaultEnvironmentName
	}
	if c.RecipeDir == "" {
		c.RecipeDir = DefaultRecipeDir
	}
	if c.Docs.PagesBranch == "" {
		c.Docs.PagesBranch = DefaultPagesBranch
	}
	if c.Credentials.TagTokenVar == "" {
		c.Credentials.TagTokenVar = DefaultTagTokenVar
	}
	if c.Credentials.DevTokenVar == "" {
		c.Credentials.DevTokenVar = DefaultDevTokenVar
	}
	if c.Credentials.DocsDeployKeyVar == "" {
		c.Credentials.DocsDeployKeyVar = DefaultDocsDeployKeyVar
	}
	if len(c.Test.LintTargets) == 0 {
		c.Test.LintTargets = c.Test.Targets
	}
}

// Validate checks that required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.OfficialRepoSlug == "" {
		return errors.New(errors.CodeInvalidConfig, "official_repo_slug is required")
	}
	if !strings.Contains(c.OfficialRepoSlug, "/") {
		return errors.Newf(errors.CodeInvalidConfig,
			"official_repo_slug %q is not an owner/name slug", c.OfficialRepoSlug)
	}
	if c.EnvironmentFile == "" {
		return errors.New(errors.CodeInvalidConfig, "environment_file is required")
	}
	if c.OutputDir == "" {
		return errors.New(errors.CodeInvalidConfig, "output_dir is required")
	}
	if c.Docs.SourceDir != "" && c.Docs.OutputDir == "" {
		return errors.New(errors.CodeInvalidConfig,
			"docs.output_dir is required when docs.source_dir is set")
	}
	return nil
}

// DocsConfigured reports whether the configuration describes a
// documentation build at all.
func (c *Config) DocsConfigured() bool {
	return c.Docs.SourceDir != "" && c.Docs.OutputDir != ""
}
