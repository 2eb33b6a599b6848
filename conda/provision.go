package conda

import (
	"context"

	"github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/executor"
)

// Provisioner creates the conda environment a pipeline run executes in.
type Provisioner struct {
	tool *executor.Tool
	opts *options
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(opts ...Option) *Provisioner {
	o := newOptions(opts...)
	return &Provisioner{
		tool: executor.NewTool(condaBinary, o.executor, executor.WithLogger(o.logger)),
		opts: o,
	}
}

// Provision creates the named environment with the target Python version
// and installs the dependency specification file into it. Failure is
// fatal to the run.
func (p *Provisioner) Provision(ctx context.Context, envName, pythonVersion, environmentFile string) error {
	if envName == "" {
		return errors.New(errors.CodeInvalidInput, "environment name is required")
	}
	if environmentFile == "" {
		return errors.New(errors.CodeInvalidInput, "environment file is required")
	}

	args := []string{"create", "--yes", "--name", envName}
	if pythonVersion != "" {
		args = append(args, "python="+pythonVersion)
	}
	args = append(args, "--file", environmentFile)

	p.opts.logger.Info("provisioning environment",
		"env", envName,
		"python", pythonVersion,
		"file", environmentFile,
	)

	result, err := p.tool.Run(ctx, args)
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeProvisioningFailed,
			"environment provisioning failed",
			map[string]interface{}{
				"env":       envName,
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}
	return nil
}

// Install installs the built artifact into the active environment so the
// test suite runs against the packaged code rather than the source tree.
func (p *Provisioner) Install(ctx context.Context, envName, artifactPath string) error {
	if artifactPath == "" {
		return errors.New(errors.CodeInvalidInput, "artifact path is required")
	}

	args := []string{"install", "--yes", "--name", envName, "--use-local", artifactPath}

	p.opts.logger.Info("installing built artifact", "env", envName, "artifact", artifactPath)

	result, err := p.tool.Run(ctx, args)
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeProvisioningFailed,
			"artifact installation failed",
			map[string]interface{}{
				"artifact":  artifactPath,
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}
	return nil
}

// exitCode safely extracts the exit code from a possibly-nil result.
func exitCode(result *executor.Result) int {
	if result == nil {
		return -1
	}
	return result.ExitCode
}

// tail returns the last portion of captured stderr for error context.
func tail(result *executor.Result) string {
	if result == nil {
		return ""
	}
	const max = 2048
	s := result.Stderr
	if len(s) > max {
		return s[len(s)-max:]
	}
	return s
}
