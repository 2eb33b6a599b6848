package conda

import (
	"context"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/executor"
)

// Artifact archive types conda produces: .tar.bz2 packages and the newer
// zstd-compressed .conda format.
var artifactMIMETypes = map[string]bool{
	"application/x-bzip2": true,
	"application/zstd":    true,
	"application/zip":     true,
}

// Builder produces the package artifact from a build recipe.
type Builder struct {
	tool *executor.Tool
	opts *options

	// detect allows tests to substitute mimetype detection.
	detect func(path string) (string, error)
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	o := newOptions(opts...)
	return &Builder{
		tool: executor.NewTool(condaBinary, o.executor, executor.WithLogger(o.logger)),
		opts: o,
		detect: func(path string) (string, error) {
			mt, err := mimetype.DetectFile(path)
			if err != nil {
				return "", err
			}
			return mt.String(), nil
		},
	}
}

// Build runs the package build against the recipe directory and returns
// the produced artifact path. The produced file is sanity checked: it must
// exist under the output directory and look like a package archive.
func (b *Builder) Build(ctx context.Context, recipeDir, outputDir, pythonVersion string) (string, error) {
	if recipeDir == "" {
		return "", errors.New(errors.CodeInvalidInput, "recipe directory is required")
	}
	if outputDir == "" {
		return "", errors.New(errors.CodeInvalidInput, "output directory is required")
	}

	args := []string{"build", recipeDir, "--output-folder", outputDir}
	if pythonVersion != "" {
		args = append(args, "--python", pythonVersion)
	}

	b.opts.logger.Info("building artifact", "recipe", recipeDir, "output", outputDir)

	result, err := b.tool.Run(ctx, args)
	if err != nil {
		return "", errors.WrapWithContext(
			err,
			errors.CodeBuildFailed,
			"artifact build failed",
			map[string]interface{}{
				"recipe":    recipeDir,
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}

	artifact, err := b.locateArtifact(outputDir)
	if err != nil {
		return "", err
	}

	b.opts.logger.Info("artifact built", "artifact", artifact)
	return artifact, nil
}

// locateArtifact finds the built package file under the output directory.
// conda build places artifacts in a platform subdirectory (linux-64,
// noarch, ...).
func (b *Builder) locateArtifact(outputDir string) (string, error) {
	patterns := []string{
		filepath.Join(outputDir, "*", "*.tar.bz2"),
		filepath.Join(outputDir, "*", "*.conda"),
	}

	var matches []string
	for _, pattern := range patterns {
		found, err := filepath.Glob(pattern)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeBuildFailed, "artifact glob failed")
		}
		matches = append(matches, found...)
	}
	if len(matches) == 0 {
		return "", errors.Newf(errors.CodeBuildFailed,
			"build produced no artifact under %q", outputDir)
	}

	artifact := matches[0]
	kind, err := b.detect(artifact)
	if err != nil {
		return "", errors.WrapWithContext(
			err,
			errors.CodeBuildFailed,
			"artifact type detection failed",
			map[string]interface{}{
				"artifact": artifact,
			},
		)
	}
	if !artifactMIMETypes[kind] {
		return "", errors.Newf(errors.CodeBuildFailed,
			"artifact %q has unexpected type %q", artifact, kind)
	}

	return artifact, nil
}
