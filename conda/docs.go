package conda

import (
	"context"

	"github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/executor"
)

// DocsBuilder generates the static documentation site.
type DocsBuilder struct {
	tool *executor.Tool
	opts *options
}

// NewDocsBuilder creates a DocsBuilder.
func NewDocsBuilder(opts ...Option) *DocsBuilder {
	o := newOptions(opts...)
	return &DocsBuilder{
		tool: executor.NewTool(sphinxBinary, o.executor, executor.WithLogger(o.logger)),
		opts: o,
	}
}

// Build generates documentation from sourceDir into outputDir. Failure is
// fatal to the documentation publish action only, not the rest of the run.
func (d *DocsBuilder) Build(ctx context.Context, sourceDir, outputDir string) error {
	if sourceDir == "" || outputDir == "" {
		return errors.New(errors.CodeInvalidInput, "docs source and output directories are required")
	}

	d.opts.logger.Info("building documentation", "source", sourceDir, "output", outputDir)

	result, err := d.tool.Run(ctx, []string{sourceDir, outputDir})
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeDocsFailed,
			"documentation build failed",
			map[string]interface{}{
				"source":    sourceDir,
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}
	return nil
}
