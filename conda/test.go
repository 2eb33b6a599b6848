package conda

import (
	"context"

	"github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/executor"
)

// Tester runs the test suite with coverage and the linter. Any non-zero
// exit is fatal to the run.
type Tester struct {
	coverage *executor.Tool
	lint     *executor.Tool
	opts     *options
}

// NewTester creates a Tester.
func NewTester(opts ...Option) *Tester {
	o := newOptions(opts...)
	return &Tester{
		coverage: executor.NewTool(coverageBinary, o.executor, executor.WithLogger(o.logger)),
		lint:     executor.NewTool(lintBinary, o.executor, executor.WithLogger(o.logger)),
		opts:     o,
	}
}

// Test runs the suite under coverage and then prints the coverage report.
func (t *Tester) Test(ctx context.Context, targets []string) error {
	args := []string{"run", "-m", "pytest"}
	args = append(args, targets...)

	t.opts.logger.Info("running tests", "targets", targets)

	result, err := t.coverage.Run(ctx, args)
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeTestFailed,
			"test suite failed",
			map[string]interface{}{
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}

	result, err = t.coverage.Run(ctx, []string{"report", "-m"})
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeTestFailed,
			"coverage report failed",
			map[string]interface{}{
				"exit_code": exitCode(result),
			},
		)
	}
	return nil
}

// Lint runs the linter over the configured targets.
func (t *Tester) Lint(ctx context.Context, targets []string) error {
	t.opts.logger.Info("running linter", "targets", targets)

	result, err := t.lint.Run(ctx, targets)
	if err != nil {
		return errors.WrapWithContext(
			err,
			errors.CodeTestFailed,
			"lint failed",
			map[string]interface{}{
				"exit_code": exitCode(result),
				"stderr":    tail(result),
			},
		)
	}
	return nil
}
