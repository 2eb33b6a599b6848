// Package conda wraps the external tools a pipeline run invokes: the conda
// package manager for provisioning and building, the test runner and
// linter, the documentation generator, and the artifact uploader.
//
// Each wrapper only shells out and checks exit status; none of the tools'
// semantics are reimplemented here. Wrappers classify failures with the
// pipeline error taxonomy so the runner can distinguish fatal stage
// failures from publish failures.
package conda

import (
	"io"
	"log/slog"

	"github.com/pcdshub/pkgci/executor"
)

// Tool binary names.
const (
	condaBinary    = "conda"
	coverageBinary = "coverage"
	lintBinary     = "flake8"
	sphinxBinary   = "sphinx-build"
	uploadBinary   = "anaconda"
)

// options holds the shared configuration for tool wrappers.
type options struct {
	executor executor.Executor
	logger   *slog.Logger
}

// Option configures a tool wrapper.
type Option func(*options)

// WithExecutor sets the command executor. Defaults to the production
// os/exec executor.
func WithExecutor(exec executor.Executor) Option {
	return func(o *options) {
		if exec != nil {
			o.executor = exec
		}
	}
}

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		executor: executor.New(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
