// Package executor runs the external tools a pipeline run depends on
// (package manager, test runner, linter, documentation generator, artifact
// uploader) with output capture, per-invocation environment injection, and
// context support for cancellation and timeouts.
//
// Environment variables passed through WithEnv are applied to the child
// process only. The executor never mutates the parent process environment,
// so a credential injected for one upload call is invisible to every other
// step of the run.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	pkgcierrors "github.com/pcdshub/pkgci/errors"
)

// Result holds the output and error from a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// Executor is the interface pipeline steps use to run external commands.
type Executor interface {
	// Run executes a program with the given arguments and options.
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures command execution behavior.
type Options struct {
	// Output handling.
	CaptureStdout     bool
	CaptureStderr     bool
	RedirectToConsole bool

	// Working directory for the child process.
	WorkingDir string

	// Env is appended to the current environment for this invocation only.
	Env map[string]string

	// Custom stdout/stderr writers for advanced use cases.
	StdoutWriter io.Writer
	StderrWriter io.Writer

	// Logger records command starts and completions. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// Option is a function that modifies Options.
type Option func(*Options)

// DefaultOptions returns default execution options.
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout: true,
		CaptureStderr: true,
		Env:           make(map[string]string),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithWorkingDir sets the working directory for the child process.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables for this invocation only.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithEnvVar adds a single environment variable for this invocation only.
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithConsoleRedirect mirrors child output to the parent's stdout/stderr
// in addition to capture.
func WithConsoleRedirect(redirect bool) Option {
	return func(o *Options) {
		o.RedirectToConsole = redirect
	}
}

// WithStdoutWriter adds a custom stdout writer.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter adds a custom stderr writer.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}

// WithLogger sets the logger used to record command execution.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// CommandExecutor is the production Executor backed by os/exec.
type CommandExecutor struct {
	options *Options
}

// New creates a CommandExecutor with the given base options. Per-call
// options are merged on top of the base.
func New(opts ...Option) *CommandExecutor {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &CommandExecutor{options: options}
}

// Run implements the Executor interface.
func (c *CommandExecutor) Run(
	ctx context.Context,
	program string,
	args []string,
	opts ...Option,
) (*Result, error) {
	options := c.mergeOptions(opts...)

	cmd := exec.CommandContext(ctx, program, args...)
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}
	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range options.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	stdoutBuf, stderrBuf := setupOutputCapture(cmd, options)

	options.Logger.Debug("running command",
		"program", program,
		"args", strings.Join(args, " "),
		"dir", options.WorkingDir,
	)

	start := time.Now()
	err := cmd.Run()
	result := newResult(stdoutBuf, stderrBuf, time.Since(start), err)

	options.Logger.Debug("command finished",
		"program", program,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)

	if err != nil {
		// An exit code of -1 means the command never ran to completion:
		// binary missing, not executable, or the context was cancelled.
		if result.ExitCode == -1 {
			return result, pkgcierrors.Wrap(err, pkgcierrors.CodeExecutionFailed,
				fmt.Sprintf("command %q could not be executed", program))
		}
		return result, fmt.Errorf("command %q failed: %w", program, err)
	}
	return result, nil
}

// setupOutputCapture configures stdout and stderr writers for the command
// and returns the capture buffers.
func setupOutputCapture(cmd *exec.Cmd, options *Options) (*bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriters := []io.Writer{}
	if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.RedirectToConsole {
		stdoutWriters = append(stdoutWriters, os.Stdout)
	}
	if options.StdoutWriter != nil {
		stdoutWriters = append(stdoutWriters, options.StdoutWriter)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	stderrWriters := []io.Writer{}
	if options.CaptureStderr {
		stderrWriters = append(stderrWriters, &stderrBuf)
	}
	if options.RedirectToConsole {
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	if options.StderrWriter != nil {
		stderrWriters = append(stderrWriters, options.StderrWriter)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	return &stdoutBuf, &stderrBuf
}

// newResult builds a Result from the capture buffers and execution error.
func newResult(stdoutBuf, stderrBuf *bytes.Buffer, duration time.Duration, err error) *Result {
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: duration,
		Err:      err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options

	// Copy the env map so per-call injections never leak into the base.
	if c.options.Env != nil {
		merged.Env = make(map[string]string, len(c.options.Env))
		for k, v := range c.options.Env {
			merged.Env[k] = v
		}
	}

	for _, opt := range opts {
		opt(&merged)
	}
	return &merged
}

// Tool provides a clean interface for a specific external program, such as
// the conda binary or the test runner.
type Tool struct {
	program  string
	executor Executor
	base     []Option
}

// NewTool creates a Tool that runs the given program through the executor.
// Base options apply to every invocation.
func NewTool(program string, exec Executor, base ...Option) *Tool {
	return &Tool{
		program:  program,
		executor: exec,
		base:     base,
	}
}

// Program returns the wrapped program name.
func (t *Tool) Program() string {
	return t.program
}

// Run executes the wrapped program with the given arguments.
func (t *Tool) Run(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	all := make([]Option, 0, len(t.base)+len(opts))
	all = append(all, t.base...)
	all = append(all, opts...)

	result, err := t.executor.Run(ctx, t.program, args, all...)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", t.program, strings.Join(args, " "), err)
	}
	return result, nil
}
