// Command pkgci runs the continuous-integration pipeline for a
// conda-packaged device library: provision, build, test, lint, and the
// deployment gate's publish actions.
//
// Usage:
//
//	pkgci run  [--config pkgci.yaml] [--workdir .] [--verbose]
//	pkgci plan [--config pkgci.yaml] [--workdir .] [--format text|json]
//
// "run" executes the full pipeline and exits non-zero if any fatal stage
// or firing publish action failed. "plan" evaluates the deployment gate
// against the current context and prints the decisions without executing
// any side effects.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/pcdshub/pkgci/conda"
	"github.com/pcdshub/pkgci/config"
	"github.com/pcdshub/pkgci/credentials"
	"github.com/pcdshub/pkgci/executor"
	"github.com/pcdshub/pkgci/git"
	"github.com/pcdshub/pkgci/pipeline"
)

const version = "0.2.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pkgci: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("a subcommand is required")
	}

	switch args[0] {
	case "run":
		return runPipeline(args[1:])
	case "plan":
		return runPlan(args[1:])
	case "version", "--version":
		fmt.Println("pkgci " + version)
		return nil
	case "help", "--help", "-h":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  pkgci run  [--config FILE] [--workdir DIR] [--verbose]
  pkgci plan [--config FILE] [--workdir DIR] [--format text|json]
  pkgci version`)
}

// setup holds everything both subcommands need.
type setup struct {
	cfg    *config.Config
	repo   *git.Repo
	creds  *credentials.EnvProvider
	pctx   pipeline.Context
	logger *slog.Logger
}

func buildSetup(ctx context.Context, configPath, workdir string, verbose bool) (*setup, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path, err := config.Discover(configPath, workdir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "path", path)

	// The repository is optional: inside CI all context comes from the
	// environment. Without it, only the docs deploy action is unavailable.
	repo, err := git.Open(workdir)
	if err != nil {
		logger.Debug("no git repository found, relying on CI environment", "workdir", workdir)
		repo = nil
	}

	creds := credentials.NewEnvProvider()
	pctx, err := pipeline.BuildContext(ctx, pipeline.ContextSource{
		Repo:        repo,
		Credentials: creds,
		Config:      cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("building pipeline context: %w", err)
	}

	return &setup{
		cfg:    cfg,
		repo:   repo,
		creds:  creds,
		pctx:   pctx,
		logger: logger,
	}, nil
}

func runPipeline(args []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to pkgci.yaml")
	workdir := flags.String("workdir", ".", "repository working directory")
	verbose := flags.Bool("verbose", false, "enable debug logging")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := buildSetup(ctx, *configPath, *workdir, *verbose)
	if err != nil {
		return err
	}

	exec := executor.New(
		executor.WithWorkingDir(*workdir),
		executor.WithConsoleRedirect(true),
		executor.WithLogger(s.logger),
	)
	toolOpts := []conda.Option{
		conda.WithExecutor(exec),
		conda.WithLogger(s.logger),
	}

	collab := pipeline.Collaborators{
		Provisioner: conda.NewProvisioner(toolOpts...),
		Builder:     conda.NewBuilder(toolOpts...),
		Tester:      conda.NewTester(toolOpts...),
		DocsBuilder: conda.NewDocsBuilder(toolOpts...),
		Uploader:    conda.NewUploader(toolOpts...),
		Credentials: s.creds,
	}
	if s.repo != nil {
		collab.DocsDeployer = pipeline.NewGitDeployer(s.repo, pipeline.WithDeployLogger(s.logger))
	} else {
		collab.DocsDeployer = unavailableDeployer{}
	}

	runner := pipeline.NewRunner(s.cfg, collab, pipeline.WithLogger(s.logger))
	return runner.Run(ctx, s.pctx)
}

func runPlan(args []string) error {
	flags := pflag.NewFlagSet("plan", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to pkgci.yaml")
	workdir := flags.String("workdir", ".", "repository working directory")
	format := flags.String("format", "text", "output format: text or json")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := buildSetup(ctx, *configPath, *workdir, false)
	if err != nil {
		return err
	}

	gate := pipeline.NewGate(s.cfg)
	decisions := gate.Evaluate(s.pctx)

	reporter := pipeline.NewReporter(os.Stdout, pipeline.ParseFormat(*format))
	return reporter.Report(decisions)
}

// unavailableDeployer reports why docs cannot deploy when pkgci runs
// outside a git repository.
type unavailableDeployer struct{}

func (unavailableDeployer) Deploy(context.Context, credentials.Resolver, credentials.Ref, string, string) error {
	return fmt.Errorf("documentation deploy requires a git repository working directory")
}
