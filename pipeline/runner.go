package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pcdshub/pkgci/config"
	"github.com/pcdshub/pkgci/credentials"
	pkgcierrors "github.com/pcdshub/pkgci/errors"
)

// Provisioner sets up the run's package environment.
type Provisioner interface {
	Provision(ctx context.Context, envName, pythonVersion, environmentFile string) error
	Install(ctx context.Context, envName, artifactPath string) error
}

// Builder produces the package artifact and returns its path.
type Builder interface {
	Build(ctx context.Context, recipeDir, outputDir, pythonVersion string) (string, error)
}

// Tester runs the test suite and linter.
type Tester interface {
	Test(ctx context.Context, targets []string) error
	Lint(ctx context.Context, targets []string) error
}

// DocsBuilder generates the static documentation site.
type DocsBuilder interface {
	Build(ctx context.Context, sourceDir, outputDir string) error
}

// Uploader publishes a built artifact file to the package channel using a
// scoped credential.
type Uploader interface {
	Upload(ctx context.Context, resolver credentials.Resolver, ref credentials.Ref, artifactPath, channel string) error
}

// DocsDeployer publishes a documentation output directory to the pages
// branch using a scoped credential.
type DocsDeployer interface {
	Deploy(ctx context.Context, resolver credentials.Resolver, ref credentials.Ref, outputDir, branch string) error
}

// Collaborators are the external actions the runner invokes. All are
// opaque to the runner: it sequences them and checks errors.
type Collaborators struct {
	Provisioner  Provisioner
	Builder      Builder
	Tester       Tester
	DocsBuilder  DocsBuilder
	Uploader     Uploader
	DocsDeployer DocsDeployer
	Credentials  credentials.Resolver
}

// Runner sequences one pipeline run: provision, build, install, test,
// lint, then the deployment gate's actions. Stage failures are fatal and
// abort the remainder of the run; gate actions are independent of each
// other.
type Runner struct {
	cfg    *config.Config
	collab Collaborators
	gate   *Gate
	logger *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithGate substitutes the deployment gate. Defaults to the standard gate
// built from the configuration.
func WithGate(gate *Gate) RunnerOption {
	return func(r *Runner) {
		if gate != nil {
			r.gate = gate
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(cfg *config.Config, collab Collaborators, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:    cfg,
		collab: collab,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.gate == nil {
		r.gate = NewGate(cfg, WithGateLogger(r.logger))
	}
	return r
}

// Run executes the full pipeline for the given context. The returned error
// is non-nil if any fatal stage failed or any firing publish action
// failed; the process exit code follows from it.
func (r *Runner) Run(ctx context.Context, pctx Context) error {
	cfg := r.cfg

	r.logger.Info("starting pipeline run",
		"repo", pctx.RepoSlug,
		"branch", pctx.Branch,
		"tag", pctx.Tag,
		"pull_request", pctx.IsPullRequest,
	)

	if err := r.collab.Provisioner.Provision(ctx, cfg.EnvironmentName, cfg.PythonVersion, cfg.EnvironmentFile); err != nil {
		return err
	}

	artifact, err := r.collab.Builder.Build(ctx, cfg.RecipeDir, cfg.OutputDir, cfg.PythonVersion)
	if err != nil {
		return err
	}

	if err := r.collab.Provisioner.Install(ctx, cfg.EnvironmentName, artifact); err != nil {
		return err
	}

	if err := r.collab.Tester.Test(ctx, cfg.Test.Targets); err != nil {
		return err
	}
	if err := r.collab.Tester.Lint(ctx, cfg.Test.LintTargets); err != nil {
		return err
	}

	decisions := r.gate.Evaluate(pctx)
	return r.executeActions(ctx, Actions(decisions), artifact)
}

// executeActions runs each fired publish action exactly once. Actions are
// independent: a failure in one is recorded and the rest still execute.
func (r *Runner) executeActions(ctx context.Context, actions []PublishAction, artifact string) error {
	var failures []error
	for _, action := range actions {
		if err := r.executeAction(ctx, action, artifact); err != nil {
			r.logger.Error("publish action failed", "action", action.Kind, "error", err)
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (r *Runner) executeAction(ctx context.Context, action PublishAction, artifact string) error {
	cfg := r.cfg

	switch action.Kind {
	case ActionPublishDocs:
		// The docs build is fatal to this action only: its failure stops
		// the deploy that would have consumed its output but does not
		// block the other actions.
		if err := r.collab.DocsBuilder.Build(ctx, cfg.Docs.SourceDir, cfg.Docs.OutputDir); err != nil {
			return err
		}
		return r.collab.DocsDeployer.Deploy(ctx, r.collab.Credentials, action.Credential,
			cfg.Docs.OutputDir, cfg.Docs.PagesBranch)

	case ActionPublishRelease:
		r.warnNonSemverTag(action.Tag)
		return r.collab.Uploader.Upload(ctx, r.collab.Credentials, action.Credential,
			artifact, cfg.UploadChannel)

	case ActionPublishDev:
		return r.collab.Uploader.Upload(ctx, r.collab.Credentials, action.Credential,
			artifact, cfg.UploadChannel)

	default:
		return pkgcierrors.Newf(pkgcierrors.CodePublishFailed,
			"unknown publish action %q", action.Kind)
	}
}

// warnNonSemverTag logs when a release tag does not parse as a semantic
// version. Uploads proceed regardless; the channel accepts any version
// string.
func (r *Runner) warnNonSemverTag(tag string) {
	if tag == "" {
		return
	}
	if _, err := semver.NewVersion(strings.TrimPrefix(tag, "v")); err != nil {
		r.logger.Warn("release tag is not a semantic version", "tag", tag)
	}
}
