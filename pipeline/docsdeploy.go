package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/pcdshub/pkgci/credentials"
	pkgcierrors "github.com/pcdshub/pkgci/errors"
	"github.com/pcdshub/pkgci/git"
)

// GitDeployer publishes a documentation output directory to the pages
// branch of the working repository and pushes it. It implements
// DocsDeployer.
type GitDeployer struct {
	repo   *git.Repo
	remote string
	logger *slog.Logger
}

// GitDeployerOption configures a GitDeployer.
type GitDeployerOption func(*GitDeployer)

// WithDeployRemote sets the push remote. Defaults to origin.
func WithDeployRemote(remote string) GitDeployerOption {
	return func(d *GitDeployer) {
		if remote != "" {
			d.remote = remote
		}
	}
}

// WithDeployLogger sets the deployer's logger.
func WithDeployLogger(logger *slog.Logger) GitDeployerOption {
	return func(d *GitDeployer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewGitDeployer creates a GitDeployer for the given repository.
func NewGitDeployer(repo *git.Repo, opts ...GitDeployerOption) *GitDeployer {
	d := &GitDeployer{
		repo:   repo,
		remote: git.DefaultRemoteName,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deploy commits the output directory onto the pages branch and pushes it.
// The deploy key is resolved just-in-time for the push and cleared
// afterwards. An up-to-date remote is success, not an error.
func (d *GitDeployer) Deploy(
	ctx context.Context,
	resolver credentials.Resolver,
	ref credentials.Ref,
	outputDir, branch string,
) error {
	hash, err := d.repo.PublishDirectory(ctx, git.PublishOptions{
		Source:  osfs.New(outputDir),
		Branch:  branch,
		Message: fmt.Sprintf("Update documentation (%s)", branch),
	})
	if err != nil {
		return pkgcierrors.Wrap(err, pkgcierrors.CodePublishFailed,
			fmt.Sprintf("publishing documentation to %q", branch))
	}
	d.logger.Info("documentation committed", "branch", branch, "commit", hash.String())

	err = credentials.WithValue(ctx, resolver, ref, func(token string) error {
		return d.repo.PushBranch(ctx, d.remote, branch, token)
	})
	if errors.Is(err, git.ErrAlreadyUpToDate) {
		d.logger.Info("documentation already up to date", "branch", branch)
		return nil
	}
	if err != nil {
		return pkgcierrors.Wrap(err, pkgcierrors.CodePublishFailed,
			fmt.Sprintf("pushing documentation branch %q", branch))
	}

	d.logger.Info("documentation published", "branch", branch)
	return nil
}
