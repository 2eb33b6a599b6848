// Package pipeline implements the pkgci run: an immutable context snapshot,
// the deployment gate that decides which publish actions fire, and the
// fail-fast runner that sequences the external build, test, and publish
// steps.
package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/pcdshub/pkgci/config"
	"github.com/pcdshub/pkgci/credentials"
	"github.com/pcdshub/pkgci/git"
)

// CI environment variables consumed during context construction.
const (
	envPullRequest = "TRAVIS_PULL_REQUEST"
	envRepoSlug    = "TRAVIS_REPO_SLUG"
	envBranch      = "TRAVIS_BRANCH"
	envTag         = "TRAVIS_TAG"
	envBuildDocs   = "BUILD_DOCS"
)

// Context is the read-only snapshot of pipeline state the deployment gate
// evaluates. It is constructed once at the start of a run and never
// mutated: rules observe values, they do not change them.
//
// Credential fields record presence only. Values are resolved just-in-time
// by the executing action and are never stored here.
type Context struct {
	IsPullRequest    bool
	RepoSlug         string
	OfficialRepoSlug string
	Branch           string
	Tag              string
	HasDevCredential bool
	HasTagCredential bool
	DocsRequested    bool
	HasDocsDeployKey bool
}

// ContextSource supplies the inputs for building a Context.
type ContextSource struct {
	// Lookup reads CI environment variables. Defaults to os.LookupEnv.
	Lookup func(string) (string, bool)

	// Repo is an optional fallback: when the CI variables are absent
	// (local or dry runs), branch, tag, and slug are derived from the
	// working repository.
	Repo *git.Repo

	// Credentials reports credential presence.
	Credentials credentials.Resolver

	// Config provides the official slug and credential variable names.
	Config *config.Config
}

// BuildContext constructs the immutable context snapshot for one run.
// CI environment variables win; the git repository fills gaps for runs
// outside CI.
func BuildContext(ctx context.Context, src ContextSource) (Context, error) {
	lookup := src.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if src.Config == nil {
		return Context{}, errors.New("pipeline: config is required to build context")
	}
	if src.Credentials == nil {
		return Context{}, errors.New("pipeline: credential resolver is required to build context")
	}

	pctx := Context{
		OfficialRepoSlug: src.Config.OfficialRepoSlug,
	}

	// Pull request indicator: the CI sets the variable to the PR number,
	// or the literal "false" for push builds.
	if v, ok := lookup(envPullRequest); ok {
		pctx.IsPullRequest = v != "" && v != "false"
	}

	if v, ok := lookup(envRepoSlug); ok && v != "" {
		pctx.RepoSlug = v
	} else if src.Repo != nil {
		slug, err := src.Repo.RemoteSlug(ctx, "")
		if err == nil {
			pctx.RepoSlug = slug
		} else if !errors.Is(err, git.ErrNoRemote) {
			return Context{}, err
		}
	}

	if v, ok := lookup(envBranch); ok && v != "" {
		pctx.Branch = v
	} else if src.Repo != nil {
		branch, err := src.Repo.CurrentBranch(ctx)
		switch {
		case err == nil:
			pctx.Branch = branch
		case errors.Is(err, git.ErrDetachedHead):
			// Tag checkouts detach HEAD; the branch stays empty and is
			// backfilled from the tag below, matching the CI convention
			// of setting the branch variable to the tag name on tag
			// builds.
		default:
			return Context{}, err
		}
	}

	if v, ok := lookup(envTag); ok {
		pctx.Tag = v
	} else if src.Repo != nil {
		tag, err := src.Repo.TagAtHead(ctx)
		if err != nil {
			return Context{}, err
		}
		pctx.Tag = tag
	}
	if pctx.Branch == "" && pctx.Tag != "" {
		pctx.Branch = pctx.Tag
	}

	if v, ok := lookup(envBuildDocs); ok {
		pctx.DocsRequested = parseFlag(v)
	}

	creds := src.Config.Credentials
	var err error
	pctx.HasTagCredential, err = src.Credentials.Exists(ctx, credentials.Ref{Name: creds.TagTokenVar})
	if err != nil {
		return Context{}, err
	}
	pctx.HasDevCredential, err = src.Credentials.Exists(ctx, credentials.Ref{Name: creds.DevTokenVar})
	if err != nil {
		return Context{}, err
	}
	pctx.HasDocsDeployKey, err = src.Credentials.Exists(ctx, credentials.Ref{Name: creds.DocsDeployKeyVar})
	if err != nil {
		return Context{}, err
	}

	return pctx, nil
}

// IsOfficialRepo reports whether the run is on the canonical upstream
// repository rather than a fork.
func (c Context) IsOfficialRepo() bool {
	return c.RepoSlug != "" && c.RepoSlug == c.OfficialRepoSlug
}

// parseFlag interprets a build-matrix flag value.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
