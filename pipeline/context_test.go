package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/pkgci/credentials"
	"github.com/pcdshub/pkgci/git"
)

// envLookup builds a lookup function over a fixed map.
func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func emptyCreds() credentials.Resolver {
	return credentials.NewStaticProvider(nil)
}

func TestBuildContext_FromCIEnvironment(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name string
		env  map[string]string
		want Context
	}{
		{
			name: "trunk push",
			env: map[string]string{
				"TRAVIS_PULL_REQUEST": "false",
				"TRAVIS_REPO_SLUG":    "pcdshub/pcdsdevices",
				"TRAVIS_BRANCH":       "master",
				"TRAVIS_TAG":          "",
			},
			want: Context{
				RepoSlug:         "pcdshub/pcdsdevices",
				OfficialRepoSlug: "pcdshub/pcdsdevices",
				Branch:           "master",
			},
		},
		{
			name: "tag build sets branch to tag",
			env: map[string]string{
				"TRAVIS_PULL_REQUEST": "false",
				"TRAVIS_REPO_SLUG":    "pcdshub/pcdsdevices",
				"TRAVIS_BRANCH":       "v1.2.0",
				"TRAVIS_TAG":          "v1.2.0",
			},
			want: Context{
				RepoSlug:         "pcdshub/pcdsdevices",
				OfficialRepoSlug: "pcdshub/pcdsdevices",
				Branch:           "v1.2.0",
				Tag:              "v1.2.0",
			},
		},
		{
			name: "pull request number marks PR",
			env: map[string]string{
				"TRAVIS_PULL_REQUEST": "123",
				"TRAVIS_REPO_SLUG":    "pcdshub/pcdsdevices",
				"TRAVIS_BRANCH":       "master",
			},
			want: Context{
				IsPullRequest:    true,
				RepoSlug:         "pcdshub/pcdsdevices",
				OfficialRepoSlug: "pcdshub/pcdsdevices",
				Branch:           "master",
			},
		},
		{
			name: "docs matrix flag",
			env: map[string]string{
				"TRAVIS_PULL_REQUEST": "false",
				"TRAVIS_REPO_SLUG":    "pcdshub/pcdsdevices",
				"TRAVIS_BRANCH":       "master",
				"BUILD_DOCS":          "1",
			},
			want: Context{
				RepoSlug:         "pcdshub/pcdsdevices",
				OfficialRepoSlug: "pcdshub/pcdsdevices",
				Branch:           "master",
				DocsRequested:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildContext(context.Background(), ContextSource{
				Lookup:      envLookup(tt.env),
				Credentials: emptyCreds(),
				Config:      cfg,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildContext_CredentialPresence(t *testing.T) {
	cfg := testConfig()

	creds := credentials.NewStaticProvider(map[string]string{
		cfg.Credentials.DevTokenVar:      "dev-token",
		cfg.Credentials.DocsDeployKeyVar: "deploy-key",
		// Tag token intentionally absent.
	})

	got, err := BuildContext(context.Background(), ContextSource{
		Lookup: envLookup(map[string]string{
			"TRAVIS_PULL_REQUEST": "false",
			"TRAVIS_REPO_SLUG":    "pcdshub/pcdsdevices",
			"TRAVIS_BRANCH":       "master",
		}),
		Credentials: creds,
		Config:      cfg,
	})
	require.NoError(t, err)

	assert.True(t, got.HasDevCredential)
	assert.True(t, got.HasDocsDeployKey)
	assert.False(t, got.HasTagCredential)
}

// newTestRepo creates an in-memory repository with one commit on master
// and an origin remote.
func newTestRepo(t *testing.T) (*gogit.Repository, *git.Repo) {
	t.Helper()

	fs := memfs.New()
	repo, err := gogit.Init(memory.NewStorage(), fs)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	f, err := fs.Create("README.md")
	require.NoError(t, err)
	_, err = f.Write([]byte("pcdsdevices\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = wt.Add("README.md")
	require.NoError(t, err)

	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "tester",
			Email: "tester@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"https://github.com/pcdshub/pcdsdevices.git"},
	})
	require.NoError(t, err)

	return repo, git.Wrap(repo)
}

func TestBuildContext_GitFallback(t *testing.T) {
	cfg := testConfig()
	raw, repo := newTestRepo(t)

	t.Run("branch and slug from repository", func(t *testing.T) {
		got, err := BuildContext(context.Background(), ContextSource{
			Lookup:      envLookup(nil),
			Repo:        repo,
			Credentials: emptyCreds(),
			Config:      cfg,
		})
		require.NoError(t, err)

		assert.Equal(t, "pcdshub/pcdsdevices", got.RepoSlug)
		assert.Equal(t, "master", got.Branch)
		assert.Empty(t, got.Tag)
		assert.False(t, got.IsPullRequest)
	})

	t.Run("tag at HEAD", func(t *testing.T) {
		head, err := raw.Head()
		require.NoError(t, err)
		_, err = raw.CreateTag("v1.2.0", head.Hash(), nil)
		require.NoError(t, err)

		got, err := BuildContext(context.Background(), ContextSource{
			Lookup:      envLookup(nil),
			Repo:        repo,
			Credentials: emptyCreds(),
			Config:      cfg,
		})
		require.NoError(t, err)

		assert.Equal(t, "v1.2.0", got.Tag)
	})

	t.Run("environment wins over repository", func(t *testing.T) {
		got, err := BuildContext(context.Background(), ContextSource{
			Lookup: envLookup(map[string]string{
				"TRAVIS_REPO_SLUG": "fork/pcdsdevices",
				"TRAVIS_BRANCH":    "feature/x",
				"TRAVIS_TAG":       "",
			}),
			Repo:        repo,
			Credentials: emptyCreds(),
			Config:      cfg,
		})
		require.NoError(t, err)

		assert.Equal(t, "fork/pcdsdevices", got.RepoSlug)
		assert.Equal(t, "feature/x", got.Branch)
		assert.Empty(t, got.Tag)
	})
}

func TestBuildContext_DetachedHeadBackfillsBranchFromTag(t *testing.T) {
	cfg := testConfig()
	raw, repo := newTestRepo(t)

	head, err := raw.Head()
	require.NoError(t, err)
	_, err = raw.CreateTag("v2.0.0", head.Hash(), nil)
	require.NoError(t, err)

	wt, err := raw.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: head.Hash()}))

	got, err := BuildContext(context.Background(), ContextSource{
		Lookup:      envLookup(nil),
		Repo:        repo,
		Credentials: emptyCreds(),
		Config:      cfg,
	})
	require.NoError(t, err)

	assert.Equal(t, "v2.0.0", got.Tag)
	assert.Equal(t, "v2.0.0", got.Branch,
		"detached tag checkouts report the tag as the branch, matching CI convention")
}

func TestParseFlag(t *testing.T) {
	assert.False(t, parseFlag(""))
	assert.False(t, parseFlag("0"))
	assert.False(t, parseFlag("false"))
	assert.False(t, parseFlag("no"))
	assert.True(t, parseFlag("1"))
	assert.True(t, parseFlag("true"))
	assert.True(t, parseFlag("yes"))
}
