package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/pkgci/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		OfficialRepoSlug: "pcdshub/pcdsdevices",
		EnvironmentFile:  "dev-requirements.txt",
		OutputDir:        "build",
		Test:             config.TestConfig{Targets: []string{"pcdsdevices", "tests"}},
		Docs: config.DocsConfig{
			SourceDir: "docs/source",
			OutputDir: "docs/build/html",
		},
	}
	cfgDefaults(cfg)
	return cfg
}

// cfgDefaults applies defaults the loader would normally apply.
func cfgDefaults(cfg *config.Config) {
	if cfg.TrunkBranch == "" {
		cfg.TrunkBranch = config.DefaultTrunkBranch
	}
	if cfg.Credentials.TagTokenVar == "" {
		cfg.Credentials.TagTokenVar = config.DefaultTagTokenVar
	}
	if cfg.Credentials.DevTokenVar == "" {
		cfg.Credentials.DevTokenVar = config.DefaultDevTokenVar
	}
	if cfg.Credentials.DocsDeployKeyVar == "" {
		cfg.Credentials.DocsDeployKeyVar = config.DefaultDocsDeployKeyVar
	}
	if cfg.Docs.PagesBranch == "" {
		cfg.Docs.PagesBranch = config.DefaultPagesBranch
	}
}

// releaseContext is a context that satisfies every tagged-release conjunct.
func releaseContext() Context {
	return Context{
		IsPullRequest:    false,
		RepoSlug:         "pcdshub/pcdsdevices",
		OfficialRepoSlug: "pcdshub/pcdsdevices",
		Branch:           "v1.2.0",
		Tag:              "v1.2.0",
		HasTagCredential: true,
	}
}

func firedKinds(decisions []Decision) []ActionKind {
	var kinds []ActionKind
	for _, a := range Actions(decisions) {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestTagReleaseRule_ConjunctsIndependentlyNecessary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Context)
	}{
		{"pull request", func(c *Context) { c.IsPullRequest = true }},
		{"fork", func(c *Context) { c.RepoSlug = "someone/pcdsdevices" }},
		{"branch differs from tag", func(c *Context) { c.Branch = "master" }},
		{"no tag", func(c *Context) { c.Tag = "" }},
		{"no credential", func(c *Context) { c.HasTagCredential = false }},
	}

	gate := NewGate(testConfig())

	// Baseline: all conjuncts hold, the rule fires.
	baseline := firedKinds(gate.Evaluate(releaseContext()))
	require.Equal(t, []ActionKind{ActionPublishRelease}, baseline)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := releaseContext()
			tt.mutate(&ctx)

			for _, kind := range firedKinds(gate.Evaluate(ctx)) {
				assert.NotEqual(t, ActionPublishRelease, kind,
					"flipping %q alone must prevent the release publish", tt.name)
			}
		})
	}
}

func TestGate_ReleaseAndDevNeverBothFire(t *testing.T) {
	gate := NewGate(testConfig())

	branches := []string{"master", "v1.2.0", "feature/x", ""}
	tags := []string{"", "v1.2.0"}
	slugs := []string{"pcdshub/pcdsdevices", "fork/pcdsdevices"}
	bools := []bool{false, true}

	for _, isPR := range bools {
		for _, slug := range slugs {
			for _, branch := range branches {
				for _, tag := range tags {
					for _, hasTagCred := range bools {
						for _, hasDevCred := range bools {
							ctx := Context{
								IsPullRequest:    isPR,
								RepoSlug:         slug,
								OfficialRepoSlug: "pcdshub/pcdsdevices",
								Branch:           branch,
								Tag:              tag,
								HasTagCredential: hasTagCred,
								HasDevCredential: hasDevCred,
							}

							kinds := firedKinds(gate.Evaluate(ctx))
							var release, dev bool
							for _, k := range kinds {
								release = release || k == ActionPublishRelease
								dev = dev || k == ActionPublishDev
							}
							assert.False(t, release && dev,
								"release and dev both fired for %+v", ctx)
						}
					}
				}
			}
		}
	}
}

func TestGate_PullRequestNeverPublishes(t *testing.T) {
	gate := NewGate(testConfig())

	// Every rule's remaining conjuncts hold; only the PR flag is set.
	ctx := Context{
		IsPullRequest:    true,
		RepoSlug:         "pcdshub/pcdsdevices",
		OfficialRepoSlug: "pcdshub/pcdsdevices",
		Branch:           "master",
		Tag:              "",
		HasTagCredential: true,
		HasDevCredential: true,
		DocsRequested:    true,
		HasDocsDeployKey: true,
	}

	assert.Empty(t, Actions(gate.Evaluate(ctx)),
		"no rule of any kind may fire on a pull request")
}

func TestGate_ForkNeverPublishes(t *testing.T) {
	gate := NewGate(testConfig())

	for _, tag := range []string{"", "v1.2.0"} {
		branch := "master"
		if tag != "" {
			branch = tag
		}
		ctx := Context{
			RepoSlug:         "fork/pcdsdevices",
			OfficialRepoSlug: "pcdshub/pcdsdevices",
			Branch:           branch,
			Tag:              tag,
			HasTagCredential: true,
			HasDevCredential: true,
			DocsRequested:    true,
			HasDocsDeployKey: true,
		}
		assert.Empty(t, Actions(gate.Evaluate(ctx)),
			"no rule of any kind may fire on a fork (tag %q)", tag)
	}
}

func TestDocsRule(t *testing.T) {
	gate := NewGate(testConfig())

	tests := []struct {
		name      string
		requested bool
		hasKey    bool
		isPR      bool
		slug      string
		fires     bool
	}{
		{"neither", false, false, false, "pcdshub/pcdsdevices", false},
		{"requested without key", true, false, false, "pcdshub/pcdsdevices", false},
		{"key without request", false, true, false, "pcdshub/pcdsdevices", false},
		{"both", true, true, false, "pcdshub/pcdsdevices", true},
		{"both on a pull request", true, true, true, "pcdshub/pcdsdevices", false},
		{"both on a fork", true, true, false, "fork/pcdsdevices", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Context{
				IsPullRequest:    tt.isPR,
				RepoSlug:         tt.slug,
				OfficialRepoSlug: "pcdshub/pcdsdevices",
				Branch:           "master",
				DocsRequested:    tt.requested,
				HasDocsDeployKey: tt.hasKey,
			}

			var docsFires int
			for _, a := range Actions(gate.Evaluate(ctx)) {
				if a.Kind == ActionPublishDocs {
					docsFires++
				}
			}
			if tt.fires {
				assert.Equal(t, 1, docsFires, "docs publish must fire exactly once")
			} else {
				assert.Zero(t, docsFires)
			}
		})
	}
}

func TestGate_Scenarios(t *testing.T) {
	gate := NewGate(testConfig())

	t.Run("trunk push publishes dev artifact", func(t *testing.T) {
		ctx := Context{
			IsPullRequest:    false,
			RepoSlug:         "pcdshub/pcdsdevices",
			OfficialRepoSlug: "pcdshub/pcdsdevices",
			Branch:           "master",
			Tag:              "",
			HasDevCredential: true,
		}

		actions := Actions(gate.Evaluate(ctx))
		require.Len(t, actions, 1)
		assert.Equal(t, ActionPublishDev, actions[0].Kind)
		assert.Equal(t, config.DefaultDevTokenVar, actions[0].Credential.Name)
	})

	t.Run("tag build publishes release artifact", func(t *testing.T) {
		ctx := Context{
			IsPullRequest:    false,
			RepoSlug:         "pcdshub/pcdsdevices",
			OfficialRepoSlug: "pcdshub/pcdsdevices",
			Branch:           "v1.2.0",
			Tag:              "v1.2.0",
			HasTagCredential: true,
		}

		actions := Actions(gate.Evaluate(ctx))
		require.Len(t, actions, 1)
		assert.Equal(t, ActionPublishRelease, actions[0].Kind)
		assert.Equal(t, "v1.2.0", actions[0].Tag)
		assert.Equal(t, config.DefaultTagTokenVar, actions[0].Credential.Name)
	})

	t.Run("pull request publishes nothing", func(t *testing.T) {
		ctx := Context{
			IsPullRequest:    true,
			RepoSlug:         "pcdshub/pcdsdevices",
			OfficialRepoSlug: "pcdshub/pcdsdevices",
			Branch:           "master",
			Tag:              "",
			HasDevCredential: true,
			HasTagCredential: true,
		}

		assert.Empty(t, Actions(gate.Evaluate(ctx)))
	})
}

func TestGate_SkipsCarryReasons(t *testing.T) {
	gate := NewGate(testConfig())

	decisions := gate.Evaluate(Context{
		RepoSlug:         "pcdshub/pcdsdevices",
		OfficialRepoSlug: "pcdshub/pcdsdevices",
		Branch:           "master",
	})
	require.Len(t, decisions, 3)
	for _, d := range decisions {
		if !d.Fired {
			assert.NotEmpty(t, d.Reason, "skipped rule %q must carry a reason", d.Rule)
			assert.Nil(t, d.Action)
		}
	}
}
