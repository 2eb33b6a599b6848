package pipeline

import (
	"io"
	"log/slog"

	"github.com/pcdshub/pkgci/config"
	"github.com/pcdshub/pkgci/credentials"
)

// ActionKind identifies a publish action the gate can fire.
type ActionKind string

const (
	// ActionPublishDocs publishes the documentation site to the pages
	// branch.
	ActionPublishDocs ActionKind = "publish-docs"

	// ActionPublishRelease uploads the artifact as a tagged release.
	ActionPublishRelease ActionKind = "publish-release"

	// ActionPublishDev uploads the artifact as a development build.
	ActionPublishDev ActionKind = "publish-dev"
)

// PublishAction is the value object a firing rule produces. It names the
// action and the credential reference the executing step must resolve.
// Actions carry references, never credential values.
type PublishAction struct {
	Kind       ActionKind      `json:"kind"`
	Credential credentials.Ref `json:"credential"`

	// Tag is the release tag, set for ActionPublishRelease.
	Tag string `json:"tag,omitempty"`
}

// Decision records one rule's evaluation: whether it fired and, if not,
// why it was skipped. Skips are informational, never errors.
type Decision struct {
	Rule   string         `json:"rule"`
	Fired  bool           `json:"fired"`
	Reason string         `json:"reason,omitempty"`
	Action *PublishAction `json:"action,omitempty"`
}

// Rule is a single deployment gate predicate. Rules are evaluated
// independently against the immutable context; any subset may fire.
type Rule interface {
	// Name returns a stable identifier for the rule.
	Name() string

	// Evaluate inspects the context and returns the rule's decision.
	// Evaluation is pure: no side effects, no context mutation.
	Evaluate(ctx Context) Decision
}

// Gate evaluates the deployment rules for a run.
type Gate struct {
	rules  []Rule
	logger *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger used to record decisions.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate creates the standard deployment gate: documentation publish,
// tagged-release publish, and development publish, configured with the
// trunk branch and credential variable names from cfg.
func NewGate(cfg *config.Config, opts ...GateOption) *Gate {
	g := &Gate{
		rules: []Rule{
			&docsRule{
				deployKey: credentials.Ref{Name: cfg.Credentials.DocsDeployKeyVar},
			},
			&tagReleaseRule{
				token: credentials.Ref{Name: cfg.Credentials.TagTokenVar},
			},
			&devReleaseRule{
				trunk: cfg.TrunkBranch,
				token: credentials.Ref{Name: cfg.Credentials.DevTokenVar},
			},
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs every rule against the context and returns all decisions
// in rule order. Skipped rules are logged at Info with their reason.
func (g *Gate) Evaluate(ctx Context) []Decision {
	decisions := make([]Decision, 0, len(g.rules))
	for _, rule := range g.rules {
		d := rule.Evaluate(ctx)
		if d.Fired {
			g.logger.Info("publish rule fired", "rule", d.Rule, "action", d.Action.Kind)
		} else {
			g.logger.Info("publish rule skipped", "rule", d.Rule, "reason", d.Reason)
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// Actions filters decisions down to the fired publish actions.
func Actions(decisions []Decision) []PublishAction {
	var actions []PublishAction
	for _, d := range decisions {
		if d.Fired && d.Action != nil {
			actions = append(actions, *d.Action)
		}
	}
	return actions
}

// docsRule fires for pushes to the official repository when a
// documentation build was requested by the build matrix and a deploy key
// is available. Pull requests and forks never publish documentation.
type docsRule struct {
	deployKey credentials.Ref
}

func (r *docsRule) Name() string { return "docs-publish" }

func (r *docsRule) Evaluate(ctx Context) Decision {
	switch {
	case ctx.IsPullRequest:
		return skipped(r, "pull requests never publish")
	case !ctx.IsOfficialRepo():
		return skipped(r, "not the official repository")
	case !ctx.DocsRequested:
		return skipped(r, "documentation build not requested")
	case !ctx.HasDocsDeployKey:
		return skipped(r, "docs deploy key not configured")
	}
	return fired(r, &PublishAction{
		Kind:       ActionPublishDocs,
		Credential: r.deployKey,
	})
}

// tagReleaseRule fires for tag builds of the official repository when the
// release upload token is configured. The branch-equals-tag conjunct
// matches the CI convention of setting the branch variable to the tag name
// on tag builds, and doubles as a guard against branch pushes that merely
// share a name with a tag.
type tagReleaseRule struct {
	token credentials.Ref
}

func (r *tagReleaseRule) Name() string { return "tagged-release-publish" }

func (r *tagReleaseRule) Evaluate(ctx Context) Decision {
	switch {
	case ctx.IsPullRequest:
		return skipped(r, "pull requests never publish")
	case !ctx.IsOfficialRepo():
		return skipped(r, "not the official repository")
	case ctx.Tag == "":
		return skipped(r, "not a tag build")
	case ctx.Branch != ctx.Tag:
		return skipped(r, "branch does not match tag")
	case !ctx.HasTagCredential:
		return skipped(r, "release upload token not configured")
	}
	return fired(r, &PublishAction{
		Kind:       ActionPublishRelease,
		Credential: r.token,
		Tag:        ctx.Tag,
	})
}

// devReleaseRule fires for trunk pushes of the official repository when
// the development upload token is configured. Requiring an empty tag makes
// this rule mutually exclusive with tagReleaseRule.
type devReleaseRule struct {
	trunk string
	token credentials.Ref
}

func (r *devReleaseRule) Name() string { return "development-publish" }

func (r *devReleaseRule) Evaluate(ctx Context) Decision {
	switch {
	case ctx.IsPullRequest:
		return skipped(r, "pull requests never publish")
	case !ctx.IsOfficialRepo():
		return skipped(r, "not the official repository")
	case ctx.Tag != "":
		return skipped(r, "tag builds publish through the release rule")
	case ctx.Branch != r.trunk:
		return skipped(r, "not the trunk branch")
	case !ctx.HasDevCredential:
		return skipped(r, "development upload token not configured")
	}
	return fired(r, &PublishAction{
		Kind:       ActionPublishDev,
		Credential: r.token,
	})
}

func skipped(r Rule, reason string) Decision {
	return Decision{Rule: r.Name(), Reason: reason}
}

func fired(r Rule, action *PublishAction) Decision {
	return Decision{Rule: r.Name(), Fired: true, Action: action}
}
