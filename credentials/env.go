package credentials

import (
	"context"
	"os"

	"github.com/pcdshub/pkgci/errors"
)

// EnvProvider resolves credentials from process environment variables.
// This is the production provider: CI systems expose upload tokens and
// deploy keys as secret environment variables, and withhold them from
// forks and pull requests.
type EnvProvider struct {
	// lookup allows tests to substitute the environment. Defaults to
	// os.LookupEnv.
	lookup func(string) (string, bool)
}

// NewEnvProvider creates an EnvProvider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// NewEnvProviderFrom creates an EnvProvider backed by a custom lookup
// function. Intended for tests.
func NewEnvProviderFrom(lookup func(string) (string, bool)) *EnvProvider {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvProvider{lookup: lookup}
}

// Name implements Provider.
func (p *EnvProvider) Name() string {
	return "env"
}

// Resolve implements Resolver. An unset or empty variable is treated as
// missing: CI systems define secret variables as empty strings on forked
// pull requests rather than leaving them unset.
func (p *EnvProvider) Resolve(ctx context.Context, ref Ref) (*Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, ok := p.lookup(ref.Name)
	if !ok || value == "" {
		return nil, errors.Newf(errors.CodeCredentialMissing,
			"credential %q is not configured", ref.Name)
	}
	return NewSecret([]byte(value)), nil
}

// Exists implements Resolver.
func (p *EnvProvider) Exists(ctx context.Context, ref Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	value, ok := p.lookup(ref.Name)
	return ok && value != "", nil
}
