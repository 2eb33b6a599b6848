package credentials

import (
	"context"
	"sync"

	"github.com/pcdshub/pkgci/errors"
)

// StaticProvider resolves credentials from an in-memory map. Intended for
// tests and local dry runs.
type StaticProvider struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewStaticProvider creates a StaticProvider with the given values.
func NewStaticProvider(values map[string]string) *StaticProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticProvider{values: copied}
}

// Name implements Provider.
func (p *StaticProvider) Name() string {
	return "static"
}

// Set stores a credential value.
func (p *StaticProvider) Set(name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = value
}

// Resolve implements Resolver.
func (p *StaticProvider) Resolve(ctx context.Context, ref Ref) (*Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	value, ok := p.values[ref.Name]
	p.mu.RUnlock()

	if !ok || value == "" {
		return nil, errors.Newf(errors.CodeCredentialMissing,
			"credential %q is not configured", ref.Name)
	}
	return NewSecret([]byte(value)), nil
}

// Exists implements Resolver.
func (p *StaticProvider) Exists(ctx context.Context, ref Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.RLock()
	value, ok := p.values[ref.Name]
	p.mu.RUnlock()

	return ok && value != "", nil
}
