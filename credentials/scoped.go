package credentials

import (
	"context"
	"fmt"
)

// WithValue resolves a credential, passes its value to fn, and clears the
// value from memory when fn returns. This is the only sanctioned way for a
// publish action to consume a credential: the value exists for exactly the
// duration of one call and never escapes into shared state.
func WithValue(ctx context.Context, resolver Resolver, ref Ref, fn func(value string) error) error {
	secret, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolving credential %q: %w", ref.Name, err)
	}
	defer secret.Clear()

	return fn(secret.String())
}
