// Package credentials provides provider-agnostic resolution of the upload
// and deploy credentials a pipeline run may need, with just-in-time
// resolution and automatic memory cleanup.
//
// Credential values are never stored in the pipeline context. The gate only
// observes presence; the executing action resolves the value immediately
// before use and clears it afterwards.
package credentials

import "context"

// Ref identifies a credential by the name of the variable that carries it,
// e.g. "CONDA_UPLOAD_TOKEN_TAG".
type Ref struct {
	// Name is the credential variable name.
	Name string `json:"name"`
}

// Secret holds a resolved credential value with copy-on-read semantics.
type Secret struct {
	value []byte
}

// NewSecret creates a Secret holding a copy of the given value.
func NewSecret(value []byte) *Secret {
	v := make([]byte, len(value))
	copy(v, value)
	return &Secret{value: v}
}

// String returns the credential value as a string.
func (s *Secret) String() string {
	return string(s.value)
}

// Bytes returns a copy of the credential value.
func (s *Secret) Bytes() []byte {
	v := make([]byte, len(s.value))
	copy(v, s.value)
	return v
}

// Clear zeroes the credential value in memory. The Secret is unusable
// afterwards.
func (s *Secret) Clear() {
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = s.value[:0]
}

// Resolver resolves credential references to values.
type Resolver interface {
	// Resolve retrieves a credential by reference. Returns an error
	// carrying CodeCredentialMissing if the credential is absent or empty.
	Resolve(ctx context.Context, ref Ref) (*Secret, error)

	// Exists reports whether the credential is present and non-empty,
	// without retaining its value.
	Exists(ctx context.Context, ref Ref) (bool, error)
}

// Provider extends Resolver with an identifier. All credential backends
// implement this interface.
type Provider interface {
	Resolver

	// Name returns the provider's identifier (e.g. "env", "static").
	Name() string
}
