package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/pkgci/errors"
)

func TestSecret(t *testing.T) {
	t.Run("copy on construction", func(t *testing.T) {
		raw := []byte("token-value")
		s := NewSecret(raw)
		raw[0] = 'X'
		assert.Equal(t, "token-value", s.String())
	})

	t.Run("copy on read", func(t *testing.T) {
		s := NewSecret([]byte("token-value"))
		b := s.Bytes()
		b[0] = 'X'
		assert.Equal(t, "token-value", s.String())
	})

	t.Run("clear zeroes the value", func(t *testing.T) {
		s := NewSecret([]byte("token-value"))
		s.Clear()
		assert.Empty(t, s.String())
		assert.Empty(t, s.Bytes())
	})
}

func TestEnvProvider(t *testing.T) {
	ctx := context.Background()

	lookup := func(key string) (string, bool) {
		switch key {
		case "PRESENT":
			return "value", true
		case "EMPTY":
			return "", true
		default:
			return "", false
		}
	}
	p := NewEnvProviderFrom(lookup)

	t.Run("name", func(t *testing.T) {
		assert.Equal(t, "env", p.Name())
	})

	t.Run("present", func(t *testing.T) {
		ok, err := p.Exists(ctx, Ref{Name: "PRESENT"})
		require.NoError(t, err)
		assert.True(t, ok)

		s, err := p.Resolve(ctx, Ref{Name: "PRESENT"})
		require.NoError(t, err)
		assert.Equal(t, "value", s.String())
	})

	t.Run("empty is treated as missing", func(t *testing.T) {
		ok, err := p.Exists(ctx, Ref{Name: "EMPTY"})
		require.NoError(t, err)
		assert.False(t, ok, "CI defines secret variables as empty on forks")

		_, err = p.Resolve(ctx, Ref{Name: "EMPTY"})
		require.Error(t, err)
		assert.Equal(t, errors.CodeCredentialMissing, errors.GetCode(err))
	})

	t.Run("unset", func(t *testing.T) {
		ok, err := p.Exists(ctx, Ref{Name: "UNSET"})
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = p.Resolve(ctx, Ref{Name: "UNSET"})
		assert.Equal(t, errors.CodeCredentialMissing, errors.GetCode(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := p.Resolve(cancelled, Ref{Name: "PRESENT"})
		assert.Error(t, err)
	})
}

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider(map[string]string{"TOKEN": "abc"})

	ok, err := p.Exists(ctx, Ref{Name: "TOKEN"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Exists(ctx, Ref{Name: "OTHER"})
	require.NoError(t, err)
	assert.False(t, ok)

	p.Set("OTHER", "xyz")
	s, err := p.Resolve(ctx, Ref{Name: "OTHER"})
	require.NoError(t, err)
	assert.Equal(t, "xyz", s.String())
}

func TestWithValue(t *testing.T) {
	ctx := context.Background()
	p := NewStaticProvider(map[string]string{"TOKEN": "abc"})

	t.Run("value visible only inside the call", func(t *testing.T) {
		var seen string
		err := WithValue(ctx, p, Ref{Name: "TOKEN"}, func(value string) error {
			seen = value
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "abc", seen)
	})

	t.Run("missing credential propagates", func(t *testing.T) {
		called := false
		err := WithValue(ctx, p, Ref{Name: "MISSING"}, func(string) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.False(t, called, "fn must not run without a resolved credential")
		assert.Equal(t, errors.CodeCredentialMissing, errors.GetCode(err))
	})

	t.Run("fn error propagates", func(t *testing.T) {
		wantErr := errors.New(errors.CodePublishFailed, "upload rejected")
		err := WithValue(ctx, p, Ref{Name: "TOKEN"}, func(string) error {
			return wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	})
}
