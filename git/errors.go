// Package git provides the repository operations pkgci needs: inspecting
// the checked-out state to derive pipeline context, and publishing a
// documentation tree onto a pages branch.
//
// All errors can be checked with errors.Is() against the sentinels below,
// which wrap the underlying go-git errors behind a stable API.
package git

import (
	"errors"
	"fmt"
)

// ErrAlreadyUpToDate is returned when a push results in no changes because
// the remote already has the published state.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrAuthRequired is returned when a push requires authentication but no
// credential was provided.
var ErrAuthRequired = errors.New("authentication required")

// ErrDetachedHead is returned when the current HEAD does not point at a
// branch.
var ErrDetachedHead = errors.New("HEAD is detached")

// ErrNoRemote is returned when the repository has no remote to derive a
// slug from or push to.
var ErrNoRemote = errors.New("remote does not exist")

// ErrInvalidRef is returned when a reference or slug is malformed.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision cannot be resolved.
var ErrResolveFailed = errors.New("cannot resolve revision")

// WrapError wraps an error with additional context while preserving the
// ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while
// preserving the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
