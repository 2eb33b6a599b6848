package git

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
)

// CurrentBranch returns the name of the currently checked out branch.
// Returns ErrDetachedHead if HEAD does not point at a branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", WrapError(err, "context cancelled")
	}

	head, err := r.repo.Head()
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "resolving HEAD (%v)", err)
	}
	if !head.Name().IsBranch() {
		return "", ErrDetachedHead
	}
	return head.Name().Short(), nil
}

// TagAtHead returns the name of a tag pointing at the current HEAD commit,
// or the empty string if no tag does. When several tags point at HEAD an
// arbitrary one is returned.
func (r *Repo) TagAtHead(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", WrapError(err, "context cancelled")
	}

	head, err := r.repo.Head()
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "resolving HEAD (%v)", err)
	}

	tags, err := r.repo.Tags()
	if err != nil {
		return "", WrapError(err, "failed to list tags")
	}
	defer tags.Close()

	var found string
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		hash := ref.Hash()
		// Annotated tags point at a tag object, not the commit.
		if tagObj, tagErr := r.repo.TagObject(ref.Hash()); tagErr == nil {
			hash = tagObj.Target
		}
		if hash == head.Hash() {
			found = ref.Name().Short()
		}
		return nil
	})
	if err != nil {
		return "", WrapError(err, "failed to iterate tags")
	}
	return found, nil
}

// RemoteSlug derives the "owner/name" slug from the named remote's URL.
// An empty remote name defaults to origin.
func (r *Repo) RemoteSlug(ctx context.Context, remote string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", WrapError(err, "context cancelled")
	}

	if remote == "" {
		remote = DefaultRemoteName
	}
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return "", WrapErrorf(ErrNoRemote, "remote %q", remote)
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", WrapErrorf(ErrNoRemote, "remote %q has no URL", remote)
	}
	return ParseSlug(urls[0])
}
