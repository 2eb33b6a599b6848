package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// PublishOptions configures publishing a directory tree onto a branch.
type PublishOptions struct {
	// Source is the filesystem rooted at the directory to publish (for
	// example the documentation generator's output directory).
	Source billy.Filesystem

	// Branch is the target publish branch, e.g. "gh-pages".
	Branch string

	// Message is the commit message.
	Message string

	// AuthorName and AuthorEmail identify the committer.
	AuthorName  string
	AuthorEmail string

	// Now supplies the commit timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Validate checks that the options are usable.
func (o *PublishOptions) Validate() error {
	if o.Source == nil {
		return WrapError(ErrInvalidRef, "source filesystem is required")
	}
	if o.Branch == "" {
		return WrapError(ErrInvalidRef, "target branch is required")
	}
	return nil
}

// PublishDirectory commits the contents of opts.Source as the complete tree
// of opts.Branch, creating the branch if it does not exist and otherwise
// appending to its history. The current worktree and HEAD are untouched:
// the commit is assembled from plumbing objects directly, so publishing
// never disturbs the checkout the rest of the pipeline is running from.
//
// The commit hash is returned. Pushing is a separate step (PushBranch).
func (r *Repo) PublishDirectory(ctx context.Context, opts PublishOptions) (plumbing.Hash, error) {
	if err := opts.Validate(); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, WrapError(err, "context cancelled")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "pkgci"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "pkgci@localhost"
	}
	if opts.Message == "" {
		opts.Message = fmt.Sprintf("Publish to %s", opts.Branch)
	}

	treeHash, err := r.storeTree(opts.Source, ".")
	if err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to store publish tree")
	}
	if treeHash == plumbing.ZeroHash {
		return plumbing.ZeroHash, WrapError(ErrInvalidRef, "source directory is empty")
	}

	// Parent is the existing branch head, if the branch exists.
	branchRef := plumbing.NewBranchReferenceName(opts.Branch)
	var parents []plumbing.Hash
	if existing, refErr := r.repo.Reference(branchRef, true); refErr == nil {
		parents = append(parents, existing.Hash())
	}

	sig := object.Signature{
		Name:  opts.AuthorName,
		Email: opts.AuthorEmail,
		When:  now(),
	}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      opts.Message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to encode publish commit")
	}
	commitHash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, WrapError(err, "failed to store publish commit")
	}

	ref := plumbing.NewHashReference(branchRef, commitHash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return plumbing.ZeroHash, WrapErrorf(err, "failed to update branch %q", opts.Branch)
	}

	return commitHash, nil
}

// storeTree recursively stores the directory at dir as git tree objects and
// returns the root tree hash. Empty directories yield ZeroHash and are
// omitted, matching git semantics.
func (r *Repo) storeTree(source billy.Filesystem, dir string) (plumbing.Hash, error) {
	infos, err := source.ReadDir(dir)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("reading %q: %w", dir, err)
	}

	var entries []object.TreeEntry
	for _, info := range infos {
		name := info.Name()
		full := path.Join(dir, name)

		if info.IsDir() {
			if name == ".git" {
				continue
			}
			subHash, subErr := r.storeTree(source, full)
			if subErr != nil {
				return plumbing.ZeroHash, subErr
			}
			if subHash == plumbing.ZeroHash {
				continue
			}
			entries = append(entries, object.TreeEntry{
				Name: name,
				Mode: filemode.Dir,
				Hash: subHash,
			})
			continue
		}

		blobHash, blobErr := r.storeBlob(source, full)
		if blobErr != nil {
			return plumbing.ZeroHash, blobErr
		}
		mode := filemode.Regular
		if info.Mode()&0o111 != 0 {
			mode = filemode.Executable
		}
		entries = append(entries, object.TreeEntry{
			Name: name,
			Mode: mode,
			Hash: blobHash,
		})
	}

	if len(entries) == 0 {
		return plumbing.ZeroHash, nil
	}

	// Git orders tree entries by name with directories compared as if
	// suffixed with "/".
	sort.Slice(entries, func(i, j int) bool {
		return treeEntrySortKey(entries[i]) < treeEntrySortKey(entries[j])
	})

	tree := &object.Tree{Entries: entries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding tree for %q: %w", dir, err)
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

func treeEntrySortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}

// storeBlob stores the file at path as a blob object and returns its hash.
func (r *Repo) storeBlob(source billy.Filesystem, filePath string) (plumbing.Hash, error) {
	f, err := source.Open(filePath)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("opening %q: %w", filePath, err)
	}
	defer f.Close()

	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("writing blob for %q: %w", filePath, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("copying %q: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("closing blob for %q: %w", filePath, err)
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// PushBranch pushes the named branch to the remote. The token, when
// non-empty, is used as a basic-auth password; hosting services accept
// deploy tokens this way. Returns ErrAlreadyUpToDate when the remote
// already has the branch state.
func (r *Repo) PushBranch(ctx context.Context, remote, branch, token string) error {
	if branch == "" {
		return WrapError(ErrInvalidRef, "branch is required")
	}
	if remote == "" {
		remote = DefaultRemoteName
	}

	pushOpts := &gogit.PushOptions{
		RemoteName: remote,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)),
		},
	}
	if token != "" {
		pushOpts.Auth = &http.BasicAuth{
			Username: "git",
			Password: token,
		}
	}

	err := r.repo.PushContext(ctx, pushOpts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gogit.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, gogit.ErrRemoteNotFound):
		return WrapErrorf(ErrNoRemote, "remote %q", remote)
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return WrapErrorf(ErrAuthRequired, "push of %q rejected", branch)
	default:
		return WrapErrorf(err, "failed to push branch %q", branch)
	}
}
