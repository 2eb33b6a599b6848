package git

import (
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// DefaultRemoteName is the remote used for slug derivation and pushes.
const DefaultRemoteName = "origin"

// Repo wraps a go-git repository with the task-oriented operations pkgci
// uses.
type Repo struct {
	repo *gogit.Repository
}

// Open opens the repository containing path, searching upwards for the
// .git directory the way the git binary does.
func Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, WrapErrorf(err, "failed to open repository at %q", path)
	}
	return &Repo{repo: repo}, nil
}

// Wrap adapts an already-constructed go-git repository. Intended for tests
// working against in-memory repositories.
func Wrap(repo *gogit.Repository) *Repo {
	return &Repo{repo: repo}
}

// ParseSlug extracts the "owner/name" slug from a git remote URL. It
// understands the https, ssh, and scp-like URL forms used by the common
// hosting services.
func ParseSlug(url string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(url), ".git")
	if trimmed == "" {
		return "", WrapError(ErrInvalidRef, "empty remote URL")
	}

	// scp-like form: git@host:owner/name
	if at := strings.Index(trimmed, "@"); at >= 0 && !strings.Contains(trimmed, "://") {
		if colon := strings.Index(trimmed[at:], ":"); colon >= 0 {
			trimmed = trimmed[at+colon+1:]
			return validateSlug(trimmed, url)
		}
	}

	// URL forms: https://host/owner/name, ssh://git@host/owner/name
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
		slash := strings.Index(trimmed, "/")
		if slash < 0 {
			return "", WrapErrorf(ErrInvalidRef, "remote URL %q has no path", url)
		}
		trimmed = trimmed[slash+1:]
		return validateSlug(trimmed, url)
	}

	return validateSlug(trimmed, url)
}

func validateSlug(candidate, original string) (string, error) {
	parts := strings.Split(strings.Trim(candidate, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", WrapErrorf(ErrInvalidRef, "cannot derive owner/name slug from remote URL %q", original)
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1], nil
}
