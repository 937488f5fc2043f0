// ABOUTME: Clones and updates module source trees from the remote module repository.
// ABOUTME: Working copies are cached per ref so repeated startups pull instead of recloning.

package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// WholeRepo is the ref sentinel for fetching the repository's default branch
// as a single working copy, with modules living in subdirectories.
const WholeRepo = ""

// Fetcher produces local working copies of module refs from one remote
// repository. Copies are reused across invocations keyed by ref; callers must
// not treat the returned path as a fresh temp directory.
type Fetcher struct {
	repoURL  string
	token    string
	cacheDir string
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher cloning from repoURL into cacheDir. The token
// is presented as the password of the "oauth2" user on HTTP transports and is
// never logged.
func NewFetcher(repoURL, token, cacheDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		repoURL:  repoURL,
		token:    token,
		cacheDir: cacheDir,
		logger:   logger.With("component", "fetcher"),
	}
}

// Fetch ensures the working copy for ref is present and at the ref's remote
// tip, returning its path. An empty ref (WholeRepo) fetches the default
// branch of the whole repository. Failures are reported as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	dir := f.workingCopyPath(ref)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		if err := f.update(ctx, dir, ref); err != nil {
			// A corrupt or diverged working copy is not worth repairing;
			// reclone from scratch before giving up.
			f.logger.Warn("updating working copy failed, recloning", "ref", ref, "error", err)
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				return "", &FetchError{Ref: ref, Err: rmErr}
			}
			if err := f.clone(ctx, dir, ref); err != nil {
				return "", &FetchError{Ref: ref, Err: err}
			}
		}
		f.logger.Debug("working copy updated", "ref", ref, "path", dir)
		return dir, nil
	}

	if err := f.clone(ctx, dir, ref); err != nil {
		return "", &FetchError{Ref: ref, Err: err}
	}
	f.logger.Debug("working copy cloned", "ref", ref, "path", dir)
	return dir, nil
}

// workingCopyPath returns the cache directory for a ref.
func (f *Fetcher) workingCopyPath(ref string) string {
	if ref == WholeRepo {
		return filepath.Join(f.cacheDir, "_repo")
	}
	return filepath.Join(f.cacheDir, ref)
}

func (f *Fetcher) auth() transport.AuthMethod {
	if f.token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "oauth2", Password: f.token}
}

func (f *Fetcher) clone(ctx context.Context, dir, ref string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("creating clone cache: %w", err)
	}

	opts := &git.CloneOptions{
		URL:  f.repoURL,
		Auth: f.auth(),
	}
	if ref != WholeRepo {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		// A failed clone leaves a partial directory behind; clean it so the
		// next attempt starts from nothing.
		os.RemoveAll(dir)
		return fmt.Errorf("cloning %s: %w", redactURL(f.repoURL), err)
	}
	return nil
}

// update fetches remote changes and fast-forwards the working copy to the
// ref's tip, the equivalent of checkout + pull.
func (f *Fetcher) update(ctx context.Context, dir, ref string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("opening working copy: %w", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       f.auth(),
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching origin: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	pullOpts := &git.PullOptions{
		RemoteName: "origin",
		Auth:       f.auth(),
	}
	if ref != WholeRepo {
		branch := plumbing.NewBranchReferenceName(ref)
		if err := wt.Checkout(&git.CheckoutOptions{Branch: branch, Force: true}); err != nil {
			return fmt.Errorf("checking out %s: %w", ref, err)
		}
		pullOpts.ReferenceName = branch
		pullOpts.SingleBranch = true
	}

	err = wt.PullContext(ctx, pullOpts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pulling %s: %w", ref, err)
	}
	return nil
}

// redactURL strips userinfo from a repository URL before it reaches logs or
// error messages.
func redactURL(raw string) string {
	i := strings.Index(raw, "://")
	j := strings.IndexByte(raw, '@')
	if i >= 0 && j > i {
		return raw[:i+3] + raw[j+1:]
	}
	return raw
}
