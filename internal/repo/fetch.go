// Package repo provides repository access: turning a repository reference and
// branch into a local snapshot path the scanner can walk.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FetchError reports an unreachable repository reference. The orchestrator
// converts it into a job-level scan failure.
type FetchError struct {
	RepoRef string
	Cause   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch of %s failed: %v", e.RepoRef, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Fetcher resolves a repository reference into a local snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, repoRef, branch string) (snapshotPath string, err error)
}

// LocalFetcher serves references that are already paths on disk. Used for
// local migrations and throughout the tests.
type LocalFetcher struct{}

func (LocalFetcher) Fetch(_ context.Context, repoRef, _ string) (string, error) {
	info, err := os.Stat(repoRef)
	if err != nil {
		return "", &FetchError{RepoRef: repoRef, Cause: err}
	}
	if !info.IsDir() {
		return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("not a directory")}
	}
	return repoRef, nil
}

// GitFetcher clones remote references with the git CLI into a working
// directory, one subdirectory per job.
type GitFetcher struct {
	WorkDir string
	// Token, when set, is injected into https GitHub/GitLab remotes the way
	// the hosting services expect.
	Token string
}

func (g GitFetcher) Fetch(ctx context.Context, repoRef, branch string) (string, error) {
	if g.WorkDir == "" {
		return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("no working directory configured")}
	}
	if err := os.MkdirAll(g.WorkDir, 0o755); err != nil {
		return "", &FetchError{RepoRef: repoRef, Cause: err}
	}

	target := filepath.Join(g.WorkDir, sanitizeRef(repoRef))
	if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
		// Existing clone: refresh it.
		if out, err := g.git(ctx, target, "fetch", "origin"); err != nil {
			return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("%v: %s", err, out)}
		}
	} else {
		args := []string{"clone", "--depth", "1"}
		if branch != "" {
			args = append(args, "--branch", branch)
		}
		args = append(args, g.authURL(repoRef), target)
		if out, err := g.git(ctx, "", args...); err != nil {
			return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("%v: %s", err, out)}
		}
		return target, nil
	}

	if branch != "" {
		if out, err := g.git(ctx, target, "checkout", branch); err != nil {
			return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("%v: %s", err, out)}
		}
		// Drop any stale local state so the snapshot matches the remote tip.
		if out, err := g.git(ctx, target, "reset", "--hard", "origin/"+branch); err != nil {
			return "", &FetchError{RepoRef: repoRef, Cause: fmt.Errorf("%v: %s", err, out)}
		}
	}
	return target, nil
}

func (g GitFetcher) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (g GitFetcher) authURL(repoRef string) string {
	if g.Token == "" || !strings.HasPrefix(repoRef, "https://") {
		return repoRef
	}
	if strings.Contains(repoRef, "gitlab.com") {
		return strings.Replace(repoRef, "https://", "https://oauth2:"+g.Token+"@", 1)
	}
	return strings.Replace(repoRef, "https://", "https://"+g.Token+"@", 1)
}

// sanitizeRef derives a snapshot directory name: the repository's base name
// for readability plus a digest of the full reference, so same-named repos on
// different hosts or owners never share a clone.
func sanitizeRef(repoRef string) string {
	ref := strings.TrimSuffix(repoRef, ".git")
	if idx := strings.LastIndexAny(ref, "/:"); idx >= 0 {
		ref = ref[idx+1:]
	}
	if ref == "" {
		ref = "snapshot"
	}
	sum := sha256.Sum256([]byte(repoRef))
	return ref + "-" + hex.EncodeToString(sum[:4])
}
