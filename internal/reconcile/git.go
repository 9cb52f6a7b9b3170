package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/cameronsjo/coxswain/internal/command"
)

// GitOps drives the git client from the deployment directory.
type GitOps struct {
	// Dir is the deployment directory. It may be anywhere inside the work tree.
	Dir string

	exec    command.Executor
	timeout time.Duration
}

// NewGitOps creates a new GitOps instance.
func NewGitOps(dir string, exec command.Executor, timeout time.Duration) *GitOps {
	return &GitOps{
		Dir:     dir,
		exec:    exec,
		timeout: timeout,
	}
}

// IsRepo checks if Dir is inside a git work tree.
func (g *GitOps) IsRepo() bool {
	_, err := g.open()
	return err == nil
}

func (g *GitOps) open() (*git.Repository, error) {
	return git.PlainOpenWithOptions(g.Dir, &git.PlainOpenOptions{DetectDotGit: true})
}

// HasChanges implements VCS using the go-git worktree status.
func (g *GitOps) HasChanges(paths []string) (bool, error) {
	repo, err := g.open()
	if err != nil {
		return false, fmt.Errorf("open repository %s: %w", g.Dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}

	root := wt.Filesystem.Root()
	for _, p := range paths {
		abs := p
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(g.Dir, p)
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", p, err)
		}
		// Status only lists paths that differ; a missing entry is clean.
		fileStatus, ok := st[filepath.ToSlash(rel)]
		if !ok {
			continue
		}
		if fileStatus.Worktree != git.Unmodified || fileStatus.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// Stage implements VCS.
func (g *GitOps) Stage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Commit implements VCS.
func (g *GitOps) Commit(ctx context.Context, message string) error {
	if err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// Push implements VCS.
func (g *GitOps) Push(ctx context.Context) error {
	if err := g.run(ctx, "push"); err != nil {
		return fmt.Errorf("git push failed: %w", err)
	}
	return nil
}

// Unpushed implements VCS. It reports whether HEAD has commits its upstream
// branch lacks. A branch without upstream configuration reports false; an
// upstream that was never fetched or pushed reports true.
func (g *GitOps) Unpushed() (bool, error) {
	repo, err := g.open()
	if err != nil {
		return false, fmt.Errorf("open repository %s: %w", g.Dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return false, fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return false, nil
	}

	branch, err := repo.Branch(head.Name().Short())
	if errors.Is(err, git.ErrBranchNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read branch %s: %w", head.Name().Short(), err)
	}
	if branch.Remote == "" || branch.Merge == "" {
		return false, nil
	}

	upstream, err := repo.Reference(plumbing.NewRemoteReferenceName(branch.Remote, branch.Merge.Short()), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolve upstream of %s: %w", head.Name().Short(), err)
	}
	if upstream.Hash() == head.Hash() {
		return false, nil
	}

	local, err := repo.CommitObject(head.Hash())
	if err != nil {
		return false, fmt.Errorf("read HEAD commit: %w", err)
	}
	remote, err := repo.CommitObject(upstream.Hash())
	if err != nil {
		return false, fmt.Errorf("read upstream commit: %w", err)
	}
	// HEAD reachable from upstream means the branch is behind, not ahead.
	behind, err := local.IsAncestor(remote)
	if err != nil {
		return false, fmt.Errorf("compare with upstream: %w", err)
	}
	return !behind, nil
}

// HeadCommit returns the current HEAD hash.
func (g *GitOps) HeadCommit() (string, error) {
	repo, err := g.open()
	if err != nil {
		return "", fmt.Errorf("open repository %s: %w", g.Dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func (g *GitOps) run(ctx context.Context, args ...string) error {
	_, err := g.exec.Run(ctx, command.Cmd{
		Name:    "git",
		Args:    args,
		Dir:     g.Dir,
		Timeout: g.timeout,
	})
	return err
}
