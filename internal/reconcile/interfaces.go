package reconcile

import "context"

// VCS records driver results in version control.
type VCS interface {
	// HasChanges reports whether any of paths differs from HEAD or is untracked.
	// Paths are relative to the deployment directory.
	HasChanges(paths []string) (bool, error)

	// Stage adds paths to the index.
	Stage(ctx context.Context, paths []string) error

	// Commit records the index with message.
	Commit(ctx context.Context, message string) error

	// Push publishes the current branch.
	Push(ctx context.Context) error

	// Unpushed reports whether the current branch has commits its upstream lacks.
	Unpushed() (bool, error)
}

// Compile-time interface verification.
var _ VCS = (*GitOps)(nil)
