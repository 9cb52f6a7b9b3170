package reconcile

import "errors"

// Error kinds. Failures are wrapped with one of these so callers can
// classify them with errors.Is.
var (
	// ErrConfiguration aborts the run before any unit is processed.
	ErrConfiguration = errors.New("configuration error")

	// ErrPath marks a unit whose source directory does not exist.
	ErrPath = errors.New("unit path not found")

	// ErrSettings marks a unit whose runtime settings could not be read.
	ErrSettings = errors.New("runtime settings unreadable")

	// ErrImageRef marks a unit whose image reference is invalid.
	ErrImageRef = errors.New("invalid image reference")

	// ErrBuild marks a unit whose build collaborator failed.
	ErrBuild = errors.New("build failed")

	// ErrManifestWrite marks a unit whose new version could not be persisted.
	ErrManifestWrite = errors.New("manifest write failed")

	// ErrManifestRewrite aborts the run when a k8s file cannot be rewritten.
	ErrManifestRewrite = errors.New("k8s manifest rewrite failed")

	// ErrVCS reports a failed git step.
	ErrVCS = errors.New("git operation failed")

	// ErrInterrupted reports a run stopped by context cancellation.
	ErrInterrupted = errors.New("run interrupted")
)
