// Package lock provides advisory file locks so two drivers never mutate the
// same manifest at once.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrLocked indicates the lock is held by another process.
var ErrLocked = errors.New("lock is held by another process")

// Lock represents a file-based lock.
type Lock struct {
	path string
	file *os.File
}

// New creates a lock named name under dir.
func New(dir, name string) *Lock {
	return &Lock{
		path: filepath.Join(dir, "locks", sanitize(name)+".lock"),
	}
}

// Key builds a lock name for a repository and environment pair. The '@'
// separator is not allowed in either name, so distinct pairs never collide.
func Key(repo, env string) string {
	return repo + "@" + env
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire attempts to acquire the lock without blocking.
// Returns an error wrapping ErrLocked if another process holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		l.file = nil
		if errors.Is(err, ErrLocked) {
			holder := readHolder(l.path)
			if holder != "" {
				return fmt.Errorf("%w (pid %s): %s", ErrLocked, holder, l.path)
			}
			return fmt.Errorf("%w: %s", ErrLocked, l.path)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// PID is informational only.
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release releases the lock. The file itself stays so a concurrent opener
// never locks an unlinked inode.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	err := unlockFile(l.file)
	l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func readHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// sanitize maps name onto a safe file name.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.', r == '@':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
