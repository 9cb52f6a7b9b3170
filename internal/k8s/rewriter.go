package k8s

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cameronsjo/coxswain/internal/command"
)

// Rewriter kinds accepted by NewRewriter.
const (
	RewriterYQ     = "yq"
	RewriterNative = "native"
)

// Rewriter sets the container image of every Deployment in a manifest file.
type Rewriter interface {
	Rewrite(ctx context.Context, path, image string) error
}

// NewRewriter returns the rewriter registered under kind.
func NewRewriter(kind string, exec command.Executor, timeout time.Duration) (Rewriter, error) {
	switch kind {
	case "", RewriterYQ:
		return NewYQ(exec, timeout), nil
	case RewriterNative:
		return &Native{}, nil
	default:
		return nil, fmt.Errorf("unknown rewriter %q (want %s or %s)", kind, RewriterYQ, RewriterNative)
	}
}

// YQ rewrites images in place with the yq binary.
type YQ struct {
	exec    command.Executor
	timeout time.Duration
}

// NewYQ creates a yq backed Rewriter.
func NewYQ(exec command.Executor, timeout time.Duration) *YQ {
	return &YQ{exec: exec, timeout: timeout}
}

// Expression returns the yq expression that sets image on Deployment containers.
func Expression(image string) string {
	return fmt.Sprintf(`(select(.kind == "Deployment") | .spec.template.spec.containers[] | .image) |= %q`, image)
}

// Rewrite runs yq -i against path from its own directory.
func (y *YQ) Rewrite(ctx context.Context, path, image string) error {
	_, err := y.exec.Run(ctx, command.Cmd{
		Name:    "yq",
		Args:    []string{"-i", Expression(image), filepath.Base(path)},
		Dir:     filepath.Dir(path),
		Timeout: y.timeout,
	})
	if err != nil {
		return fmt.Errorf("yq %s: %w", path, err)
	}
	return nil
}
