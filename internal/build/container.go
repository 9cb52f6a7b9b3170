package build

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cameronsjo/coxswain/internal/command"
	"github.com/cameronsjo/coxswain/internal/docker"
)

// DefaultPublish is the publish command run before containerizing.
var DefaultPublish = []string{"dotnet", "publish", "-c", "Release", "-o", "publish"}

// ImageBuilder is the subset of the Docker client the container strategy needs.
type ImageBuilder interface {
	BuildImage(ctx context.Context, opts docker.BuildOptions) (string, error)
	TagImage(ctx context.Context, source, target string) error
	PushImage(ctx context.Context, ref string, auth docker.Auth) (string, error)
}

// Container publishes a unit and builds, tags and pushes its image.
type Container struct {
	exec       command.Executor
	images     ImageBuilder
	publish    []string
	dockerfile string
	auth       docker.Auth
	push       bool
	timeout    time.Duration
	stdout     io.Writer
	stderr     io.Writer
}

// ContainerOption configures a Container strategy.
type ContainerOption func(*Container)

// WithPublish sets the publish command. An empty command skips publishing.
func WithPublish(argv []string) ContainerOption {
	return func(c *Container) {
		c.publish = argv
	}
}

// WithDockerfile sets the Dockerfile path relative to the unit directory.
func WithDockerfile(path string) ContainerOption {
	return func(c *Container) {
		c.dockerfile = path
	}
}

// WithRegistryAuth sets the credentials used for pushes.
func WithRegistryAuth(auth docker.Auth) ContainerOption {
	return func(c *Container) {
		c.auth = auth
	}
}

// WithPush toggles the final image push.
func WithPush(push bool) ContainerOption {
	return func(c *Container) {
		c.push = push
	}
}

// WithPublishTimeout bounds the publish command. Zero means no limit.
func WithPublishTimeout(d time.Duration) ContainerOption {
	return func(c *Container) {
		c.timeout = d
	}
}

// WithPublishOutput streams publish output to the given writers.
func WithPublishOutput(stdout, stderr io.Writer) ContainerOption {
	return func(c *Container) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// NewContainer creates the container strategy.
func NewContainer(exec command.Executor, images ImageBuilder, opts ...ContainerOption) *Container {
	c := &Container{
		exec:    exec,
		images:  images,
		publish: DefaultPublish,
		push:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Strategy.
func (c *Container) Name() string { return StrategyContainer }

// LocalTag is the tag an image is built under before it gets its registry reference.
func LocalTag(app, version string) string {
	return app + ":" + version
}

// Build implements Strategy. CI mode stops after publishing.
func (c *Container) Build(ctx context.Context, req Request) error {
	if len(c.publish) > 0 {
		_, err := c.exec.Run(ctx, command.Cmd{
			Name:    c.publish[0],
			Args:    c.publish[1:],
			Dir:     req.Dir,
			Env:     req.Environ(),
			Stdout:  c.stdout,
			Stderr:  c.stderr,
			Timeout: c.timeout,
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}

	if req.CI {
		return nil
	}

	local := LocalTag(req.App, req.Version)
	if _, err := c.images.BuildImage(ctx, docker.BuildOptions{
		ContextDir: req.Dir,
		Dockerfile: c.dockerfile,
		Tags:       []string{local},
		Labels: map[string]string{
			"coxswain.app":     req.App,
			"coxswain.version": req.Version,
			"coxswain.run":     req.RunID,
		},
	}); err != nil {
		return err
	}

	if err := c.images.TagImage(ctx, local, req.Image); err != nil {
		return err
	}

	if !c.push {
		return nil
	}
	if _, err := c.images.PushImage(ctx, req.Image, c.auth); err != nil {
		return err
	}
	return nil
}
