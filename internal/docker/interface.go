package docker

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// ImageAPI defines the Docker client operations used for image builds.
// This interface enables mocking for unit tests without requiring a running Docker daemon.
type ImageAPI interface {
	// Ping tests the connection to the Docker daemon.
	Ping(ctx context.Context) (types.Ping, error)

	// ImageBuild sends a build context to the daemon and streams the build.
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)

	// ImageTag adds target as a reference to source.
	ImageTag(ctx context.Context, source, target string) error

	// ImagePush pushes ref to its registry and streams progress.
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)

	// Close closes the client connection.
	Close() error
}

// Compile-time check that the SDK client stays in sync with ImageAPI.
var _ ImageAPI = (*client.Client)(nil)
