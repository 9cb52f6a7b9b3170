package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	archive "github.com/moby/go-archive"
	"github.com/moby/patternmatcher/ignorefile"
	"golang.org/x/term"
)

// Client wraps the Docker SDK client.
type Client struct {
	api ImageAPI
	out io.Writer
}

// NewClient creates a Docker client from the environment. Progress is written to out.
func NewClient(out io.Writer) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return NewClientWithAPI(cli, out), nil
}

// NewClientWithAPI creates a Docker client with a custom API implementation.
// This is primarily used for testing with mock implementations.
func NewClientWithAPI(api ImageAPI, out io.Writer) *Client {
	if out == nil {
		out = io.Discard
	}
	return &Client{api: api, out: out}
}

// Ping tests the connection to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping docker: %w", err)
	}

	return nil
}

// Close closes the Docker client connection.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}

// BuildOptions describes an image build.
type BuildOptions struct {
	// ContextDir is sent to the daemon as the build context.
	ContextDir string
	// Dockerfile is relative to ContextDir. Empty means "Dockerfile".
	Dockerfile string
	// Tags are applied to the built image.
	Tags []string
	// BuildArgs are passed as --build-arg values.
	BuildArgs map[string]*string
	// Labels are set on the built image.
	Labels map[string]string
}

// Auth holds registry credentials for pushes. The zero value pushes anonymously.
type Auth struct {
	Username string
	Password string
	Server   string
}

// buildResult is the aux payload the daemon sends once a build finishes.
type buildResult struct {
	ID string `json:"ID"`
}

// pushResult is the aux payload the daemon sends once a push finishes.
type pushResult struct {
	Tag    string `json:"Tag"`
	Digest string `json:"Digest"`
	Size   int    `json:"Size"`
}

// BuildImage builds opts.ContextDir and returns the image ID reported by the daemon.
func (c *Client) BuildImage(ctx context.Context, opts BuildOptions) (string, error) {
	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	excludes, err := readDockerignore(opts.ContextDir)
	if err != nil {
		return "", err
	}

	buildCtx, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{ExcludePatterns: excludes})
	if err != nil {
		return "", fmt.Errorf("create build context %s: %w", opts.ContextDir, err)
	}
	defer buildCtx.Close()

	resp, err := c.api.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        opts.Tags,
		Dockerfile:  filepath.ToSlash(dockerfile),
		BuildArgs:   opts.BuildArgs,
		Labels:      opts.Labels,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("docker build: %w", err)
	}
	defer resp.Body.Close()

	var imageID string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var result buildResult
		if err := json.Unmarshal(*msg.Aux, &result); err == nil && result.ID != "" {
			imageID = result.ID
		}
	}

	if err := c.stream(resp.Body, auxCallback); err != nil {
		var jm *jsonmessage.JSONError
		if errors.As(err, &jm) {
			return "", fmt.Errorf("docker build failure: %w", err)
		}
		return "", fmt.Errorf("stream build output: %w", err)
	}

	return imageID, nil
}

// TagImage adds target as a reference to source.
func (c *Client) TagImage(ctx context.Context, source, target string) error {
	if err := c.api.ImageTag(ctx, source, target); err != nil {
		return fmt.Errorf("tag %s as %s: %w", source, target, err)
	}
	return nil
}

// PushImage pushes ref and returns the digest reported by the daemon.
func (c *Client) PushImage(ctx context.Context, ref string, auth Auth) (string, error) {
	registryAuth, err := encodeAuth(auth)
	if err != nil {
		return "", err
	}

	rc, err := c.api.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: registryAuth})
	if err != nil {
		return "", fmt.Errorf("push %s: %w", ref, err)
	}
	defer rc.Close()

	var digest string
	auxCallback := func(msg jsonmessage.JSONMessage) {
		if msg.Aux == nil {
			return
		}
		var result pushResult
		if err := json.Unmarshal(*msg.Aux, &result); err == nil && result.Digest != "" {
			digest = result.Digest
		}
	}

	if err := c.stream(rc, auxCallback); err != nil {
		return "", fmt.Errorf("push %s: %w", ref, err)
	}

	return digest, nil
}

// stream renders daemon JSON messages to the client output.
func (c *Client) stream(src io.Reader, auxCallback func(jsonmessage.JSONMessage)) error {
	fd, isTerm := terminalFd(c.out)
	return jsonmessage.DisplayJSONMessagesStream(src, c.out, fd, isTerm, auxCallback)
}

func terminalFd(w io.Writer) (uintptr, bool) {
	f, ok := w.(*os.File)
	if !ok {
		return 0, false
	}
	return f.Fd(), term.IsTerminal(int(f.Fd()))
}

func encodeAuth(auth Auth) (string, error) {
	if auth.Username == "" && auth.Password == "" {
		return "", nil
	}
	encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.Server,
	})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return encoded, nil
}

// readDockerignore returns the exclude patterns from dir/.dockerignore, if any.
func readDockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read .dockerignore: %w", err)
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("parse .dockerignore: %w", err)
	}
	return patterns, nil
}
