package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
)

// Common test errors.
var (
	errMockPing  = errors.New("mock: ping failed")
	errMockBuild = errors.New("mock: image build failed")
	errMockTag   = errors.New("mock: image tag failed")
	errMockPush  = errors.New("mock: image push failed")
)

// MockImageAPI is a mock implementation of ImageAPI for testing.
type MockImageAPI struct {
	// Function overrides for each method
	PingFunc       func(ctx context.Context) (types.Ping, error)
	ImageBuildFunc func(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ImageTagFunc   func(ctx context.Context, source, target string) error
	ImagePushFunc  func(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	CloseFunc      func() error

	// Call tracking
	PingCalls       int
	ImageBuildCalls int
	ImageTagCalls   int
	ImagePushCalls  int
	CloseCalls      int

	// Captured arguments from the last call
	LastBuildOptions build.ImageBuildOptions
	LastBuildContext []byte
	LastTag          [2]string
	LastPushRef      string
	LastPushOptions  image.PushOptions
}

// NewMockImageAPI creates a new mock with default no-op implementations.
func NewMockImageAPI() *MockImageAPI {
	return &MockImageAPI{}
}

// Ping implements ImageAPI.
func (m *MockImageAPI) Ping(ctx context.Context) (types.Ping, error) {
	m.PingCalls++
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return types.Ping{APIVersion: "1.45"}, nil
}

// ImageBuild implements ImageAPI. The build context is drained so tests can inspect it.
func (m *MockImageAPI) ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	m.ImageBuildCalls++
	m.LastBuildOptions = options
	m.LastBuildContext, _ = io.ReadAll(buildContext)
	if m.ImageBuildFunc != nil {
		return m.ImageBuildFunc(ctx, bytes.NewReader(m.LastBuildContext), options)
	}
	return build.ImageBuildResponse{Body: jsonStream(`{"stream":"Successfully built\n"}`)}, nil
}

// ImageTag implements ImageAPI.
func (m *MockImageAPI) ImageTag(ctx context.Context, source, target string) error {
	m.ImageTagCalls++
	m.LastTag = [2]string{source, target}
	if m.ImageTagFunc != nil {
		return m.ImageTagFunc(ctx, source, target)
	}
	return nil
}

// ImagePush implements ImageAPI.
func (m *MockImageAPI) ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	m.ImagePushCalls++
	m.LastPushRef = ref
	m.LastPushOptions = options
	if m.ImagePushFunc != nil {
		return m.ImagePushFunc(ctx, ref, options)
	}
	return jsonStream(`{"status":"Pushed"}`), nil
}

// Close implements ImageAPI.
func (m *MockImageAPI) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// jsonStream joins daemon messages into a newline delimited body.
func jsonStream(msgs ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(msgs, "\n") + "\n"))
}

// Verify MockImageAPI implements ImageAPI.
var _ ImageAPI = (*MockImageAPI)(nil)
