// Package docker wraps the Docker SDK image API used to containerize units.
//
// The Client type builds an image from a directory, tags it with the
// deployment reference, and pushes it to a registry. Daemon progress is
// rendered through jsonmessage, with cursor control only when the output is
// a terminal.
//
// # Interface Abstraction
//
// The ImageAPI interface abstracts the Docker SDK, enabling mock injection
// for testing. Use NewClientWithAPI for test scenarios.
//
// # Example
//
//	client, err := docker.NewClient(os.Stdout)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	id, err := client.BuildImage(ctx, docker.BuildOptions{
//	    ContextDir: "/src/svc1",
//	    Tags:       []string{"svc1:1.1"},
//	})
package docker
