// copilotsse CI
//
// Package main provides reproducible builds and tests locally and in CI.
package main

import (
	"context"

	"dagger/copilotsse/internal/dagger"
)

// Copilotsse is the CI pipeline for the copilotsse module
type Copilotsse struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new copilotsse CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp"]
	source *dagger.Directory,
) *Copilotsse {
	return &Copilotsse{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled for go-sqlite3, and the project source mounted.
func (c *Copilotsse) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", c.Source)
}

// Test runs the unit tests via "go test"
func (c *Copilotsse) Test(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// TestRace runs the unit tests with the race detector, which covers the
// relay's pipe goroutines and the worker pool.
func (c *Copilotsse) TestRace(ctx context.Context) (string, error) {
	return c.goContainer().
		WithExec([]string{"go", "test", "-race", "./pkg/sse/...", "./proxy/...", "./pkg/copilot/..."}).
		Stdout(ctx)
}
