package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/copilotsse/internal/dagger"
)

// binaries are the main packages shipped in a build.
var binaries = []string{
	"./cli/copilotsse",
	"./cli/copilotsseproxy",
	"./cli/copilotsseapi",
}

// Build and return directory of go binaries
func (c *Copilotsse) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// go-sqlite3 needs cgo, so each target builds natively in its own
	// platform container instead of cross compiling.
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		golang := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+strings.ReplaceAll(string(platform), "/", "-"))).
			WithDirectory("/src", c.Source).
			WithWorkdir("/src")

		for _, bin := range binaries {
			golang = golang.WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, bin})
		}

		outputs = outputs.WithDirectory(path, golang.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (c *Copilotsse) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/wso2/copilotsse/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/wso2/copilotsse/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/wso2/copilotsse/pkg/utils.Buildtime=%s'", buildtime),
	}

	return c.Build(ctx, strings.Join(ldflags, " "))
}
