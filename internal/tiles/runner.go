package tiles

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// Mount binds a host directory into the work environment.
type Mount struct {
	Host      string
	Container string
}

// Runner abstracts the isolated runtime that hosts the raster toolchain, so
// the pipeline steps are testable with a fake. One named environment is
// started per pipeline run and stopped when the run ends.
type Runner interface {
	// Pull makes the toolchain image available locally.
	Pull(ctx context.Context, image string) error
	// Start launches a uniquely named environment with the given mounts.
	Start(ctx context.Context, name, image string, mounts []Mount) error
	// Exec runs a command inside a started environment and returns its
	// combined stdout.
	Exec(ctx context.Context, name string, args ...string) (string, error)
	// Stop tears the environment down. Safe to call once per Start.
	Stop(ctx context.Context, name string) error
}

// execTimeout bounds any single toolchain command.
const execTimeout = 10 * time.Minute

// DockerRunner runs the toolchain in Docker containers via the docker CLI.
type DockerRunner struct {
	binary string
}

// NewDockerRunner creates a DockerRunner using the docker binary on PATH.
func NewDockerRunner() *DockerRunner {
	return &DockerRunner{binary: "docker"}
}

func (r *DockerRunner) Pull(ctx context.Context, image string) error {
	// Skip the pull when the image is already local.
	if _, err := r.run(ctx, "image", "inspect", image); err == nil {
		return nil
	}

	log.Printf("[TileRunner] Pulling toolchain image %s", image)
	if _, err := r.run(ctx, "pull", image); err != nil {
		return fmt.Errorf("pull toolchain image: %w", err)
	}
	return nil
}

func (r *DockerRunner) Start(ctx context.Context, name, image string, mounts []Mount) error {
	args := []string{"run", "-d", "--name", name, "--entrypoint", "sleep"}
	for _, m := range mounts {
		args = append(args, "-v", m.Host+":"+m.Container)
	}
	args = append(args, image, "infinity")

	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("start work environment %s: %w", name, err)
	}
	log.Printf("[TileRunner] Started work environment %s", name)
	return nil
}

func (r *DockerRunner) Exec(ctx context.Context, name string, args ...string) (string, error) {
	execArgs := append([]string{"exec", name}, args...)
	out, err := r.run(ctx, execArgs...)
	if err != nil {
		return "", fmt.Errorf("exec in %s: %w", name, err)
	}
	return out, nil
}

func (r *DockerRunner) Stop(ctx context.Context, name string) error {
	if _, err := r.run(ctx, "rm", "-f", name); err != nil {
		return fmt.Errorf("stop work environment %s: %w", name, err)
	}
	log.Printf("[TileRunner] Stopped work environment %s", name)
	return nil
}

func (r *DockerRunner) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w\nstderr: %s", r.binary, args[0], err, stderr.String())
	}

	return stdout.String(), nil
}
