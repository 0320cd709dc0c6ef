package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/xpander-ai/xpander-cli/internal/logger"
	"github.com/xpander-ai/xpander-cli/internal/proc"
)

// Docker is the subset of the docker CLI the builder drives.
type Docker interface {
	Version(ctx context.Context) (string, error)
	Info(ctx context.Context) error
	Build(ctx context.Context, dir, tag, platform string, onLine func(string)) error
	RunDetached(ctx context.Context, name, envFile, image string) error
	Logs(ctx context.Context, container string) (string, error)
	Remove(ctx context.Context, container string) error
	RemoveImage(ctx context.Context, image string) error
	Save(ctx context.Context, image, dest string) error
}

// ErrDockerNotFound is returned by DockerCLI when the binary is missing.
var ErrDockerNotFound = errors.New("docker executable not found")

// CommandError reports a docker invocation that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if last := lastLine(e.Output); last != "" {
		msg += ": " + last
	}
	return msg
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// DockerCLI drives the docker executable as supervised subprocesses.
type DockerCLI struct {
	Binary string
	Logger *slog.Logger
}

// NewDockerCLI returns a DockerCLI using "docker" from PATH.
func NewDockerCLI(l *slog.Logger) *DockerCLI {
	if l == nil {
		l = logger.Discard()
	}
	return &DockerCLI{Binary: "docker", Logger: l}
}

func (d *DockerCLI) command(args ...string) proc.Command {
	return proc.Command{Name: d.Binary, Args: args}
}

// output runs docker with args and returns combined output. A non-zero
// exit becomes a *CommandError.
func (d *DockerCLI) output(ctx context.Context, args ...string) (string, error) {
	c := d.command(args...)
	d.Logger.Debug("running docker", "cmd", c.String())
	out, code, err := proc.Output(ctx, c)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrDockerNotFound
		}
		return out, err
	}
	if code != 0 {
		return out, &CommandError{Command: c.String(), ExitCode: code, Output: out}
	}
	return out, nil
}

// Version returns the output of "docker --version".
func (d *DockerCLI) Version(ctx context.Context) (string, error) {
	out, err := d.output(ctx, "--version")
	return strings.TrimSpace(out), err
}

// Info checks that the daemon answers.
func (d *DockerCLI) Info(ctx context.Context) error {
	_, err := d.output(ctx, "info", "--format", "{{.ServerVersion}}")
	return err
}

// Build runs "docker build", passing every output line to onLine as it
// arrives.
func (d *DockerCLI) Build(ctx context.Context, dir, tag, platform string, onLine func(string)) error {
	args := []string{"build"}
	if platform != "" {
		args = append(args, "--platform", platform)
	}
	args = append(args, "-t", tag, dir)
	c := d.command(args...)
	d.Logger.Debug("running docker", "cmd", c.String())

	var tail []string
	code, err := proc.Run(ctx, c, func(l proc.Line) {
		tail = append(tail, l.Text)
		if len(tail) > 20 {
			tail = tail[1:]
		}
		if onLine != nil {
			onLine(l.Text)
		}
	})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ErrDockerNotFound
		}
		return err
	}
	if code != 0 {
		return &CommandError{Command: c.String(), ExitCode: code, Output: strings.Join(tail, "\n")}
	}
	return nil
}

// RunDetached starts image in the background as container name. envFile
// is passed with --env-file when set.
func (d *DockerCLI) RunDetached(ctx context.Context, name, envFile, image string) error {
	args := []string{"run", "-d", "--name", name}
	if envFile != "" {
		args = append(args, "--env-file", envFile)
	}
	args = append(args, image)
	_, err := d.output(ctx, args...)
	return err
}

// Logs returns the container's combined stdout and stderr.
func (d *DockerCLI) Logs(ctx context.Context, container string) (string, error) {
	return d.output(ctx, "logs", container)
}

// Remove force-removes the container.
func (d *DockerCLI) Remove(ctx context.Context, container string) error {
	_, err := d.output(ctx, "rm", "-f", container)
	return err
}

// RemoveImage force-removes the image.
func (d *DockerCLI) RemoveImage(ctx context.Context, image string) error {
	_, err := d.output(ctx, "rmi", "-f", image)
	return err
}

// Save writes the image as a tar archive to dest.
func (d *DockerCLI) Save(ctx context.Context, image, dest string) error {
	_, err := d.output(ctx, "save", "-o", dest, image)
	return err
}
