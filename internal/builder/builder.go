// Package builder turns an agent project directory into a compressed,
// upload-ready container image archive.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/klauspost/compress/gzip"
	"github.com/oklog/ulid/v2"

	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/logger"
)

// Markers a healthy agent container logs shortly after start.
const (
	MarkerWorkerRegistered = "Worker registered"
	MarkerAgentEndpoint    = "agent-worker.xpander.ai"
)

// State is the builder's progress through one build.
type State int

const (
	NotBuilt State = iota
	Built
	Tested
	SkippedTest
	Exported
	Compressed
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Tested:
		return "tested"
	case SkippedTest:
		return "skipped-test"
	case Exported:
		return "exported"
	case Compressed:
		return "compressed"
	default:
		return "not-built"
	}
}

// ImageTag returns the local image tag for an agent.
func ImageTag(agentID string) string {
	return fmt.Sprintf("xpander-agent-%s:latest", agentID)
}

// Builder builds, smoke-tests and exports agent images.
type Builder struct {
	docker   Docker
	out      io.Writer
	logger   *slog.Logger
	platform string
	grace    time.Duration
	tempDir  string
	sleep    func(context.Context, time.Duration) error
	state    State
}

// Option configures a Builder.
type Option func(*Builder)

// WithOutput sets where build progress is written.
func WithOutput(w io.Writer) Option { return func(b *Builder) { b.out = w } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithTempDir sets where archives are written. Defaults to os.TempDir().
func WithTempDir(dir string) Option { return func(b *Builder) { b.tempDir = dir } }

// WithSettings applies the build section of the user settings.
func WithSettings(s core.BuildSettings) Option {
	return func(b *Builder) {
		if s.Platform != "" {
			b.platform = s.Platform
		}
		if s.SmokeTestGrace > 0 {
			b.grace = s.SmokeTestGrace
		}
	}
}

// New creates a Builder that drives d.
func New(d Docker, opts ...Option) *Builder {
	b := &Builder{
		docker:   d,
		out:      io.Discard,
		logger:   logger.Discard(),
		platform: core.DefaultPlatform,
		grace:    core.DefaultSmokeTestGrace,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the state reached by the last Build call.
func (b *Builder) State() State { return b.state }

func (b *Builder) setState(s State) {
	b.state = s
	b.logger.Debug("build state", "state", s.String())
}

// Build builds the image for dir, optionally smoke-tests it, and returns
// the path of the gzip-compressed image archive. The caller owns the
// archive and must remove it.
func (b *Builder) Build(ctx context.Context, dir, agentID string, skipLocalTest bool) (string, error) {
	b.state = NotBuilt

	if err := b.checkEnvironment(ctx); err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", newEnvironmentError(EnvInvalidProject, fmt.Sprintf("%s does not exist", dir), err)
	}
	if !info.IsDir() {
		return "", newEnvironmentError(EnvInvalidProject, fmt.Sprintf("%s is not a directory", dir), nil)
	}

	tag := ImageTag(agentID)
	fmt.Fprintf(b.out, "Building image %s (%s)\n", tag, b.platform)
	if err := b.docker.Build(ctx, dir, tag, b.platform, func(line string) {
		fmt.Fprintln(b.out, line)
	}); err != nil {
		return "", fmt.Errorf("building image: %w", err)
	}
	b.setState(Built)

	if skipLocalTest {
		fmt.Fprintln(b.out, "Skipping local test")
		b.setState(SkippedTest)
	} else {
		if err := b.smokeTest(ctx, dir, tag); err != nil {
			if _, failed := IsSmokeTestError(err); failed {
				b.discardImage(ctx, tag)
			}
			return "", err
		}
		b.setState(Tested)
	}

	archive, err := b.export(ctx, tag)
	if err != nil {
		return "", err
	}
	return archive, nil
}

func (b *Builder) checkEnvironment(ctx context.Context) error {
	version, err := b.docker.Version(ctx)
	if err != nil {
		return newEnvironmentError(EnvDockerMissing, "docker --version failed", err)
	}
	b.logger.Debug("docker found", "version", version)

	if err := b.docker.Info(ctx); err != nil {
		return newEnvironmentError(EnvDaemonUnreachable, "docker info failed", err)
	}
	return nil
}

// smokeTest runs the image briefly and checks its logs for the startup
// markers. The container is always removed.
func (b *Builder) smokeTest(ctx context.Context, dir, tag string) error {
	name := "xpander-smoke-" + strings.ToLower(ulid.Make().String())
	envFile := filepath.Join(dir, core.ProjectEnvFile)
	if _, err := os.Stat(envFile); err != nil {
		envFile = ""
	}

	fmt.Fprintf(b.out, "Testing image locally (%s)\n", b.grace)
	defer func() {
		// Best effort; a cancelled ctx must not leak the container.
		if err := b.docker.Remove(context.WithoutCancel(ctx), name); err != nil {
			b.logger.Warn("removing smoke test container", "container", name, "error", err)
		}
	}()

	if err := b.docker.RunDetached(ctx, name, envFile, tag); err != nil {
		return fmt.Errorf("starting test container: %w", err)
	}
	if err := b.sleep(ctx, b.grace); err != nil {
		return err
	}

	raw, err := b.docker.Logs(ctx, name)
	if err != nil {
		return fmt.Errorf("reading test container logs: %w", err)
	}
	logs := ansi.Strip(raw)

	if missing := missingMarkers(logs); len(missing) > 0 {
		return &SmokeTestError{Container: name, Missing: missing, Logs: logs}
	}
	fmt.Fprintln(b.out, "Local test passed")
	return nil
}

// discardImage removes an image that failed verification. Best effort.
func (b *Builder) discardImage(ctx context.Context, tag string) {
	if err := b.docker.RemoveImage(context.WithoutCancel(ctx), tag); err != nil {
		b.logger.Warn("removing failed image", "image", tag, "error", err)
		return
	}
	b.setState(NotBuilt)
	fmt.Fprintf(b.out, "Removed image %s\n", tag)
}

func missingMarkers(logs string) []string {
	var missing []string
	for _, m := range []string{MarkerWorkerRegistered, MarkerAgentEndpoint} {
		if !strings.Contains(logs, m) {
			missing = append(missing, m)
		}
	}
	return missing
}

// export saves the image to a tar file and compresses it. Partial files
// are removed on failure.
func (b *Builder) export(ctx context.Context, tag string) (string, error) {
	dir := b.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	base := filepath.Join(dir, "xpander-agent-"+strings.ToLower(ulid.Make().String()))
	tarPath := base + ".tar"
	gzPath := base + ".tar.gz"

	fmt.Fprintln(b.out, "Exporting image")
	defer os.Remove(tarPath)
	if err := b.docker.Save(ctx, tag, tarPath); err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	b.setState(Exported)

	if err := compressFile(tarPath, gzPath); err != nil {
		_ = os.Remove(gzPath)
		return "", fmt.Errorf("compressing image: %w", err)
	}
	b.setState(Compressed)
	b.logger.Debug("image archive ready", "path", gzPath)
	return gzPath, nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	zw, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		_ = out.Close()
		return err
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = out.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsSmokeTestError reports whether err wraps a *SmokeTestError.
func IsSmokeTestError(err error) (*SmokeTestError, bool) {
	var se *SmokeTestError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
