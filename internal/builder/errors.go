package builder

import (
	"errors"
	"fmt"
	"strings"
)

// EnvironmentKind classifies why the local build environment is unusable.
type EnvironmentKind int

const (
	// EnvDockerMissing means the docker binary is not installed or not on PATH.
	EnvDockerMissing EnvironmentKind = iota
	// EnvDaemonUnreachable means docker is installed but its daemon does not answer.
	EnvDaemonUnreachable
	// EnvInvalidProject means the project path does not exist or is not a directory.
	EnvInvalidProject
)

// String returns a human-readable label for the kind.
func (k EnvironmentKind) String() string {
	switch k {
	case EnvDockerMissing:
		return "Docker Not Installed"
	case EnvDaemonUnreachable:
		return "Docker Daemon Not Running"
	case EnvInvalidProject:
		return "Invalid Project Directory"
	default:
		return "Environment Error"
	}
}

// EnvironmentError is returned when the build cannot start. It carries
// actionable hints for the user.
type EnvironmentError struct {
	Kind   EnvironmentKind
	Detail string
	Hints  []string
	Err    error
}

// Error implements the error interface.
func (e *EnvironmentError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap returns the underlying cause.
func (e *EnvironmentError) Unwrap() error { return e.Err }

// Remediation renders the hints as a markdown list.
func (e *EnvironmentError) Remediation() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", e.Kind)
	if e.Detail != "" {
		fmt.Fprintf(&sb, "%s\n\n", e.Detail)
	}
	for _, h := range e.Hints {
		fmt.Fprintf(&sb, "- %s\n", h)
	}
	return sb.String()
}

func hintsFor(kind EnvironmentKind) []string {
	switch kind {
	case EnvDockerMissing:
		return []string{
			"Install Docker: https://docs.docker.com/get-docker/",
			"Make sure `docker` is on your `PATH`, then run `docker --version`",
		}
	case EnvDaemonUnreachable:
		return []string{
			"Start Docker Desktop, or run `sudo systemctl start docker` on Linux",
			"Check that your user can reach the daemon: `docker info`",
		}
	case EnvInvalidProject:
		return []string{
			"Pass the agent project directory with `--path`",
		}
	default:
		return nil
	}
}

func newEnvironmentError(kind EnvironmentKind, detail string, err error) *EnvironmentError {
	return &EnvironmentError{Kind: kind, Detail: detail, Hints: hintsFor(kind), Err: err}
}

// SmokeTestError is returned when the locally started container does not
// log the expected startup markers within the grace period.
type SmokeTestError struct {
	Container string
	Missing   []string
	Logs      string
}

// Error implements the error interface.
func (e *SmokeTestError) Error() string {
	return fmt.Sprintf("local test failed: container %s did not log %s", e.Container, quoteAll(e.Missing))
}

func quoteAll(ss []string) string {
	q := make([]string, len(ss))
	for i, s := range ss {
		q[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(q, " and ")
}

// IsEnvironmentError reports whether err wraps an *EnvironmentError.
func IsEnvironmentError(err error) (*EnvironmentError, bool) {
	var ee *EnvironmentError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
