package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/xpander-ai/xpander-cli/internal/api"
	"github.com/xpander-ai/xpander-cli/internal/builder"
	"github.com/xpander-ai/xpander-cli/internal/deploy"
	"github.com/xpander-ai/xpander-cli/internal/resolve"
)

const remediationWidth = 80

// RenderMarkdown renders md for the terminal. Unstyled output uses the
// plain-text style. On renderer failure the markdown is returned as is.
func RenderMarkdown(md string, styled bool) string {
	opt := glamour.WithStandardStyle("notty")
	if styled {
		opt = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(remediationWidth))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Remediation returns help text for errors the user can act on, or "" when
// there is nothing to add to the error message itself.
func Remediation(err error, styled bool) string {
	if err == nil {
		return ""
	}

	if ee, ok := builder.IsEnvironmentError(err); ok {
		return RenderMarkdown(ee.Remediation(), styled)
	}

	if se, ok := builder.IsSmokeTestError(err); ok {
		var sb strings.Builder
		sb.WriteString(mutedStyle.Render("Container logs:") + "\n")
		sb.WriteString(logBoxStyle.Render(containerLogs(se.Logs)) + "\n")
		sb.WriteString(RenderMarkdown(smokeTestHints(se), styled))
		return sb.String()
	}

	if api.IsUnauthorized(err) {
		return RenderMarkdown("- Check the API key and organization ID: `xpander profile show`\n"+
			"- Store new credentials with `xpander profile set`\n", styled)
	}

	switch {
	case errors.Is(err, deploy.ErrNoCredentials):
		return RenderMarkdown("- Store credentials with `xpander profile set --api-key <key> --org-id <org>`\n"+
			"- Or export `XPANDER_API_KEY` and `XPANDER_ORGANIZATION_ID`\n", styled)
	case errors.Is(err, deploy.ErrNotInitialized):
		return RenderMarkdown("- Run the command from an agent project, or pass `--path`\n", styled)
	case errors.Is(err, resolve.ErrNoAgentSpecified):
		return RenderMarkdown("- Pass the agent name or ID as an argument\n", styled)
	}

	var schemaErr *api.SchemaError
	if errors.As(err, &schemaErr) {
		return RenderMarkdown("- The platform returned an unexpected response; upgrade the CLI and retry\n", styled)
	}

	return ""
}

func smokeTestHints(se *builder.SmokeTestError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The container did not log %s within the grace period.\n\n", strings.Join(se.Missing, " / "))
	sb.WriteString("- Run the image locally and check that `xpander_handler.py` starts the worker\n")
	sb.WriteString("- Make sure the project `.env` holds valid credentials\n")
	sb.WriteString("- Deploy without the local check using `--skip-local-tests`\n")
	return sb.String()
}

// containerLogs returns the captured log in full; startup tracebacks are
// usually at the top.
func containerLogs(s string) string {
	s = strings.TrimRight(s, "\n")
	if strings.TrimSpace(s) == "" {
		return "(the container produced no output)"
	}
	return s
}
