package cmd

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xpander-ai/xpander-cli/internal/deploy"
)

// nonInteractiveEnv disables every prompt when set to a true value.
const nonInteractiveEnv = "XPANDER_NON_INTERACTIVE"

// nonInteractive reports whether prompts must be skipped: either the
// environment asks for it or stdin is not a terminal.
func nonInteractive() bool {
	if v, err := strconv.ParseBool(os.Getenv(nonInteractiveEnv)); err == nil && v {
		return true
	}
	return !term.IsTerminal(int(os.Stdin.Fd()))
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// addPathFlag adds the --path flag selecting the project directory.
func addPathFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("path", "p", "", "Agent project directory (default: current directory)")
}

// commonOptions reads the flags and arguments every agent command shares.
func commonOptions(cmd *cobra.Command, args []string, d *deps) deploy.Options {
	opts := deploy.Options{NonInteractive: !d.interactive}
	if len(args) > 0 {
		opts.Agent = args[0]
	}
	if f := cmd.Flags().Lookup("path"); f != nil {
		opts.Dir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("profile"); f != nil {
		opts.Profile = f.Value.String()
		opts.ForceProfile = f.Changed
	}
	return opts
}
