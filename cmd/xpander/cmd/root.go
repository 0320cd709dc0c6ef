package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xpander-ai/xpander-cli/internal/deploy"
	"github.com/xpander-ai/xpander-cli/internal/tui"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "xpander",
	Short: "Deploy and operate Xpander.ai agents",
	Long: `xpander builds a local agent project into a container image, checks that
it boots, uploads it to the Xpander.ai registry and follows its logs.

Agents can be referenced by ID or by name everywhere an agent is expected.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xpander %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("profile", "", "Credential profile to use")
	rootCmd.PersistentFlags().String("log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Errors are reported on stderr together
// with remediation hints; a user cancellation is not an error.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil {
		return nil
	}
	if errors.Is(err, deploy.ErrCancelled) || errors.Is(err, tui.ErrAborted) {
		fmt.Fprintln(os.Stderr, tui.Warning("Cancelled."))
		return nil
	}

	fmt.Fprintf(os.Stderr, "%s %v\n", tui.Error("Error:"), err)
	if hint := tui.Remediation(err, isTerminal(os.Stderr)); hint != "" {
		fmt.Fprint(os.Stderr, hint)
	}
	return err
}
