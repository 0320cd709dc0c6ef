package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xpander-ai/xpander-cli/internal/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy [agent]",
	Short: "Build, test and deploy an agent project",
	Long: `Build the agent project into a container image, check locally that the
worker registers, then upload the image and deploy it.

The agent is taken from XPANDER_AGENT_ID in the project's .env first, then
from the argument (an agent ID or name). Without either, you pick an
existing agent or "Create a new agent"; non-interactive runs create one.
An agent that does not exist yet is created, and its ID is written back to
.env.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		skipConfirm, _ := cmd.Flags().GetBool("confirm")
		skipTest, _ := cmd.Flags().GetBool("skip-local-tests")

		// Only the optional log follow-up traps Ctrl+C; build and upload
		// keep the default process handling.
		return d.controller().Deploy(cmd.Context(), deploy.DeployRequest{
			Options:       commonOptions(cmd, args, d),
			SkipConfirm:   skipConfirm,
			SkipLocalTest: skipTest,
		})
	},
}

func init() {
	addPathFlag(deployCmd)
	deployCmd.Flags().BoolP("confirm", "y", false, "Skip the deployment confirmation")
	deployCmd.Flags().Bool("skip-local-tests", false, "Skip the local container smoke test")
	rootCmd.AddCommand(deployCmd)
}
