package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Operate on deployed agents",
}

var agentRestartCmd = &cobra.Command{
	Use:     "restart [agent]",
	Aliases: []string{"redeploy"},
	Short:   "Restart an agent's deployment",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()
		return d.controller().Restart(cmd.Context(), commonOptions(cmd, args, d))
	},
}

var agentStopCmd = &cobra.Command{
	Use:   "stop [agent]",
	Short: "Stop an agent's running deployment",
	Long:  `Stop an agent's running deployment. Stopping an agent with nothing running succeeds.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()
		return d.controller().Stop(cmd.Context(), commonOptions(cmd, args, d))
	},
}

var agentLogsCmd = &cobra.Command{
	Use:   "logs [agent]",
	Short: "Follow an agent's logs",
	Long:  `Follow an agent's logs until interrupted with Ctrl+C.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()
		return d.controller().Logs(cmd.Context(), commonOptions(cmd, args, d))
	},
}

var agentResolveCmd = &cobra.Command{
	Use:   "resolve [agent]",
	Short: "Print the ID of the agent a name or ID refers to",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		id, err := d.controller().ResolveAgent(cmd.Context(), commonOptions(cmd, args, d))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{agentRestartCmd, agentStopCmd, agentLogsCmd, agentResolveCmd} {
		addPathFlag(c)
		agentCmd.AddCommand(c)
	}
	rootCmd.AddCommand(agentCmd)

	// Top-level shortcuts for the everyday operations.
	rootCmd.AddCommand(
		shortcut(agentRestartCmd, "restart"),
		shortcut(agentStopCmd, "stop"),
		shortcut(agentLogsCmd, "logs"),
	)
}

// shortcut returns a top-level copy of an agent subcommand.
func shortcut(src *cobra.Command, name string) *cobra.Command {
	c := &cobra.Command{
		Use:   name + " [agent]",
		Short: src.Short,
		Long:  src.Long,
		Args:  src.Args,
		RunE:  src.RunE,
	}
	addPathFlag(c)
	return c
}
