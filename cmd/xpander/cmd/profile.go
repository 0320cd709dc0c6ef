package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xpander-ai/xpander-cli/internal/core"
	"github.com/xpander-ai/xpander-cli/internal/tui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage credential profiles",
	Long: `Add, list and switch between named API key / organization pairs.

XPANDER_API_KEY and XPANDER_ORGANIZATION_ID override the active profile.`,
}

// ---------------------------------------------------------------------------
// profile list
// ---------------------------------------------------------------------------

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credential profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		profiles, active, err := d.profiles.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(profiles) == 0 {
			fmt.Fprintln(out, "No profiles. Use 'xpander profile set <name> --api-key <key> --org-id <org>' to add one.")
			return nil
		}
		for _, p := range profiles {
			marker := "  "
			if p.Name == active {
				marker = "* "
			}
			fmt.Fprintf(out, "%s%s\t%s\n", marker, p.Name, p.OrganizationID)
		}
		return nil
	},
}

// ---------------------------------------------------------------------------
// profile set
// ---------------------------------------------------------------------------

var profileSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a credential profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		p, err := d.profiles.Get(args[0])
		if err != nil && !errors.Is(err, core.ErrProfileNotFound) {
			return err
		}
		if cmd.Flags().Changed("api-key") {
			p.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if cmd.Flags().Changed("org-id") {
			p.OrganizationID, _ = cmd.Flags().GetString("org-id")
		}
		if !p.Complete() {
			return errors.New("both --api-key and --org-id are required for a new profile")
		}
		p.Name = args[0]

		if err := d.profiles.Set(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Saved profile %q\n", tui.Success("✓"), p.Name)
		return nil
	},
}

// ---------------------------------------------------------------------------
// profile use
// ---------------------------------------------------------------------------

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		if err := d.profiles.Use(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", args[0])
		return nil
	},
}

// ---------------------------------------------------------------------------
// profile show
// ---------------------------------------------------------------------------

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile's credentials with the API key masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		name := ""
		if len(args) > 0 {
			name = args[0]
		} else if f := cmd.Flags().Lookup("profile"); f != nil {
			name = f.Value.String()
		}
		p, err := d.profiles.Resolve(name)
		if err != nil {
			return err
		}
		if !p.Complete() {
			return fmt.Errorf("profile %q has no credentials", p.Name)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile:         %s\n", p.Name)
		fmt.Fprintf(out, "Organization ID: %s\n", p.OrganizationID)
		fmt.Fprintf(out, "API key:         %s\n", maskKey(p.APIKey))
		return nil
	},
}

// maskKey keeps the last four characters of an API key.
func maskKey(key string) string {
	const visible = 4
	if len(key) <= visible {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-visible) + key[len(key)-visible:]
}

func init() {
	profileSetCmd.Flags().String("api-key", "", "Xpander.ai API key")
	profileSetCmd.Flags().String("org-id", "", "Organization ID")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
