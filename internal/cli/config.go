package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/cliutil"
	"github.com/Paintersrp/tether/internal/config"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with tether manifests",
	}
	cmd.AddCommand(newConfigLintCmd(ctx))
	return cmd
}

func newConfigLintCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a tether manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ctx.manifestPath()
			doc, err := config.Load(path)
			if err == nil {
				_, err = cliutil.Runtime(doc)
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
			if cmd.Flags().Changed("verbose") {
				fmt.Fprintf(cmd.OutOrStdout(), "  resources: %s\n", doc.Resources.ResolvedDir)
				for _, p := range doc.Processes {
					fmt.Fprintf(cmd.OutOrStdout(), "  process %s (required=%t autostart=%t)\n", p.Name, p.Required, p.Autostarts())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolP("verbose", "v", false, "print the resolved processes")
	return cmd
}
