package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/api"
	apihttp "github.com/Paintersrp/tether/internal/api/http"
)

var newAPIClient = func(addr string) (api.Controller, error) {
	return apihttp.NewClient(addr)
}

func newOpenCmd(ctx *context) *cobra.Command {
	return newProcessCommand(ctx, "open <name>", "Launch a managed process in a running tether", api.CommandOpenExe)
}

func newCloseCmd(ctx *context) *cobra.Command {
	return newProcessCommand(ctx, "close <name>", "Terminate a managed process in a running tether", api.CommandCloseExe)
}

func newProcessCommand(ctx *context, use, short, command string) *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd, ctx, apiAddr, command, args[0])
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "address of the running tether command surface")
	return cmd
}

func newInvokeCmd(ctx *context) *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "invoke <command> [name]",
		Short: "Run a built-in or fixed-name command in a running tether",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			return invoke(cmd, ctx, apiAddr, args[0], name)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "address of the running tether command surface")
	return cmd
}

func invoke(cmd *cobra.Command, ctx *context, flagAddr, command, name string) error {
	client, err := newAPIClient(ctx.clientAddr(flagAddr))
	if err != nil {
		return err
	}
	if err := client.Invoke(cmd.Context(), command, name); err != nil {
		return err
	}
	target := name
	if target == "" {
		target = command
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", target)
	return nil
}

// clientAddr resolves the command surface address: flag, environment, then
// the manifest when one can be read.
func (c *context) clientAddr(flagAddr string) string {
	if addr := strings.TrimSpace(flagAddr); addr != "" {
		return addr
	}
	if env := strings.TrimSpace(os.Getenv(EnvAPIAddr)); env != "" {
		return env
	}
	if doc, err := c.loadManifest(); err == nil && doc.API.Addr != "" {
		return doc.API.Addr
	}
	return ""
}
