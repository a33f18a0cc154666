package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/cliutil"
	"github.com/Paintersrp/tether/internal/config"
)

// EnvAPIAddr overrides the command surface address.
const EnvAPIAddr = "TETHER_API_ADDR"

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var manifestFile string

	root := &cobra.Command{
		Use:   "tether",
		Short: "Launch and stop an application's companion executables",
	}

	root.PersistentFlags().
		StringVarP(&manifestFile, "file", "f", config.DefaultFile, "Path to the tether manifest")

	ctx := &context{root: root, manifestFile: &manifestFile}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newOpenCmd(ctx))
	root.AddCommand(newCloseCmd(ctx))
	root.AddCommand(newInvokeCmd(ctx))
	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	root         *cobra.Command
	manifestFile *string
}

func (c *context) manifestPath() string {
	changed := false
	if flag := c.root.PersistentFlags().Lookup("file"); flag != nil {
		changed = flag.Changed
	}
	return cliutil.ResolveManifestPath(*c.manifestFile, changed)
}

func (c *context) loadManifest() (*config.Manifest, error) {
	return config.Load(c.manifestPath())
}
