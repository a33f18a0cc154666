package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/tether/internal/supervisor"
)

func newStatusCmd(ctx *context) *cobra.Command {
	var (
		apiAddr string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the managed processes of a running tether",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(ctx.clientAddr(apiAddr))
			if err != nil {
				return err
			}
			report, err := client.Processes(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROCESS\tIMAGE\tSTATE\tPID\tREQUIRED\tSINCE")
			for _, proc := range report.Processes {
				pid := "-"
				if proc.PID > 0 {
					pid = strconv.Itoa(proc.PID)
				}
				required := "No"
				if proc.Required {
					required = "Yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					proc.Name, proc.Image, formatProcessState(proc), pid, required, formatSince(proc.Since))
			}
			w.Flush()
			if report.Hook != "" {
				fmt.Fprintf(out, "\nShutdown hook: %s\n", report.Hook)
			}
			if report.RunID != "" {
				fmt.Fprintf(out, "Run: %s\n", report.RunID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "", "address of the running tether command surface")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw report as JSON")
	return cmd
}

func formatProcessState(proc supervisor.ProcessStatus) string {
	switch {
	case proc.State == supervisor.StateRunning && proc.Exited:
		return "Running (exited)"
	case proc.State == supervisor.StateRunning:
		return "Running"
	default:
		return "Not started"
	}
}

func formatSince(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	age := time.Since(ts)
	if age < 0 {
		age = 0
	}
	return units.HumanDuration(age) + " ago"
}
