package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	apihttp "github.com/Paintersrp/tether/internal/api/http"
	"github.com/Paintersrp/tether/internal/cliutil"
	"github.com/Paintersrp/tether/internal/config"
	"github.com/Paintersrp/tether/internal/host/headless"
	"github.com/Paintersrp/tether/internal/host/tui"
	"github.com/Paintersrp/tether/internal/logmux"
	"github.com/Paintersrp/tether/internal/runtime"
	"github.com/Paintersrp/tether/internal/supervisor"
)

// exitGrace bounds how long run waits for termination dispatch after the
// host has gone away.
const exitGrace = 5 * time.Second

const eventLogBuffer = 512

var (
	newAPIServer = apihttp.NewServer
	newRuntime   = cliutil.Runtime
)

type runHost interface {
	supervisor.Host
	Run(ctx stdcontext.Context) error
}

func newRunCmd(ctx *context) *cobra.Command {
	var (
		headlessMode bool
		apiAddr      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch the managed processes and stop them when the window closes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			rt, err := newRuntime(doc)
			if err != nil {
				return err
			}
			addr := resolveServeAddr(doc, apiAddr, cmd.Flags().Changed("api"))
			interactive := !headlessMode && supportsInteractiveOutput(cmd)
			return runSupervisor(cmd, doc, rt, addr, interactive)
		},
	}
	cmd.Flags().BoolVar(&headlessMode, "headless", false, "run without the terminal UI; SIGINT/SIGTERM close the window")
	cmd.Flags().StringVar(&apiAddr, "api", "", `address for the command surface (overrides api.addr, "off" disables)`)
	return cmd
}

func runSupervisor(cmd *cobra.Command, doc *config.Manifest, rt runtime.Runtime, addr string, interactive bool) error {
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = stdcontext.Background()
	}
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	var (
		host        runHost
		ui          *tui.UI
		events      chan<- supervisor.Event
		closeEvents func()
	)
	if interactive {
		ui = tui.New(tui.WithWindowLabel(doc.App.Window), tui.WithProcesses(doc.ProcessNames()...))
		host = ui
		events = ui.EventSink()
		// Key bindings may still invoke commands while the UI winds down,
		// so its sink stays open.
		closeEvents = func() {}
	} else {
		host = headless.New(doc.App.Window)
		logCh, flush := startEventLog(stderr)
		events = logCh
		closeEvents = flush
	}

	sup, hook, err := cliutil.NewSupervisor(doc, rt, events)
	if err != nil {
		closeEvents()
		return err
	}
	control := NewControlAPI(sup, hook, doc.Commands)
	if ui != nil {
		ui.SetCommander(control)
	}

	var listener net.Listener
	if addr != "" {
		listener, err = apihttp.Listen(addr)
		if err != nil {
			closeEvents()
			return err
		}
	}

	if err := hook.Bind(host); err != nil {
		if listener != nil {
			_ = listener.Close()
		}
		<-hook.Done()
		closeEvents()
		return err
	}

	groupCtx, cancel := stdcontext.WithCancel(runCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(groupCtx)

	g.Go(func() error {
		defer cancel()
		return host.Run(gctx)
	})

	if listener != nil {
		server, err := newAPIServer(apihttp.Config{Controller: control, Listener: listener})
		if err != nil {
			_ = listener.Close()
			cancel()
			_ = g.Wait()
			return finishRun(hook, closeEvents, stderr, err)
		}
		if !interactive {
			fmt.Fprintf(stdout, "Command surface listening on %s\n", server.Addr())
			if names := control.CommandNames(); len(names) > 0 {
				fmt.Fprintf(stdout, "Commands: %s\n", strings.Join(names, ", "))
			}
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	runErr := g.Wait()
	if errors.Is(runErr, stdcontext.Canceled) {
		runErr = nil
	}
	return finishRun(hook, closeEvents, stderr, runErr)
}

// finishRun fires the hook for hosts that went away without a close request
// and waits for termination dispatch before releasing the event sink.
func finishRun(hook *supervisor.Hook, closeEvents func(), stderr io.Writer, runErr error) error {
	hook.Shutdown()
	timer := time.NewTimer(exitGrace)
	defer timer.Stop()
	select {
	case <-hook.Done():
		closeEvents()
	case <-timer.C:
		fmt.Fprintln(stderr, "warning: termination requests still pending at exit")
	}
	return runErr
}

// startEventLog renders events as JSON lines on w. Events the writer cannot
// keep up with are summarised by the mux. The returned flush closes the
// channel and waits for pending lines.
func startEventLog(w io.Writer) (chan supervisor.Event, func()) {
	events := make(chan supervisor.Event, 256)
	mux := logmux.New(eventLogBuffer)
	mux.Add(events)

	done := make(chan struct{})
	enc := json.NewEncoder(w)
	go func() {
		defer close(done)
		for evt := range mux.Output() {
			cliutil.EncodeLogEvent(enc, w, evt)
		}
	}()
	return events, func() {
		close(events)
		mux.Close()
		<-done
	}
}

func resolveServeAddr(doc *config.Manifest, flagValue string, flagChanged bool) string {
	addr := doc.API.Addr
	if env := strings.TrimSpace(os.Getenv(EnvAPIAddr)); env != "" {
		addr = env
	}
	if flagChanged {
		addr = strings.TrimSpace(flagValue)
	}
	if strings.EqualFold(addr, "off") {
		return ""
	}
	return addr
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(int(out.Fd())) {
		return false
	}
	in, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(in.Fd()))
}
