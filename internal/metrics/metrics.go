package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for launch and termination counters.
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
	ResultAbsent  = "absent"
)

var (
	registry = prometheus.NewRegistry()

	processRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tether",
		Name:      "process_running",
		Help:      "Believed state of managed processes (1=running, 0=not started).",
	}, []string{"process"})

	launches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tether",
		Name:      "process_launches_total",
		Help:      "Launch requests per managed process by result.",
	}, []string{"process", "result"})

	terminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tether",
		Name:      "process_terminations_total",
		Help:      "Termination requests per managed process by result.",
	}, []string{"process", "result"})

	hookFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tether",
		Name:      "shutdown_hook_fired_total",
		Help:      "Number of times the window close hook stopped managed processes.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tether",
		Name:      "build_info",
		Help:      "Build metadata for the running tether binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(processRunning, launches, terminations, hookFired, buildInfo)
}

// Registry returns the Prometheus registry containing all tether metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetProcessRunning records whether a process is believed to be running.
func SetProcessRunning(process string, running bool) {
	if process == "" {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	processRunning.WithLabelValues(process).Set(value)
}

// ObserveLaunch counts a launch request with its result.
func ObserveLaunch(process, result string) {
	if process == "" {
		return
	}
	launches.WithLabelValues(process, result).Inc()
}

// ObserveTermination counts a termination request with its result.
func ObserveTermination(process, result string) {
	if process == "" {
		return
	}
	terminations.WithLabelValues(process, result).Inc()
}

// IncrementHookFired counts a shutdown hook firing.
func IncrementHookFired() {
	hookFired.Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetProcess clears all series for a process.
func ResetProcess(process string) {
	if process == "" {
		return
	}
	processRunning.DeleteLabelValues(process)
	launches.DeletePartialMatch(prometheus.Labels{"process": process})
	terminations.DeletePartialMatch(prometheus.Labels{"process": process})
}
