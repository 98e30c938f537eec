// Package metrics holds the Prometheus collectors of one launcher.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/revel/devproxy/events"
	"github.com/revel/devproxy/model"
)

const namespace = "devproxy"

// Metrics is a private registry so several launchers can live in one process.
type Metrics struct {
	Registry *prometheus.Registry

	ProxyRequests  *prometheus.CounterVec // by status code
	ProxyFailures  prometheus.Counter
	Injections     prometheus.Counter
	Reloads        *prometheus.CounterVec // by kind: full, style
	ReloadClients  prometheus.Gauge
	OutputBytes    *prometheus.CounterVec // by stream
	BackendExits   *prometheus.CounterVec // by exit code
	StateChanges   *prometheus.CounterVec // by target state
	WatchedChanges *prometheus.CounterVec // by change kind
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "proxy", Name: "requests_total",
			Help: "Proxied requests by response status code.",
		}, []string{"code"}),
		ProxyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "proxy", Name: "upstream_failures_total",
			Help: "Requests answered with a gateway error because the backend was unreachable.",
		}),
		Injections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "proxy", Name: "injections_total",
			Help: "HTML responses the live reload client was injected into.",
		}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "livereload", Name: "reloads_total",
			Help: "Reload notifications sent to browsers.",
		}, []string{"kind"}),
		ReloadClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "livereload", Name: "clients",
			Help: "Connected live reload clients.",
		}),
		OutputBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "output_bytes_total",
			Help: "Bytes relayed from the backend output streams.",
		}, []string{"stream"}),
		BackendExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "backend", Name: "exits_total",
			Help: "Backend process exits by exit code.",
		}, []string{"code"}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "launcher", Name: "state_changes_total",
			Help: "Launcher state transitions by target state.",
		}, []string{"state"}),
		WatchedChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "watcher", Name: "changes_total",
			Help: "Matching filesystem changes by kind.",
		}, []string{"kind"}),
	}
	m.Registry.MustRegister(
		m.ProxyRequests, m.ProxyFailures, m.Injections,
		m.Reloads, m.ReloadClients,
		m.OutputBytes, m.BackendExits, m.StateChanges, m.WatchedChanges,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Attach keeps the lifecycle collectors current from bus events.
// It returns a function that detaches them.
func (m *Metrics) Attach(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.StateChangedEvent) {
			m.StateChanges.WithLabelValues(e.To.String()).Inc()
		}),
		bus.Subscribe(func(e events.BackendExitedEvent) {
			m.BackendExits.WithLabelValues(strconv.Itoa(e.ExitCode)).Inc()
		}),
		bus.Subscribe(func(e events.ReloadBroadcastEvent) {
			m.Reloads.WithLabelValues(ReloadKind(e.Reload)).Inc()
		}),
		bus.Subscribe(func(e events.ClientConnectedEvent) {
			m.ReloadClients.Set(float64(e.Clients))
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

// ReloadKind is the label of a reload: "style" or "full".
func ReloadKind(ev model.ReloadEvent) string {
	if ev.LiveCSS {
		return "style"
	}
	return "full"
}
