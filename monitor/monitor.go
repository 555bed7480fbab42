// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	LocalPlayers       prometheus.Gauge
	RemotePlayers      prometheus.Gauge
	ActiveWorlds       prometheus.Gauge
	EventsReceived     prometheus.Counter
	BusPublishFailures prometheus.Counter
	DispatchLatency    prometheus.Histogram
}

// NewMetrics registers on its own registry so several instances can coexist
// in one process (tests run two servers side by side).
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		LocalPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "local_players",
			Help:      "Sessions with a live socket on this instance",
		}),
		RemotePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_players",
			Help:      "Sessions mirrored from peer instances",
		}),
		ActiveWorlds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_worlds",
			Help:      "World rooms held in memory",
		}),
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Envelopes dispatched, socket and bus origin combined",
		}),
		BusPublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_publish_failures_total",
			Help:      "Events dropped because the bus publish failed",
		}),
		DispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Envelope processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.LocalPlayers,
		m.RemotePlayers,
		m.ActiveWorlds,
		m.EventsReceived,
		m.BusPublishFailures,
		m.DispatchLatency,
	)

	return m
}

type Monitor struct {
	metrics    *Metrics
	registry   *prometheus.Registry
	startTime  time.Time
	eventCount int64
	mutex      sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

// Handler serves the prometheus exposition for this instance's registry.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	expvar.Publish("events", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.eventCount
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) SetLocalPlayers(count int) {
	m.metrics.LocalPlayers.Set(float64(count))
}

func (m *Monitor) SetRemotePlayers(count int) {
	m.metrics.RemotePlayers.Set(float64(count))
}

func (m *Monitor) SetActiveWorlds(count int) {
	m.metrics.ActiveWorlds.Set(float64(count))
}

func (m *Monitor) IncEventsReceived() {
	m.metrics.EventsReceived.Inc()
	m.mutex.Lock()
	m.eventCount++
	m.mutex.Unlock()
}

func (m *Monitor) IncBusPublishFailures() {
	m.metrics.BusPublishFailures.Inc()
}

func (m *Monitor) ObserveDispatchLatency(duration time.Duration) {
	m.metrics.DispatchLatency.Observe(duration.Seconds())
}
