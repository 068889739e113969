// Package metrics owns the prometheus collectors of one server instance.
// Collectors are registered on a private registry rather than the global
// default so that several servers can run side by side in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors groups the server metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	CommandsTotal       *prometheus.CounterVec
	RepliesTotal        prometheus.Counter
	RegisteredUsers     prometheus.Gauge
}

// New creates the collectors and registers them with Go runtime metrics.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gochat_connections_accepted_total",
			Help: "Total number of accepted client and server connections",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gochat_connections_active",
			Help: "Number of connections currently open",
		}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gochat_commands_total",
			Help: "Total number of dispatched commands by command name",
		}, []string{"command"}),
		RepliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gochat_replies_total",
			Help: "Total number of reply lines written to transports",
		}),
		RegisteredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gochat_registered_users",
			Help: "Number of users in the registry",
		}),
	}
	c.registry.MustRegister(
		c.ConnectionsAccepted,
		c.ConnectionsActive,
		c.CommandsTotal,
		c.RepliesTotal,
		c.RegisteredUsers,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry returns the underlying prometheus registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RegisterDispatchLatency exposes fn, the mean dispatch time in seconds, as a gauge.
func (c *Collectors) RegisterDispatchLatency(fn func() float64) error {
	if c == nil {
		return nil
	}
	return c.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gochat_dispatch_latency_mean_seconds",
		Help: "Mean command dispatch time over the sliding sample window",
	}, fn))
}

// RecordCommand counts one dispatched command.
func (c *Collectors) RecordCommand(command string) {
	if c == nil {
		return
	}
	c.CommandsTotal.WithLabelValues(command).Inc()
}

// RecordReply counts one written reply line.
func (c *Collectors) RecordReply() {
	if c == nil {
		return
	}
	c.RepliesTotal.Inc()
}

// ConnectionOpened records an accepted connection.
func (c *Collectors) ConnectionOpened() {
	if c == nil {
		return
	}
	c.ConnectionsAccepted.Inc()
	c.ConnectionsActive.Inc()
}

// ConnectionClosed records a released connection.
func (c *Collectors) ConnectionClosed() {
	if c == nil {
		return
	}
	c.ConnectionsActive.Dec()
}

// SetRegisteredUsers publishes the current user count.
func (c *Collectors) SetRegisteredUsers(n int) {
	if c == nil {
		return
	}
	c.RegisteredUsers.Set(float64(n))
}
