package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll results reported by the poll loop
const (
	PollOK        = "ok"
	PollDegraded  = "degraded"
	PollDiscarded = "discarded"
)

// Collector groups the sync engine counters. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	polls      *prometheus.CounterVec
	merged     prometheus.Counter
	reconciled prometheus.Counter
	sends      *prometheus.CounterVec
	commands   *prometheus.CounterVec
	timeline   prometheus.Gauge

	// development backend
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a collector registered on its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Name:      "polls_total",
			Help:      "Fetch-page calls made by the poll loop, by result.",
		}, []string{"result"}),
		merged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Name:      "messages_merged_total",
			Help:      "Confirmed messages appended to the timeline.",
		}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Name:      "provisional_reconciled_total",
			Help:      "Provisional entries superseded by confirmed messages.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Name:      "sends_total",
			Help:      "Submitted messages, by error kind.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Name:      "commands_total",
			Help:      "Dispatched access commands, by command and error kind.",
		}, []string{"command", "result"}),
		timeline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aikoctl",
			Name:      "timeline_entries",
			Help:      "Entries currently in the timeline.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aikoctl",
			Subsystem: "devserver",
			Name:      "requests_total",
			Help:      "Webhook requests served, by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aikoctl",
			Subsystem: "devserver",
			Name:      "request_duration_seconds",
			Help:      "Webhook request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(c.polls, c.merged, c.reconciled, c.sends, c.commands, c.timeline, c.requests, c.latency)
	return c
}

// Registry exposes the underlying registry (tests, custom exporters)
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns the promhttp handler for this collector
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePoll counts one poll tick
func (c *Collector) ObservePoll(result string) {
	if c == nil {
		return
	}
	c.polls.WithLabelValues(result).Inc()
}

// ObserveMerge records the outcome of one Timeline merge
func (c *Collector) ObserveMerge(appended, reconciled, size int) {
	if c == nil {
		return
	}
	c.merged.Add(float64(appended))
	c.reconciled.Add(float64(reconciled))
	c.timeline.Set(float64(size))
}

// ObserveSend counts one submit, labelled by error kind ("ok" on success)
func (c *Collector) ObserveSend(result string) {
	if c == nil {
		return
	}
	c.sends.WithLabelValues(result).Inc()
}

// ObserveCommand counts one dispatched command
func (c *Collector) ObserveCommand(command, result string) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(command, result).Inc()
}

// ObserveRequest records one request served by the development backend
func (c *Collector) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}
