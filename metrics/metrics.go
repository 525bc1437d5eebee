package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/shard-runtime/shard"
)

// RuntimeCollector exposes per-shard runtime counters to Prometheus.
// It reads shard stats at scrape time, so collecting never touches the
// shards' hot path.
type RuntimeCollector struct {
	rt *shard.Runtime

	shards        *prometheus.Desc
	tasksExecuted *prometheus.Desc
	tasksFailed   *prometheus.Desc
	crossSubmits  *prometheus.Desc
	queueDepth    *prometheus.Desc
}

// NewRuntimeCollector creates a collector over rt.
func NewRuntimeCollector(rt *shard.Runtime) *RuntimeCollector {
	return &RuntimeCollector{
		rt: rt,
		shards: prometheus.NewDesc(
			"runtime_shards",
			"Number of shards in the runtime",
			nil, nil,
		),
		tasksExecuted: prometheus.NewDesc(
			"runtime_shard_tasks_executed_total",
			"Total number of tasks executed on a shard",
			[]string{"shard"}, nil,
		),
		tasksFailed: prometheus.NewDesc(
			"runtime_shard_tasks_failed_total",
			"Total number of tasks that panicked on a shard",
			[]string{"shard"}, nil,
		),
		crossSubmits: prometheus.NewDesc(
			"runtime_shard_submits_total",
			"Total number of tasks submitted to a shard from outside it",
			[]string{"shard"}, nil,
		),
		queueDepth: prometheus.NewDesc(
			"runtime_shard_queue_depth",
			"Current number of queued tasks on a shard",
			[]string{"shard"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.shards
	ch <- c.tasksExecuted
	ch <- c.tasksFailed
	ch <- c.crossSubmits
	ch <- c.queueDepth
}

// Collect implements prometheus.Collector.
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.shards, prometheus.GaugeValue, float64(c.rt.Count()))

	for i := 0; i < c.rt.Count(); i++ {
		s, err := c.rt.Shard(i)
		if err != nil {
			continue
		}
		stats := s.Stats()
		label := strconv.Itoa(i)

		ch <- prometheus.MustNewConstMetric(c.tasksExecuted, prometheus.CounterValue, float64(stats.TasksExecuted), label)
		ch <- prometheus.MustNewConstMetric(c.tasksFailed, prometheus.CounterValue, float64(stats.TasksFailed), label)
		ch <- prometheus.MustNewConstMetric(c.crossSubmits, prometheus.CounterValue, float64(stats.CrossSubmits), label)
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.QueueDepth), label)
	}
}

// Register registers a runtime collector with the default registry.
func Register(rt *shard.Runtime) error {
	return prometheus.Register(NewRuntimeCollector(rt))
}

// Handler returns the scrape endpoint handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer exposes /metrics on the given port.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
