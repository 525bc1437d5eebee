// Package metrics exposes shard runtime counters as Prometheus
// metrics, scraped on demand from each shard's stats snapshot.
package metrics
