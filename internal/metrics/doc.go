// Package metrics records Prometheus metrics for a siteharvest run.
//
// A Metrics value owns its registry, so every run starts from zero. It
// implements crawler.Observer and is fed the final report; the collected
// series are written once at the end of the run in the node_exporter
// textfile format.
package metrics
