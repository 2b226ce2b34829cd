// Package metrics provides build observability hooks for sitebuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs nil checks:
//
//	engine := site.NewEngine(registry, site.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The dev server exposes the Prometheus registry at /metrics via HTTPHandler.
package metrics
