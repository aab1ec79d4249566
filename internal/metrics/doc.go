// Package metrics provides Prometheus metrics for the access layer: opens
// per search tier and backend, transferred bytes, resolution misses, and
// operation errors. The collector runs on a private registry and can expose
// an HTTP endpoint for scraping.
package metrics
