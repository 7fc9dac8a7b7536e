// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for harvest progress reporting.
//   - GET /v1/ids for the discovered registration ID list.
package api
