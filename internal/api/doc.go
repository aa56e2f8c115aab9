// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for Kubernetes health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/format and /v1/quality for synchronous content cleanup.
//   - POST /v1/posts/{id}/standardize, /v1/domains/{id}/standardize and
//     /v1/verifications to submit jobs; GET /v1/jobs/{job_id} to poll them.
//
// Every other GET is handed to the host-based blog site.
package api
