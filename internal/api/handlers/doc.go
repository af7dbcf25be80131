// Package handlers implements the service-mode HTTP API of tap-paypal.
//
// The probes (/healthz, /readyz) are plain echo handlers so they stay out of
// the OpenAPI document. Everything under /api/v1 is registered through huma:
// sync triggers, the replication bookmark, run history and, when the
// postgres sink is enabled, the stored invoice rows.
package handlers
