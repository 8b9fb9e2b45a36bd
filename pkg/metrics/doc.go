// Package metrics defines Prometheus metrics for the inbound proxy,
// covering allowlist refreshes, token request decisions, logout validation
// and the well-known response cache.
package metrics
