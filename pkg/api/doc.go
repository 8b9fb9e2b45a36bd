// Package api assembles the proxy: the gin engine with the global filters,
// the per-route filter chains in front of the Hydra and default upstreams,
// the health and metrics endpoints and the HTTP server lifecycle.
package api
