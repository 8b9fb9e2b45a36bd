// Package filter contains the gin middlewares that validate and rewrite
// inbound requests before they are proxied: request body buffering, token
// request IP policy, logout claim validation and query normalization.
package filter
