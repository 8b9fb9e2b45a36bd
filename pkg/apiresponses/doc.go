// Package apiresponses renders the OAuth2-style error responses produced by
// the inbound filters: JSON bodies for the token endpoint and redirects to
// the error page for browser-facing endpoints.
package apiresponses
