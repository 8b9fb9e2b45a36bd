// Package wellknown caches upstream responses for OpenID Connect discovery
// documents (the /.well-known paths). Only GET responses with status 200, 206
// or 301 and without a Vary header are stored; query strings and credential
// headers never take part in the cache key.
package wellknown
