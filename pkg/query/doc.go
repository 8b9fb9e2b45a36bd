// Package query holds the raw query-string handling used by the inbound filters:
// RFC 3986 re-encoding of query parameters, case-insensitive lookups and
// string-level parameter substitution that leaves untouched pairs byte-identical.
package query
