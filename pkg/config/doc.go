// Package config loads the proxy configuration from a YAML file, fills in
// defaults for omitted keys and validates the result.
package config
