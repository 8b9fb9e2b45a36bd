// Package cli defines the command line flags of the inproxy binary and their
// environment variable fallbacks.
package cli
