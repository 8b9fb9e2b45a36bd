// Package allowlist keeps the per-client source IP allowlist used by the token
// request guard. The active snapshot is immutable and swapped atomically; a
// cron-driven refresher fetches new snapshots from the admin service and
// persists them to a single JSON file that is read back on startup.
package allowlist
