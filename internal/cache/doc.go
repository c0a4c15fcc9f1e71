// Package cache stores generated text on disk so that re-running a report
// over unchanged snippets does not pay for the same backend calls twice.
//
// Keys are built with [Key] from the provider, model, temperature and the
// full rendered prompt, then hashed with SHA-256 to form the file name.
// Entries older than the configured TTL are treated as misses and removed.
// The cache lives in $XDG_CACHE_HOME/dawn by default.
package cache
