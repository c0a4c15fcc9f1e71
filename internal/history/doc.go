// Package history keeps a SQLite log of report runs: when they ran, which
// backend and model answered, how many calls were made and where the report
// went. It uses the pure-Go modernc.org/sqlite driver.
package history
