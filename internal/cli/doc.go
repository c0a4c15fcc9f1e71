// Package cli wires together the Cobra command tree for the dawn binary.
//
// It defines the root command and all subcommands (report, serve, config,
// models, cache, history, version), binds flags, reads configuration, runs
// the report pipeline, and maps failures to deterministic exit codes.
package cli
