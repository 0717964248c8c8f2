// Package model defines the domain types and value objects for the
// devserve CLI.
//
// This package contains pure data structures with no external dependencies.
// The entities (CommandResult, LaunchResult, ProbeResult, Report) describe a
// single run and are never persisted.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
