// Package model defines the domain types for the devserve CLI.
//
// All entities in this package are transient: they describe the outcome
// of a single run (install, launch, probe) and are discarded once the
// report has been printed. Nothing is persisted between runs.
package model

import (
	"fmt"
	"strings"
	"time"
)

// StepStatus represents the outcome of a single step of the start routine.
type StepStatus string

const (
	// StepOK indicates the step completed without a reported failure.
	StepOK StepStatus = "ok"

	// StepFailed indicates the step reported a failure. Step failures are
	// never fatal: the routine continues with the next step.
	StepFailed StepStatus = "failed"

	// StepSkipped indicates the step was not run (e.g., --skip-install).
	StepSkipped StepStatus = "skipped"
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// IsValid checks whether the StepStatus value is one of the
// predefined valid states.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepOK, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// ParseStepStatus converts a string to a StepStatus.
// Returns an error if the string does not match any valid status.
func ParseStepStatus(s string) (StepStatus, error) {
	status := StepStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid step status: %q (valid: ok, failed, skipped)", s)
	}
	return status, nil
}

// PackageManager identifies the JavaScript package manager used to install
// dependencies and run the dev script.
type PackageManager string

const (
	PackageManagerNPM  PackageManager = "npm"
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerPNPM PackageManager = "pnpm"
	PackageManagerBun  PackageManager = "bun"
)

// String returns the string representation of PackageManager.
func (p PackageManager) String() string {
	return string(p)
}

// IsValid checks whether the PackageManager value is a known manager.
func (p PackageManager) IsValid() bool {
	switch p {
	case PackageManagerNPM, PackageManagerYarn, PackageManagerPNPM, PackageManagerBun:
		return true
	default:
		return false
	}
}

// ParsePackageManager converts a string to a PackageManager.
// Returns an error if the string does not name a known manager.
func ParsePackageManager(s string) (PackageManager, error) {
	pm := PackageManager(strings.ToLower(strings.TrimSpace(s)))
	if !pm.IsValid() {
		return "", fmt.Errorf("invalid package manager: %q (valid: npm, yarn, pnpm, bun)", s)
	}
	return pm, nil
}

// InstallArgs returns the command line that installs dependencies.
func (p PackageManager) InstallArgs() []string {
	return []string{p.String(), "install"}
}

// DevArgs returns the command line that runs the given package.json script.
// All supported managers accept "<pm> run <script>".
func (p PackageManager) DevArgs(script string) []string {
	return []string{p.String(), "run", script}
}

// CommandResult holds the outcome of a synchronous external command.
// It is produced by proc.Run and discarded after the report is printed.
type CommandResult struct {
	// Args is the full command line, program name first.
	Args []string `json:"args"`

	// Dir is the working directory the command ran in.
	Dir string `json:"dir"`

	// ExitCode is the process exit status. -1 if the process never
	// produced one (binary not found, killed by timeout).
	ExitCode int `json:"exitCode"`

	// Stderr is the captured standard error text, trimmed.
	Stderr string `json:"stderr,omitempty"`

	// Stdout is the captured standard output, trimmed. It only feeds the
	// verbose log and is left out of the JSON report.
	Stdout string `json:"-"`

	// TimedOut is true when the command was killed because it exceeded
	// its timeout.
	TimedOut bool `json:"timedOut,omitempty"`

	// Duration is the wall-clock time the command ran for.
	Duration time.Duration `json:"duration"`

	// Err is the underlying error from os/exec, if any.
	Err error `json:"-"`
}

// Succeeded reports whether the command exited with status 0.
func (r *CommandResult) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.TimedOut
}

// FailureText returns the most useful description of a failure:
// the stderr text when there is one, otherwise the underlying error.
func (r *CommandResult) FailureText() string {
	switch {
	case r.TimedOut:
		return fmt.Sprintf("timed out after %s", r.Duration.Round(time.Millisecond))
	case r.Stderr != "":
		return r.Stderr
	case r.Err != nil:
		return r.Err.Error()
	case r.ExitCode != 0:
		return fmt.Sprintf("exit status %d", r.ExitCode)
	default:
		return ""
	}
}

// CommandLine joins Args for display.
func (r *CommandResult) CommandLine() string {
	return strings.Join(r.Args, " ")
}

// LaunchResult holds the outcome of starting the dev server in the
// background. A successful launch only means the detached process was
// started and did not fail inside the grace window; it says nothing about
// whether the server is ready.
type LaunchResult struct {
	// Args is the dev server command line.
	Args []string `json:"args"`

	// LogFile is the absolute path that receives stdout and stderr.
	LogFile string `json:"logFile"`

	// PID is the process id of the started process. 0 if it never started.
	PID int `json:"pid,omitempty"`

	// Exited is true when the process exited inside the grace window.
	Exited bool `json:"exited,omitempty"`

	// ExitCode is the exit status when Exited is true, otherwise 0.
	ExitCode int `json:"exitCode,omitempty"`

	// Err is the start or wait error, if any.
	Err error `json:"-"`
}

// Succeeded reports whether the launch is considered clean.
func (r *LaunchResult) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0
}

// PortOwner describes the process (and optionally the container) that
// holds the probed port.
type PortOwner struct {
	// PID is the owning process id. 0 when the OS did not disclose it,
	// which is common for sockets owned by other users.
	PID int32 `json:"pid"`

	// ProcessName is the executable name resolved from PID. Empty when it
	// could not be resolved.
	ProcessName string `json:"processName,omitempty"`

	// ContainerName is the Docker container that publishes the port, when
	// the owning process is a Docker port proxy.
	ContainerName string `json:"containerName,omitempty"`

	// LocalAddress is the bound address, e.g. "127.0.0.1:3000" or ":::3000".
	LocalAddress string `json:"localAddress"`

	// State is the socket state reported by the OS (e.g., "LISTEN").
	State string `json:"state,omitempty"`
}

// String returns a human-readable description of the owner.
func (o *PortOwner) String() string {
	var b strings.Builder
	if o.PID > 0 {
		fmt.Fprintf(&b, "pid %d", o.PID)
	} else {
		b.WriteString("pid unknown")
	}
	if o.ProcessName != "" {
		fmt.Fprintf(&b, " (%s)", o.ProcessName)
	}
	if o.ContainerName != "" {
		fmt.Fprintf(&b, ", container %s", o.ContainerName)
	}
	return b.String()
}

// ProbeResult is a single point-in-time observation of the server port.
type ProbeResult struct {
	// Port is the probed TCP port.
	Port int `json:"port"`

	// Bound is true if any connection in the snapshot had Port as its
	// local port.
	Bound bool `json:"bound"`

	// Owner is non-nil only when Bound is true.
	Owner *PortOwner `json:"owner,omitempty"`
}

// Report is the aggregate outcome of a start run. It is built by the
// devserver runner and rendered by the CLI reporter.
type Report struct {
	ProjectDir     string         `json:"projectDir"`
	URL            string         `json:"url"`
	LogFile        string         `json:"logFile"`
	PackageManager PackageManager `json:"packageManager"`

	InstallStatus StepStatus     `json:"installStatus"`
	Install       *CommandResult `json:"install,omitempty"`

	LaunchStatus StepStatus    `json:"launchStatus"`
	Launch       *LaunchResult `json:"launch,omitempty"`

	Probe *ProbeResult `json:"probe,omitempty"`

	// Warnings collects non-fatal observations (missing dev script,
	// port already taken before launch, ...).
	Warnings []string `json:"warnings,omitempty"`

	// Success is false only when a fatal error aborted the routine.
	Success bool `json:"success"`
}

// AddWarning appends a formatted warning to the report.
func (r *Report) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ExitCode defines the CLI exit codes. The start routine only
// distinguishes success from failure; no code is tied to a particular step.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates the routine was aborted by a fatal error.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the configuration could not be loaded
	// or failed validation. No step was run.
	ExitConfigInvalid ExitCode = 2
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
