package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseStepStatus verifies string-to-status conversion,
// including case normalization and error cases.
func TestParseStepStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected StepStatus
		hasError bool
	}{
		{"ok", StepOK, false},
		{"failed", StepFailed, false},
		{"skipped", StepSkipped, false},
		{"FAILED", StepFailed, false}, // case insensitive
		{"running", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseStepStatus(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestParsePackageManager checks that only known managers are accepted.
func TestParsePackageManager(t *testing.T) {
	pm, err := ParsePackageManager(" PNPM ")
	require.NoError(t, err)
	assert.Equal(t, PackageManagerPNPM, pm)

	_, err = ParsePackageManager("maven")
	assert.Error(t, err)
}

func TestPackageManager_Args(t *testing.T) {
	assert.Equal(t, []string{"yarn", "install"}, PackageManagerYarn.InstallArgs())
	assert.Equal(t, []string{"npm", "run", "dev"}, PackageManagerNPM.DevArgs("dev"))
}

// TestCommandResult_FailureText verifies the precedence used when
// describing a failed command: timeout, then stderr, then the Go error.
func TestCommandResult_FailureText(t *testing.T) {
	tests := []struct {
		name   string
		result CommandResult
		want   string
	}{
		{
			name:   "success has no failure text",
			result: CommandResult{ExitCode: 0},
			want:   "",
		},
		{
			name:   "stderr wins over error",
			result: CommandResult{ExitCode: 1, Stderr: "ERESOLVE", Err: errors.New("exit status 1")},
			want:   "ERESOLVE",
		},
		{
			name:   "error used when stderr empty",
			result: CommandResult{ExitCode: -1, Err: errors.New(`exec: "npm": executable file not found in $PATH`)},
			want:   `exec: "npm": executable file not found in $PATH`,
		},
		{
			name:   "timeout",
			result: CommandResult{ExitCode: -1, TimedOut: true, Duration: 1500 * time.Millisecond, Stderr: "partial"},
			want:   "timed out after 1.5s",
		},
		{
			name:   "bare exit code",
			result: CommandResult{ExitCode: 3},
			want:   "exit status 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.FailureText())
		})
	}
}

func TestCommandResult_Succeeded(t *testing.T) {
	assert.True(t, (&CommandResult{ExitCode: 0}).Succeeded())
	assert.False(t, (&CommandResult{ExitCode: 2}).Succeeded())
	assert.False(t, (&CommandResult{ExitCode: 0, TimedOut: true}).Succeeded())
	assert.False(t, (&CommandResult{ExitCode: -1, Err: errors.New("boom")}).Succeeded())
}

// TestPortOwner_String checks that the owner is described by pid and
// name, never by the pid twice.
func TestPortOwner_String(t *testing.T) {
	tests := []struct {
		name  string
		owner PortOwner
		want  string
	}{
		{"pid and name", PortOwner{PID: 4242, ProcessName: "node"}, "pid 4242 (node)"},
		{"unknown pid", PortOwner{}, "pid unknown"},
		{"container", PortOwner{PID: 77, ProcessName: "docker-proxy", ContainerName: "web-1"}, "pid 77 (docker-proxy), container web-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.owner.String())
		})
	}
}

func TestReport_AddWarning(t *testing.T) {
	r := &Report{}
	r.AddWarning("port %d already in use", 3000)
	assert.Equal(t, []string{"port 3000 already in use"}, r.Warnings)
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitConfigInvalid, "invalid port")
		assert.Equal(t, ExitConfigInvalid, err.Code)
		assert.Equal(t, "invalid port", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("permission denied")
		err := WrapCLIError(ExitGeneralError, "failed to create log directory", inner)
		assert.Equal(t, ExitGeneralError, err.Code)
		assert.Contains(t, err.Error(), "permission denied")
		assert.Equal(t, inner, err.Unwrap())
	})

	t.Run("errors.Is chain", func(t *testing.T) {
		inner := errors.New("permission denied")
		err := WrapCLIError(ExitGeneralError, "failed to create log directory", inner)
		assert.True(t, errors.Is(err, inner))
	})
}
