//go:build !windows

package devserver

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mmr-tortoise/devserve/internal/config"
	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/port"
)

// fakeProber records calls and returns a canned result.
type fakeProber struct {
	result *model.ProbeResult
	err    error
	calls  int
	panics bool
}

func (f *fakeProber) Probe(ctx context.Context, p int) (*model.ProbeResult, error) {
	f.calls++
	if f.panics {
		panic("netstat parser exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &model.ProbeResult{Port: p}, nil
}

// testConfig returns a validated config whose commands are shell snippets.
func testConfig(t *testing.T, install, dev string) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.PackageManager = "npm"
	cfg.Port = freePort(t)
	cfg.LogFile = filepath.Join("logs", "vite.log")
	cfg.InstallCommand = []string{"sh", "-c", install}
	cfg.DevCommand = []string{"sh", "-c", dev}
	cfg.InstallTimeout = 5 * time.Second
	cfg.LaunchGrace = 300 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return p
}

func TestRun_AllStepsSucceed(t *testing.T) {
	cfg := testConfig(t, "exit 0", "echo listening; sleep 5")
	prober := &fakeProber{result: &model.ProbeResult{
		Port:  cfg.Port,
		Bound: true,
		Owner: &model.PortOwner{PID: 4242, ProcessName: "node"},
	}}
	r := NewRunner(cfg, prober, nil)

	report, err := r.Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, model.StepOK, report.InstallStatus)
	assert.Equal(t, model.StepOK, report.LaunchStatus)
	require.NotNil(t, report.Launch)
	assert.Positive(t, report.Launch.PID)
	assert.Equal(t, cfg.LogFilePath(), report.Launch.LogFile)
	require.NotNil(t, report.Probe)
	assert.True(t, report.Probe.Bound)
	assert.Equal(t, int32(4242), report.Probe.Owner.PID)
	assert.Equal(t, 1, prober.calls)
	assert.Equal(t, "http://localhost:"+strconv.Itoa(cfg.Port), report.URL)

	// Output of the detached process lands in the log file.
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(cfg.LogFilePath())
		return err == nil && string(data) == "listening\n"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRun_InstallOutputLoggedAtDebug(t *testing.T) {
	tests := []struct {
		name    string
		install string
		want    string
	}{
		{"success", "echo 'added 212 packages in 3s'", "added 212 packages in 3s"},
		{"failure", "echo 'resolving tree'; echo 'ERESOLVE' >&2; exit 1", "resolving tree"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			cfg := testConfig(t, tt.install, "sleep 5")
			r := NewRunner(cfg, &fakeProber{}, zap.New(core))

			report, err := r.Run(context.Background(), nil, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Install.Stdout)

			entries := logs.FilterMessage("Install output").AllUntimed()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
			assert.Equal(t, tt.want, entries[0].ContextMap()["stdout"])
		})
	}
}

func TestRun_CreatesLogDirectory(t *testing.T) {
	cfg := testConfig(t, "exit 0", "exit 0")
	cfg.LogFile = filepath.Join("deep", "nested", "logs", "vite.log")

	_, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(cfg.ProjectDir, "deep", "nested", "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.FileExists(t, cfg.LogFilePath())
}

func TestRun_TruncatesPreviousLog(t *testing.T) {
	cfg := testConfig(t, "exit 0", "echo new")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.LogFilePath()), 0755))
	require.NoError(t, os.WriteFile(cfg.LogFilePath(), []byte("old output from an earlier run\n"), 0644))

	_, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(cfg.LogFilePath())
		return err == nil && string(data) == "new\n"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRun_InstallFailureDoesNotStopLaunch(t *testing.T) {
	cfg := testConfig(t, "echo 'ERESOLVE unable to resolve' >&2; exit 1", "sleep 5")
	prober := &fakeProber{}

	report, err := NewRunner(cfg, prober, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, model.StepFailed, report.InstallStatus)
	require.NotNil(t, report.Install)
	assert.Equal(t, 1, report.Install.ExitCode)
	assert.Contains(t, report.Install.FailureText(), "ERESOLVE")

	assert.Equal(t, model.StepOK, report.LaunchStatus)
	assert.Equal(t, 1, prober.calls)
}

func TestRun_InstallTimeout(t *testing.T) {
	cfg := testConfig(t, "sleep 30", "sleep 5")
	cfg.InstallTimeout = 200 * time.Millisecond

	report, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StepFailed, report.InstallStatus)
	assert.True(t, report.Install.TimedOut)
	assert.Equal(t, model.StepOK, report.LaunchStatus)
}

func TestRun_SkipInstall(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "installed")
	cfg := testConfig(t, "touch "+marker, "sleep 5")

	report, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{SkipInstall: true})
	require.NoError(t, err)

	assert.Equal(t, model.StepSkipped, report.InstallStatus)
	assert.Nil(t, report.Install)
	assert.NoFileExists(t, marker)
}

func TestRun_BothStepsFailStillReports(t *testing.T) {
	cfg := testConfig(t, "exit 2", "echo 'vite: not found' >&2; exit 127")
	prober := &fakeProber{}

	report, err := NewRunner(cfg, prober, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, model.StepFailed, report.InstallStatus)
	assert.Equal(t, model.StepFailed, report.LaunchStatus)
	assert.True(t, report.Launch.Exited)
	assert.Equal(t, 127, report.Launch.ExitCode)

	// The port is still checked once.
	assert.Equal(t, 1, prober.calls)
	require.NotNil(t, report.Probe)
	assert.False(t, report.Probe.Bound)

	data, err := os.ReadFile(cfg.LogFilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "vite: not found")
}

func TestRun_LaunchBinaryMissing(t *testing.T) {
	cfg := testConfig(t, "exit 0", "")
	cfg.DevCommand = []string{"devserve-test-binary-that-does-not-exist"}

	report, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StepFailed, report.LaunchStatus)
	assert.Zero(t, report.Launch.PID)
	assert.Error(t, report.Launch.Err)
}

func TestRun_LogDirectoryUnavailableIsFatal(t *testing.T) {
	cfg := testConfig(t, "exit 0", "sleep 5")
	// A regular file where the log directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ProjectDir, "logs"), []byte("x"), 0644))
	prober := &fakeProber{}

	report, err := NewRunner(cfg, prober, nil).Run(context.Background(), nil, Options{})
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Contains(t, cliErr.Message, "log directory")

	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, model.StepOK, report.InstallStatus)
	assert.Equal(t, model.StepFailed, report.LaunchStatus)
	assert.Nil(t, report.Launch)
	assert.Zero(t, prober.calls)
}

func TestRun_ProbeErrorIsFatal(t *testing.T) {
	cfg := testConfig(t, "exit 0", "sleep 5")
	prober := &fakeProber{err: errors.New("permission denied")}

	report, err := NewRunner(cfg, prober, nil).Run(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port check failed")
	assert.False(t, report.Success)
	assert.Equal(t, model.StepOK, report.LaunchStatus)
	assert.Nil(t, report.Probe)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	cfg := testConfig(t, "exit 0", "sleep 5")

	report, err := NewRunner(cfg, &fakeProber{panics: true}, nil).Run(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netstat parser exploded")

	// Steps completed before the panic are still in the report.
	require.NotNil(t, report)
	assert.False(t, report.Success)
	assert.Equal(t, model.StepOK, report.InstallStatus)
	assert.Equal(t, model.StepOK, report.LaunchStatus)
	assert.Nil(t, report.Probe)
}

func TestRun_PanicKeepsCallerReport(t *testing.T) {
	cfg := testConfig(t, "exit 0", "exit 0")
	r := NewRunner(cfg, &fakeProber{panics: true}, nil)

	report := r.NewReport()
	report.AddWarning("no package.json in %s", cfg.ProjectDir)

	got, err := r.Run(context.Background(), report, Options{SkipInstall: true})
	require.Error(t, err)
	assert.Same(t, report, got)
	assert.Len(t, got.Warnings, 1)
}

func TestRun_CancelledContext(t *testing.T) {
	cfg := testConfig(t, "exit 0", "sleep 5")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prober := &fakeProber{}

	report, err := NewRunner(cfg, prober, nil).Run(ctx, nil, Options{SkipInstall: true})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, report.Success)
	assert.Zero(t, prober.calls)
}

func TestRun_KeepsCallerWarnings(t *testing.T) {
	cfg := testConfig(t, "exit 0", "exit 0")
	r := NewRunner(cfg, &fakeProber{}, nil)

	report := r.NewReport()
	report.AddWarning("no %q script in package.json", "dev")

	got, err := r.Run(context.Background(), report, Options{})
	require.NoError(t, err)
	assert.Same(t, report, got)
	assert.Equal(t, []string{`no "dev" script in package.json`}, got.Warnings)
}

func TestRun_WarnsWhenPortTakenBeforeLaunch(t *testing.T) {
	cfg := testConfig(t, "exit 0", "exit 0")

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	cfg.Port = l.Addr().(*net.TCPAddr).Port

	report, err := NewRunner(cfg, &fakeProber{}, nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)

	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "already in use")
}

func TestRun_WithRealProber(t *testing.T) {
	if _, err := (port.SystemTable{}).Connections(context.Background()); err != nil {
		t.Skipf("connection table not readable here: %v", err)
	}
	cfg := testConfig(t, "exit 0", "exit 0")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	cfg.Port = l.Addr().(*net.TCPAddr).Port

	report, err := NewRunner(cfg, port.NewProber(), nil).Run(context.Background(), nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, report.Probe)
	assert.True(t, report.Probe.Bound)
}

func TestNewReport(t *testing.T) {
	cfg := testConfig(t, "exit 0", "exit 0")
	cfg.PackageManager = "pnpm"

	report := NewRunner(cfg, &fakeProber{}, nil).NewReport()
	assert.Equal(t, cfg.ProjectDir, report.ProjectDir)
	assert.Equal(t, cfg.LogFilePath(), report.LogFile)
	assert.Equal(t, model.PackageManagerPNPM, report.PackageManager)
	assert.Equal(t, model.StepSkipped, report.InstallStatus)
	assert.Equal(t, model.StepSkipped, report.LaunchStatus)
}
