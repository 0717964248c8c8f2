package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/proc"
)

// fallbackPortSearch is how many ports above the configured one are tried
// when suggesting where a dev server will move to.
const fallbackPortSearch = 20

// launch starts the dev server detached, with output in the log file.
//
// Creating the log directory or file is the only fatal failure: the
// server cannot be launched into a log that does not exist. A start
// failure or an early non-zero exit is recorded as a failed step.
func (r *Runner) launch(ctx context.Context, report *model.Report) error {
	logPath := r.cfg.LogFilePath()

	// The directory must exist before the server is started into it.
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		report.LaunchStatus = model.StepFailed
		return model.WrapCLIError(model.ExitGeneralError, "failed to create log directory", err)
	}

	// O_TRUNC: each launch starts a fresh log, like a shell "> file" redirect.
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		report.LaunchStatus = model.StepFailed
		return model.WrapCLIError(model.ExitGeneralError, "failed to open log file", err)
	}
	defer func() { _ = logFile.Close() }()

	r.warnIfPortTaken(report)

	cmd := proc.Command{Args: r.cfg.DevCommand, Dir: r.cfg.ProjectDir}
	r.logger.Debug("Launching dev server",
		zap.String("command", cmd.String()),
		zap.String("logFile", logPath))

	result := proc.StartDetached(ctx, cmd, logFile, r.cfg.LaunchGrace)
	result.LogFile = logPath
	report.Launch = result

	if result.Succeeded() {
		report.LaunchStatus = model.StepOK
		r.logger.Debug("Dev server started", zap.Int("pid", result.PID), zap.Bool("exited", result.Exited))
		return nil
	}

	report.LaunchStatus = model.StepFailed
	r.logger.Warn("Dev server launch failed",
		zap.Int("pid", result.PID),
		zap.Int("exitCode", result.ExitCode),
		zap.Error(result.Err))
	return nil
}

// warnIfPortTaken adds a warning when the configured port cannot be bound
// before launch, naming the port the server will likely move to.
func (r *Runner) warnIfPortTaken(report *model.Report) {
	p := r.cfg.Port
	if r.scanner.IsPortAvailable(p, "tcp") {
		return
	}

	msg := fmt.Sprintf("port %d is already in use before launch", p)
	end := p + fallbackPortSearch
	if end > 65535 {
		end = 65535
	}
	if p < 65535 {
		if next, err := r.scanner.FindAvailablePort(p+1, end, "tcp"); err == nil {
			msg += fmt.Sprintf("; the dev server may start on port %d instead", next)
		}
	}
	report.AddWarning("%s", msg)
	r.logger.Debug("Port already taken before launch", zap.Int("port", p))
}
