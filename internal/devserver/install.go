package devserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/proc"
)

// install runs the install command synchronously with the configured
// timeout and records the outcome. It never returns an error.
func (r *Runner) install(ctx context.Context, report *model.Report) {
	cmd := proc.Command{Args: r.cfg.InstallCommand, Dir: r.cfg.ProjectDir}
	r.logger.Debug("Installing dependencies",
		zap.String("command", cmd.String()),
		zap.Duration("timeout", r.cfg.InstallTimeout))

	result := proc.Run(ctx, cmd, r.cfg.InstallTimeout)
	report.Install = result
	if result.Stdout != "" {
		r.logger.Debug("Install output", zap.String("stdout", result.Stdout))
	}

	if result.Succeeded() {
		report.InstallStatus = model.StepOK
		r.logger.Debug("Dependencies installed", zap.Duration("duration", result.Duration))
		return
	}

	report.InstallStatus = model.StepFailed
	r.logger.Warn("Dependency install failed",
		zap.Int("exitCode", result.ExitCode),
		zap.Bool("timedOut", result.TimedOut),
		zap.Error(result.Err))
}
