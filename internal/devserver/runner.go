// Package devserver implements the start routine: install dependencies,
// launch the dev server in the background, probe its port once.
//
// The steps run in a fixed order and none is gated on the success of the
// previous one. Step failures are recorded in the report; only conditions
// that make the routine itself impossible to continue (the log file cannot
// be created, the connection table cannot be read, a panic) are returned as
// errors.
package devserver

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/devserve/internal/config"
	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/port"
)

// Prober is the port probing step.
type Prober interface {
	Probe(ctx context.Context, port int) (*model.ProbeResult, error)
}

// Options selects which steps run.
type Options struct {
	// SkipInstall marks the install step as skipped.
	SkipInstall bool
}

// Runner executes the start routine for one configuration.
type Runner struct {
	cfg     *config.Config
	pm      model.PackageManager
	prober  Prober
	scanner *port.Scanner
	logger  *zap.Logger
}

// NewRunner creates a Runner. cfg must already be validated. A nil logger
// is replaced by a no-op logger.
func NewRunner(cfg *config.Config, prober Prober, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	pm, err := model.ParsePackageManager(cfg.PackageManager)
	if err != nil {
		pm = model.PackageManagerNPM
	}
	return &Runner{
		cfg:     cfg,
		pm:      pm,
		prober:  prober,
		scanner: port.NewScanner(),
		logger:  logger,
	}
}

// NewReport returns a report pre-filled with the run's static facts.
// Callers may attach warnings (e.g. from project detection) before Run.
func (r *Runner) NewReport() *model.Report {
	return &model.Report{
		ProjectDir:     r.cfg.ProjectDir,
		URL:            r.cfg.URL(),
		LogFile:        r.cfg.LogFilePath(),
		PackageManager: r.pm,
		InstallStatus:  model.StepSkipped,
		LaunchStatus:   model.StepSkipped,
	}
}

// Run executes install, launch and probe, filling report as it goes.
// The report is always returned, even when err is non-nil, so the caller
// can show how far the routine got.
//
// err is non-nil only for fatal conditions; report.Success mirrors it.
func (r *Runner) Run(ctx context.Context, report *model.Report, opts Options) (out *model.Report, err error) {
	if report == nil {
		report = r.NewReport()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Start routine panicked", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("unexpected failure: %v", rec)
		}
		report.Success = err == nil
		out = report
	}()

	// Step 1: dependencies. Failure is recorded and the routine continues;
	// the dependencies may already be present.
	if opts.SkipInstall {
		r.logger.Debug("Skipping dependency install")
	} else {
		r.install(ctx, report)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Step 2: background launch.
	if err := r.launch(ctx, report); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Step 3: one snapshot of the connection table.
	probe, err := r.prober.Probe(ctx, r.cfg.Port)
	if err != nil {
		return report, fmt.Errorf("port check failed: %w", err)
	}
	report.Probe = probe

	return report, nil
}

// Probe runs only the port probing step.
func (r *Runner) Probe(ctx context.Context) (*model.ProbeResult, error) {
	probe, err := r.prober.Probe(ctx, r.cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("port check failed: %w", err)
	}
	return probe, nil
}
