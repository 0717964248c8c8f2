// start.go implements the "devserve start" command.
//
// The command installs dependencies, launches the dev server detached with
// its output in a log file, checks the server port once, and prints a
// summary. A failed install or launch is reported but does not change the
// exit status; only fatal errors (log file unusable, connection table
// unreadable) exit non-zero.
package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devserve/internal/config"
	"github.com/mmr-tortoise/devserve/internal/devserver"
	"github.com/mmr-tortoise/devserve/internal/docker"
	"github.com/mmr-tortoise/devserve/internal/model"
	"github.com/mmr-tortoise/devserve/internal/port"
)

// startFlags holds the flags specific to the start command.
type startFlags struct {
	configFlags

	// skipInstall skips the dependency install step.
	skipInstall bool
}

// NewStartCommand creates the "start" cobra command.
func NewStartCommand() *cobra.Command {
	flags := &startFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Install dependencies and start the dev server in the background",
		Long: `Install dependencies, start the dev server detached from this process,
and check once whether its port is bound.

The dev server's output goes to the log file (default: logs/vite.log in
the project). The port check is a single snapshot: a server that is still
starting is reported as not bound yet.

Examples:
  devserve start
  devserve start --dir ./editor --port 5173
  devserve start --skip-install --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.skipInstall, "skip-install", false, "Skip the dependency install step")

	return cmd
}

// runStart is the main logic function for the start command.
func runStart(cmd *cobra.Command, flags *startFlags) error {
	cfg, warnings, err := loadProject(cmd, &flags.configFlags)
	if err != nil {
		return err
	}

	prober, closeProber := newProber(cfg)
	defer closeProber()

	runner := devserver.NewRunner(cfg, prober, logger)
	report := runner.NewReport()
	for _, w := range warnings {
		report.AddWarning("%s", w)
	}

	return executeStart(cmd.Context(), cmd.OutOrStdout(), runner, report, devserver.Options{SkipInstall: flags.skipInstall})
}

// executeStart runs the routine, prints the summary and maps a fatal
// error to a CLIError. The summary is printed even when Run fails.
func executeStart(ctx context.Context, w io.Writer, runner *devserver.Runner, report *model.Report, opts devserver.Options) error {
	report, runErr := runner.Run(ctx, report, opts)
	printReport(w, report, runErr)

	if runErr != nil {
		var cliErr *model.CLIError
		if errors.As(runErr, &cliErr) {
			return cliErr
		}
		return model.WrapCLIError(model.ExitGeneralError, "dev server start failed", runErr)
	}
	return nil
}

// newProber builds the port prober for cfg. When Docker lookups are enabled
// it gets a lazily-connecting container resolver; the returned func
// releases it.
func newProber(cfg *config.Config) (*port.Prober, func()) {
	opts := []port.ProberOption{port.WithLogger(logger)}
	if !cfg.DockerLookup {
		return port.NewProber(opts...), func() {}
	}

	resolver := docker.NewResolver()
	opts = append(opts, port.WithContainerResolver(resolver))
	return port.NewProber(opts...), func() { _ = resolver.Close() }
}

// printReport outputs the run summary in text or JSON format.
func printReport(w io.Writer, report *model.Report, runErr error) {
	if IsJSONOutput() {
		printReportJSON(w, report, runErr)
	} else {
		printReportText(w, report, runErr)
	}
}
