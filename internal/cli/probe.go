package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/devserve/internal/devserver"
	"github.com/mmr-tortoise/devserve/internal/model"
)

// NewProbeCommand creates the "probe" cobra command, which runs only the
// port check. It is the follow-up to a start that reported the port as not
// bound yet.
func NewProbeCommand() *cobra.Command {
	flags := &configFlags{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check once whether the dev server port is bound",
		Long: `Take one snapshot of the OS connection table and report whether the
dev server port is bound, and by which process (and Docker container, when
a container publishes the port).

Examples:
  devserve probe
  devserve probe --port 5173 --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runProbe(cmd *cobra.Command, flags *configFlags) error {
	cfg, warnings, err := loadProject(cmd, flags)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		VerboseLog("%s", w)
	}

	prober, closeProber := newProber(cfg)
	defer closeProber()

	result, err := devserver.NewRunner(cfg, prober, logger).Probe(cmd.Context())
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to check port", err)
	}

	printProbeResult(cmd.OutOrStdout(), result, cfg.URL())
	return nil
}

// printProbeResult outputs a probe result in text or JSON format.
func printProbeResult(w io.Writer, result *model.ProbeResult, url string) {
	if IsJSONOutput() {
		type resultJSON struct {
			*model.ProbeResult
			URL string `json:"url"`
		}
		data, _ := json.MarshalIndent(resultJSON{ProbeResult: result, URL: url}, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", probeMarker(result), describeProbe(result))
	if result.Bound {
		_, _ = fmt.Fprintf(w, "  %s\n", url)
	}
}
