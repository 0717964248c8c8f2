package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/mmr-tortoise/devserve/internal/model"
)

// rule separates the summary sections.
var rule = strings.Repeat("=", 60)

// Step markers. fatih/color drops the escape codes when stdout is not a
// terminal or NO_COLOR is set, so they are built on every call.
func markOK() string   { return color.GreenString("✓") }
func markFail() string { return color.RedString("✗") }
func markWarn() string { return color.YellowString("!") }
func markSkip() string { return color.HiBlackString("-") }

// marker returns the marker for a step status.
func marker(s model.StepStatus) string {
	switch s {
	case model.StepOK:
		return markOK()
	case model.StepFailed:
		return markFail()
	default:
		return markSkip()
	}
}

func probeMarker(p *model.ProbeResult) string {
	if p != nil && p.Bound {
		return markOK()
	}
	return markWarn()
}

// describeProbe renders a probe result as one sentence.
func describeProbe(p *model.ProbeResult) string {
	if p == nil {
		return "port not checked"
	}
	if !p.Bound {
		return fmt.Sprintf("port %d is not bound yet; the server may still be starting", p.Port)
	}
	if p.Owner == nil {
		return fmt.Sprintf("port %d is bound", p.Port)
	}
	return fmt.Sprintf("port %d is bound by %s", p.Port, p.Owner.String())
}

// describeInstall renders the install step outcome.
func describeInstall(r *model.Report) string {
	switch {
	case r.InstallStatus == model.StepSkipped || r.Install == nil:
		return "install skipped"
	case r.InstallStatus == model.StepOK:
		return fmt.Sprintf("%s (%s)", r.Install.CommandLine(), r.Install.Duration.Round(100*time.Millisecond))
	default:
		return fmt.Sprintf("%s failed: %s", r.Install.CommandLine(), firstLine(r.Install.FailureText()))
	}
}

// describeLaunch renders the launch step outcome.
func describeLaunch(r *model.Report) string {
	l := r.Launch
	if l == nil {
		if r.LaunchStatus == model.StepFailed {
			return "launch aborted"
		}
		return "launch not attempted"
	}

	cmdLine := strings.Join(l.Args, " ")
	switch {
	case l.PID == 0:
		return fmt.Sprintf("%s failed to start: %v", cmdLine, l.Err)
	case l.Exited && l.ExitCode != 0:
		return fmt.Sprintf("%s exited with status %d (pid %d); see the log file", cmdLine, l.ExitCode, l.PID)
	case l.Exited:
		return fmt.Sprintf("%s exited cleanly right after start (pid %d)", cmdLine, l.PID)
	case l.Err != nil:
		return fmt.Sprintf("%s (pid %d): %v", cmdLine, l.PID, l.Err)
	default:
		return fmt.Sprintf("%s running in the background (pid %d)", cmdLine, l.PID)
	}
}

// firstLine trims multi-line tool output (npm prints pages of it) to its
// first non-empty line.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return s
}

// printReportText outputs the run summary as human-readable text.
func printReportText(w io.Writer, r *model.Report, runErr error) {
	p := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(w, format+"\n", args...)
	}

	p(rule)
	if runErr == nil {
		p("Dev server start finished")
	} else {
		p("Dev server start aborted")
	}
	p(rule)
	p("")

	p("Steps:")
	p("  %s %s", marker(r.InstallStatus), describeInstall(r))
	p("  %s %s", marker(r.LaunchStatus), describeLaunch(r))
	if r.Probe != nil {
		p("  %s %s", probeMarker(r.Probe), describeProbe(r.Probe))
	} else {
		p("  %s %s", markSkip(), describeProbe(nil))
	}
	if runErr != nil {
		p("  %s %v", markFail(), runErr)
	}
	p("")

	p("Server:")
	p("  Project:          %s", r.ProjectDir)
	p("  URL:              %s", r.URL)
	p("  Log file:         %s", r.LogFile)
	p("  Package manager:  %s", r.PackageManager)
	p("")

	if len(r.Warnings) > 0 {
		p("Warnings:")
		for _, warning := range r.Warnings {
			p("  %s %s", markWarn(), warning)
		}
		p("")
	}

	p("Next steps:")
	p("  1. Open %s in a browser", r.URL)
	p("  2. Follow the server output: tail -f %s", r.LogFile)
	if r.Probe == nil || !r.Probe.Bound {
		p("  3. Check the port again in a few seconds: devserve probe")
	}
	p("")

	p("Tips:")
	p("  - The server runs in the background and outlives this command")
	if r.Launch != nil && r.Launch.PID > 0 && !r.Launch.Exited {
		p("  - Stop it with: %s", stopHint(r.Launch.PID, runtime.GOOS))
	}
	p("  - The log file is overwritten on every start")

	if runErr == nil && r.LaunchStatus == model.StepOK {
		p("")
		p("%s Dev server launched", markOK())
	}
}

// stopHint returns the command that stops the launched process tree.
// The server leads its own process group on Unix.
func stopHint(pid int, goos string) string {
	if goos == "windows" {
		return fmt.Sprintf("taskkill /T /F /PID %d", pid)
	}
	return fmt.Sprintf("kill -- -%d", pid)
}

// printReportJSON outputs the run summary as structured JSON. Error
// values are not serializable, so their text is added alongside.
func printReportJSON(w io.Writer, r *model.Report, runErr error) {
	type reportJSON struct {
		*model.Report
		InstallError string `json:"installError,omitempty"`
		LaunchError  string `json:"launchError,omitempty"`
		Error        string `json:"error,omitempty"`
	}

	out := reportJSON{Report: r}
	if r.Install != nil && !r.Install.Succeeded() {
		out.InstallError = r.Install.FailureText()
	}
	if r.Launch != nil && r.Launch.Err != nil {
		out.LaunchError = r.Launch.Err.Error()
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}
