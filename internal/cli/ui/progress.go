package ui

import (
	"fmt"
	"io"
	"os"
	"sqpplus/pkg/sdk"
)

var stepLabels = map[string]string{
	"Validating":          "Validating request",
	"CheckingExisting":    "Checking catalog for existing instance",
	"EnsuringBasePath":    "Preparing base path",
	"EnsuringInstaller":   "Ensuring SteamCMD",
	"WritingUpdateScript": "Writing SteamCMD update script",
	"WritingStartScript":  "Writing start script",
	"WritingServerConfig": "Writing server config",
	"WritingRconConfig":   "Writing RCON config",
	"LaunchingSession":    "Launching screen session",
	"Committing":          "Saving instance to catalog",
}

// ProgressPrinter turns deployment progress events into one spinner line
// per workflow step.
type ProgressPrinter struct {
	spinner *StepSpinner
	out     io.Writer
	state   string
}

func NewProgressPrinter(label string) *ProgressPrinter {
	return newProgressPrinter(label, os.Stdout)
}

func newProgressPrinter(label string, out io.Writer) *ProgressPrinter {
	return &ProgressPrinter{spinner: newStepSpinner(label, out), out: out}
}

// Handle consumes one event and reports whether it was terminal.
func (p *ProgressPrinter) Handle(ev sdk.ProgressEvent) bool {
	switch ev.State {
	case "Done":
		p.spinner.Stop(true)
		fmt.Fprintln(p.out, okColor.Sprint(ev.Message))
		return true
	case "Failed":
		p.spinner.Stop(false)
		fmt.Fprintln(p.out, failColor.Sprint(ev.Error))
		return true
	}

	if ev.State != p.state {
		p.spinner.Stop(true)
		p.state = ev.State
		label, ok := stepLabels[ev.State]
		if !ok {
			label = ev.State
		}
		p.spinner.Start(label)
		return false
	}

	if ev.Message != "" {
		p.spinner.Update(ev.Message)
	}
	return false
}

// Abort stops a running step without a verdict line, used when the
// progress stream breaks.
func (p *ProgressPrinter) Abort() {
	if p.spinner.Active() {
		p.spinner.spinner.Stop()
		p.spinner.active = false
		fmt.Fprintln(p.out, dimColor.Sprint("progress stream closed"))
	}
}
