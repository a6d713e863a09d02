package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	dimColor  = color.New(color.FgHiBlack)
)

type StepSpinner struct {
	spinner *spinner.Spinner
	label   string
	step    string
	out     io.Writer
	active  bool
}

func NewStepSpinner(label string) *StepSpinner {
	return newStepSpinner(label, os.Stdout)
}

func newStepSpinner(label string, out io.Writer) *StepSpinner {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(out))
	s.Prefix = fmt.Sprintf("[%s] ", label)
	return &StepSpinner{
		spinner: s,
		label:   label,
		out:     out,
	}
}

func (s *StepSpinner) Start(step string) {
	s.step = step
	s.spinner.Suffix = fmt.Sprintf(" %s", step)
	s.spinner.Start()
	s.active = true
}

// Update changes the text of the running step.
func (s *StepSpinner) Update(msg string) {
	s.spinner.Lock()
	s.spinner.Suffix = fmt.Sprintf(" %s", msg)
	s.spinner.Unlock()
}

func (s *StepSpinner) Stop(success bool) {
	if !s.active {
		return
	}
	s.spinner.Stop()
	s.active = false
	if success {
		fmt.Fprintf(s.out, "[%s] %s %s\n", s.label, okColor.Sprint("✅"), s.step)
	} else {
		fmt.Fprintf(s.out, "[%s] %s %s\n", s.label, failColor.Sprint("❌"), s.step)
	}
}

func (s *StepSpinner) Active() bool {
	return s.active
}
