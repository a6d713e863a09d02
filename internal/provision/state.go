package provision

import (
	"fmt"
	"strings"
)

type State string

const (
	StateValidating          State = "Validating"
	StateCheckingExisting    State = "CheckingExisting"
	StateEnsuringBasePath    State = "EnsuringBasePath"
	StateEnsuringInstaller   State = "EnsuringInstaller"
	StateWritingUpdateScript State = "WritingUpdateScript"
	StateWritingStartScript  State = "WritingStartScript"
	StateWritingServerConfig State = "WritingServerConfig"
	StateWritingRconConfig   State = "WritingRconConfig"
	StateLaunchingSession    State = "LaunchingSession"
	StateCommitting          State = "Committing"
	StateDone                State = "Done"
	StateFailed              State = "Failed"
)

// Workflow is the fixed order of deployment steps.
var Workflow = []State{
	StateValidating,
	StateCheckingExisting,
	StateEnsuringBasePath,
	StateEnsuringInstaller,
	StateWritingUpdateScript,
	StateWritingStartScript,
	StateWritingServerConfig,
	StateWritingRconConfig,
	StateLaunchingSession,
	StateCommitting,
}

func progressOf(s State) int {
	if s == StateDone {
		return 100
	}
	for i, w := range Workflow {
		if w == s {
			return i * 100 / len(Workflow)
		}
	}
	return 0
}

// StepError reports the step a deployment failed in. Its chain matches one
// of the domain error kinds.
type StepError struct {
	State State
	Err   error
	// Leftovers are paths this run created that are still on disk.
	Leftovers []string
	// SessionRunning is set when the screen session was started and not stopped.
	SessionRunning bool
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("deployment failed at %s: %v", e.State, e.Err)
	if len(e.Leftovers) > 0 {
		msg += fmt.Sprintf(" (left on disk: %s)", strings.Join(e.Leftovers, ", "))
	}
	if e.SessionRunning {
		msg += " (screen session still running)"
	}
	return msg
}

func (e *StepError) Unwrap() error {
	return e.Err
}
