package pipeline

import (
	"fmt"
	"time"

	"github.com/valpere/transbench/internal"
	"github.com/valpere/transbench/internal/catalog"
)

type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Run is one submission's execution: a single stage in LLM mode or up to
// four chained stages in Agent mode. Stages never holds more entries than
// the catalog has roles.
type Run struct {
	ID     string
	Mode   internal.Mode
	Intent internal.Intent
	Input  string
	Stages []internal.StageResult
	State  State

	// HaltedAt is the role whose stage failed, or the stage that was about
	// to be dispatched when the run was cancelled.
	HaltedAt internal.RoleID
	Err      error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Run) Succeeded() bool {
	return r.State == StateSucceeded
}

// Final returns the last successful stage of a succeeded run.
func (r *Run) Final() (internal.StageResult, bool) {
	if r.State != StateSucceeded || len(r.Stages) == 0 {
		return internal.StageResult{}, false
	}
	return r.Stages[len(r.Stages)-1], true
}

// Reply is the single conversation entry a run contributes: the final
// stage's output on success, otherwise one error entry naming the stage.
func (r *Run) Reply() internal.Message {
	msg := internal.Message{Speaker: internal.SpeakerAssistant}

	switch r.State {
	case StateSucceeded:
		final, _ := r.Final()
		msg.StageID = final.RoleID
		msg.Text = final.Output
		if msg.Text == "" {
			msg.Text = "(empty response)"
		}
	case StateCancelled:
		msg.Failed = true
		msg.StageID = r.HaltedAt
		msg.Text = fmt.Sprintf("%s Run cancelled before %s; %d of %d stages completed.",
			r.prefix(), r.stageLabel(r.HaltedAt), r.completed(), r.planned())
	default:
		msg.Failed = true
		msg.StageID = r.HaltedAt
		cause := "unknown error"
		if r.Err != nil {
			cause = r.Err.Error()
		}
		msg.Text = fmt.Sprintf("%s %s failed: %s", r.prefix(), r.stageLabel(r.HaltedAt), cause)
	}
	return msg
}

func (r *Run) prefix() string {
	return fmt.Sprintf("(%s)", r.Mode)
}

func (r *Run) planned() int {
	if r.Mode == internal.ModeAgent {
		return catalog.Stages()
	}
	return 1
}

func (r *Run) completed() int {
	n := 0
	for _, s := range r.Stages {
		if s.Succeeded {
			n++
		}
	}
	return n
}

func (r *Run) stageLabel(id internal.RoleID) string {
	role, err := catalog.LookupRole(id)
	if err != nil {
		return fmt.Sprintf("stage %q", id)
	}
	if r.Mode == internal.ModeAgent {
		return fmt.Sprintf("stage %d/%d %s (%s)", catalog.StageIndex(id)+1, catalog.Stages(), role.Name, role.ID)
	}
	return fmt.Sprintf("%s (%s)", role.Name, role.ID)
}
