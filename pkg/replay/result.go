package replay

import (
	"github.com/akam1o/arca-replay/pkg/errors"
	"github.com/akam1o/arca-replay/pkg/journal"
	"github.com/akam1o/arca-replay/pkg/plan"
	"github.com/akam1o/arca-replay/pkg/session"
	"github.com/akam1o/arca-replay/pkg/snapshot"
)

// Stage is the step of a target's replay that produced its result
type Stage string

const (
	StageLoad      Stage = "load"
	StageParse     Stage = "parse"
	StagePlan      Stage = "plan"
	StageTransport Stage = "transport"
)

// TargetResult is the outcome of one router or host
type TargetResult struct {
	// Target is the session target (router name or host name)
	Target string
	// Router is the router whose snapshots fed the plan
	Router   string
	Kind     plan.Kind
	Stage    Stage
	Plan     *plan.Plan
	Warnings []snapshot.Warning
	Outcome  *session.Outcome
	Err      error
}

// OK reports whether the target completed without error
func (t *TargetResult) OK() bool {
	return t.Err == nil
}

// Code returns the error code of the failure, "" on success
func (t *TargetResult) Code() string {
	if t.Err == nil {
		return ""
	}
	if code := errors.CodeOf(t.Err); code != "" {
		return code
	}
	return errors.ErrCodeSystemError
}

// Result summarizes one run over a list of targets
type Result struct {
	RunID   string
	Kind    string
	Applied bool
	Targets []TargetResult

	// Cancelled is set when the context ended before every target was attempted
	Cancelled bool
}

// Failed returns the targets that did not complete
func (r *Result) Failed() []TargetResult {
	var out []TargetResult
	for _, t := range r.Targets {
		if !t.OK() {
			out = append(out, t)
		}
	}
	return out
}

// Succeeded returns how many targets completed
func (r *Result) Succeeded() int {
	return len(r.Targets) - len(r.Failed())
}

// Status maps the result to a journal run status
func (r *Result) Status() string {
	failed := len(r.Failed())
	switch {
	case r.Cancelled:
		return journal.StatusCancelled
	case failed == 0:
		return journal.StatusSucceeded
	case failed == len(r.Targets):
		return journal.StatusFailed
	default:
		return journal.StatusPartial
	}
}

// Warnings returns every parse warning of the run in target order
func (r *Result) Warnings() []snapshot.Warning {
	var out []snapshot.Warning
	for _, t := range r.Targets {
		out = append(out, t.Warnings...)
	}
	return out
}
