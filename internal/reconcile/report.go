package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// Status is the result of processing one unit.
type Status string

// Unit statuses.
const (
	StatusBuilt   Status = "built"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one unit.
type Outcome struct {
	Index    int
	App      string
	Status   Status
	Previous string
	Version  string
	Image    string
	Err      error
}

// Report aggregates a driver run.
type Report struct {
	RunID     string
	Env       string
	Repo      string
	Mode      string
	CI        bool
	Outcomes  []Outcome
	Committed bool
	Pushed    bool
	Message   string
	Duration  time.Duration
	// Err is the fatal error that stopped the run, if any.
	Err error
}

// Count returns how many outcomes have status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed outcomes.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// OK reports whether the run completed without unit failures or fatal errors.
func (r *Report) OK() bool {
	return r.Err == nil && r.Count(StatusFailed) == 0
}

// ExitCode maps the report to the process exit status.
func (r *Report) ExitCode() int {
	if r == nil || !r.OK() {
		return 1
	}
	return 0
}

// Summary is a one-line description of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: %d built, %d skipped, %d failed",
		r.Repo, r.Env, r.Count(StatusBuilt), r.Count(StatusSkipped), r.Count(StatusFailed))
	if r.Committed {
		b.WriteString(", committed")
		if r.Pushed {
			b.WriteString(" and pushed")
		}
	}
	if r.Err != nil {
		fmt.Fprintf(&b, " (aborted: %v)", r.Err)
	}
	return b.String()
}
