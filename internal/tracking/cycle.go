package tracking

// Cycle is the fixed sequence a cycling filter control steps through.
type Cycle struct {
	steps []Status
}

var (
	// SubmissionCycle drives the submission-tracking filter.
	SubmissionCycle = Cycle{steps: []Status{StatusAll, StatusSubmitted, StatusNotSubmitted, StatusLate}}
	// GradingCycle drives the grading-tracking filter.
	GradingCycle = Cycle{steps: []Status{StatusAll, StatusSubmitted, StatusNotSubmitted, StatusGraded}}
)

// Len returns the number of steps before the cycle repeats.
func (c Cycle) Len() int {
	return len(c.steps)
}

// Steps returns a copy of the cycle order.
func (c Cycle) Steps() []Status {
	out := make([]Status, len(c.steps))
	copy(out, c.steps)
	return out
}

// Next advances one step from current. Values outside the cycle restart at
// StatusAll.
func (c Cycle) Next(current Status) Status {
	if len(c.steps) == 0 {
		return StatusAll
	}
	for i, step := range c.steps {
		if step == current {
			return c.steps[(i+1)%len(c.steps)]
		}
	}
	return c.steps[0]
}
