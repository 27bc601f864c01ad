// Package delay computes arrival delays and delay repay refund
// estimates from the HHMM times the rail API reports.
package delay

import "strconv"

// halfDay is the rollover guard: an arrival more than 12 hours before
// its schedule is assumed to have crossed midnight.
const halfDay = 12 * 60

// Result classifies one arrival against its schedule.
type Result struct {
	Minutes   int
	Cancelled bool
}

// Compute returns how late an arrival was. An empty actual time means
// the service was cancelled. Early arrivals clamp to zero, and
// malformed times degrade to zero rather than failing, so one bad
// record never aborts a batch run.
func Compute(scheduled, actual string) Result {
	if actual == "" {
		return Result{Cancelled: true}
	}

	sch, ok := minuteOfDay(scheduled)
	if !ok {
		return Result{}
	}
	act, ok := minuteOfDay(actual)
	if !ok {
		return Result{}
	}

	if act < sch-halfDay {
		act += 24 * 60
	}
	minutes := act - sch
	if minutes < 0 {
		minutes = 0
	}

	return Result{Minutes: minutes}
}

// minuteOfDay parses an HHMM rail time into minutes since midnight.
func minuteOfDay(hhmm string) (int, bool) {
	if len(hhmm) != 4 {
		return 0, false
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(hhmm[2:])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}
