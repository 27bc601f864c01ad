// Package report walks every subscription over the working week,
// classifies each discovered service run and mails out the qualifying
// delays.
package report

// Leg direction labels
const (
	LegOutbound = "Outbound"
	LegInbound  = "Inbound"
)

// Outcome is the computed result for one qualifying journey instance on
// one date. Outcomes are never mutated after creation.
type Outcome struct {
	Date         string
	Leg          string
	SchedDep     string
	SchedArr     string
	ActualArr    string
	Minutes      int
	Cancelled    bool
	RefundAmount float64
	RefundLabel  string
	TOC          string
}

// Sender delivers a weekly report to one subscriber. Delivery is
// fire-and-forget for the orchestrator: a send failure never rolls back
// or recomputes outcomes.
type Sender interface {
	Send(to string, outcomes []Outcome) error
}

// Report summarizes one batch run. Per-item failures accumulate here
// instead of aborting the run.
type Report struct {
	Processed     int
	EmailsSent    int
	FailedMetrics []string
	FailedDetails []string
}
