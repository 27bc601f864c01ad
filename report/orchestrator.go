package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/refundmyrail/refundmyrail/delay"
	"github.com/refundmyrail/refundmyrail/hsp"
	"github.com/refundmyrail/refundmyrail/subs"
)

// ClaimThreshold is the minimum delay in minutes worth reporting.
const ClaimThreshold = 15

// Resolver answers upstream queries through the cache and the shared
// queue. Satisfied by *queue.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, kind string, payload hsp.Payload) ([]byte, bool, error)
}

// Config holds orchestrator settings.
type Config struct {
	// PerJourneyPrice is the single-journey ticket price refund
	// estimates are based on.
	PerJourneyPrice float64
	// Now is injectable for tests; nil selects time.Now.
	Now func() time.Time
}

// New creates a new batch orchestrator
func New(c *Config, resolver Resolver, store subs.Store, sender Sender) (*Orchestrator, error) {
	if resolver == nil {
		return nil, errors.New("no resolver provided")
	}
	if store == nil {
		return nil, errors.New("no subscription store provided")
	}
	if sender == nil {
		return nil, errors.New("no mail sender provided")
	}
	if c.PerJourneyPrice == 0 {
		c.PerJourneyPrice = delay.PerJourneyPrice(delay.DefaultAnnualPrice, delay.DefaultJourneysPerYear)
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &Orchestrator{
		c:        c,
		resolver: resolver,
		subs:     store,
		sender:   sender,
	}, nil
}

// Orchestrator runs the weekly delay check across all subscriptions.
// It is a client of the shared cache and queue, never their owner.
type Orchestrator struct {
	c        *Config
	resolver Resolver
	subs     subs.Store
	sender   Sender
}

// Run processes every active subscription for the current working week.
// Subscriptions are independent: one failing never aborts the rest, and
// per-call failures are accumulated in the returned report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	ids, err := o.subs.ListIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list subscriptions")
	}

	days := WorkingWeek(o.c.Now())
	log.Infof("batch: processing %d subscriptions for week %s to %s", len(ids), days[0], days[4])

	rep := &Report{}
	for _, id := range ids {
		sub, err := o.subs.Get(ctx, id)
		if err != nil {
			log.Errorf("batch: subscription %s unreadable: %s", id, err)
			continue
		}
		if !sub.Active {
			continue
		}
		rep.Processed++

		log.Infof("batch: checking %s (%s -> %s)", sub.Email, sub.Route.From, sub.Route.To)
		outcomes := o.collect(ctx, sub, days, rep)
		if len(outcomes) == 0 {
			log.Infof("batch: no qualifying delays for %s", sub.Email)
			continue
		}

		if err := o.sender.Send(sub.Email, outcomes); err != nil {
			log.Errorf("batch: failed to send report to %s: %s", sub.Email, err)
			continue
		}
		rep.EmailsSent++
	}

	log.Infof("batch: finished, %d processed, %d emails sent, %d failed calls",
		rep.Processed, rep.EmailsSent, len(rep.FailedMetrics)+len(rep.FailedDetails))
	return rep, nil
}

type legSpec struct {
	name   string
	from   string
	to     string
	window subs.Window
}

// collect walks 5 weekdays x 2 directions for one subscription and
// returns the qualifying outcomes.
func (o *Orchestrator) collect(ctx context.Context, sub subs.Subscription, days []string, rep *Report) []Outcome {
	legs := []legSpec{
		{LegOutbound, sub.Route.From, sub.Route.To, sub.Times.Morning},
		{LegInbound, sub.Route.To, sub.Route.From, sub.Times.Evening},
	}

	// rids already inspected in this pass; a run discovered by two
	// metrics queries is only detail-fetched once
	seen := make(map[string]bool)
	var outcomes []Outcome

	for _, day := range days {
		for _, leg := range legs {
			payload := hsp.Payload{
				"from_loc":  leg.from,
				"to_loc":    leg.to,
				"from_time": stripColon(leg.window.Start),
				"to_time":   stripColon(leg.window.End),
				"from_date": day,
				"to_date":   day,
				"days":      "WEEKDAY",
			}

			raw, _, err := o.resolver.Resolve(ctx, hsp.KindMetrics, payload)
			if err != nil {
				log.Errorf("batch: metrics fetch failed for %s %s: %s", leg.name, day, err)
				rep.FailedMetrics = append(rep.FailedMetrics, fmt.Sprintf("%s %s", leg.name, day))
				continue
			}

			for _, rid := range parseRids(raw) {
				if seen[rid] {
					continue
				}
				seen[rid] = true

				outcome, err := o.inspect(ctx, rid, day, leg)
				if err != nil {
					log.Errorf("batch: details fetch failed for rid %s: %s", rid, err)
					rep.FailedDetails = append(rep.FailedDetails, rid)
					continue
				}
				if outcome != nil {
					outcomes = append(outcomes, *outcome)
				}
			}
		}
	}

	return outcomes
}

// inspect fetches one run's details and classifies it. A nil outcome
// with nil error means the run does not qualify or misses stop records.
func (o *Orchestrator) inspect(ctx context.Context, rid, day string, leg legSpec) (*Outcome, error) {
	raw, _, err := o.resolver.Resolve(ctx, hsp.KindDetails, hsp.Payload{"rid": rid})
	if err != nil {
		return nil, err
	}

	var details detailsResponse
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, errors.Wrap(err, "failed to parse service details")
	}

	dep := findLocation(details.Attrs.Locations, leg.from)
	arr := findLocation(details.Attrs.Locations, leg.to)
	if dep == nil || arr == nil {
		log.Warnf("batch: missing stop records for rid %s (%s -> %s)", rid, leg.from, leg.to)
		return nil, nil
	}

	res := delay.Compute(arr.ScheduledArrival, arr.ActualArrival)
	if !res.Cancelled && res.Minutes < ClaimThreshold {
		return nil, nil
	}

	amount, label := delay.Refund(res.Minutes, res.Cancelled, o.c.PerJourneyPrice)
	return &Outcome{
		Date:         day,
		Leg:          leg.name,
		SchedDep:     dep.ScheduledDeparture,
		SchedArr:     arr.ScheduledArrival,
		ActualArr:    arr.ActualArrival,
		Minutes:      res.Minutes,
		Cancelled:    res.Cancelled,
		RefundAmount: amount,
		RefundLabel:  label,
		TOC:          details.Attrs.TOC,
	}, nil
}

type metricsResponse struct {
	Services []struct {
		Attrs struct {
			Rids []string `json:"rids"`
		} `json:"serviceAttributesMetrics"`
	} `json:"Services"`
}

type detailsResponse struct {
	Attrs struct {
		TOC       string     `json:"toc_code"`
		Locations []location `json:"locations"`
	} `json:"serviceAttributesDetails"`
}

type location struct {
	CRS                string `json:"location"`
	ScheduledDeparture string `json:"gbtt_ptd"`
	ScheduledArrival   string `json:"gbtt_pta"`
	ActualArrival      string `json:"actual_ta"`
}

// parseRids extracts the first rid of every service in a metrics
// response. Malformed entries are skipped, not fatal.
func parseRids(raw []byte) []string {
	var metrics metricsResponse
	if err := json.Unmarshal(raw, &metrics); err != nil {
		log.Warnf("batch: failed to parse metrics response: %s", err)
		return nil
	}

	var rids []string
	for _, service := range metrics.Services {
		if len(service.Attrs.Rids) == 0 {
			continue
		}
		rids = append(rids, service.Attrs.Rids[0])
	}
	return rids
}

func findLocation(locations []location, crs string) *location {
	for i := range locations {
		if locations[i].CRS == crs {
			return &locations[i]
		}
	}
	return nil
}

func stripColon(t string) string {
	return strings.ReplaceAll(t, ":", "")
}
