package core

import (
	"fmt"
	"sort"
	"time"
)

// Policy names a ranking rule for surviving candidates.
type Policy string

const (
	// PolicyPreferLowRisk ranks survivors by ascending composite risk.
	PolicyPreferLowRisk Policy = "prefer_low_risk"
	// PolicyCostOnly ranks survivors by ascending raw distance.
	PolicyCostOnly Policy = "cost_only"
)

// Constraints are the optional hard caps a commander may impose. Nil
// fields are not evaluated.
type Constraints struct {
	AvoidSlopeDegrees *float64   `json:"avoid_slope_degrees,omitempty"`
	MaxDistanceM      *float64   `json:"max_distance_m,omitempty"`
	ArrivalDeadline   *time.Time `json:"arrival_deadline,omitempty"`
}

// ConstraintCheck records one constraint evaluation for one candidate.
type ConstraintCheck struct {
	Constraint string `json:"constraint"`
	Passed     bool   `json:"passed"`
	Detail     string `json:"detail"`
}

// TraceEntry is the full constraint evaluation for one candidate, kept
// even when the candidate survives so callers can audit the decision.
type TraceEntry struct {
	RouteID      string            `json:"route_id"`
	Excluded     bool              `json:"excluded"`
	Checks       []ConstraintCheck `json:"checks"`
	Risk         float64           `json:"risk"`
	DistanceM    float64           `json:"distance_m"`
	TotalSeconds float64           `json:"total_seconds"`
}

// Alternate is a surviving but unchosen candidate with the reasons it
// ranked below the selection.
type Alternate struct {
	RouteID   string   `json:"route_id"`
	Risk      float64  `json:"risk"`
	DistanceM float64  `json:"distance_m"`
	Reasons   []string `json:"reasons"`
}

// SelectionResult is the single current selection of a session. Each new
// select call overwrites it; export always reads the latest and
// re-validates Generation against the cache.
type SelectionResult struct {
	RouteID    string       `json:"route_id"`
	PolicyID   string       `json:"policy_id"`
	Trace      []TraceEntry `json:"trace"`
	Alternates []Alternate  `json:"alternates,omitempty"`
	TieBreak   string       `json:"tie_break"`

	// Parameters the deadline and brief rendering were computed with.
	DepartedAt time.Time  `json:"departed_at"`
	Mode       TravelMode `json:"mode"`
	LoadKg     float64    `json:"load_kg"`

	// Generation of the session cache this result was computed against.
	Generation uint64 `json:"generation"`
}

// selectInput bundles what selectRoute needs per candidate.
type selectInput struct {
	route *RouteCandidate
	risk  RiskAssessment
	pace  PaceEstimate
}

// selectRoute evaluates every candidate against every supplied hard
// constraint, then ranks survivors under the policy with the fixed
// tie-break chain: lower risk, shorter distance, lexicographically
// smaller route id.
func selectRoute(inputs []selectInput, policy Policy, c Constraints, departure time.Time) (*SelectionResult, error) {
	if policy != PolicyPreferLowRisk && policy != PolicyCostOnly {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidRequest, policy)
	}

	trace := make([]TraceEntry, 0, len(inputs))
	var survivors []selectInput
	for _, in := range inputs {
		entry := TraceEntry{
			RouteID:      in.route.ID,
			Risk:         in.risk.Composite,
			DistanceM:    in.route.DistanceM,
			TotalSeconds: in.pace.TotalSeconds,
		}

		if c.AvoidSlopeDegrees != nil {
			passed := in.route.MaxGradeDeg <= *c.AvoidSlopeDegrees
			entry.Checks = append(entry.Checks, ConstraintCheck{
				Constraint: "avoid_slope_degrees",
				Passed:     passed,
				Detail:     fmt.Sprintf("max slope %.1f deg vs cap %.1f deg", in.route.MaxGradeDeg, *c.AvoidSlopeDegrees),
			})
		}
		if c.MaxDistanceM != nil {
			passed := in.route.DistanceM <= *c.MaxDistanceM
			entry.Checks = append(entry.Checks, ConstraintCheck{
				Constraint: "max_distance_m",
				Passed:     passed,
				Detail:     fmt.Sprintf("distance %.0f m vs cap %.0f m", in.route.DistanceM, *c.MaxDistanceM),
			})
		}
		if c.ArrivalDeadline != nil {
			arrival := departure.Add(time.Duration(in.pace.TotalSeconds * float64(time.Second)))
			passed := !arrival.After(*c.ArrivalDeadline)
			entry.Checks = append(entry.Checks, ConstraintCheck{
				Constraint: "arrival_deadline",
				Passed:     passed,
				Detail:     fmt.Sprintf("eta %s vs deadline %s", arrival.UTC().Format(time.RFC3339), c.ArrivalDeadline.UTC().Format(time.RFC3339)),
			})
		}

		for _, check := range entry.Checks {
			if !check.Passed {
				entry.Excluded = true
			}
		}
		trace = append(trace, entry)
		if !entry.Excluded {
			survivors = append(survivors, in)
		}
	}

	if len(survivors) == 0 {
		return nil, &ConstraintError{Trace: trace}
	}

	less := func(a, b selectInput) bool {
		if policy == PolicyPreferLowRisk && a.risk.Composite != b.risk.Composite {
			return a.risk.Composite < b.risk.Composite
		}
		if policy == PolicyCostOnly && a.route.DistanceM != b.route.DistanceM {
			return a.route.DistanceM < b.route.DistanceM
		}
		// Tie-break chain, in order.
		if a.risk.Composite != b.risk.Composite {
			return a.risk.Composite < b.risk.Composite
		}
		if a.route.DistanceM != b.route.DistanceM {
			return a.route.DistanceM < b.route.DistanceM
		}
		return a.route.ID < b.route.ID
	}
	sort.SliceStable(survivors, func(i, j int) bool { return less(survivors[i], survivors[j]) })

	chosen := survivors[0]
	result := &SelectionResult{
		RouteID:    chosen.route.ID,
		PolicyID:   string(policy),
		Trace:      trace,
		TieBreak:   tieBreakRationale(chosen, survivors, policy),
		DepartedAt: departure,
	}
	for _, alt := range survivors[1:] {
		result.Alternates = append(result.Alternates, Alternate{
			RouteID:   alt.route.ID,
			Risk:      alt.risk.Composite,
			DistanceM: alt.route.DistanceM,
			Reasons:   alternateReasons(chosen, alt),
		})
	}
	return result, nil
}

// tieBreakRationale names the rule that decided between the winner and
// the runner-up.
func tieBreakRationale(chosen selectInput, survivors []selectInput, policy Policy) string {
	if len(survivors) < 2 {
		return "sole survivor"
	}
	runner := survivors[1]
	switch {
	case policy == PolicyPreferLowRisk && chosen.risk.Composite != runner.risk.Composite:
		return fmt.Sprintf("lowest composite risk (%.3f vs %.3f)", chosen.risk.Composite, runner.risk.Composite)
	case policy == PolicyCostOnly && chosen.route.DistanceM != runner.route.DistanceM:
		return fmt.Sprintf("shortest distance (%.0f m vs %.0f m)", chosen.route.DistanceM, runner.route.DistanceM)
	case chosen.risk.Composite != runner.risk.Composite:
		return fmt.Sprintf("tie broken on lower risk (%.3f vs %.3f)", chosen.risk.Composite, runner.risk.Composite)
	case chosen.route.DistanceM != runner.route.DistanceM:
		return fmt.Sprintf("tie broken on shorter distance (%.0f m vs %.0f m)", chosen.route.DistanceM, runner.route.DistanceM)
	default:
		return fmt.Sprintf("tie broken on route id (%s before %s)", chosen.route.ID, runner.route.ID)
	}
}

func alternateReasons(chosen, alt selectInput) []string {
	var reasons []string
	if alt.risk.Composite > chosen.risk.Composite {
		reasons = append(reasons, "higher_risk")
	} else if alt.risk.Composite < chosen.risk.Composite {
		reasons = append(reasons, "lower_risk")
	}
	if alt.route.DistanceM > chosen.route.DistanceM {
		reasons = append(reasons, "longer_distance")
	} else if alt.route.DistanceM < chosen.route.DistanceM {
		reasons = append(reasons, "shorter_distance")
	}
	if alt.pace.TotalSeconds > chosen.pace.TotalSeconds {
		reasons = append(reasons, "slower_eta")
	} else if alt.pace.TotalSeconds < chosen.pace.TotalSeconds {
		reasons = append(reasons, "faster_eta")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "ranked_by_route_id")
	}
	return reasons
}
