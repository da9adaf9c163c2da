package core

import (
	"errors"
	"testing"
	"time"
)

var testDeparture = time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)

func selInput(id string, distance, maxGradeDeg, composite, totalSeconds float64) selectInput {
	route := &RouteCandidate{
		ID:          id,
		Mode:        ModeGrid,
		Profile:     ProfileBalanced,
		DistanceM:   distance,
		MaxGradeDeg: maxGradeDeg,
	}
	return selectInput{
		route: route,
		risk:  RiskAssessment{RouteID: id, Composite: composite, Weights: DefaultRiskWeights},
		pace:  PaceEstimate{RouteID: id, Mode: ModeFoot, TotalSeconds: totalSeconds},
	}
}

func TestSelectExcludesByDistanceKeepsOther(t *testing.T) {
	// Two routes, one exceeding the 1500 m cap; the other must win with a
	// trace naming the violated constraint.
	inputs := []selectInput{
		selInput("route-1", 2100, 8, 0.30, 1800),
		selInput("route-2", 1200, 8, 0.35, 1100),
	}
	slope := 12.0
	distance := 1500.0
	c := Constraints{AvoidSlopeDegrees: &slope, MaxDistanceM: &distance}

	sel, err := selectRoute(inputs, PolicyPreferLowRisk, c, testDeparture)
	if err != nil {
		t.Fatalf("selectRoute failed: %v", err)
	}
	if sel.RouteID != "route-2" {
		t.Fatalf("selected %s, want route-2", sel.RouteID)
	}
	if len(sel.Trace) != 2 {
		t.Fatalf("trace entries = %d, want 2", len(sel.Trace))
	}

	var excluded *TraceEntry
	for i := range sel.Trace {
		if sel.Trace[i].RouteID == "route-1" {
			excluded = &sel.Trace[i]
		}
	}
	if excluded == nil || !excluded.Excluded {
		t.Fatal("route-1 should appear excluded in the trace")
	}
	var namedDistance bool
	for _, check := range excluded.Checks {
		if check.Constraint == "max_distance_m" && !check.Passed {
			namedDistance = true
		}
	}
	if !namedDistance {
		t.Fatalf("exclusion does not name max_distance_m: %+v", excluded.Checks)
	}
}

func TestSelectAllExcludedReturnsFullTrace(t *testing.T) {
	inputs := []selectInput{
		selInput("route-1", 2100, 20, 0.30, 1800),
		selInput("route-2", 1900, 18, 0.35, 1500),
	}
	slope := 12.0
	c := Constraints{AvoidSlopeDegrees: &slope}

	_, err := selectRoute(inputs, PolicyPreferLowRisk, c, testDeparture)
	if !errors.Is(err, ErrNoRouteSatisfiesConstraints) {
		t.Fatalf("expected ErrNoRouteSatisfiesConstraints, got %v", err)
	}

	var cerr *ConstraintError
	if !errors.As(err, &cerr) {
		t.Fatalf("error does not carry a trace: %T", err)
	}
	if len(cerr.Trace) != 2 {
		t.Fatalf("trace entries = %d, want one per candidate", len(cerr.Trace))
	}
	for _, entry := range cerr.Trace {
		if !entry.Excluded {
			t.Fatalf("entry %s not marked excluded", entry.RouteID)
		}
		var violated bool
		for _, check := range entry.Checks {
			if !check.Passed {
				violated = true
			}
		}
		if !violated {
			t.Fatalf("entry %s names no violated constraint", entry.RouteID)
		}
	}
}

func TestSelectDeadlineConstraint(t *testing.T) {
	inputs := []selectInput{
		selInput("route-1", 1000, 5, 0.20, 7200), // two hours
		selInput("route-2", 1400, 5, 0.40, 1800), // thirty minutes
	}
	deadline := testDeparture.Add(time.Hour)
	c := Constraints{ArrivalDeadline: &deadline}

	sel, err := selectRoute(inputs, PolicyPreferLowRisk, c, testDeparture)
	if err != nil {
		t.Fatalf("selectRoute failed: %v", err)
	}
	if sel.RouteID != "route-2" {
		t.Fatalf("selected %s, want the route that makes the deadline", sel.RouteID)
	}
}

func TestPolicyRankingDiffers(t *testing.T) {
	// route-1 is shorter, route-2 is safer.
	inputs := []selectInput{
		selInput("route-1", 1000, 5, 0.50, 900),
		selInput("route-2", 1600, 5, 0.20, 1400),
	}

	byRisk, err := selectRoute(inputs, PolicyPreferLowRisk, Constraints{}, testDeparture)
	if err != nil {
		t.Fatalf("prefer_low_risk failed: %v", err)
	}
	if byRisk.RouteID != "route-2" {
		t.Fatalf("prefer_low_risk selected %s, want route-2", byRisk.RouteID)
	}

	byCost, err := selectRoute(inputs, PolicyCostOnly, Constraints{}, testDeparture)
	if err != nil {
		t.Fatalf("cost_only failed: %v", err)
	}
	if byCost.RouteID != "route-1" {
		t.Fatalf("cost_only selected %s, want route-1", byCost.RouteID)
	}
}

func TestTieBreakChainIsDeterministic(t *testing.T) {
	// Identical risk: falls to distance.
	inputs := []selectInput{
		selInput("route-2", 1200, 5, 0.30, 1000),
		selInput("route-1", 1500, 5, 0.30, 1200),
	}
	sel, err := selectRoute(inputs, PolicyPreferLowRisk, Constraints{}, testDeparture)
	if err != nil {
		t.Fatalf("selectRoute failed: %v", err)
	}
	if sel.RouteID != "route-2" {
		t.Fatalf("distance tie-break selected %s, want route-2", sel.RouteID)
	}

	// Identical risk and distance: falls to route id.
	inputs = []selectInput{
		selInput("route-9", 1200, 5, 0.30, 1000),
		selInput("route-3", 1200, 5, 0.30, 1000),
	}
	sel, err = selectRoute(inputs, PolicyPreferLowRisk, Constraints{}, testDeparture)
	if err != nil {
		t.Fatalf("selectRoute failed: %v", err)
	}
	if sel.RouteID != "route-3" {
		t.Fatalf("id tie-break selected %s, want route-3", sel.RouteID)
	}
}

func TestSelectRecordsAlternatesWithReasons(t *testing.T) {
	inputs := []selectInput{
		selInput("route-1", 1000, 5, 0.20, 900),
		selInput("route-2", 1600, 5, 0.50, 1400),
	}
	sel, err := selectRoute(inputs, PolicyPreferLowRisk, Constraints{}, testDeparture)
	if err != nil {
		t.Fatalf("selectRoute failed: %v", err)
	}
	if len(sel.Alternates) != 1 {
		t.Fatalf("alternates = %d, want 1", len(sel.Alternates))
	}
	alt := sel.Alternates[0]
	if alt.RouteID != "route-2" {
		t.Fatalf("alternate = %s, want route-2", alt.RouteID)
	}
	want := map[string]bool{"higher_risk": true, "longer_distance": true, "slower_eta": true}
	for _, r := range alt.Reasons {
		if !want[r] {
			t.Fatalf("unexpected alternate reason %q", r)
		}
		delete(want, r)
	}
	if len(want) != 0 {
		t.Fatalf("missing alternate reasons: %v", want)
	}
}

func TestSelectRejectsUnknownPolicy(t *testing.T) {
	inputs := []selectInput{selInput("route-1", 1000, 5, 0.20, 900)}
	if _, err := selectRoute(inputs, Policy("vibes"), Constraints{}, testDeparture); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
