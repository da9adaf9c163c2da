package core

// Fixed, published risk weights. They are part of the response contract
// so callers can recompute the composite independently.
type RiskWeights struct {
	Slope     float64 `json:"slope"`
	Exposure  float64 `json:"exposure"`
	Hydrology float64 `json:"hydrology"`
}

// DefaultRiskWeights is the contract weight vector: 0.40 slope, 0.35
// exposure, 0.25 hydrology.
var DefaultRiskWeights = RiskWeights{Slope: 0.40, Exposure: 0.35, Hydrology: 0.25}

// routeBufferM is the corridor width used when matching hydrology
// obstacles against a route.
const routeBufferM = 25.0

// hydrologyNormalization divides the summed crossing severity before
// clamping into [0,1]; two full water crossings saturate the component.
const hydrologyNormalization = 2.0

// WaterCrossing records one hydrology feature intersecting the route
// buffer.
type WaterCrossing struct {
	Hazard   HazardType `json:"hazard"`
	Severity float64    `json:"severity"`
	AtKm     float64    `json:"at_km"`
}

// RiskAssessment is a derived value: recomputable at any time from the
// route plus terrain, never cached as the sole source of truth.
type RiskAssessment struct {
	RouteID   string          `json:"route_id"`
	Slope     float64         `json:"slope"`
	Exposure  float64         `json:"exposure"`
	Hydrology float64         `json:"hydrology"`
	Weights   RiskWeights     `json:"weights"`
	Composite float64         `json:"composite"`
	Crossings []WaterCrossing `json:"crossings,omitempty"`
	// Uncertainty is inherited from the route's terrain coverage and
	// reported alongside the composite, never folded into it.
	Uncertainty float64 `json:"uncertainty"`
}

// AssessRisk scores one candidate. Components are each normalized to
// [0,1]; the composite is their fixed weighted sum.
func AssessRisk(b *TerrainBundle, route *RouteCandidate) RiskAssessment {
	slope := clamp01(route.SustainedGrade / steepGradeThreshold)
	exposure := clamp01(route.OpenFraction)

	crossings := findWaterCrossings(b, route)
	severitySum := 0.0
	for _, c := range crossings {
		severitySum += c.Severity
	}
	hydrology := clamp01(severitySum / hydrologyNormalization)

	w := DefaultRiskWeights
	return RiskAssessment{
		RouteID:     route.ID,
		Slope:       slope,
		Exposure:    exposure,
		Hydrology:   hydrology,
		Weights:     w,
		Composite:   w.Slope*slope + w.Exposure*exposure + w.Hydrology*hydrology,
		Crossings:   crossings,
		Uncertainty: route.Uncertainty,
	}
}

// findWaterCrossings matches hydrology obstacles against the route
// buffer. Each transition from outside an obstacle's reach to inside it
// counts as a separate crossing, so a route that leaves a feature and
// re-enters it downstream is scored for both entries.
func findWaterCrossings(b *TerrainBundle, route *RouteCandidate) []WaterCrossing {
	var crossings []WaterCrossing
	for _, obs := range b.Obstacles() {
		severity := hazardSeverity[obs.Hazard]
		if severity == 0 {
			continue
		}
		reach := obs.BufferM + routeBufferM
		inside := false
		for _, wp := range route.Waypoints {
			within := distanceToPolygon(wp.Coord, obs.Ring) <= reach
			if within && !inside {
				crossings = append(crossings, WaterCrossing{
					Hazard:   obs.Hazard,
					Severity: severity,
					AtKm:     wp.KmMark,
				})
			}
			inside = within
		}
	}
	return crossings
}
