package core

import "fmt"

// TravelMode selects the pace model.
type TravelMode string

const (
	ModeFoot    TravelMode = "foot"
	ModeWheeled TravelMode = "wheeled"
)

// modeParams are Naismith-style constants per travel mode: a flat-ground
// speed plus a fixed time penalty per metre of net ascent. Wheeled
// transport is faster on the flat but disproportionately slowed by grade.
type modeParams struct {
	FlatSpeedMS   float64
	AscentSecPerM float64
}

var paceModes = map[TravelMode]modeParams{
	ModeFoot:    {FlatSpeedMS: 1.39, AscentSecPerM: 6.0},
	ModeWheeled: {FlatSpeedMS: 3.33, AscentSecPerM: 12.0},
}

// freeCarryKg is the load below which no pace adjustment applies.
const freeCarryKg = 10.0

// loadPenaltyPerKg is the fractional slowdown per kilogram above the
// free-carry threshold.
const loadPenaltyPerKg = 0.01

// PaceEstimate is a derived travel-time estimate for one candidate.
type PaceEstimate struct {
	RouteID string     `json:"route_id"`
	Mode    TravelMode `json:"mode"`
	LoadKg  float64    `json:"load_kg"`

	// TotalSeconds is the load/mode-adjusted estimate.
	TotalSeconds float64 `json:"total_seconds"`
	// BaselineSeconds is the unloaded foot estimate for the same route.
	BaselineSeconds float64 `json:"baseline_seconds"`

	// Sub-components of TotalSeconds for transparency.
	DistanceSeconds float64 `json:"distance_seconds"`
	AscentSeconds   float64 `json:"ascent_seconds"`

	LoadFactor float64 `json:"load_factor"`
}

// loadFactor is monotonically non-decreasing in loadKg: heavier load
// never shortens the estimate.
func loadFactor(loadKg float64) float64 {
	if loadKg <= freeCarryKg {
		return 1.0
	}
	return 1.0 + loadPenaltyPerKg*(loadKg-freeCarryKg)
}

// EstimatePace computes the Naismith-style travel time for a candidate.
func EstimatePace(route *RouteCandidate, mode TravelMode, loadKg float64) (PaceEstimate, error) {
	params, ok := paceModes[mode]
	if !ok {
		return PaceEstimate{}, fmt.Errorf("%w: unknown travel mode %q", ErrInvalidRequest, mode)
	}
	if loadKg < 0 {
		return PaceEstimate{}, fmt.Errorf("%w: negative load_kg", ErrInvalidRequest)
	}

	foot := paceModes[ModeFoot]
	baseline := route.DistanceM/foot.FlatSpeedMS + route.AscentM*foot.AscentSecPerM

	factor := loadFactor(loadKg)
	distanceSec := route.DistanceM / params.FlatSpeedMS * factor
	ascentSec := route.AscentM * params.AscentSecPerM * factor

	return PaceEstimate{
		RouteID:         route.ID,
		Mode:            mode,
		LoadKg:          loadKg,
		TotalSeconds:    distanceSec + ascentSec,
		BaselineSeconds: baseline,
		DistanceSeconds: distanceSec,
		AscentSeconds:   ascentSec,
		LoadFactor:      factor,
	}, nil
}
