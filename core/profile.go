package core

import "fmt"

// Profile names a generation weight vector. Each profile biases the
// search toward a different terrain mix, which is what produces genuinely
// distinct candidates from the same start/end pair.
type Profile string

const (
	ProfileBalanced    Profile = "balanced"
	ProfileTrailPref   Profile = "trail_pref"
	ProfileLowExposure Profile = "low_exposure"
)

// DefaultProfiles is the generation order. The balanced profile always
// runs first so the primary candidate is its lowest-cost path.
var DefaultProfiles = []Profile{ProfileBalanced, ProfileTrailPref, ProfileLowExposure}

// profileWeights is the concrete weight vector behind a profile.
type profileWeights struct {
	// SlopeWeight scales the convex slope penalty.
	SlopeWeight float64
	// Multipliers adjust landcover cost factors; absent classes are 1.0.
	Multipliers map[LandcoverClass]float64
	// ExposurePenalty scales the per-cell exposure surcharge.
	ExposurePenalty float64
	// RoadMultipliers adjust road-class weights in road mode.
	RoadMultipliers map[RoadClass]float64
}

var profileTable = map[Profile]profileWeights{
	ProfileBalanced: {
		SlopeWeight: 1.0,
		Multipliers: map[LandcoverClass]float64{
			LandcoverTrail: 0.75,
			LandcoverRoad:  0.80,
		},
		ExposurePenalty: 0.05,
	},
	ProfileTrailPref: {
		SlopeWeight: 0.9,
		Multipliers: map[LandcoverClass]float64{
			LandcoverTrail:  0.60,
			LandcoverRoad:   0.85,
			LandcoverForest: 1.10,
			LandcoverOpen:   1.20,
		},
		ExposurePenalty: 0.03,
		RoadMultipliers: map[RoadClass]float64{
			RoadTrack: 0.85,
			RoadPath:  0.80,
		},
	},
	ProfileLowExposure: {
		SlopeWeight: 1.2,
		Multipliers: map[LandcoverClass]float64{
			LandcoverOpen:  1.40,
			LandcoverTrail: 0.85,
			LandcoverRoad:  0.80,
		},
		ExposurePenalty: 0.12,
		RoadMultipliers: map[RoadClass]float64{
			RoadPrimary: 1.30,
			RoadPath:    0.90,
		},
	},
}

// weightsFor resolves a profile name, rejecting unknown profiles.
func weightsFor(p Profile) (profileWeights, error) {
	w, ok := profileTable[p]
	if !ok {
		return profileWeights{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidRequest, p)
	}
	return w, nil
}

func (w profileWeights) landcoverMultiplier(class LandcoverClass) float64 {
	if m, ok := w.Multipliers[class]; ok {
		return m
	}
	return 1.0
}

func (w profileWeights) roadMultiplier(class RoadClass) float64 {
	if m, ok := w.RoadMultipliers[class]; ok {
		return m
	}
	return 1.0
}
