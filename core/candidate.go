package core

import "fmt"

// StepKind distinguishes raster-search waypoints from road-graph
// waypoints inside the one RouteCandidate shape. Downstream components
// (risk, pace, export) handle both uniformly.
type StepKind string

const (
	StepCell     StepKind = "cell"
	StepRoadNode StepKind = "road_node"
)

// Waypoint is one ordered point along a candidate route.
type Waypoint struct {
	Coord        Coordinate     `json:"coord"`
	Elevation    float64        `json:"elevation"`
	HasElevation bool           `json:"has_elevation"`
	Kind         StepKind       `json:"kind"`
	Class        LandcoverClass `json:"class"`
	// KmMark is the cumulative distance from the start, kilometres.
	KmMark float64 `json:"km_mark"`
	// Label is set for checkpoints promoted into briefs and GPX
	// waypoint names ("START", "CP1", ..., "END").
	Label string `json:"label,omitempty"`
}

// Coverage holds route-length fractions per reported landcover bucket.
// Classes outside the four buckets (forest, obstacle fringes) account for
// the remainder, so the sum is <= 1.
type Coverage struct {
	Trail   float64 `json:"trail"`
	Open    float64 `json:"open"`
	Water   float64 `json:"water"`
	Unknown float64 `json:"unknown"`
}

// Sum returns the total of all reported fractions.
func (c Coverage) Sum() float64 {
	return c.Trail + c.Open + c.Water + c.Unknown
}

// RouteCandidate is an immutable generated route. The session cache owns
// all instances; derived assessments (risk, pace) are recomputed from the
// candidate plus terrain and never become the sole source of truth.
type RouteCandidate struct {
	ID        string     `json:"id"`
	Mode      RouteMode  `json:"mode"`
	Profile   Profile    `json:"profile"`
	Waypoints []Waypoint `json:"waypoints"`

	DistanceM float64 `json:"distance_m"`
	AscentM   float64 `json:"ascent_m"`
	DescentM  float64 `json:"descent_m"`
	// SearchCost is the dimensionless optimal cost under the profile's
	// cost model, kept for audit.
	SearchCost float64 `json:"search_cost"`

	Coverage Coverage `json:"coverage"`
	// Uncertainty is the fraction of route cells lacking valid terrain
	// samples (unknown landcover, or the whole route for road-only
	// bundles).
	Uncertainty float64 `json:"uncertainty"`

	// MaxGradeDeg is the steepest single-step slope in degrees.
	MaxGradeDeg float64 `json:"max_grade_deg"`
	// SustainedGrade is the largest 3-step moving mean of |rise/run|,
	// feeding the slope risk component.
	SustainedGrade float64 `json:"sustained_grade"`
	// OpenFraction is the route-length share over unsheltered classes,
	// feeding the exposure risk component.
	OpenFraction float64 `json:"open_fraction"`

	// keys identify the traversed cells or road nodes for similarity
	// comparison between candidates.
	keys map[string]struct{}
}

// similarity is the Jaccard overlap between the traversed cell/node sets
// of two candidates. Candidates above the diversity threshold are
// near-identical variants and are discarded at generation time.
func (r *RouteCandidate) similarity(other *RouteCandidate) float64 {
	if len(r.keys) == 0 || len(other.keys) == 0 {
		return 0
	}
	small, large := r.keys, other.keys
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for k := range small {
		if _, ok := large[k]; ok {
			shared++
		}
	}
	union := len(r.keys) + len(other.keys) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// labelCheckpoints promotes the start, the end, and roughly every sixth
// of the route into named checkpoints.
func labelCheckpoints(wps []Waypoint) {
	if len(wps) == 0 {
		return
	}
	wps[0].Label = "START"
	wps[len(wps)-1].Label = "END"
	if len(wps) < 3 {
		return
	}
	stride := (len(wps) - 1) / 6
	if stride < 1 {
		stride = 1
	}
	cp := 0
	for i := stride; i < len(wps)-1; i += stride {
		cp++
		wps[i].Label = fmt.Sprintf("CP%d", cp)
	}
}
