package core

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// MaxCandidates caps how many routes one generation call may produce.
const MaxCandidates = 3

// similarityThreshold is the Jaccard overlap above which a new candidate
// is considered a near-duplicate of an accepted one and discarded.
const similarityThreshold = 0.90

// unshelteredExposure is the class-exposure level at or above which a
// cell counts toward the route's open fraction.
const unshelteredExposure = 0.70

// generateResult carries the accepted candidates plus search accounting
// for metrics.
type generateResult struct {
	candidates []*RouteCandidate
	expanded   int
}

// generateCandidates produces up to maxCandidates distinct routes between
// start and end, one search per profile. Mode is a property of the
// bundle: road-only bundles route over the road graph, everything else
// uses the raster.
func generateCandidates(ctx context.Context, b *TerrainBundle, start, end Coordinate, maxCandidates int, profiles []Profile) (*generateResult, error) {
	if maxCandidates < 1 || maxCandidates > MaxCandidates {
		return nil, fmt.Errorf("%w: max_candidates must be 1..%d", ErrInvalidRequest, MaxCandidates)
	}
	if len(profiles) == 0 {
		profiles = DefaultProfiles
	}
	if len(profiles) > maxCandidates {
		profiles = profiles[:maxCandidates]
	}

	res := &generateResult{}
	var firstErr error
	for _, p := range profiles {
		w, err := weightsFor(p)
		if err != nil {
			return nil, err
		}

		var cand *RouteCandidate
		if b.RoadOnly() {
			cand, err = b.roadCandidate(start, end, p, w)
		} else {
			var expanded int
			cand, expanded, err = b.gridCandidate(ctx, start, end, p, w)
			res.expanded += expanded
		}
		if err != nil {
			// A timeout aborts the whole call: partial candidate sets
			// under a deadline would break determinism.
			if errors.Is(err, ErrSearchTimeout) || errors.Is(err, ErrOutOfBounds) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		duplicate := false
		for _, accepted := range res.candidates {
			if cand.similarity(accepted) > similarityThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			res.candidates = append(res.candidates, cand)
		}
	}

	if len(res.candidates) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: no candidate produced", ErrNotReachable)
	}
	return res, nil
}

//
// ---------- Grid mode ----------
//

func (b *TerrainBundle) gridCandidate(ctx context.Context, start, end Coordinate, p Profile, w profileWeights) (*RouteCandidate, int, error) {
	startCell, err := b.cellAt(start)
	if err != nil {
		return nil, 0, err
	}
	endCell, err := b.cellAt(end)
	if err != nil {
		return nil, 0, err
	}

	path, err := b.gridSearch(ctx, startCell, endCell, w)
	if err != nil {
		return nil, 0, err
	}

	cand := &RouteCandidate{
		Mode:       ModeGrid,
		Profile:    p,
		SearchCost: path.cost,
		keys:       make(map[string]struct{}, len(path.cells)),
	}

	var (
		distance      float64
		ascent        float64
		descent       float64
		maxGrade      float64
		unknownCells  int
		bucketTrail   float64
		bucketOpen    float64
		bucketWater   float64
		bucketUnknown float64
		openDist      float64
		grades        []float64
	)

	wps := make([]Waypoint, len(path.cells))
	for i, cell := range path.cells {
		cand.keys[fmt.Sprintf("%d,%d", cell.Row, cell.Col)] = struct{}{}
		class := b.classAt(cell)
		if class == LandcoverUnknown {
			unknownCells++
		}

		if i > 0 {
			prev := path.cells[i-1]
			dr := float64(cell.Row - prev.Row)
			dc := float64(cell.Col - prev.Col)
			seg := b.cellSizeM * math.Sqrt(dr*dr+dc*dc)
			distance += seg

			dElev := b.elevationAtCell(cell) - b.elevationAtCell(prev)
			if dElev > 0 {
				ascent += dElev
			} else {
				descent -= dElev
			}
			grade := math.Abs(dElev) / seg
			grades = append(grades, grade)
			if grade > maxGrade {
				maxGrade = grade
			}

			switch class {
			case LandcoverTrail, LandcoverRoad:
				bucketTrail += seg
			case LandcoverOpen:
				bucketOpen += seg
			case LandcoverWater, LandcoverWetland:
				bucketWater += seg
			case LandcoverUnknown:
				bucketUnknown += seg
			}
			// Unsheltered classes feed the exposure risk component.
			if b.ClassAttributes(class).Exposure >= unshelteredExposure {
				openDist += seg
			}
		}

		wps[i] = Waypoint{
			Coord:        b.cellCenter(cell),
			Elevation:    b.elevationAtCell(cell),
			HasElevation: true,
			Kind:         StepCell,
			Class:        class,
			KmMark:       distance / 1000.0,
		}
	}
	labelCheckpoints(wps)

	cand.Waypoints = wps
	cand.DistanceM = distance
	cand.AscentM = ascent
	cand.DescentM = descent
	cand.MaxGradeDeg = math.Atan(maxGrade) * 180.0 / math.Pi
	cand.SustainedGrade = sustainedGrade(grades)
	if distance > 0 {
		cand.Coverage = Coverage{
			Trail:   bucketTrail / distance,
			Open:    bucketOpen / distance,
			Water:   bucketWater / distance,
			Unknown: bucketUnknown / distance,
		}
		cand.OpenFraction = clamp01(openDist / distance)
	}
	if len(path.cells) > 0 {
		cand.Uncertainty = float64(unknownCells) / float64(len(path.cells))
	}
	return cand, path.expanded, nil
}

// sustainedGrade returns the largest 3-step moving mean of |rise/run|.
// Short routes fall back to the mean of whatever steps exist.
func sustainedGrade(grades []float64) float64 {
	if len(grades) == 0 {
		return 0
	}
	window := 3
	if len(grades) < window {
		sum := 0.0
		for _, g := range grades {
			sum += g
		}
		return sum / float64(len(grades))
	}
	best := 0.0
	for i := 0; i+window <= len(grades); i++ {
		sum := 0.0
		for _, g := range grades[i : i+window] {
			sum += g
		}
		if mean := sum / float64(window); mean > best {
			best = mean
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

//
// ---------- Road mode ----------
//

// roadCandidate routes over the road graph. Start and end snap to their
// nearest nodes; a node outside the largest connected component is
// re-snapped into it, a documented approximation that trades exact
// endpoints for reachability.
func (b *TerrainBundle) roadCandidate(start, end Coordinate, p Profile, w profileWeights) (*RouteCandidate, error) {
	g := b.roads
	startNode, err := g.NearestNode(start, nil)
	if err != nil {
		return nil, err
	}
	endNode, err := g.NearestNode(end, nil)
	if err != nil {
		return nil, err
	}
	if !g.InLargestComponent(startNode.ID) {
		if startNode, err = g.NearestNode(start, g.InLargestComponent); err != nil {
			return nil, err
		}
	}
	if !g.InLargestComponent(endNode.ID) {
		if endNode, err = g.NearestNode(end, g.InLargestComponent); err != nil {
			return nil, err
		}
	}

	path, cost, err := g.shortestRoadPath(startNode.ID, endNode.ID, w.roadMultiplier)
	if err != nil {
		return nil, err
	}

	cand := &RouteCandidate{
		Mode:       ModeRoad,
		Profile:    p,
		SearchCost: cost,
		keys:       make(map[string]struct{}, len(path)),
		// No terrain samples back a road-only bundle, so the whole
		// route is uncertain.
		Uncertainty: 1.0,
	}

	distance := 0.0
	wps := make([]Waypoint, len(path))
	for i, id := range path {
		node, _ := g.Node(id)
		cand.keys[id] = struct{}{}
		if i > 0 {
			prev, _ := g.Node(path[i-1])
			distance += edgeLength(g, prev.ID, id, prev.Coord, node.Coord)
		}
		wps[i] = Waypoint{
			Coord:  node.Coord,
			Kind:   StepRoadNode,
			Class:  LandcoverUnknown,
			KmMark: distance / 1000.0,
		}
	}
	labelCheckpoints(wps)

	cand.Waypoints = wps
	cand.DistanceM = distance
	return cand, nil
}

// edgeLength returns the raw (unweighted) length of the shortest edge
// between two adjacent nodes, falling back to planar distance when the
// adjacency entry is missing.
func edgeLength(g *RoadGraph, fromID, toID string, from, to Coordinate) float64 {
	best := math.Inf(1)
	for _, e := range g.adj[fromID] {
		if e.To == toID && e.LengthM < best {
			best = e.LengthM
		}
	}
	if math.IsInf(best, 1) {
		return from.DistanceTo(to)
	}
	return best
}
