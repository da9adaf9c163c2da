package core

import (
	"container/heap"
	"context"
	"fmt"
	"math"
)

// steepGradeThreshold is the rise/run at which terrain is considered
// steep. It normalizes both the slope penalty curve and the slope risk
// component (0.30 is roughly a 16.7 degree grade).
const steepGradeThreshold = 0.30

// cancelCheckInterval is how many frontier pops pass between context
// checks during grid search.
const cancelCheckInterval = 256

// slopePenalty is the convex grade surcharge on step cost. It is 1.0 on
// flat ground, never negative, and grows quadratically so steep cells
// cost disproportionately more.
func slopePenalty(grade, slopeWeight float64) float64 {
	g := math.Abs(grade) / steepGradeThreshold
	return 1.0 + slopeWeight*g*g
}

// gridPath is the raw product of one A* run.
type gridPath struct {
	cells    []gridCell
	cost     float64
	expanded int
}

// minStepFactor is the lowest possible per-metre cost factor under the
// given weights: the cheapest non-blocked landcover class with a flat
// slope and zero exposure surcharge. Scaling straight-line distance by
// this factor yields an admissible A* heuristic.
func (b *TerrainBundle) minStepFactor(w profileWeights) float64 {
	min := math.Inf(1)
	for class, attrs := range b.classes {
		if attrs.Blocked {
			continue
		}
		if f := attrs.CostFactor * w.landcoverMultiplier(class); f < min {
			min = f
		}
	}
	if math.IsInf(min, 1) {
		return 1.0
	}
	return min
}

// stepCost prices the move from cell a into neighbouring cell dest:
// horizontal distance x landcover factor x convex slope penalty x
// exposure surcharge. All factors are >= the components assumed by the
// heuristic, so A* stays optimal for this cost model.
func (b *TerrainBundle) stepCost(a, dest gridCell, w profileWeights) float64 {
	dr := float64(dest.Row - a.Row)
	dc := float64(dest.Col - a.Col)
	moveDist := b.cellSizeM * math.Sqrt(dr*dr+dc*dc)

	attrs := b.ClassAttributes(b.classAt(dest))
	landFactor := attrs.CostFactor * w.landcoverMultiplier(b.classAt(dest))

	grade := (b.elevationAtCell(dest) - b.elevationAtCell(a)) / moveDist
	exposure := 1.0 + w.ExposurePenalty*attrs.Exposure

	return moveDist * landFactor * slopePenalty(grade, w.SlopeWeight) * exposure
}

var gridNeighbours = [8]gridCell{
	{Row: -1, Col: -1}, {Row: -1, Col: 0}, {Row: -1, Col: 1},
	{Row: 0, Col: -1}, {Row: 0, Col: 1},
	{Row: 1, Col: -1}, {Row: 1, Col: 0}, {Row: 1, Col: 1},
}

// gridSearch runs A* over the raster between two cells. The search is
// bounded by ctx: cancellation or deadline expiry aborts with
// ErrSearchTimeout and never returns a partial path.
func (b *TerrainBundle) gridSearch(ctx context.Context, start, goal gridCell, w profileWeights) (*gridPath, error) {
	if !b.inBounds(start) || !b.inBounds(goal) {
		return nil, fmt.Errorf("%w: search endpoint outside grid", ErrOutOfBounds)
	}
	if !b.passable(start) || !b.passable(goal) {
		return nil, fmt.Errorf("%w: search endpoint blocked", ErrNotReachable)
	}

	minFactor := b.minStepFactor(w)
	h := func(c gridCell) float64 {
		dr := float64(goal.Row - c.Row)
		dc := float64(goal.Col - c.Col)
		return b.cellSizeM * math.Sqrt(dr*dr+dc*dc) * minFactor
	}

	gScore := map[gridCell]float64{start: 0}
	cameFrom := map[gridCell]gridCell{}
	closed := map[gridCell]bool{}

	pq := &searchQueue{}
	heap.Init(pq)
	heap.Push(pq, &searchItem{cell: start, priority: h(start)})

	expanded := 0
	for pq.Len() > 0 {
		if expanded%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
			}
		}

		current := heap.Pop(pq).(*searchItem).cell
		if closed[current] {
			continue
		}
		closed[current] = true
		expanded++

		if current == goal {
			path := []gridCell{current}
			for {
				prev, ok := cameFrom[current]
				if !ok {
					break
				}
				current = prev
				path = append(path, current)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return &gridPath{cells: path, cost: gScore[goal], expanded: expanded}, nil
		}

		for _, d := range gridNeighbours {
			next := gridCell{Row: current.Row + d.Row, Col: current.Col + d.Col}
			if !b.inBounds(next) || !b.passable(next) {
				continue
			}
			tentative := gScore[current] + b.stepCost(current, next, w)
			if old, seen := gScore[next]; seen && tentative >= old {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current
			heap.Push(pq, &searchItem{cell: next, priority: tentative + h(next)})
		}
	}

	return nil, fmt.Errorf("%w: no grid path between endpoints", ErrNotReachable)
}
