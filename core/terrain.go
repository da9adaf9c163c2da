package core

import (
	"fmt"
	"time"
)

// TerrainTTL is the fixed freshness window for terrain fixtures. Bundles
// older than this are flagged stale in every response; staleness never
// blocks a result.
const TerrainTTL = 30 * 24 * time.Hour

// LandcoverClass classifies a single grid cell.
type LandcoverClass string

const (
	LandcoverTrail    LandcoverClass = "trail"
	LandcoverRoad     LandcoverClass = "road"
	LandcoverOpen     LandcoverClass = "open"
	LandcoverForest   LandcoverClass = "forest"
	LandcoverWetland  LandcoverClass = "wetland"
	LandcoverWater    LandcoverClass = "water"
	LandcoverObstacle LandcoverClass = "obstacle"
	LandcoverUnknown  LandcoverClass = "unknown"
)

// ClassAttributes describes how a landcover class affects movement.
type ClassAttributes struct {
	// CostFactor scales horizontal step cost; 1.0 is neutral open ground.
	CostFactor float64
	// Exposure in [0,1]: how unsheltered the class is.
	Exposure float64
	// SpeedModifier scales pace over the class; 1.0 is neutral.
	SpeedModifier float64
	// Blocked cells cannot be entered by the grid search.
	Blocked bool
}

// defaultClassAttributes covers every class a fixture may omit.
var defaultClassAttributes = map[LandcoverClass]ClassAttributes{
	LandcoverTrail:    {CostFactor: 0.70, Exposure: 0.60, SpeedModifier: 1.10},
	LandcoverRoad:     {CostFactor: 0.65, Exposure: 0.80, SpeedModifier: 1.15},
	LandcoverOpen:     {CostFactor: 1.00, Exposure: 1.00, SpeedModifier: 1.00},
	LandcoverForest:   {CostFactor: 1.20, Exposure: 0.20, SpeedModifier: 0.85},
	LandcoverWetland:  {CostFactor: 1.80, Exposure: 0.50, SpeedModifier: 0.60},
	LandcoverWater:    {CostFactor: 2.50, Exposure: 0.90, SpeedModifier: 0.30},
	LandcoverObstacle: {CostFactor: 1.00, Exposure: 1.00, SpeedModifier: 1.00, Blocked: true},
	LandcoverUnknown:  {CostFactor: 1.30, Exposure: 0.50, SpeedModifier: 0.90},
}

// HazardType tags an obstacle polygon.
type HazardType string

const (
	HazardWater      HazardType = "water"
	HazardMarsh      HazardType = "marsh"
	HazardFlood      HazardType = "flood"
	HazardDebris     HazardType = "debris"
	HazardRestricted HazardType = "restricted"
)

// hazardSeverity feeds the hydrology risk component. Non-water hazards
// contribute nothing to hydrology but still block grid cells.
var hazardSeverity = map[HazardType]float64{
	HazardWater: 1.0,
	HazardFlood: 0.8,
	HazardMarsh: 0.6,
}

// Obstacle is a hazard polygon in the same frame as the grids.
type Obstacle struct {
	Ring    []Coordinate
	Hazard  HazardType
	BufferM float64
}

// RouteMode discriminates grid-search routes from road-graph routes.
type RouteMode string

const (
	ModeGrid RouteMode = "grid"
	ModeRoad RouteMode = "road"
)

type gridCell struct {
	Row, Col int
}

// TerrainBundleConfig is the input to NewTerrainBundle. The loader
// collaborator (terrainio) fills it from fixture files; the core never
// reads files itself.
type TerrainBundleConfig struct {
	Origin    Coordinate
	CellSizeM float64

	// Elevation and Landcover must share dimensions when both present.
	// A bundle with fewer than 2x2 usable cells is road-only.
	Elevation [][]float64
	Landcover [][]LandcoverClass
	Classes   map[LandcoverClass]ClassAttributes

	RoadNodes []RoadNode
	RoadEdges []RoadEdge
	Obstacles []Obstacle

	Provenance time.Time
}

// TerrainBundle is the immutable, validated in-memory terrain model.
// All queries are side-effect-free; construction decides the routing
// mode once for the bundle's lifetime.
type TerrainBundle struct {
	origin    Coordinate
	cellSizeM float64

	elevation [][]float64
	landcover [][]LandcoverClass
	classes   map[LandcoverClass]ClassAttributes
	rows      int
	cols      int

	roads     *RoadGraph
	obstacles []Obstacle
	blocked   map[gridCell]bool

	provenance time.Time
	roadOnly   bool
}

// NewTerrainBundle validates cfg and builds the bundle. Grid dimensions
// must agree, every referenced road edge endpoint must exist, and a
// provenance timestamp is required.
func NewTerrainBundle(cfg TerrainBundleConfig) (*TerrainBundle, error) {
	if cfg.Provenance.IsZero() {
		return nil, fmt.Errorf("%w: missing provenance timestamp", ErrInvalidBundle)
	}

	rows := len(cfg.Elevation)
	cols := 0
	if rows > 0 {
		cols = len(cfg.Elevation[0])
		for i, row := range cfg.Elevation {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: ragged elevation grid at row %d", ErrInvalidBundle, i)
			}
		}
	}
	if len(cfg.Landcover) > 0 {
		if len(cfg.Landcover) != rows {
			return nil, fmt.Errorf("%w: landcover rows %d != elevation rows %d", ErrInvalidBundle, len(cfg.Landcover), rows)
		}
		for i, row := range cfg.Landcover {
			if len(row) != cols {
				return nil, fmt.Errorf("%w: ragged landcover grid at row %d", ErrInvalidBundle, i)
			}
		}
	}

	roadOnly := rows < 2 || cols < 2
	if !roadOnly && cfg.CellSizeM <= 0 {
		return nil, fmt.Errorf("%w: non-positive cell size", ErrInvalidBundle)
	}
	if roadOnly && len(cfg.RoadNodes) == 0 {
		return nil, fmt.Errorf("%w: neither usable grids nor road graph", ErrInvalidBundle)
	}

	classes := make(map[LandcoverClass]ClassAttributes, len(defaultClassAttributes))
	for class, attrs := range defaultClassAttributes {
		classes[class] = attrs
	}
	for class, attrs := range cfg.Classes {
		classes[class] = attrs
	}

	var roads *RoadGraph
	if len(cfg.RoadNodes) > 0 {
		g, err := NewRoadGraph(cfg.RoadNodes, cfg.RoadEdges)
		if err != nil {
			return nil, err
		}
		roads = g
	} else if roadOnly {
		return nil, fmt.Errorf("%w: road-only bundle without road graph", ErrInvalidBundle)
	}

	b := &TerrainBundle{
		origin:     cfg.Origin,
		cellSizeM:  cfg.CellSizeM,
		elevation:  cfg.Elevation,
		landcover:  cfg.Landcover,
		classes:    classes,
		rows:       rows,
		cols:       cols,
		roads:      roads,
		obstacles:  cfg.Obstacles,
		provenance: cfg.Provenance,
		roadOnly:   roadOnly,
	}
	if !roadOnly {
		b.blocked = b.buildBlockedMask()
	}
	return b, nil
}

// RoadOnly reports whether this bundle routes exclusively over the road
// graph. Decided once at construction, never per call.
func (b *TerrainBundle) RoadOnly() bool { return b.roadOnly }

// Provenance returns the fixture timestamp.
func (b *TerrainBundle) Provenance() time.Time { return b.provenance }

// Stale reports whether the bundle's provenance age exceeds TerrainTTL.
func (b *TerrainBundle) Stale(now time.Time) bool {
	return now.Sub(b.provenance) > TerrainTTL
}

// Roads returns the bundle's road graph, which may be nil for pure grid
// bundles.
func (b *TerrainBundle) Roads() *RoadGraph { return b.roads }

// Obstacles returns the bundle's hazard polygons.
func (b *TerrainBundle) Obstacles() []Obstacle { return b.obstacles }

// CellSizeM returns the grid resolution in metres.
func (b *TerrainBundle) CellSizeM() float64 { return b.cellSizeM }

// ElevationAt returns the height sample for the cell containing c.
func (b *TerrainBundle) ElevationAt(c Coordinate) (float64, error) {
	cell, err := b.cellAt(c)
	if err != nil {
		return 0, err
	}
	return b.elevation[cell.Row][cell.Col], nil
}

// LandcoverAt returns the landcover class for the cell containing c.
// Cells outside any landcover grid are LandcoverUnknown.
func (b *TerrainBundle) LandcoverAt(c Coordinate) (LandcoverClass, error) {
	cell, err := b.cellAt(c)
	if err != nil {
		return LandcoverUnknown, err
	}
	return b.classAt(cell), nil
}

// NearestRoadNode snaps c to the closest node of the road graph.
func (b *TerrainBundle) NearestRoadNode(c Coordinate) (RoadNode, error) {
	if b.roads == nil {
		return RoadNode{}, fmt.Errorf("%w: bundle has no road graph", ErrOutOfBounds)
	}
	return b.roads.NearestNode(c, nil)
}

// ClassAttributes returns the movement attributes for class, falling back
// to the unknown-class attributes for unrecognised names.
func (b *TerrainBundle) ClassAttributes(class LandcoverClass) ClassAttributes {
	if attrs, ok := b.classes[class]; ok {
		return attrs
	}
	return b.classes[LandcoverUnknown]
}

//
// ---------- Grid indexing ----------
//

// cellAt maps a coordinate into grid indices, failing with ErrOutOfBounds
// when the coordinate falls outside the grid extent.
func (b *TerrainBundle) cellAt(c Coordinate) (gridCell, error) {
	if b.rows == 0 || b.cols == 0 {
		return gridCell{}, fmt.Errorf("%w: bundle has no grids", ErrOutOfBounds)
	}
	row := int((c.Lat - b.origin.Lat) * MetersPerDegreeLat / b.cellSizeM)
	col := int((c.Lon - b.origin.Lon) * MetersPerDegreeLon / b.cellSizeM)
	cell := gridCell{Row: row, Col: col}
	if !b.inBounds(cell) {
		return gridCell{}, fmt.Errorf("%w: lat=%.6f lon=%.6f", ErrOutOfBounds, c.Lat, c.Lon)
	}
	return cell, nil
}

func (b *TerrainBundle) inBounds(cell gridCell) bool {
	return cell.Row >= 0 && cell.Row < b.rows && cell.Col >= 0 && cell.Col < b.cols
}

// cellCenter returns the coordinate at the centre of a cell.
func (b *TerrainBundle) cellCenter(cell gridCell) Coordinate {
	return Coordinate{
		Lat: b.origin.Lat + (float64(cell.Row)+0.5)*b.cellSizeM/MetersPerDegreeLat,
		Lon: b.origin.Lon + (float64(cell.Col)+0.5)*b.cellSizeM/MetersPerDegreeLon,
	}
}

func (b *TerrainBundle) classAt(cell gridCell) LandcoverClass {
	if len(b.landcover) == 0 {
		return LandcoverUnknown
	}
	return b.landcover[cell.Row][cell.Col]
}

func (b *TerrainBundle) elevationAtCell(cell gridCell) float64 {
	return b.elevation[cell.Row][cell.Col]
}

// passable reports whether the grid search may enter the cell.
func (b *TerrainBundle) passable(cell gridCell) bool {
	if b.ClassAttributes(b.classAt(cell)).Blocked {
		return false
	}
	return !b.blocked[cell]
}

// buildBlockedMask precomputes which cells fall within an obstacle
// polygon (or its buffer). Hydrology hazards stay passable so that water
// crossings remain representable; everything else is a hard block.
func (b *TerrainBundle) buildBlockedMask() map[gridCell]bool {
	mask := make(map[gridCell]bool)
	for _, obs := range b.obstacles {
		if hazardSeverity[obs.Hazard] > 0 {
			continue
		}
		for row := 0; row < b.rows; row++ {
			for col := 0; col < b.cols; col++ {
				cell := gridCell{Row: row, Col: col}
				if mask[cell] {
					continue
				}
				if distanceToPolygon(b.cellCenter(cell), obs.Ring) <= obs.BufferM {
					mask[cell] = true
				}
			}
		}
	}
	return mask
}
