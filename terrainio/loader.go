// Package terrainio parses local terrain fixtures (elevation, landcover,
// roads, obstacles) into the core's TerrainBundleConfig. The engine never
// reads files itself; this package is its loading collaborator.
//
// Fixture geometry stores positions in lat, lon order to match the
// producing conversion tooling.
package terrainio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/signalsfoundry/mission-router/core"
)

// Fixture file names expected inside a terrain directory.
const (
	DEMFile       = "dem.json"
	LandcoverFile = "landcover.json"
	ObstaclesFile = "obstacles.geojson"
	RoadsFile     = "roads.geojson"
)

var errMissingMetadata = errors.New("terrainio: no fixture carries provenance metadata")

// gridMetadata is the shared header of dem.json and landcover.json.
type gridMetadata struct {
	Origin struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"origin"`
	CellSizeM   float64   `json:"cell_size_m"`
	TTLHours    float64   `json:"ttl_hours"`
	LastUpdated time.Time `json:"last_updated"`
}

// DEM is a parsed elevation fixture.
type DEM struct {
	Metadata gridMetadata
	Grid     [][]float64
}

// Landcover is a parsed landcover fixture with its class table.
type Landcover struct {
	Metadata gridMetadata
	Grid     [][]core.LandcoverClass
	Classes  map[core.LandcoverClass]core.ClassAttributes
}

// LoadDEM parses a dem.json stream.
func LoadDEM(r io.Reader) (*DEM, error) {
	var payload struct {
		Metadata gridMetadata `json:"metadata"`
		Grid     [][]float64  `json:"grid"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse dem: %w", err)
	}
	return &DEM{Metadata: payload.Metadata, Grid: payload.Grid}, nil
}

// LoadLandcover parses a landcover.json stream.
func LoadLandcover(r io.Reader) (*Landcover, error) {
	var payload struct {
		Metadata gridMetadata              `json:"metadata"`
		Grid     [][]core.LandcoverClass   `json:"grid"`
		Classes  map[string]classOverrides `json:"classes"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse landcover: %w", err)
	}

	classes := make(map[core.LandcoverClass]core.ClassAttributes, len(payload.Classes))
	for name, ov := range payload.Classes {
		classes[core.LandcoverClass(name)] = core.ClassAttributes{
			CostFactor:    ov.CostFactor,
			Exposure:      ov.Exposure,
			SpeedModifier: ov.SpeedModifier,
			Blocked:       ov.Blocked,
		}
	}
	return &Landcover{Metadata: payload.Metadata, Grid: payload.Grid, Classes: classes}, nil
}

type classOverrides struct {
	CostFactor    float64 `json:"cost_factor"`
	Exposure      float64 `json:"exposure"`
	SpeedModifier float64 `json:"speed_modifier"`
	Blocked       bool    `json:"blocked,omitempty"`
}

// geoFeatureCollection is the subset of GeoJSON the fixtures use.
type geoFeatureCollection struct {
	Metadata *gridMetadata `json:"metadata,omitempty"`
	Features []struct {
		Geometry struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

// LoadObstacles parses an obstacles.geojson stream of polygon features
// tagged with a hazard type and an optional buffer.
func LoadObstacles(r io.Reader) ([]core.Obstacle, error) {
	var payload geoFeatureCollection
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse obstacles: %w", err)
	}

	obstacles := make([]core.Obstacle, 0, len(payload.Features))
	for i, feat := range payload.Features {
		if feat.Geometry.Type != "Polygon" {
			return nil, fmt.Errorf("obstacle feature %d: unsupported geometry %q", i, feat.Geometry.Type)
		}
		var rings [][][2]float64
		if err := json.Unmarshal(feat.Geometry.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("obstacle feature %d: %w", i, err)
		}
		if len(rings) == 0 {
			continue
		}
		ring := make([]core.Coordinate, len(rings[0]))
		for j, pt := range rings[0] {
			ring[j] = core.Coordinate{Lat: pt[0], Lon: pt[1]}
		}

		hazard := core.HazardType("obstacle")
		if t, ok := feat.Properties["type"].(string); ok && t != "" {
			hazard = core.HazardType(t)
		}
		buffer := 0.0
		if b, ok := feat.Properties["buffer_m"].(float64); ok {
			buffer = b
		}
		obstacles = append(obstacles, core.Obstacle{Ring: ring, Hazard: hazard, BufferM: buffer})
	}
	return obstacles, nil
}

// Roads is a parsed road fixture, already converted to graph form.
// Polylines sharing a vertex (to coordinate precision) are joined at a
// common node, so crossing roads connect.
type Roads struct {
	Metadata *gridMetadata
	Nodes    []core.RoadNode
	Edges    []core.RoadEdge
}

// LoadRoads parses a roads.geojson stream of LineString features with an
// id and an optional class property.
func LoadRoads(r io.Reader) (*Roads, error) {
	var payload geoFeatureCollection
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse roads: %w", err)
	}

	nodeIDs := map[string]string{}
	var nodes []core.RoadNode
	var edges []core.RoadEdge

	nodeFor := func(c core.Coordinate) string {
		key := vertexKey(c)
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("n%03d", len(nodes))
		nodeIDs[key] = id
		nodes = append(nodes, core.RoadNode{ID: id, Coord: c})
		return id
	}

	for i, feat := range payload.Features {
		if feat.Geometry.Type != "LineString" {
			return nil, fmt.Errorf("road feature %d: unsupported geometry %q", i, feat.Geometry.Type)
		}
		var line [][2]float64
		if err := json.Unmarshal(feat.Geometry.Coordinates, &line); err != nil {
			return nil, fmt.Errorf("road feature %d: %w", i, err)
		}
		if len(line) < 2 {
			continue
		}

		class := core.RoadTrack
		if c, ok := feat.Properties["class"].(string); ok && c != "" {
			class = core.RoadClass(c)
		}
		prev := nodeFor(core.Coordinate{Lat: line[0][0], Lon: line[0][1]})
		for _, pt := range line[1:] {
			next := nodeFor(core.Coordinate{Lat: pt[0], Lon: pt[1]})
			edges = append(edges, core.RoadEdge{From: prev, To: next, Class: class})
			prev = next
		}
	}
	return &Roads{Metadata: payload.Metadata, Nodes: nodes, Edges: edges}, nil
}

// vertexKey joins vertices that agree to about 0.1 m.
func vertexKey(c core.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", round6(c.Lat), round6(c.Lon))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Load reads every fixture present in dir and assembles the bundle
// configuration. dem.json and landcover.json are optional as a pair:
// when both are absent the bundle is road-only. roads.geojson and
// obstacles.geojson are optional individually.
func Load(dir string) (core.TerrainBundleConfig, error) {
	var cfg core.TerrainBundleConfig
	var stamps []time.Time

	dem, err := loadOptional(dir, DEMFile, LoadDEM)
	if err != nil {
		return cfg, err
	}
	if dem != nil {
		cfg.Origin = core.Coordinate{Lat: dem.Metadata.Origin.Lat, Lon: dem.Metadata.Origin.Lon}
		cfg.CellSizeM = dem.Metadata.CellSizeM
		cfg.Elevation = dem.Grid
		stamps = append(stamps, dem.Metadata.LastUpdated)
	}

	lc, err := loadOptional(dir, LandcoverFile, LoadLandcover)
	if err != nil {
		return cfg, err
	}
	if lc != nil {
		if dem == nil {
			cfg.Origin = core.Coordinate{Lat: lc.Metadata.Origin.Lat, Lon: lc.Metadata.Origin.Lon}
			cfg.CellSizeM = lc.Metadata.CellSizeM
		}
		cfg.Landcover = lc.Grid
		cfg.Classes = lc.Classes
		stamps = append(stamps, lc.Metadata.LastUpdated)
	}

	obstacles, err := loadOptional(dir, ObstaclesFile, LoadObstacles)
	if err != nil {
		return cfg, err
	}
	if obstacles != nil {
		cfg.Obstacles = obstacles
	}

	roads, err := loadOptional(dir, RoadsFile, LoadRoads)
	if err != nil {
		return cfg, err
	}
	if roads != nil {
		cfg.RoadNodes = roads.Nodes
		cfg.RoadEdges = roads.Edges
		if roads.Metadata != nil {
			stamps = append(stamps, roads.Metadata.LastUpdated)
		}
	}

	if len(stamps) == 0 {
		return cfg, errMissingMetadata
	}
	// The oldest dataset governs freshness.
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	cfg.Provenance = stamps[0]
	return cfg, nil
}

// LoadBundle is the common entry point: parse the directory and validate
// the result into a ready TerrainBundle.
func LoadBundle(dir string) (*core.TerrainBundle, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return core.NewTerrainBundle(cfg)
}

// loadOptional opens name under dir and parses it with parse, returning
// the zero value when the file does not exist.
func loadOptional[T any](dir, name string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, nil
		}
		return zero, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	parsed, err := parse(f)
	if err != nil {
		return zero, err
	}
	return parsed, nil
}
