package terrainio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/mission-router/core"
)

const demJSON = `{
  "metadata": {
    "origin": {"lat": 34.0, "lon": -117.0},
    "cell_size_m": 100,
    "ttl_hours": 720,
    "last_updated": "2026-08-01T00:00:00Z"
  },
  "grid": [[420.0, 422.0], [423.5, 425.5]]
}`

const landcoverJSON = `{
  "metadata": {
    "origin": {"lat": 34.0, "lon": -117.0},
    "cell_size_m": 100,
    "ttl_hours": 720,
    "last_updated": "2026-07-15T00:00:00Z"
  },
  "grid": [["open", "trail"], ["forest", "open"]],
  "classes": {
    "open": {"cost_factor": 1.0, "exposure": 1.0, "speed_modifier": 1.0},
    "trail": {"cost_factor": 0.7, "exposure": 0.6, "speed_modifier": 1.1},
    "forest": {"cost_factor": 1.2, "exposure": 0.2, "speed_modifier": 0.85},
    "obstacle": {"cost_factor": 0, "exposure": 0, "speed_modifier": 0, "blocked": true}
  }
}`

const obstaclesJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[34.0006, -116.9994], [34.0006, -116.9988], [34.0012, -116.9988], [34.0012, -116.9994], [34.0006, -116.9994]]]},
      "properties": {"type": "water", "buffer_m": 15}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[34.0001, -116.9999], [34.0001, -116.9997], [34.0003, -116.9997], [34.0001, -116.9999]]]},
      "properties": {}
    }
  ]
}`

const roadsJSON = `{
  "type": "FeatureCollection",
  "metadata": {
    "origin": {"lat": 34.0, "lon": -117.0},
    "cell_size_m": 100,
    "ttl_hours": 720,
    "last_updated": "2026-08-10T00:00:00Z"
  },
  "features": [
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[34.0005, -116.9995], [34.0010, -116.9990], [34.0015, -116.9985]]},
      "properties": {"id": "ridge-track", "class": "track"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "LineString", "coordinates": [[34.0015, -116.9985], [34.0020, -116.9980]]},
      "properties": {"id": "east-spur", "class": "path"}
    }
  ]
}`

func TestLoadDEM(t *testing.T) {
	dem, err := LoadDEM(strings.NewReader(demJSON))
	if err != nil {
		t.Fatalf("LoadDEM failed: %v", err)
	}
	if dem.Metadata.Origin.Lat != 34.0 || dem.Metadata.Origin.Lon != -117.0 {
		t.Fatalf("origin = %+v", dem.Metadata.Origin)
	}
	if dem.Metadata.CellSizeM != 100 {
		t.Fatalf("cell size = %v", dem.Metadata.CellSizeM)
	}
	if len(dem.Grid) != 2 || dem.Grid[1][0] != 423.5 {
		t.Fatalf("grid = %v", dem.Grid)
	}
}

func TestLoadLandcover(t *testing.T) {
	lc, err := LoadLandcover(strings.NewReader(landcoverJSON))
	if err != nil {
		t.Fatalf("LoadLandcover failed: %v", err)
	}
	if lc.Grid[0][1] != core.LandcoverTrail {
		t.Fatalf("cell (0,1) = %s", lc.Grid[0][1])
	}
	trail, ok := lc.Classes[core.LandcoverTrail]
	if !ok {
		t.Fatal("trail class missing from table")
	}
	if trail.CostFactor != 0.7 || trail.SpeedModifier != 1.1 {
		t.Fatalf("trail attrs = %+v", trail)
	}
	if !lc.Classes[core.LandcoverObstacle].Blocked {
		t.Fatal("obstacle class not blocked")
	}
}

func TestLoadObstacles(t *testing.T) {
	obstacles, err := LoadObstacles(strings.NewReader(obstaclesJSON))
	if err != nil {
		t.Fatalf("LoadObstacles failed: %v", err)
	}
	if len(obstacles) != 2 {
		t.Fatalf("obstacles = %d, want 2", len(obstacles))
	}
	water := obstacles[0]
	if water.Hazard != core.HazardWater {
		t.Fatalf("hazard = %s", water.Hazard)
	}
	if water.BufferM != 15 {
		t.Fatalf("buffer = %v", water.BufferM)
	}
	// Positions are stored lat,lon.
	if water.Ring[0].Lat != 34.0006 || water.Ring[0].Lon != -116.9994 {
		t.Fatalf("ring[0] = %+v", water.Ring[0])
	}
	// Untyped features fall back to a generic obstacle with no buffer.
	if obstacles[1].Hazard != core.HazardType("obstacle") || obstacles[1].BufferM != 0 {
		t.Fatalf("default obstacle = %+v", obstacles[1])
	}
}

func TestLoadObstaclesRejectsNonPolygon(t *testing.T) {
	body := `{"features": [{"geometry": {"type": "Point", "coordinates": [34.0, -117.0]}, "properties": {}}]}`
	if _, err := LoadObstacles(strings.NewReader(body)); err == nil {
		t.Fatal("expected error for non-polygon geometry")
	}
}

func TestLoadRoadsJoinsSharedVertices(t *testing.T) {
	roads, err := LoadRoads(strings.NewReader(roadsJSON))
	if err != nil {
		t.Fatalf("LoadRoads failed: %v", err)
	}
	// The spur starts where the track ends, so the shared vertex becomes
	// one node: 4 nodes, not 5.
	if len(roads.Nodes) != 4 {
		t.Fatalf("nodes = %d, want 4", len(roads.Nodes))
	}
	if len(roads.Edges) != 3 {
		t.Fatalf("edges = %d, want 3", len(roads.Edges))
	}
	if roads.Nodes[0].ID != "n000" || roads.Nodes[3].ID != "n003" {
		t.Fatalf("node ids = %s..%s", roads.Nodes[0].ID, roads.Nodes[3].ID)
	}

	// The spur edge hangs off the track's terminal node.
	spur := roads.Edges[2]
	if spur.Class != core.RoadPath {
		t.Fatalf("spur class = %s", spur.Class)
	}
	if spur.From != "n002" {
		t.Fatalf("spur starts at %s, want the shared node n002", spur.From)
	}
	if roads.Edges[0].Class != core.RoadTrack {
		t.Fatalf("track class = %s", roads.Edges[0].Class)
	}
	if roads.Metadata == nil || !roads.Metadata.LastUpdated.Equal(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("metadata = %+v", roads.Metadata)
	}
}

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadAssemblesFullBundleConfig(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, DEMFile, demJSON)
	writeFixture(t, dir, LandcoverFile, landcoverJSON)
	writeFixture(t, dir, ObstaclesFile, obstaclesJSON)
	writeFixture(t, dir, RoadsFile, roadsJSON)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Origin.Lat != 34.0 || cfg.CellSizeM != 100 {
		t.Fatalf("origin/cell = %+v/%v", cfg.Origin, cfg.CellSizeM)
	}
	if len(cfg.Elevation) != 2 || len(cfg.Landcover) != 2 {
		t.Fatalf("grids = %dx / %dx", len(cfg.Elevation), len(cfg.Landcover))
	}
	if len(cfg.Obstacles) != 2 || len(cfg.RoadNodes) != 4 {
		t.Fatalf("obstacles/nodes = %d/%d", len(cfg.Obstacles), len(cfg.RoadNodes))
	}
	// Freshness follows the oldest dataset, here the landcover fixture.
	want := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	if !cfg.Provenance.Equal(want) {
		t.Fatalf("provenance = %s, want %s", cfg.Provenance, want)
	}
}

func TestLoadRoadOnlyDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, RoadsFile, roadsJSON)

	bundle, err := LoadBundle(dir)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	if !bundle.RoadOnly() {
		t.Fatal("bundle with only roads should be road-only")
	}
	if !bundle.Provenance().Equal(time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("provenance = %s", bundle.Provenance())
	}
}

func TestLoadRequiresSomeMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, ObstaclesFile, obstaclesJSON)

	if _, err := Load(dir); !errors.Is(err, errMissingMetadata) {
		t.Fatalf("expected missing-metadata error, got %v", err)
	}
}

func TestLoadBundleHappyPath(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, DEMFile, demJSON)
	writeFixture(t, dir, LandcoverFile, landcoverJSON)

	bundle, err := LoadBundle(dir)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	if bundle.RoadOnly() {
		t.Fatal("2x2 grid bundle should not be road-only")
	}
	elev, err := bundle.ElevationAt(core.Coordinate{Lat: 34.0005, Lon: -116.9995})
	if err != nil {
		t.Fatalf("ElevationAt failed: %v", err)
	}
	if elev != 420.0 {
		t.Fatalf("elevation = %v, want 420", elev)
	}
}

func TestLoadBadFixtureSurfacesParseError(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, DEMFile, "{not json")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
