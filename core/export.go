package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"text/template"
	"time"
)

// SchemaFingerprint identifies the response and artifact schema. It
// changes whenever a field is added or renamed so downstream consumers
// can detect drift.
const SchemaFingerprint = "mission-router/route-plan/v1.2.0"

// CRSIdentifier is fixed: all coordinates are WGS 84 lat/lon.
const CRSIdentifier = "EPSG:4326"

var basenameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ExportedFile is one written artifact plus its content checksum.
type ExportedFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ExportBundle describes the three artifacts produced for a selection.
// Export is idempotent: identical inputs reproduce byte-identical files
// and checksums.
type ExportBundle struct {
	Basename string       `json:"basename"`
	GeoJSON  ExportedFile `json:"geojson"`
	GPX      ExportedFile `json:"gpx"`
	Brief    ExportedFile `json:"brief"`

	Schema string `json:"schema"`
	CRS    string `json:"crs"`
	// WaypointParity asserts every route waypoint appears as a GPX
	// <wpt> element, not merely as a track point.
	WaypointParity bool `json:"waypoint_parity"`
}

// Exporter writes briefing artifacts beneath Dir.
type Exporter struct {
	Dir string
}

// exportInput gathers everything the artifacts render.
type exportInput struct {
	Route      *RouteCandidate
	Risk       RiskAssessment
	Pace       PaceEstimate
	Selection  *SelectionResult
	Provenance time.Time
	Stale      bool
}

// Export writes <basename>.geojson, <basename>.gpx and <basename>.md and
// returns their checksums. Artifact content is derived exclusively from
// the selection and terrain provenance (no wall clock), which is what
// makes re-export byte-stable.
func (e *Exporter) Export(basename string, in exportInput) (*ExportBundle, error) {
	base := sanitizeBasename(basename, in.Route.ID)
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	geo, err := renderGeoJSON(in)
	if err != nil {
		return nil, err
	}
	gpx, err := renderGPX(in.Route)
	if err != nil {
		return nil, err
	}
	brief, err := renderBrief(in)
	if err != nil {
		return nil, err
	}

	bundle := &ExportBundle{
		Basename:       base,
		Schema:         SchemaFingerprint,
		CRS:            CRSIdentifier,
		WaypointParity: gpxWaypointCount(gpx) == len(in.Route.Waypoints),
	}
	files := []struct {
		ext  string
		body []byte
		out  *ExportedFile
	}{
		{".geojson", geo, &bundle.GeoJSON},
		{".gpx", gpx, &bundle.GPX},
		{".md", brief, &bundle.Brief},
	}
	for _, f := range files {
		path := filepath.Join(e.Dir, base+f.ext)
		if err := os.WriteFile(path, f.body, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		sum := sha256.Sum256(f.body)
		*f.out = ExportedFile{Path: path, SHA256: hex.EncodeToString(sum[:])}
	}
	return bundle, nil
}

func sanitizeBasename(candidate, fallback string) string {
	cleaned := basenameSanitizer.ReplaceAllString(candidate, "-")
	cleaned = trimDashes(cleaned)
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

func trimDashes(s string) string {
	for len(s) > 0 && (s[0] == '-' || s[0] == '_') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == '-' || s[len(s)-1] == '_') {
		s = s[:len(s)-1]
	}
	return s
}

//
// ---------- GeoJSON ----------
//

type geoFeatureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

type geoFeature struct {
	Type       string        `json:"type"`
	Geometry   geoGeometry   `json:"geometry"`
	Properties geoProperties `json:"properties"`
}

type geoGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type geoProperties struct {
	ID        string         `json:"id"`
	Mode      RouteMode      `json:"mode"`
	Profile   Profile        `json:"profile"`
	DistanceM float64        `json:"distance_m"`
	AscentM   float64        `json:"ascent_m"`
	DescentM  float64        `json:"descent_m"`
	Risk      RiskAssessment `json:"risk"`
	Pace      PaceEstimate   `json:"pace"`
	Coverage  Coverage       `json:"coverage"`
	Stale     bool           `json:"stale"`
	CRS       string         `json:"crs"`
	Schema    string         `json:"schema"`
}

func renderGeoJSON(in exportInput) ([]byte, error) {
	coords := make([][]float64, len(in.Route.Waypoints))
	for i, wp := range in.Route.Waypoints {
		// GeoJSON position order is lon, lat (, elevation).
		if wp.HasElevation {
			coords[i] = []float64{round6(wp.Coord.Lon), round6(wp.Coord.Lat), round1(wp.Elevation)}
		} else {
			coords[i] = []float64{round6(wp.Coord.Lon), round6(wp.Coord.Lat)}
		}
	}
	doc := geoFeatureCollection{
		Type: "FeatureCollection",
		Features: []geoFeature{{
			Type:     "Feature",
			Geometry: geoGeometry{Type: "LineString", Coordinates: coords},
			Properties: geoProperties{
				ID:        in.Route.ID,
				Mode:      in.Route.Mode,
				Profile:   in.Route.Profile,
				DistanceM: round1(in.Route.DistanceM),
				AscentM:   round1(in.Route.AscentM),
				DescentM:  round1(in.Route.DescentM),
				Risk:      in.Risk,
				Pace:      in.Pace,
				Coverage:  in.Route.Coverage,
				Stale:     in.Stale,
				CRS:       CRSIdentifier,
				Schema:    SchemaFingerprint,
			},
		}},
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	return append(out, '\n'), nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

//
// ---------- GPX ----------
//

const gpxBody = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="mission-router" xmlns="http://www.topografix.com/GPX/1/1">
{{- range $i, $wp := .Waypoints}}
  <wpt lat="{{printf "%.6f" $wp.Coord.Lat}}" lon="{{printf "%.6f" $wp.Coord.Lon}}">{{if $wp.HasElevation}}<ele>{{printf "%.1f" $wp.Elevation}}</ele>{{end}}<name>{{wpName $i $wp}}</name></wpt>
{{- end}}
  <trk>
    <name>{{.ID}}</name>
    <trkseg>
{{- range .Waypoints}}
      <trkpt lat="{{printf "%.6f" .Coord.Lat}}" lon="{{printf "%.6f" .Coord.Lon}}">{{if .HasElevation}}<ele>{{printf "%.1f" .Elevation}}</ele>{{end}}</trkpt>
{{- end}}
    </trkseg>
  </trk>
</gpx>
`

var gpxTemplate = template.Must(template.New("gpx").Funcs(template.FuncMap{
	"wpName": func(i int, wp Waypoint) string {
		if wp.Label != "" {
			return wp.Label
		}
		return fmt.Sprintf("WP%d", i+1)
	},
}).Parse(gpxBody))

func renderGPX(route *RouteCandidate) ([]byte, error) {
	var buf bytes.Buffer
	if err := gpxTemplate.Execute(&buf, route); err != nil {
		return nil, fmt.Errorf("render gpx: %w", err)
	}
	return buf.Bytes(), nil
}

// gpxWaypointCount counts the <wpt> elements in a rendered GPX document,
// so the parity flag reflects the bytes written to disk rather than the
// in-memory route.
func gpxWaypointCount(gpx []byte) int {
	return bytes.Count(gpx, []byte("<wpt "))
}

//
// ---------- Markdown brief ----------
//

var briefTemplate = template.Must(template.New("brief").Funcs(template.FuncMap{
	"kmf":  func(m float64) string { return fmt.Sprintf("%.2f", m/1000.0) },
	"f1":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"mins": func(sec float64) string { return fmt.Sprintf("%.1f", sec/60.0) },
	"ts":   func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04Z") },
}).Parse(`# Mission Brief: {{.Route.ID}}

_Terrain provenance {{ts .Provenance}}{{if .Stale}} (STALE){{end}}_

## Summary
- Total distance: {{kmf .Route.DistanceM}} km
- Elevation gain: {{f1 .Route.AscentM}} m
- Elevation loss: {{f1 .Route.DescentM}} m
- ETA: {{mins .Pace.TotalSeconds}} min ({{.Pace.Mode}}, load {{f1 .Pace.LoadKg}} kg)
- Departure reference: {{ts .Selection.DepartedAt}}
- Policy: {{.Selection.PolicyID}} ({{.Selection.TieBreak}})

## Risk Assessment
- Composite: {{f2 .Risk.Composite}}
- Slope: {{f2 .Risk.Slope}} (weight {{f2 .Risk.Weights.Slope}})
- Exposure: {{f2 .Risk.Exposure}} (weight {{f2 .Risk.Weights.Exposure}})
- Hydrology: {{f2 .Risk.Hydrology}} (weight {{f2 .Risk.Weights.Hydrology}})
- Data uncertainty: {{f2 .Risk.Uncertainty}}

## Checkpoints
{{- range .Route.Waypoints}}{{if .Label}}
- {{.Label}}: {{printf "%.5f" .Coord.Lat}}, {{printf "%.5f" .Coord.Lon}} ({{f2 .KmMark}} km, {{.Class}})
{{- end}}{{end}}

## Caveats
{{- range .Risk.Crossings}}
- Water crossing ({{.Hazard}}) near km {{f2 .AtKm}}
{{- end}}
{{- if .Stale}}
- Terrain fixtures exceed their 30-day freshness window.
{{- end}}
- Uncertainty {{f2 .Risk.Uncertainty}} of route cells lack valid terrain samples.
`))

func renderBrief(in exportInput) ([]byte, error) {
	var buf bytes.Buffer
	if err := briefTemplate.Execute(&buf, in); err != nil {
		return nil, fmt.Errorf("render brief: %w", err)
	}
	return buf.Bytes(), nil
}
