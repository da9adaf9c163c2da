package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/mission-router/core"
)

// serverBundle is a flat 6x6 open grid, enough for end-to-end dispatch.
func serverBundle(t *testing.T) *core.TerrainBundle {
	t.Helper()
	const n = 6
	elevation := make([][]float64, n)
	landcover := make([][]core.LandcoverClass, n)
	for r := 0; r < n; r++ {
		elevation[r] = make([]float64, n)
		landcover[r] = make([]core.LandcoverClass, n)
		for c := 0; c < n; c++ {
			elevation[r][c] = 500 + float64(r)*2
			landcover[r][c] = core.LandcoverOpen
		}
	}
	bundle, err := core.NewTerrainBundle(core.TerrainBundleConfig{
		Origin:     core.Coordinate{Lat: 34.0, Lon: -117.0},
		CellSizeM:  100,
		Elevation:  elevation,
		Landcover:  landcover,
		Provenance: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build bundle: %v", err)
	}
	return bundle
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	planner := core.NewPlanner(serverBundle(t),
		core.WithClock(func() time.Time { return time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC) }),
		core.WithExportDir(t.TempDir()),
	)
	return NewServer(planner, nil, nil)
}

// roundTrip feeds one request line through Serve and decodes the single
// response line.
func roundTrip(t *testing.T, s *Server, line string) response {
	t.Helper()
	var out bytes.Buffer
	if err := s.Serve(context.Background(), strings.NewReader(line+"\n"), &out); err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	var resp response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", out.String(), err)
	}
	return resp
}

func TestServeRouteReturnsResult(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"route","params":{"start":{"lat":34.0005,"lon":-116.9995},"end":{"lat":34.0045,"lon":-116.9955}}}`)
	if resp.Error != nil {
		t.Fatalf("route returned error: %+v", resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Fatalf("response id = %s", resp.ID)
	}
	body, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var routeRes core.RouteResponse
	if err := json.Unmarshal(body, &routeRes); err != nil {
		t.Fatalf("decode route result: %v", err)
	}
	if routeRes.Schema != core.SchemaFingerprint {
		t.Fatalf("schema = %q", routeRes.Schema)
	}
	if len(routeRes.Routes) == 0 {
		t.Fatal("no routes in result")
	}
}

func TestServeUnknownMethod(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":2,"method":"teleport"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestServeInvalidJSON(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":3,`)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestServeRejectsWrongVersion(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"1.0","id":4,"method":"route"}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid-request, got %+v", resp.Error)
	}
}

func TestServeRejectsUnknownParams(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":5,"method":"risk_eval","params":{"bogus":true}}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params, got %+v", resp.Error)
	}
}

func TestServeExportWithoutSelection(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":6,"method":"export"}`)
	if resp.Error == nil || resp.Error.Code != codeSelectionRequired {
		t.Fatalf("expected selection-required, got %+v", resp.Error)
	}
}

func TestServeOutOfBoundsMapsToAppCode(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"jsonrpc":"2.0","id":7,"method":"route","params":{"start":{"lat":50.0,"lon":-116.9995},"end":{"lat":34.0045,"lon":-116.9955}}}`)
	if resp.Error == nil || resp.Error.Code != codeOutOfBounds {
		t.Fatalf("expected out-of-bounds, got %+v", resp.Error)
	}
}

func TestServeConstraintFailureCarriesTrace(t *testing.T) {
	s := newTestServer(t)
	var out bytes.Buffer
	lines := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"route","params":{"start":{"lat":34.0005,"lon":-116.9995},"end":{"lat":34.0045,"lon":-116.9955}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"select","params":{"policy":"prefer_low_risk","constraints":{"max_distance_m":1}}}`,
	}, "\n")
	if err := s.Serve(context.Background(), strings.NewReader(lines+"\n"), &out); err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	responses := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(responses))
	}
	var resp response
	if err := json.Unmarshal([]byte(responses[1]), &resp); err != nil {
		t.Fatalf("decode select response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeNoRouteSatisfiesConstraint {
		t.Fatalf("expected constraint-failure code, got %+v", resp.Error)
	}
	data, ok := resp.Error.Data.(map[string]any)
	if !ok {
		t.Fatalf("error data = %T, want object", resp.Error.Data)
	}
	trace, ok := data["trace"].([]any)
	if !ok || len(trace) == 0 {
		t.Fatal("error data carries no trace entries")
	}
	entry, ok := trace[0].(map[string]any)
	if !ok {
		t.Fatalf("trace entry = %T", trace[0])
	}
	if entry["excluded"] != true {
		t.Fatalf("trace entry not marked excluded: %v", entry)
	}
}

func TestServeSkipsBlankLines(t *testing.T) {
	s := newTestServer(t)
	var out bytes.Buffer
	input := "\n\n" + `{"jsonrpc":"2.0","id":8,"method":"risk_eval"}` + "\n"
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("serve failed: %v", err)
	}
	if got := strings.Count(strings.TrimSpace(out.String()), "\n") + 1; got != 1 {
		t.Fatalf("response lines = %d, want 1", got)
	}
}
