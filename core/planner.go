package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/mission-router/internal/logging"
)

// DefaultSearchTimeout bounds a single route generation call.
const DefaultSearchTimeout = 10 * time.Second

// MetricsRecorder receives planner-side measurements. The observability
// package provides the Prometheus-backed implementation; tests use the
// no-op default.
type MetricsRecorder interface {
	ObserveSearch(expandedCells int, elapsed time.Duration)
	SetCachedRoutes(n int)
	IncExport()
}

type noopMetrics struct{}

func (noopMetrics) ObserveSearch(int, time.Duration) {}
func (noopMetrics) SetCachedRoutes(int)              {}
func (noopMetrics) IncExport()                       {}

// Planner binds a terrain bundle to a session cache and exposes the five
// planning operations with typed inputs and outputs. One Planner serves
// one logical session; independent sessions get independent Planners.
type Planner struct {
	bundle  *TerrainBundle
	session *Session

	log     logging.Logger
	now     func() time.Time
	timeout time.Duration
	exp     Exporter
	metrics MetricsRecorder
}

// Option configures a Planner.
type Option func(*Planner)

func WithLogger(l logging.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// WithClock replaces the wall clock, used by tests and by callers that
// need reproducible staleness and deadline evaluation.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

func WithSearchTimeout(d time.Duration) Option {
	return func(p *Planner) { p.timeout = d }
}

func WithExportDir(dir string) Option {
	return func(p *Planner) { p.exp.Dir = dir }
}

func WithMetrics(m MetricsRecorder) Option {
	return func(p *Planner) { p.metrics = m }
}

// NewPlanner creates a planner over bundle with a fresh session cache.
func NewPlanner(bundle *TerrainBundle, opts ...Option) *Planner {
	p := &Planner{
		bundle:  bundle,
		session: NewSession(),
		log:     logging.Noop(),
		now:     time.Now,
		timeout: DefaultSearchTimeout,
		exp:     Exporter{Dir: "exports"},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SessionID identifies this planner's cache across responses.
func (p *Planner) SessionID() string { return p.session.ID() }

// Envelope is common to every response: schema fingerprint, the fixed
// CRS, the owning session, and the terrain freshness flag. Staleness is
// advisory and never blocks a result.
type Envelope struct {
	Schema    string `json:"schema"`
	CRS       string `json:"crs"`
	SessionID string `json:"session_id"`
	Stale     bool   `json:"stale"`
}

func (p *Planner) envelope() Envelope {
	return Envelope{
		Schema:    SchemaFingerprint,
		CRS:       CRSIdentifier,
		SessionID: p.session.ID(),
		Stale:     p.bundle.Stale(p.now()),
	}
}

//
// ---------- route ----------
//

type RouteRequest struct {
	Start         Coordinate `json:"start"`
	End           Coordinate `json:"end"`
	MaxCandidates int        `json:"max_candidates,omitempty"`
	Profiles      []Profile  `json:"profiles,omitempty"`
}

type RouteResponse struct {
	Envelope
	Mode   RouteMode         `json:"mode"`
	Routes []*RouteCandidate `json:"routes"`
}

// Route generates up to MaxCandidates diverse candidates and inserts
// them into the session cache, primary candidate first.
func (p *Planner) Route(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	if req.MaxCandidates == 0 {
		req.MaxCandidates = MaxCandidates
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	began := p.now()
	res, err := generateCandidates(ctx, p.bundle, req.Start, req.End, req.MaxCandidates, req.Profiles)
	if err != nil {
		p.log.Warn(ctx, "route generation failed", logging.Err(err))
		return nil, err
	}
	elapsed := p.now().Sub(began)
	p.metrics.ObserveSearch(res.expanded, elapsed)

	ids := p.session.Insert(res.candidates)
	p.metrics.SetCachedRoutes(p.session.Len())
	p.log.Info(ctx, "routes generated",
		logging.Int("candidates", len(ids)),
		logging.Int("expanded_cells", res.expanded),
		logging.Duration("elapsed", elapsed))

	mode := ModeGrid
	if p.bundle.RoadOnly() {
		mode = ModeRoad
	}
	return &RouteResponse{
		Envelope: p.envelope(),
		Mode:     mode,
		Routes:   res.candidates,
	}, nil
}

//
// ---------- risk_eval ----------
//

type RiskRequest struct {
	RouteIDs []string `json:"route_ids,omitempty"`
}

type RiskResponse struct {
	Envelope
	Assessments []RiskAssessment `json:"assessments"`
}

// RiskEval assesses the requested routes, defaulting to every cached
// route in insertion order.
func (p *Planner) RiskEval(ctx context.Context, req RiskRequest) (*RiskResponse, error) {
	routes, err := p.session.Routes(req.RouteIDs)
	if err != nil {
		return nil, err
	}
	assessments := make([]RiskAssessment, len(routes))
	for i, r := range routes {
		assessments[i] = AssessRisk(p.bundle, r)
	}
	p.log.Debug(ctx, "risk assessed", logging.Int("routes", len(routes)))
	return &RiskResponse{Envelope: p.envelope(), Assessments: assessments}, nil
}

//
// ---------- pace_estimator ----------
//

type PaceRequest struct {
	Mode     TravelMode `json:"mode"`
	LoadKg   float64    `json:"load_kg"`
	RouteIDs []string   `json:"route_ids,omitempty"`
}

type PaceResponse struct {
	Envelope
	Estimates []PaceEstimate `json:"estimates"`
}

// PaceEstimator estimates travel time for the requested routes under the
// given mode and load.
func (p *Planner) PaceEstimator(ctx context.Context, req PaceRequest) (*PaceResponse, error) {
	routes, err := p.session.Routes(req.RouteIDs)
	if err != nil {
		return nil, err
	}
	estimates := make([]PaceEstimate, len(routes))
	for i, r := range routes {
		est, err := EstimatePace(r, req.Mode, req.LoadKg)
		if err != nil {
			return nil, err
		}
		estimates[i] = est
	}
	p.log.Debug(ctx, "pace estimated",
		logging.String("mode", string(req.Mode)),
		logging.Int("routes", len(routes)))
	return &PaceResponse{Envelope: p.envelope(), Estimates: estimates}, nil
}

//
// ---------- select ----------
//

type SelectRequest struct {
	RouteIDs    []string    `json:"route_ids,omitempty"`
	Policy      Policy      `json:"policy"`
	Constraints Constraints `json:"constraints"`

	// Mode and LoadKg feed the pace model behind the deadline
	// constraint and are recorded on the selection for export.
	Mode   TravelMode `json:"mode,omitempty"`
	LoadKg float64    `json:"load_kg,omitempty"`
	// DepartedAt is the reference departure for deadline evaluation.
	// Zero means "now".
	DepartedAt time.Time `json:"departed_at,omitempty"`
}

type SelectResponse struct {
	Envelope
	Selection *SelectionResult `json:"selection"`
}

// Select evaluates constraints over the candidates, ranks survivors
// under the policy, and overwrites the session's current selection.
func (p *Planner) Select(ctx context.Context, req SelectRequest) (*SelectResponse, error) {
	// Snapshot the candidates and the generation together so the result
	// is tagged with the set it was actually ranked against, even when
	// route generation runs concurrently.
	routes, generation, err := p.session.RoutesWithGeneration(req.RouteIDs)
	if err != nil {
		return nil, err
	}
	if req.Mode == "" {
		req.Mode = ModeFoot
	}
	departure := req.DepartedAt
	if departure.IsZero() {
		departure = p.now().UTC().Truncate(time.Second)
	}

	inputs := make([]selectInput, len(routes))
	for i, r := range routes {
		pace, err := EstimatePace(r, req.Mode, req.LoadKg)
		if err != nil {
			return nil, err
		}
		inputs[i] = selectInput{
			route: r,
			risk:  AssessRisk(p.bundle, r),
			pace:  pace,
		}
	}

	sel, err := selectRoute(inputs, req.Policy, req.Constraints, departure)
	if err != nil {
		p.log.Warn(ctx, "selection failed", logging.Err(err))
		return nil, err
	}
	sel.Mode = req.Mode
	sel.LoadKg = req.LoadKg
	sel.DepartedAt = departure
	sel.Generation = generation
	p.session.SetSelection(sel)

	p.log.Info(ctx, "route selected",
		logging.String("route_id", sel.RouteID),
		logging.String("policy", sel.PolicyID))
	return &SelectResponse{Envelope: p.envelope(), Selection: sel}, nil
}

//
// ---------- export ----------
//

type ExportRequest struct {
	Basename string `json:"basename,omitempty"`
}

type ExportResponse struct {
	Envelope
	Export *ExportBundle `json:"export"`
}

// Export writes the briefing artifacts for the current selection. It
// fails with SelectionRequired when no selection exists or when routes
// were generated after the selection was made, since the selection may
// no longer reflect the candidate set.
func (p *Planner) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	sel, ok := p.session.Selection()
	if !ok {
		return nil, fmt.Errorf("%w: no selection exists", ErrSelectionRequired)
	}
	if sel.Generation != p.session.Generation() {
		return nil, fmt.Errorf("%w: selection predates current candidate set", ErrSelectionRequired)
	}
	route, err := p.session.Get(sel.RouteID)
	if err != nil {
		return nil, err
	}
	pace, err := EstimatePace(route, sel.Mode, sel.LoadKg)
	if err != nil {
		return nil, err
	}

	basename := req.Basename
	if basename == "" {
		basename = route.ID
	}
	stale := p.bundle.Stale(p.now())
	bundle, err := p.exp.Export(basename, exportInput{
		Route:      route,
		Risk:       AssessRisk(p.bundle, route),
		Pace:       pace,
		Selection:  sel,
		Provenance: p.bundle.Provenance(),
		Stale:      stale,
	})
	if err != nil {
		return nil, err
	}
	p.metrics.IncExport()
	p.log.Info(ctx, "selection exported",
		logging.String("route_id", route.ID),
		logging.String("basename", bundle.Basename))
	return &ExportResponse{Envelope: p.envelope(), Export: bundle}, nil
}
