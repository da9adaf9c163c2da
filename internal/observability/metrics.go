package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PlannerCollector bundles Prometheus metrics for the planning surface and
// provides a ready-made /metrics handler. It implements the planner's
// MetricsRecorder interface so the engine can drive gauges and search
// counters directly.
type PlannerCollector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec

	CachedRoutes        prometheus.Gauge
	SearchExpandedCells prometheus.Counter
	SearchDurations     prometheus.Histogram
	Exports             prometheus.Counter
}

// NewPlannerCollector registers planner Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil. Re-registration of identical collectors is tolerated so repeated
// construction in one process does not fail.
func NewPlannerCollector(reg prometheus.Registerer) (*PlannerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_requests_total",
		Help: "Total number of handled planning operations, labeled by method and outcome.",
	}, []string{"method", "outcome"})
	requests, err := registerCounterVec(reg, requests, "planner_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_request_duration_seconds",
		Help:    "Planning operation latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method"})
	durations, err = registerHistogramVec(reg, durations, "planner_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cached, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_cached_routes",
		Help: "Current number of route candidates held by the session cache.",
	}), "planner_cached_routes")
	if err != nil {
		return nil, err
	}

	expanded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_search_expanded_cells_total",
		Help: "Total grid cells expanded by route searches.",
	})
	expanded, err = registerCounter(reg, expanded, "planner_search_expanded_cells_total")
	if err != nil {
		return nil, err
	}

	searchDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_search_duration_seconds",
		Help:    "Route search latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
	searchDur, err = registerHistogram(reg, searchDur, "planner_search_duration_seconds")
	if err != nil {
		return nil, err
	}

	exports := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_exports_total",
		Help: "Total briefing packages exported.",
	})
	exports, err = registerCounter(reg, exports, "planner_exports_total")
	if err != nil {
		return nil, err
	}

	return &PlannerCollector{
		gatherer:            gatherer,
		Requests:            requests,
		Durations:           durations,
		CachedRoutes:        cached,
		SearchExpandedCells: expanded,
		SearchDurations:     searchDur,
		Exports:             exports,
	}, nil
}

// RecordRequest records one handled planning operation for the transport
// layer.
func (c *PlannerCollector) RecordRequest(method, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.Requests != nil {
		c.Requests.WithLabelValues(method, outcome).Inc()
	}
	if c.Durations != nil {
		c.Durations.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

// ObserveSearch records search accounting from one generation call.
func (c *PlannerCollector) ObserveSearch(expandedCells int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.SearchExpandedCells != nil {
		c.SearchExpandedCells.Add(float64(expandedCells))
	}
	if c.SearchDurations != nil {
		c.SearchDurations.Observe(elapsed.Seconds())
	}
}

// SetCachedRoutes mirrors the session cache size.
func (c *PlannerCollector) SetCachedRoutes(n int) {
	if c == nil || c.CachedRoutes == nil {
		return
	}
	c.CachedRoutes.Set(float64(n))
}

// IncExport counts one exported briefing package.
func (c *PlannerCollector) IncExport() {
	if c == nil || c.Exports == nil {
		return
	}
	c.Exports.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PlannerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
