// Package rpc exposes the planning engine over newline-delimited
// JSON-RPC 2.0, typically on stdin/stdout. The method set is fixed: the
// five planning operations, dispatched by an explicit switch rather than
// any registration mechanism.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/mission-router/core"
	"github.com/signalsfoundry/mission-router/internal/logging"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

// RequestRecorder receives per-call transport metrics.
type RequestRecorder interface {
	RecordRequest(method, outcome string, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, string, time.Duration) {}

// Server dispatches JSON-RPC requests to one planner.
type Server struct {
	planner *core.Planner
	log     logging.Logger
	metrics RequestRecorder
	tracer  trace.Tracer

	// writeMu serialises responses when requests are handled
	// concurrently.
	writeMu sync.Mutex
}

// NewServer builds a server around planner. Logger and recorder may be
// nil.
func NewServer(planner *core.Planner, log logging.Logger, metrics RequestRecorder) *Server {
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Server{
		planner: planner,
		log:     log,
		metrics: metrics,
		tracer:  otel.Tracer("mission-router/rpc"),
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Serve reads newline-delimited requests from r until EOF or context
// cancellation, writing one response line per request to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, response{
				JSONRPC: "2.0",
				Error:   &rpcError{Code: codeParseError, Message: "invalid JSON"},
			})
			continue
		}
		s.write(w, s.handle(ctx, req))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request stream: %w", err)
	}
	return ctx.Err()
}

func (s *Server) write(w io.Writer, resp response) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		s.log.Error(context.Background(), "write response failed", logging.Err(err))
	}
}

// handle dispatches one request and shapes the response.
func (s *Server) handle(ctx context.Context, req request) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}
	if req.JSONRPC != "2.0" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "jsonrpc must be \"2.0\""}
		return resp
	}

	ctx, log := logging.WithRequestLogger(ctx, s.log)
	ctx, span := s.tracer.Start(ctx, "rpc."+req.Method,
		trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	began := time.Now()
	result, err := s.dispatch(ctx, req.Method, req.Params)
	elapsed := time.Since(began)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		resp.Error = toRPCError(err)
		log.Warn(ctx, "request failed",
			logging.String("method", req.Method),
			logging.Int("code", resp.Error.Code),
			logging.Err(err))
	} else {
		resp.Result = result
		log.Info(ctx, "request handled",
			logging.String("method", req.Method),
			logging.Duration("elapsed", elapsed))
	}
	s.metrics.RecordRequest(req.Method, outcome, elapsed)
	return resp
}

// errUnknownMethod distinguishes dispatch misses from engine errors.
var errUnknownMethod = errors.New("unknown method")

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "route":
		var req core.RouteRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return s.planner.Route(ctx, req)
	case "risk_eval":
		var req core.RiskRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return s.planner.RiskEval(ctx, req)
	case "pace_estimator":
		var req core.PaceRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return s.planner.PaceEstimator(ctx, req)
	case "select":
		var req core.SelectRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return s.planner.Select(ctx, req)
	case "export":
		var req core.ExportRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return s.planner.Export(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, method)
	}
}

func decodeParams(params json.RawMessage, into any) error {
	if len(params) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return nil
}
