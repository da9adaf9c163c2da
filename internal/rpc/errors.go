package rpc

import (
	"errors"

	"github.com/signalsfoundry/mission-router/core"
)

// JSON-RPC 2.0 protocol error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Application error codes, one per engine error kind.
const (
	codeOutOfBounds                = 1001
	codeNotReachable               = 1002
	codeUnknownRouteID             = 1003
	codeNoRouteSatisfiesConstraint = 1004
	codeSelectionRequired          = 1005
	codeSearchTimeout              = 1006
)

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// toRPCError maps an engine error onto a wire error. Constraint failures
// carry their per-candidate trace in the data field so callers can see
// exactly which constraint excluded which route.
func toRPCError(err error) *rpcError {
	if errors.Is(err, errUnknownMethod) {
		return &rpcError{Code: codeMethodNotFound, Message: err.Error()}
	}

	var cerr *core.ConstraintError
	if errors.As(err, &cerr) {
		return &rpcError{
			Code:    codeNoRouteSatisfiesConstraint,
			Message: err.Error(),
			Data:    map[string]any{"trace": cerr.Trace},
		}
	}

	code := codeInternalError
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		code = codeInvalidParams
	case errors.Is(err, core.ErrOutOfBounds):
		code = codeOutOfBounds
	case errors.Is(err, core.ErrNotReachable):
		code = codeNotReachable
	case errors.Is(err, core.ErrUnknownRouteID):
		code = codeUnknownRouteID
	case errors.Is(err, core.ErrNoRouteSatisfiesConstraints):
		code = codeNoRouteSatisfiesConstraint
	case errors.Is(err, core.ErrSelectionRequired):
		code = codeSelectionRequired
	case errors.Is(err, core.ErrSearchTimeout):
		code = codeSearchTimeout
	}
	return &rpcError{Code: code, Message: err.Error()}
}
