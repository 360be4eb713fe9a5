// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc exposes the JSON-RPC 2.0 error type that crosses the
// wire boundary, so callers can errors.As a handler's or a peer's failure
// without importing the engine itself.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

// Standard codes reserved by the JSON-RPC 2.0 spec (§4.A).
const (
	CodeParseError     = jsonrpc2.CodeParseError
	CodeInvalidRequest = jsonrpc2.CodeInvalidRequest
	CodeMethodNotFound = jsonrpc2.CodeMethodNotFound
	CodeInvalidParams  = jsonrpc2.CodeInvalidParams
	CodeInternalError  = jsonrpc2.CodeInternalError
)

// Error is a JSON-RPC 2.0 error object. It is the only error type that
// travels across the wire: a HandlerError (§7) is always serialized into
// one of these before being sent back to the caller.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: code %d: %s", e.Code, e.Message)
}

// NewError builds an *Error with optional structured data.
func NewError(code int64, message string, data any) *Error {
	e := &Error{Code: code, Message: message}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			e.Data = raw
		}
	}
	return e
}

// FromWire adapts a raw jsonrpc2 error object into an *Error.
func FromWire(w *jsonrpc2.ErrorValue) *Error {
	if w == nil {
		return nil
	}
	return &Error{Code: w.Code, Message: w.Message, Data: w.Data}
}

// ToWire adapts e into the wire representation the engine encodes.
func (e *Error) ToWire() *jsonrpc2.ErrorValue {
	if e == nil {
		return nil
	}
	return &jsonrpc2.ErrorValue{Code: e.Code, Message: e.Message, Data: e.Data}
}
