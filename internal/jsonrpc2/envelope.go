// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the wire-level JSON-RPC 2.0 envelope: the
// tagged union of request/response/notification/error messages, request id
// allocation, and the strict decoding rules that keep a peer from being
// confused by a case-smuggled or batch-wrapped message. It knows nothing
// about MCP method names or params shapes; that belongs to package mcp.
package jsonrpc2

import (
	"encoding/json"
	"fmt"
)

const Version = "2.0"

// ID is a JSON-RPC request id: either an integer or a string.
// The zero value is not a valid id; use IsValid to check.
type ID struct {
	s string
	n int64
	isString bool
	valid    bool
}

// StringID builds an ID from a string.
func StringID(s string) ID { return ID{s: s, isString: true, valid: true} }

// Int64ID builds an ID from an integer.
func Int64ID(n int64) ID { return ID{n: n, valid: true} }

// IsValid reports whether the ID was actually set (as opposed to the zero
// value, used for notifications and for errors with unknown id).
func (id ID) IsValid() bool { return id.valid }

// Raw returns the underlying string or int64 value, whichever is set.
func (id ID) Raw() any {
	if id.isString {
		return id.s
	}
	return id.n
}

func (id ID) String() string {
	if !id.valid {
		return "<invalid>"
	}
	if id.isString {
		return id.s
	}
	return fmt.Sprintf("%d", id.n)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.valid {
		return []byte("null"), nil
	}
	if id.isString {
		return json.Marshal(id.s)
	}
	return json.Marshal(id.n)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = Int64ID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("jsonrpc2: id must be a string or integer: %w", err)
	}
	*id = StringID(s)
	return nil
}

// Message is the tagged union every wire unit belongs to: *Request,
// *Response, *Notification, or *WireError. Batches are a []Message.
type Message interface {
	// isMessage is unexported so Message has a closed set of implementations.
	isMessage()
}

// Request is an envelope carrying a method call that expects a reply.
type Request struct {
	Method string          `json:"method"`
	ID     ID              `json:"id"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Request) isMessage() {}

// Notification is an envelope carrying a method call with no reply.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (*Notification) isMessage() {}

// Response is a successful reply to a Request with a matching ID.
type Response struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result"`
}

func (*Response) isMessage() {}

// WireError is an error reply to a Request with a matching ID (or, for
// request-independent protocol errors, an ID that IsValid() is false).
type WireError struct {
	ID    ID          `json:"id"`
	Error *ErrorValue `json:"error"`
}

func (*WireError) isMessage() {}

// ErrorValue is the JSON-RPC `error` object.
type ErrorValue struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Reserved JSON-RPC error codes (§4.A).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Sentinel errors a handler can return (or wrap) to signal one of the
// reserved JSON-RPC conditions above without constructing an ErrorValue by
// hand; the peer engine maps these to the matching code when it serializes
// a handler's error into a wire response.
var (
	ErrMethodNotFound = fmt.Errorf("jsonrpc2: method not found")
	ErrInvalidParams  = fmt.Errorf("jsonrpc2: invalid params")
	ErrInvalidRequest = fmt.Errorf("jsonrpc2: invalid request")
	ErrInternal       = fmt.Errorf("jsonrpc2: internal error")
)

// envelope is the on-the-wire shape shared by all message kinds; decoding
// tag-dispatches on which of these fields are present, exactly as the data
// model in §4.A requires.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorValue     `json:"error,omitempty"`
}

// Decode parses one JSON-RPC value — a single object or a batch array of
// them — into a slice of Message. A malformed envelope (wrong jsonrpc tag,
// a request with neither method, result, nor error) is reported as an
// error for the specific element, not a panic.
func Decode(data []byte) ([]Message, error) {
	trimmed := trimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("jsonrpc2: empty message")
	}
	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("jsonrpc2: decoding batch: %w", err)
		}
		if len(raws) == 0 {
			return nil, fmt.Errorf("jsonrpc2: empty batch")
		}
		msgs := make([]Message, 0, len(raws))
		for _, raw := range raws {
			m, err := decodeOne(raw)
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
		}
		return msgs, nil
	}
	m, err := decodeOne(trimmed)
	if err != nil {
		return nil, err
	}
	return []Message{m}, nil
}

func decodeOne(data json.RawMessage) (Message, error) {
	var env envelope
	if err := StrictUnmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("jsonrpc2: %w", err)
	}
	if env.JSONRPC != Version {
		return nil, fmt.Errorf("jsonrpc2: unsupported jsonrpc version %q", env.JSONRPC)
	}
	switch {
	case env.Error != nil:
		if env.ID == nil {
			return &WireError{Error: env.Error}, nil
		}
		return &WireError{ID: *env.ID, Error: env.Error}, nil
	case env.Method != "" && env.ID != nil:
		return &Request{Method: env.Method, ID: *env.ID, Params: env.Params}, nil
	case env.Method != "":
		return &Notification{Method: env.Method, Params: env.Params}, nil
	case env.ID != nil && env.Result != nil:
		return &Response{ID: *env.ID, Result: env.Result}, nil
	default:
		return nil, fmt.Errorf("jsonrpc2: message has neither method, result, nor error")
	}
}

// Encode serializes a single Message (never a batch; this core never
// produces outbound batches, per §4.A).
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case *Request:
		return json.Marshal(&envelope{JSONRPC: Version, Method: m.Method, ID: &m.ID, Params: m.Params})
	case *Notification:
		return json.Marshal(&envelope{JSONRPC: Version, Method: m.Method, Params: m.Params})
	case *Response:
		return json.Marshal(&envelope{JSONRPC: Version, ID: &m.ID, Result: m.Result})
	case *WireError:
		var id *ID
		if m.ID.IsValid() {
			id = &m.ID
		}
		return json.Marshal(&envelope{JSONRPC: Version, ID: id, Error: m.Error})
	default:
		return nil, fmt.Errorf("jsonrpc2: unrecognized message type %T", msg)
	}
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpace(b[i]) {
		i++
	}
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
