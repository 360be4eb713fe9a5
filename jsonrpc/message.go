// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc

import (
	"fmt"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

// Message is a single JSON-RPC 2.0 wire unit: a *Request, *Notification,
// *Response, or *WireError. Transports (mcp.Connection) exchange one
// Message at a time; batching, where supported, is a concern of the HTTP
// transport layer, not of this type.
type Message = jsonrpc2.Message

type (
	ID            = jsonrpc2.ID
	Request       = jsonrpc2.Request
	Notification  = jsonrpc2.Notification
	Response      = jsonrpc2.Response
	WireError     = jsonrpc2.WireError
	ErrorValue    = jsonrpc2.ErrorValue
)

func StringID(s string) ID { return jsonrpc2.StringID(s) }
func Int64ID(n int64) ID   { return jsonrpc2.Int64ID(n) }

// DecodeMessage parses exactly one JSON-RPC message. It rejects batch
// arrays: transports read and write one message per frame (one line for
// stdio, one WebSocket frame, one SSE event); only the Streamable-HTTP
// POST body may legitimately carry a batch, and that layer calls
// jsonrpc2.Decode directly.
func DecodeMessage(data []byte) (Message, error) {
	msgs, err := jsonrpc2.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("jsonrpc: expected exactly one message, got %d", len(msgs))
	}
	return msgs[0], nil
}

// EncodeMessage serializes a single Message.
func EncodeMessage(msg Message) ([]byte, error) {
	return jsonrpc2.Encode(msg)
}
