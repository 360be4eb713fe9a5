// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"

	"github.com/mcpcore/gomcp/jsonrpc"
)

// Transport creates a logical Connection. A Transport may be dialed once
// (e.g. a stdio pipe, a WebSocket) or accept many connections over time
// (e.g. Streamable-HTTP, where every new `Mcp-Session-Id` is a fresh
// logical connection multiplexed over HTTP requests).
type Transport interface {
	// Connect establishes or attaches to a logical connection. ctx bounds
	// the dial itself, not the connection's lifetime.
	Connect(ctx context.Context) (Connection, error)
}

// Connection is a bidirectional, message-oriented channel carrying one
// JSON-RPC message per Read/Write call. Implementations need not be safe
// for concurrent Read, but Write must be safe for concurrent use (the
// peer engine writes from its request-handler goroutines and from
// arbitrary caller goroutines issuing requests or notifications).
type Connection interface {
	// Read blocks until a message arrives, ctx is done, or the connection
	// is closed. It returns io.EOF when the peer has cleanly closed the
	// connection.
	Read(ctx context.Context) (jsonrpc.Message, error)

	// Write sends msg. It must be safe to call concurrently with other
	// Write calls and with Read.
	Write(ctx context.Context, msg jsonrpc.Message) error

	// Close releases the connection's resources. It is safe to call more
	// than once and concurrently with Read/Write, both of which must then
	// return promptly with an error.
	Close() error

	// SessionID identifies this logical connection for transports (like
	// Streamable-HTTP) where one Transport value fields many connections.
	// Transports with an inherent 1:1 relationship (stdio, a dialed
	// WebSocket) may return a freshly generated opaque string.
	SessionID() string
}
