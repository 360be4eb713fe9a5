// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a connection-level operation failed, so callers
// can distinguish a local problem (a bad transport, a handler panic) from
// one reported by the remote peer.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindTransportCreation means Transport.Connect failed.
	ErrorKindTransportCreation
	// ErrorKindTransportSend means writing a message to the connection failed.
	ErrorKindTransportSend
	// ErrorKindTransportReceive means reading a message from the connection failed.
	ErrorKindTransportReceive
	// ErrorKindProtocolViolation means the peer sent a structurally invalid
	// or out-of-sequence message (e.g. a request before initialize completed).
	ErrorKindProtocolViolation
	// ErrorKindHandlerError means a registered handler returned an error.
	ErrorKindHandlerError
	// ErrorKindCancelled means the operation was cancelled locally or by the peer.
	ErrorKindCancelled
	// ErrorKindSession means a Streamable-HTTP session-lifecycle invariant was violated.
	ErrorKindSession
	// ErrorKindReservedHeaderConflict means a caller tried to set a header
	// the transport manages itself (Accept, Content-Type, Mcp-Session-Id,
	// Last-Event-ID; MCP-Protocol-Version is not among them).
	ErrorKindReservedHeaderConflict
	// ErrorKindUnsupportedProtocolVersion means a peer's initialize handshake
	// named a protocolVersion this implementation does not recognize.
	ErrorKindUnsupportedProtocolVersion
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTransportCreation:
		return "transport creation"
	case ErrorKindTransportSend:
		return "transport send"
	case ErrorKindTransportReceive:
		return "transport receive"
	case ErrorKindProtocolViolation:
		return "protocol violation"
	case ErrorKindHandlerError:
		return "handler error"
	case ErrorKindCancelled:
		return "cancelled"
	case ErrorKindSession:
		return "session"
	case ErrorKindReservedHeaderConflict:
		return "reserved header conflict"
	case ErrorKindUnsupportedProtocolVersion:
		return "unsupported protocol version"
	default:
		return "unknown"
	}
}

// ConnectionError wraps a failure that terminated or disrupted a
// connection, tagging it with an ErrorKind so callers can react
// programmatically without parsing error strings.
type ConnectionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp: %s: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func newConnectionError(kind ErrorKind, err error) *ConnectionError {
	return &ConnectionError{Kind: kind, Err: err}
}

// ErrConnectionClosed is returned by peer operations issued after the
// connection has shut down.
var ErrConnectionClosed = errors.New("mcp: connection closed")

// IsErrorKind reports whether err is a *ConnectionError of the given kind.
func IsErrorKind(err error, kind ErrorKind) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// fatalHandlerError marks a request-handler error that must tear down the
// connection once its error response has been sent — for handshake
// failures §4.C declares fatal, where replying and continuing the session
// would leave the peer talking past a rejected negotiation.
type fatalHandlerError struct {
	err error
}

func newFatalError(err error) error { return &fatalHandlerError{err: err} }

func (e *fatalHandlerError) Error() string { return e.err.Error() }
func (e *fatalHandlerError) Unwrap() error { return e.err }
func (e *fatalHandlerError) fatal()        {}
