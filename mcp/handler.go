// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// MethodHandler is the shape every inbound request is eventually reduced
// to: a method name and its raw, still-undecoded params, producing a
// Result or an error to report back to the caller. Middleware wraps a
// MethodHandler around the next one in the chain.
type MethodHandler func(ctx context.Context, method string, params json.RawMessage) (Result, error)

// Middleware observes or modifies a request before/after it reaches the
// next handler in the chain — logging, metrics, and rate limiting are all
// expressed this way (mirroring the slog-based middleware convention used
// elsewhere in this module).
type Middleware func(next MethodHandler) MethodHandler

func chainMiddleware(base MethodHandler, mw []Middleware) MethodHandler {
	h := base
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// NewLoggingMiddleware returns a Middleware that logs each request at the
// given level, including its method, whether it errored, and how long it
// took.
func NewLoggingMiddleware(logger *slog.Logger, level slog.Level) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next MethodHandler) MethodHandler {
		return func(ctx context.Context, method string, params json.RawMessage) (Result, error) {
			start := time.Now()
			result, err := next(ctx, method, params)
			attrs := []any{"method", method, "duration", time.Since(start)}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			logger.Log(ctx, level, "mcp request", attrs...)
			return result, err
		}
	}
}

// NewRateLimitingMiddleware returns a Middleware that rejects requests once
// a token-bucket limiter is exhausted, using golang.org/x/time/rate for the
// bucket itself.
func NewRateLimitingMiddleware(limiter *rate.Limiter) Middleware {
	return func(next MethodHandler) MethodHandler {
		return func(ctx context.Context, method string, params json.RawMessage) (Result, error) {
			if !limiter.Allow() {
				return nil, &rateLimitedError{method: method}
			}
			return next(ctx, method, params)
		}
	}
}

type rateLimitedError struct{ method string }

func (e *rateLimitedError) Error() string {
	return "mcp: rate limit exceeded for " + e.method
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Logger receives structured diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
	// Instructions are returned to the client in InitializeResult, giving
	// it freeform guidance on how to use this server's tools/resources.
	Instructions string
	// PageSize bounds how many items a single List* call returns before
	// requiring the caller to page with a cursor. Zero means a built-in
	// default.
	PageSize int
	// Tasks advertises support for the tasks extension (§6) and gates
	// which of its operations are enabled. Nil means tasks are disabled.
	Tasks *TaskCapabilities
	// CompleteHandler answers completion/complete requests. Nil means the
	// server rejects completion/complete with Method Not Found.
	CompleteHandler func(context.Context, *CompleteRequest) (*CompleteResult, error)
	// Middleware wraps every inbound request, outermost-first in
	// registration order (the first entry sees the request first).
	Middleware []Middleware
	// RateLimit, if non-nil, bounds how fast a single session's inbound
	// requests are served; once exhausted, further requests fail with a
	// rate-limited error instead of reaching a handler. Applied outermost,
	// ahead of any entries in Middleware.
	RateLimit *rate.Limiter
}

func (o *ServerOptions) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *ServerOptions) middleware() []Middleware {
	if o == nil {
		return nil
	}
	if o.RateLimit == nil {
		return o.Middleware
	}
	return append([]Middleware{NewRateLimitingMiddleware(o.RateLimit)}, o.Middleware...)
}

func (o *ServerOptions) pageSize() int {
	if o != nil && o.PageSize > 0 {
		return o.PageSize
	}
	return 50
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Logger *slog.Logger
	// CreateMessageHandler answers sampling/createMessage requests from a
	// server. Nil means the client does not support sampling.
	CreateMessageHandler func(context.Context, *ClientRequest[*CreateMessageParams]) (*CreateMessageResult, error)
	// ElicitHandler answers elicitation/create requests. Nil means the
	// client does not support elicitation.
	ElicitHandler func(context.Context, *ClientRequest[*ElicitParams]) (*ElicitResult, error)
	// ListRootsHandler answers roots/list requests. Nil means the client
	// advertises no roots.
	ListRootsHandler func(context.Context, *ClientRequest[*ListRootsParams]) (*ListRootsResult, error)
	// Middleware wraps every inbound (server-to-client) request.
	Middleware []Middleware
}

func (o *ClientOptions) logger() *slog.Logger {
	if o != nil && o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
