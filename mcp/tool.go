// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

// ToolHandler handles a call to tools/call. req.Params.Arguments carries the
// still-undecoded argument object; the handler decodes whatever shape it
// expects (this core does not infer or validate JSON Schema — see
// SPEC_FULL.md's Non-goals).
type ToolHandler func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error)

// serverTool binds a Tool's metadata to the handler that serves it.
type serverTool struct {
	tool    *Tool
	handler ToolHandler
}

func newServerTool(t *Tool, h ToolHandler) *serverTool {
	return &serverTool{tool: t, handler: h}
}

// TypedToolHandler handles tools/call with arguments decoded into In before
// the handler runs, saving every typed tool from repeating the same
// json.Decoder boilerplate.
type TypedToolHandler[In any] func(ctx context.Context, req *CallToolRequest, args In) (*CallToolResult, error)

// newTypedServerTool adapts a TypedToolHandler into a ToolHandler, decoding
// CallToolParamsRaw.Arguments into a fresh In and rejecting unknown fields
// so a client can't silently smuggle data a schema would otherwise catch.
func newTypedServerTool[In any](t *Tool, h TypedToolHandler[In]) *serverTool {
	handler := func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		var args In
		if len(req.Params.Arguments) > 0 {
			dec := json.NewDecoder(bytes.NewReader(req.Params.Arguments))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&args); err != nil {
				return nil, fmt.Errorf("%w: decoding arguments for tool %q: %v", jsonrpc2.ErrInvalidParams, t.Name, err)
			}
		}
		return h(ctx, req, args)
	}
	return newServerTool(t, handler)
}
