// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	internaljson "github.com/mcpcore/gomcp/internal/json"
	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

// Client connects to MCP servers, answering any sampling, elicitation, and
// roots requests they make of it (§4.C, §5).
type Client struct {
	impl *Implementation
	opts *ClientOptions
}

// NewClient creates a Client identifying itself as impl.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}
	return &Client{impl: impl, opts: opts}
}

func (c *Client) capabilities() *ClientCapabilities {
	caps := &ClientCapabilities{}
	if c.opts.CreateMessageHandler != nil {
		caps.Sampling = &SamplingCapabilities{}
	}
	if c.opts.ElicitHandler != nil {
		caps.Elicitation = &ElicitationCapabilities{Form: &FormElicitationCapabilities{}}
	}
	if c.opts.ListRootsHandler != nil {
		caps.Roots = &RootCapabilities{}
	}
	return caps
}

// Connect dials t, performs the initialize handshake, and returns the
// resulting session. The context bounds only the handshake itself; once
// Connect returns, the session runs until Close or the connection drops.
func (c *Client) Connect(ctx context.Context, t Transport) (*ClientSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, newConnectionError(ErrorKindTransportCreation, err)
	}
	sess := &ClientSession{client: c}
	sess.peer = newPeerConn(RoleClient, conn, c.opts.logger())
	sess.peer.requestHandler = chainMiddleware(sess.handleRequest, c.opts.Middleware)
	sess.peer.notificationHandler = sess.handleNotification
	sess.peer.start(context.WithoutCancel(ctx))

	initRes, err := sess.call(ctx, methodInitialize, &InitializeParams{
		Capabilities:    c.capabilities(),
		ClientInfo:      c.impl,
		ProtocolVersion: LatestVersion,
	})
	if err != nil {
		_ = sess.peer.close()
		return nil, err
	}
	var result InitializeResult
	if err := internaljson.Unmarshal(initRes, &result); err != nil {
		_ = sess.peer.close()
		return nil, fmt.Errorf("mcp: decoding initialize result: %w", err)
	}
	sess.mu.Lock()
	sess.serverCapabilities = result.Capabilities
	sess.serverInfo = result.ServerInfo
	sess.mu.Unlock()

	if vs, ok := conn.(interface{ setProtocolVersion(string) }); ok {
		vs.setProtocolVersion(result.ProtocolVersion)
	}

	if err := sess.peer.notify(ctx, notificationInitialized, &InitializedParams{}); err != nil {
		_ = sess.peer.close()
		return nil, err
	}
	return sess, nil
}

// ClientSession is one connection to one MCP server.
type ClientSession struct {
	client *Client
	peer   *peerConn

	mu                 sync.Mutex
	serverCapabilities *ServerCapabilities
	serverInfo         *Implementation
}

// ServerCapabilities returns the capabilities the server advertised during
// the handshake.
func (sess *ClientSession) ServerCapabilities() *ServerCapabilities {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.serverCapabilities
}

// ServerInfo returns the server's self-reported implementation info.
func (sess *ClientSession) ServerInfo() *Implementation {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.serverInfo
}

// Close disconnects the session.
func (sess *ClientSession) Close() error { return sess.peer.close() }

// Wait blocks until the session's connection has shut down.
func (sess *ClientSession) Wait() { sess.peer.wait() }

func (sess *ClientSession) call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	return sess.peer.call(ctx, method, params)
}

func (sess *ClientSession) notify(ctx context.Context, method string, params Params) error {
	return sess.peer.notify(ctx, method, params)
}

func typedCall[R any](ctx context.Context, sess *ClientSession, method string, params Params) (*R, error) {
	raw, err := sess.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var result R
	if err := internaljson.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("mcp: decoding result of %s: %w", method, err)
	}
	return &result, nil
}

func (sess *ClientSession) Ping(ctx context.Context) error {
	_, err := typedCall[emptyResult](ctx, sess, methodPing, &PingParams{})
	return err
}

func (sess *ClientSession) ListTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	if params == nil {
		params = &ListToolsParams{}
	}
	return typedCall[ListToolsResult](ctx, sess, methodListTools, params)
}

func (sess *ClientSession) CallTool(ctx context.Context, params *CallToolParams) (*CallToolResult, error) {
	return typedCall[CallToolResult](ctx, sess, methodCallTool, params)
}

func (sess *ClientSession) ListPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	if params == nil {
		params = &ListPromptsParams{}
	}
	return typedCall[ListPromptsResult](ctx, sess, methodListPrompts, params)
}

func (sess *ClientSession) GetPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	return typedCall[GetPromptResult](ctx, sess, methodGetPrompt, params)
}

func (sess *ClientSession) ListResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	if params == nil {
		params = &ListResourcesParams{}
	}
	return typedCall[ListResourcesResult](ctx, sess, methodListResources, params)
}

func (sess *ClientSession) ListResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	if params == nil {
		params = &ListResourceTemplatesParams{}
	}
	return typedCall[ListResourceTemplatesResult](ctx, sess, methodListResourceTemplates, params)
}

func (sess *ClientSession) ReadResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	return typedCall[ReadResourceResult](ctx, sess, methodReadResource, params)
}

func (sess *ClientSession) Subscribe(ctx context.Context, params *SubscribeParams) error {
	_, err := typedCall[emptyResult](ctx, sess, methodSubscribe, params)
	return err
}

func (sess *ClientSession) Unsubscribe(ctx context.Context, params *UnsubscribeParams) error {
	_, err := typedCall[emptyResult](ctx, sess, methodUnsubscribe, params)
	return err
}

func (sess *ClientSession) Complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	return typedCall[CompleteResult](ctx, sess, methodComplete, params)
}

func (sess *ClientSession) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	_, err := typedCall[emptyResult](ctx, sess, methodSetLevel, &SetLoggingLevelParams{Level: level})
	return err
}

func (sess *ClientSession) GetTask(ctx context.Context, params *GetTaskParams) (*GetTaskResult, error) {
	return typedCall[GetTaskResult](ctx, sess, methodGetTask, params)
}

func (sess *ClientSession) ListTasks(ctx context.Context, params *ListTasksParams) (*ListTasksResult, error) {
	if params == nil {
		params = &ListTasksParams{}
	}
	return typedCall[ListTasksResult](ctx, sess, methodListTasks, params)
}

func (sess *ClientSession) CancelTask(ctx context.Context, params *CancelTaskParams) (*CancelTaskResult, error) {
	return typedCall[CancelTaskResult](ctx, sess, methodCancelTask, params)
}

func (sess *ClientSession) TaskResult(ctx context.Context, params *TaskResultParams) (*CallToolResult, error) {
	return typedCall[CallToolResult](ctx, sess, methodTaskResult, params)
}

func (sess *ClientSession) handleRequest(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
	switch method {
	case methodPing:
		return &emptyResult{}, nil
	case methodCreateMessage:
		if sess.client.opts.CreateMessageHandler == nil {
			return nil, fmt.Errorf("%w: sampling/createMessage", jsonrpc2.ErrMethodNotFound)
		}
		params, err := decodeParams[CreateMessageParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.client.opts.CreateMessageHandler(ctx, newClientRequest(sess, params))
	case methodElicit:
		if sess.client.opts.ElicitHandler == nil {
			return nil, fmt.Errorf("%w: elicitation/create", jsonrpc2.ErrMethodNotFound)
		}
		params, err := decodeParams[ElicitParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.client.opts.ElicitHandler(ctx, newClientRequest(sess, params))
	case methodListRoots:
		if sess.client.opts.ListRootsHandler == nil {
			return nil, fmt.Errorf("%w: roots/list", jsonrpc2.ErrMethodNotFound)
		}
		params, err := decodeParams[ListRootsParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.client.opts.ListRootsHandler(ctx, newClientRequest(sess, params))
	default:
		return nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, method)
	}
}

func (sess *ClientSession) handleNotification(ctx context.Context, method string, raw json.RawMessage) {
	// Logging messages, list-changed notifications, resource updates, and
	// task status notifications are fire-and-forget by design (§4.C.1);
	// this core simply logs them, leaving subscription/delivery to a
	// higher-level wrapper the application provides.
	sess.peer.logger.Debug("mcp: notification", "method", method)
}
