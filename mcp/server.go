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
	"github.com/mcpcore/gomcp/internal/mcpgodebug"
	"github.com/mcpcore/gomcp/jsonrpc"
)

// Server offers tools, prompts, and resources to any number of concurrently
// connected clients (§4.C, §6). Its registries are safe to mutate after
// Connect has been called; changes are reflected in the next List* call and,
// for list-changed-capable clients, announced via a notification.
type Server struct {
	impl *Implementation
	opts *ServerOptions

	mu                sync.Mutex
	tools             *featureSet[*serverTool]
	prompts           *featureSet[*serverPrompt]
	resources         *featureSet[*serverResource]
	resourceTemplates *featureSet[*serverResourceTemplate]
	sessions          map[*ServerSession]struct{}

	tasks *serverTasks
}

// NewServer creates a Server with no tools, prompts, or resources
// registered yet.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	if opts == nil {
		opts = &ServerOptions{}
	}
	return &Server{
		impl:              impl,
		opts:              opts,
		tools:             newFeatureSet(func(t *serverTool) string { return t.tool.Name }),
		prompts:           newFeatureSet(func(p *serverPrompt) string { return p.prompt.Name }),
		resources:         newFeatureSet(func(r *serverResource) string { return r.resource.URI }),
		resourceTemplates: newFeatureSet(func(t *serverResourceTemplate) string { return t.template.URITemplate }),
		sessions:          make(map[*ServerSession]struct{}),
		tasks:             newServerTasks(),
	}
}

// AddTool registers a tool, replacing any existing tool with the same name.
func (s *Server) AddTool(t *Tool, h ToolHandler) {
	s.mu.Lock()
	s.tools.add(newServerTool(t, h))
	s.mu.Unlock()
	s.notifyListChanged(notificationToolListChanged, &ToolListChangedParams{})
}

// AddTypedTool is AddTool for a handler that wants its arguments decoded
// into In before it runs, instead of handling json.RawMessage itself.
func AddTypedTool[In any](s *Server, t *Tool, h TypedToolHandler[In]) {
	s.mu.Lock()
	s.tools.add(newTypedServerTool(t, h))
	s.mu.Unlock()
	s.notifyListChanged(notificationToolListChanged, &ToolListChangedParams{})
}

// RemoveTool removes a tool by name, reporting whether it was registered.
func (s *Server) RemoveTool(name string) bool {
	s.mu.Lock()
	ok := s.tools.remove(name)
	s.mu.Unlock()
	if ok {
		s.notifyListChanged(notificationToolListChanged, &ToolListChangedParams{})
	}
	return ok
}

// AddPrompt registers a prompt, replacing any existing prompt with the same name.
func (s *Server) AddPrompt(p *Prompt, h PromptHandler) {
	s.mu.Lock()
	s.prompts.add(&serverPrompt{prompt: p, handler: h})
	s.mu.Unlock()
	s.notifyListChanged(notificationPromptListChanged, &PromptListChangedParams{})
}

// AddResource registers a concrete, exact-URI resource.
func (s *Server) AddResource(r *Resource, h ResourceHandler) {
	s.mu.Lock()
	s.resources.add(&serverResource{resource: r, handler: h})
	s.mu.Unlock()
	s.notifyListChanged(notificationResourceListChanged, &ResourceListChangedParams{})
}

// AddResourceTemplate registers a family of resources addressed by an
// RFC 6570 URI template.
func (s *Server) AddResourceTemplate(rt *ResourceTemplate, h ResourceHandler) error {
	compiled, err := compileResourceTemplate(rt.URITemplate)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.resourceTemplates.add(&serverResourceTemplate{template: rt, compiled: compiled, handler: h})
	s.mu.Unlock()
	s.notifyListChanged(notificationResourceListChanged, &ResourceListChangedParams{})
	return nil
}

// capabilities reflects the server's current registrations and options into
// a ServerCapabilities, computed fresh on every call so that registering a
// tool after Connect is immediately visible to new sessions.
func (s *Server) capabilities() *ServerCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := &ServerCapabilities{
		Completions: &CompletionCapabilities{},
		Logging:     &LoggingCapabilities{},
	}
	if s.tools.len() > 0 {
		caps.Tools = &ToolCapabilities{ListChanged: true}
	}
	if s.prompts.len() > 0 {
		caps.Prompts = &PromptCapabilities{ListChanged: true}
	}
	if s.resources.len() > 0 || s.resourceTemplates.len() > 0 {
		caps.Resources = &ResourceCapabilities{ListChanged: true, Subscribe: true}
	}
	if s.opts.Tasks != nil {
		caps.Tasks = s.opts.Tasks
	}
	return caps
}

// notifyListChanged tells every initialized session about a registry
// change. Best-effort: a session that can't be reached right now will pick
// up the change on its next List* call regardless.
func (s *Server) notifyListChanged(method string, params Params) {
	s.mu.Lock()
	sessions := make([]*ServerSession, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		if sess.isInitialized() {
			go sess.notify(context.Background(), method, params)
		}
	}
}

// Connect accepts a connection from t and begins serving requests on it in
// the background. The returned ServerSession represents that one peer; a
// Server may have many concurrently connected sessions.
func (s *Server) Connect(ctx context.Context, t Transport) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, newConnectionError(ErrorKindTransportCreation, err)
	}
	sess := &ServerSession{
		server:        s,
		subscriptions: make(map[string]bool),
	}
	sess.peer = newPeerConn(RoleServer, conn, s.opts.logger())
	sess.peer.requestHandler = chainMiddleware(sess.handleRequest, s.opts.middleware())
	sess.peer.notificationHandler = sess.handleNotification
	sess.peer.start(ctx)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	return sess, nil
}

// ServerSession is one client connected to a Server.
type ServerSession struct {
	server *Server
	peer   *peerConn

	mu               sync.Mutex
	initialized      bool
	initializeParams *InitializeParams
	logLevel         LoggingLevel
	subscriptions    map[string]bool
}

func (sess *ServerSession) isInitialized() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.initialized
}

// State snapshots the session's negotiated initialize params, logging
// level, and resource subscriptions, for a ServerSessionStateStore to
// persist across HTTP request/response cycles or a process restart.
func (sess *ServerSession) State() *ServerSessionState {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	subs := make(map[string]bool, len(sess.subscriptions))
	for uri := range sess.subscriptions {
		subs[uri] = true
	}
	return &ServerSessionState{
		InitializeParams: sess.initializeParams,
		LogLevel:         sess.logLevel,
		Subscriptions:    subs,
	}
}

// Close disconnects the session.
func (sess *ServerSession) Close() error {
	sess.server.mu.Lock()
	delete(sess.server.sessions, sess)
	sess.server.mu.Unlock()
	return sess.peer.close()
}

// Wait blocks until the session's connection has shut down.
func (sess *ServerSession) Wait() { sess.peer.wait() }

func (sess *ServerSession) notify(ctx context.Context, method string, params Params) error {
	return sess.peer.notify(ctx, method, params)
}

// NotifyProgress sends a progress update to the client for an in-flight
// request that supplied a progress token (see ServerRequest.Progress).
func (sess *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return sess.notify(ctx, notificationProgress, params)
}

// Log sends a logging/message notification if level is at or above the
// level the client last requested via logging/setLevel.
func (sess *ServerSession) Log(ctx context.Context, params *LoggingMessageParams) error {
	sess.mu.Lock()
	level := sess.logLevel
	sess.mu.Unlock()
	if !loggingLevelEnabled(level, params.Level) {
		return nil
	}
	return sess.notify(ctx, notificationLoggingMessage, params)
}

func loggingLevelEnabled(min, level LoggingLevel) bool {
	return loggingLevelRank(level) >= loggingLevelRank(min)
}

var loggingLevelRanks = map[LoggingLevel]int{
	LoggingLevelDebug:     0,
	LoggingLevelInfo:      1,
	LoggingLevelNotice:    2,
	LoggingLevelWarning:   3,
	LoggingLevelError:     4,
	LoggingLevelCritical:  5,
	LoggingLevelAlert:     6,
	LoggingLevelEmergency: 7,
}

func loggingLevelRank(l LoggingLevel) int {
	if l == "" {
		return 0
	}
	return loggingLevelRanks[l]
}

func decodeParams[P any](raw []byte) (*P, error) {
	p := new(P)
	if len(raw) == 0 {
		return p, nil
	}
	if err := internaljson.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", jsonrpc2.ErrInvalidParams, err)
	}
	return p, nil
}

func (sess *ServerSession) handleRequest(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
	switch method {
	case methodInitialize:
		return sess.initialize(ctx, raw)
	case methodPing:
		return &emptyResult{}, nil
	case methodListTools:
		return sess.listTools(ctx, raw)
	case methodCallTool:
		return sess.callTool(ctx, raw)
	case methodListPrompts:
		return sess.listPrompts(ctx, raw)
	case methodGetPrompt:
		return sess.getPrompt(ctx, raw)
	case methodListResources:
		return sess.listResources(ctx, raw)
	case methodListResourceTemplates:
		return sess.listResourceTemplates(ctx, raw)
	case methodReadResource:
		return sess.readResource(ctx, raw)
	case methodSubscribe:
		return sess.subscribe(ctx, raw)
	case methodUnsubscribe:
		return sess.unsubscribe(ctx, raw)
	case methodComplete:
		return sess.complete(ctx, raw)
	case methodSetLevel:
		return sess.setLevel(ctx, raw)
	case methodGetTask:
		p, err := decodeParams[GetTaskParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.server.getTask(ctx, newServerRequest(sess, p))
	case methodListTasks:
		p, err := decodeParams[ListTasksParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.server.listTasks(ctx, newServerRequest(sess, p))
	case methodCancelTask:
		p, err := decodeParams[CancelTaskParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.server.cancelTask(ctx, newServerRequest(sess, p))
	case methodTaskResult:
		p, err := decodeParams[TaskResultParams](raw)
		if err != nil {
			return nil, err
		}
		return sess.server.taskResult(ctx, newServerRequest(sess, p))
	default:
		return nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, method)
	}
}

func (sess *ServerSession) handleNotification(ctx context.Context, method string, raw json.RawMessage) {
	switch method {
	case notificationInitialized:
		sess.mu.Lock()
		sess.initialized = true
		sess.mu.Unlock()
	default:
		// Unrecognized notifications are ignored per §4.A: notifications
		// never get an error reply, so there's nothing further to do.
	}
}

func (sess *ServerSession) initialize(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[InitializeParams](raw)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.initializeParams = params
	sess.mu.Unlock()

	version := params.ProtocolVersion
	if versionIndex(version) < 0 {
		if mcpgodebug.Value("allowunknownprotocolversion") == "1" {
			version = LatestVersion
		} else {
			return nil, newFatalError(jsonrpc.NewError(jsonrpc.CodeInvalidParams,
				fmt.Sprintf("unsupported protocolVersion %q", version),
				map[string]any{"requested": version, "supported": ProtocolVersions}))
		}
	}
	return &InitializeResult{
		Capabilities:    sess.server.capabilities(),
		Instructions:    sess.server.opts.Instructions,
		ProtocolVersion: version,
		ServerInfo:      sess.server.impl,
	}, nil
}

func (sess *ServerSession) listTools(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[ListToolsParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	tools, next := page(sess.server.tools, params.Cursor, sess.server.opts.pageSize())
	sess.server.mu.Unlock()
	res := &ListToolsResult{NextCursor: next, Tools: make([]*Tool, 0, len(tools))}
	for _, t := range tools {
		res.Tools = append(res.Tools, t.tool)
	}
	return res, nil
}

func (sess *ServerSession) callTool(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[CallToolParamsRaw](raw)
	if err != nil {
		return nil, err
	}
	return sess.server.callToolAny(ctx, newServerRequest(sess, params))
}

func (sess *ServerSession) listPrompts(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[ListPromptsParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	prompts, next := page(sess.server.prompts, params.Cursor, sess.server.opts.pageSize())
	sess.server.mu.Unlock()
	res := &ListPromptsResult{NextCursor: next, Prompts: make([]*Prompt, 0, len(prompts))}
	for _, p := range prompts {
		res.Prompts = append(res.Prompts, p.prompt)
	}
	return res, nil
}

func (sess *ServerSession) getPrompt(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[GetPromptParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	p, ok := sess.server.prompts.get(params.Name)
	sess.server.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown prompt %q", jsonrpc2.ErrInvalidParams, params.Name)
	}
	return p.handler(ctx, newServerRequest(sess, params))
}

func (sess *ServerSession) listResources(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[ListResourcesParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	resources, next := page(sess.server.resources, params.Cursor, sess.server.opts.pageSize())
	sess.server.mu.Unlock()
	res := &ListResourcesResult{NextCursor: next, Resources: make([]*Resource, 0, len(resources))}
	for _, r := range resources {
		res.Resources = append(res.Resources, r.resource)
	}
	return res, nil
}

func (sess *ServerSession) listResourceTemplates(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[ListResourceTemplatesParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	templates, next := page(sess.server.resourceTemplates, params.Cursor, sess.server.opts.pageSize())
	sess.server.mu.Unlock()
	res := &ListResourceTemplatesResult{NextCursor: next, ResourceTemplates: make([]*ResourceTemplate, 0, len(templates))}
	for _, t := range templates {
		res.ResourceTemplates = append(res.ResourceTemplates, t.template)
	}
	return res, nil
}

func (sess *ServerSession) readResource(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[ReadResourceParams](raw)
	if err != nil {
		return nil, err
	}
	sess.server.mu.Lock()
	h, ok := sess.server.findResource(params.URI)
	sess.server.mu.Unlock()
	if !ok {
		return nil, resourceNotFoundError(params.URI)
	}
	return h(ctx, newServerRequest(sess, params))
}

func (sess *ServerSession) subscribe(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[SubscribeParams](raw)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.subscriptions[params.URI] = true
	sess.mu.Unlock()
	return &emptyResult{}, nil
}

func (sess *ServerSession) unsubscribe(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[UnsubscribeParams](raw)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	delete(sess.subscriptions, params.URI)
	sess.mu.Unlock()
	return &emptyResult{}, nil
}

// NotifyResourceUpdated tells subscribed sessions that uri changed.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) {
	s.mu.Lock()
	sessions := make([]*ServerSession, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.mu.Lock()
		subscribed := sess.subscriptions[uri]
		sess.mu.Unlock()
		if subscribed {
			go sess.notify(ctx, notificationResourceUpdated, &ResourceUpdatedNotificationParams{URI: uri})
		}
	}
}

func (sess *ServerSession) complete(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[CompleteParams](raw)
	if err != nil {
		return nil, err
	}
	if sess.server.opts.CompleteHandler == nil {
		return nil, fmt.Errorf("%w: completion/complete", jsonrpc2.ErrMethodNotFound)
	}
	return sess.server.opts.CompleteHandler(ctx, newServerRequest(sess, params))
}

func (sess *ServerSession) setLevel(ctx context.Context, raw []byte) (Result, error) {
	params, err := decodeParams[SetLoggingLevelParams](raw)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.logLevel = params.Level
	sess.mu.Unlock()
	return &emptyResult{}, nil
}
