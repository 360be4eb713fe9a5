// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package mcp implements the Model Context Protocol: a bidirectional
// JSON-RPC 2.0 runtime connecting an LLM host (the client) to a tool,
// resource, and prompt provider (the server) over one of several
// interchangeable transports.
//
// This file holds the protocol's data model: the request/notification/
// result payloads for every method the core vocabulary defines, plus the
// capability negotiation types exchanged during the initialize handshake.
// The method set is an open tagged union — servers and clients are free
// to add their own; this file defines the ones the core ships.
package mcp

import (
	"encoding/json"
	"fmt"
	"maps"

	internaljson "github.com/mcpcore/gomcp/internal/json"
)

// Protocol versions known to this implementation, oldest first, and the
// newest one this side offers during the handshake (§4.C.1, §6).
var (
	ProtocolVersions = []string{"2024-11-05", "2025-03-26", "2025-06-18"}
	LatestVersion    = ProtocolVersions[len(ProtocolVersions)-1]
)

// versionIndex returns v's position in ProtocolVersions, or -1 if v is not
// a version this side recognizes.
func versionIndex(v string) int {
	for i, known := range ProtocolVersions {
		if known == v {
			return i
		}
	}
	return -1
}

// Role is the compile-time tag distinguishing the two ends of a
// connection. The peer engine (peer.go) is parameterized by Role so one
// implementation serves both.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// MessageRole identifies the speaker of a [PromptMessage] or
// [SamplingMessage] on the wire, distinct from the peer-role [Role] above.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Meta is the `_meta` side channel present on every params and
// notification type. It round-trips opaquely across the wire and is the
// only place a progress token lives.
type Meta map[string]any

func (m Meta) GetMeta() Meta   { return m }
func (m *Meta) SetMeta(v Meta) { *m = v }

const progressTokenKey = "progressToken"

// hasMeta is satisfied by every embedder of Meta; it's how
// getProgressToken/setProgressToken reach into an arbitrary Params value.
type hasMeta interface {
	GetMeta() Meta
	SetMeta(Meta)
}

func getProgressToken(p hasMeta) any {
	m := p.GetMeta()
	if m == nil {
		return nil
	}
	return m[progressTokenKey]
}

func setProgressToken(p hasMeta, token any) {
	m := p.GetMeta()
	if m == nil {
		m = Meta{}
	}
	m[progressTokenKey] = token
	p.SetMeta(m)
}

// Params is implemented by every request and notification payload.
type Params interface {
	hasMeta
	isParams()
}

// Result is implemented by every request's result payload.
type Result interface {
	isResult()
}

// Annotations are optional hints about how a piece of content or a
// resource should be used or displayed.
type Annotations struct {
	Audience     []MessageRole `json:"audience,omitempty"`
	LastModified string        `json:"lastModified,omitempty"`
	Priority     float64       `json:"priority,omitempty"`
}

// IconTheme is the background an [Icon] is designed to sit on.
type IconTheme string

const (
	IconThemeLight IconTheme = "light"
	IconThemeDark  IconTheme = "dark"
)

// Icon is a visual identifier for a tool, prompt, resource, or implementation.
type Icon struct {
	Source   string    `json:"src"`
	MIMEType string    `json:"mimeType,omitempty"`
	Sizes    []string  `json:"sizes,omitempty"`
	Theme    IconTheme `json:"theme,omitempty"`
}

// Implementation names and versions one side of a connection.
type Implementation struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	Version    string `json:"version"`
	WebsiteURL string `json:"websiteUrl,omitempty"`
	Icons      []Icon `json:"icons,omitempty"`
}

// --- Capabilities ---------------------------------------------------------

type RootCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type SamplingContextCapabilities struct{}
type SamplingToolsCapabilities struct{}

type SamplingCapabilities struct {
	Context *SamplingContextCapabilities `json:"context,omitempty"`
	Tools   *SamplingToolsCapabilities   `json:"tools,omitempty"`
}

type FormElicitationCapabilities struct{}
type URLElicitationCapabilities struct{}

// ElicitationCapabilities describes support for elicitation. If neither
// Form nor URL is set, Form is assumed.
type ElicitationCapabilities struct {
	Form *FormElicitationCapabilities `json:"form,omitempty"`
	URL  *URLElicitationCapabilities  `json:"url,omitempty"`
}

// ClientCapabilities describes what a client supports. Known capabilities
// are listed here but this is not a closed set: a client may advertise
// arbitrary vendor extensions under Extensions.
type ClientCapabilities struct {
	Experimental map[string]any           `json:"experimental,omitempty"`
	Extensions   map[string]any           `json:"extensions,omitempty"`
	Roots        *RootCapabilities        `json:"roots,omitempty"`
	Sampling     *SamplingCapabilities    `json:"sampling,omitempty"`
	Elicitation  *ElicitationCapabilities `json:"elicitation,omitempty"`
}

// AddExtension records a vendor extension capability. A nil settings map
// is normalized to an empty object, since the wire format requires an
// object rather than null.
func (c *ClientCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

func (c *ClientCapabilities) clone() *ClientCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Roots = shallowClone(c.Roots)
	cp.Sampling = shallowClone(c.Sampling)
	cp.Elicitation = shallowClone(c.Elicitation)
	return &cp
}

func shallowClone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type CompletionCapabilities struct{}
type LoggingCapabilities struct{}

type PromptCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourceCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
	Subscribe   bool `json:"subscribe,omitempty"`
}

type ToolCapabilities struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities describes what a server supports.
type ServerCapabilities struct {
	Experimental map[string]any          `json:"experimental,omitempty"`
	Extensions   map[string]any          `json:"extensions,omitempty"`
	Completions  *CompletionCapabilities `json:"completions,omitempty"`
	Logging      *LoggingCapabilities    `json:"logging,omitempty"`
	Prompts      *PromptCapabilities     `json:"prompts,omitempty"`
	Resources    *ResourceCapabilities   `json:"resources,omitempty"`
	Tools        *ToolCapabilities       `json:"tools,omitempty"`
	Tasks        *TaskCapabilities       `json:"tasks,omitempty"`
}

func (c *ServerCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

func (c *ServerCapabilities) clone() *ServerCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Completions = shallowClone(c.Completions)
	cp.Logging = shallowClone(c.Logging)
	cp.Prompts = shallowClone(c.Prompts)
	cp.Resources = shallowClone(c.Resources)
	cp.Tools = shallowClone(c.Tools)
	cp.Tasks = shallowClone(c.Tasks)
	return &cp
}

// --- Handshake --------------------------------------------------------

type InitializeParams struct {
	Meta            `json:"_meta,omitempty"`
	Capabilities    *ClientCapabilities `json:"capabilities"`
	ClientInfo      *Implementation     `json:"clientInfo"`
	ProtocolVersion string              `json:"protocolVersion"`
}

func (x *InitializeParams) isParams() {}

type InitializeResult struct {
	Meta            `json:"_meta,omitempty"`
	Capabilities    *ServerCapabilities `json:"capabilities"`
	Instructions    string              `json:"instructions,omitempty"`
	ProtocolVersion string              `json:"protocolVersion"`
	ServerInfo      *Implementation     `json:"serverInfo"`
}

func (*InitializeResult) isResult() {}

type InitializedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *InitializedParams) isParams() {}

type PingParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *PingParams) isParams() {}

// emptyResult is the `{}` result for methods with nothing to return
// (ping, subscribe, unsubscribe, setLevel).
type emptyResult struct {
	Meta `json:"_meta,omitempty"`
}

func (*emptyResult) isResult() {}

// CancelledParams is notifications/cancelled's payload (§4.C.2, §5).
type CancelledParams struct {
	Meta      `json:"_meta,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID any    `json:"requestId"`
}

func (x *CancelledParams) isParams() {}

// ProgressNotificationParams is notifications/progress's payload.
type ProgressNotificationParams struct {
	Meta          `json:"_meta,omitempty"`
	ProgressToken any     `json:"progressToken"`
	Message       string  `json:"message,omitempty"`
	Progress      float64 `json:"progress"`
	Total         float64 `json:"total,omitempty"`
}

func (*ProgressNotificationParams) isParams() {}

// --- Tools ------------------------------------------------------------

// Tool describes one tool a server offers. InputSchema and OutputSchema
// hold opaque JSON Schema values; this core neither infers nor validates
// schemas (see SPEC_FULL.md's Non-goals).
type Tool struct {
	Meta         `json:"_meta,omitempty"`
	Annotations  *ToolAnnotations `json:"annotations,omitempty"`
	Description  string           `json:"description,omitempty"`
	InputSchema  any              `json:"inputSchema"`
	Name         string           `json:"name"`
	OutputSchema any              `json:"outputSchema,omitempty"`
	Title        string           `json:"title,omitempty"`
	Icons        []Icon           `json:"icons,omitempty"`
	Execution    *ToolExecution   `json:"execution,omitempty"`
}

// ToolExecution describes out-of-band execution behavior for a tool.
type ToolExecution struct {
	// TaskSupport is one of "forbidden" (default), "optional", or
	// "required", gating whether a tools/call for this tool may (or must)
	// be augmented into a task via CallToolParams.Task.
	TaskSupport string `json:"taskSupport,omitempty"`
}

// ToolAnnotations are hints about tool behavior; servers may lie, so
// clients must never gate tool-use decisions solely on these.
type ToolAnnotations struct {
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	Title           string `json:"title,omitempty"`
}

type CallToolParams struct {
	Meta      `json:"_meta,omitempty"`
	Name      string      `json:"name"`
	Arguments any         `json:"arguments,omitempty"`
	Task      *TaskParams `json:"task,omitempty"`
}

func (x *CallToolParams) isParams() {}

// CallToolParamsRaw is what a server-side handler actually receives:
// Arguments arrives undecoded so the handler can unmarshal and validate it
// itself.
type CallToolParamsRaw struct {
	Meta      `json:"_meta,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Task      *TaskParams     `json:"task,omitempty"`
}

func (x *CallToolParamsRaw) isParams() {}

type CallToolResult struct {
	Meta              `json:"_meta,omitempty"`
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError,omitempty"`

	err error // not marshaled; see SetError/GetError
}

// SetError records err as the tool call's failure, filling Content with
// its text so an LLM can see and react to it without a wire-level error.
func (r *CallToolResult) SetError(err error) {
	r.Content = []Content{&TextContent{Text: err.Error()}}
	r.IsError = true
	r.err = err
}

// GetError returns the error passed to SetError, or nil. Only populated
// on the server side.
func (r *CallToolResult) GetError() error { return r.err }

func (*CallToolResult) isResult() {}

func (x *CallToolResult) UnmarshalJSON(data []byte) error {
	type result CallToolResult
	var wire struct {
		result
		Content []*contentWire `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	content, err := decodeContentList(wire.Content, nil)
	if err != nil {
		return err
	}
	*x = CallToolResult(wire.result)
	x.Content = content
	return nil
}

type ToolListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ToolListChangedParams) isParams() {}

// cursorParams/cursorResult are implemented by every List*Params/Result
// pair that supports cursor pagination.
type cursorParams interface {
	cursorPtr() *string
}

type cursorResult interface {
	nextCursorPtr() *string
}

type ListToolsParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListToolsParams) isParams()         {}
func (x *ListToolsParams) cursorPtr() *string { return &x.Cursor }

type ListToolsResult struct {
	Meta       `json:"_meta,omitempty"`
	NextCursor string  `json:"nextCursor,omitempty"`
	Tools      []*Tool `json:"tools"`
}

func (x *ListToolsResult) isResult()             {}
func (x *ListToolsResult) nextCursorPtr() *string { return &x.NextCursor }

// --- Prompts ------------------------------------------------------------

type Prompt struct {
	Meta        `json:"_meta,omitempty"`
	Arguments   []*PromptArgument `json:"arguments,omitempty"`
	Description string            `json:"description,omitempty"`
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Icons       []Icon            `json:"icons,omitempty"`
}

type PromptArgument struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type PromptListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *PromptListChangedParams) isParams() {}

// PromptMessage is like [SamplingMessage] but additionally allows embedded
// resources.
type PromptMessage struct {
	Content Content     `json:"content"`
	Role    MessageRole `json:"role"`
}

func (m *PromptMessage) UnmarshalJSON(data []byte) error {
	type msg PromptMessage
	var wire struct {
		msg
		Content *contentWire `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, err := decodeContentOne(wire.Content, nil)
	if err != nil {
		return err
	}
	*m = PromptMessage(wire.msg)
	m.Content = c
	return nil
}

type GetPromptParams struct {
	Meta      `json:"_meta,omitempty"`
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

func (x *GetPromptParams) isParams() {}

type GetPromptResult struct {
	Meta        `json:"_meta,omitempty"`
	Description string           `json:"description,omitempty"`
	Messages    []*PromptMessage `json:"messages"`
}

func (*GetPromptResult) isResult() {}

type ListPromptsParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListPromptsParams) isParams()         {}
func (x *ListPromptsParams) cursorPtr() *string { return &x.Cursor }

type ListPromptsResult struct {
	Meta       `json:"_meta,omitempty"`
	NextCursor string    `json:"nextCursor,omitempty"`
	Prompts    []*Prompt `json:"prompts"`
}

func (x *ListPromptsResult) isResult()             {}
func (x *ListPromptsResult) nextCursorPtr() *string { return &x.NextCursor }

// --- Resources ------------------------------------------------------------

type Resource struct {
	Meta        `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Description string       `json:"description,omitempty"`
	MIMEType    string       `json:"mimeType,omitempty"`
	Name        string       `json:"name"`
	Size        int64        `json:"size,omitempty"`
	Title       string       `json:"title,omitempty"`
	URI         string       `json:"uri"`
	Icons       []Icon       `json:"icons,omitempty"`
}

// ResourceTemplate describes a family of resources addressed by an
// RFC 6570 URI template; see uritemplate.go.
type ResourceTemplate struct {
	Meta        `json:"_meta,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	Description string       `json:"description,omitempty"`
	MIMEType    string       `json:"mimeType,omitempty"`
	Name        string       `json:"name"`
	Title       string       `json:"title,omitempty"`
	URITemplate string       `json:"uriTemplate"`
	Icons       []Icon       `json:"icons,omitempty"`
}

type ReadResourceParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (x *ReadResourceParams) isParams() {}

type ReadResourceResult struct {
	Meta     `json:"_meta,omitempty"`
	Contents []*ResourceContents `json:"contents"`
}

func (*ReadResourceResult) isResult() {}

type ListResourcesParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListResourcesParams) isParams()         {}
func (x *ListResourcesParams) cursorPtr() *string { return &x.Cursor }

type ListResourcesResult struct {
	Meta       `json:"_meta,omitempty"`
	NextCursor string      `json:"nextCursor,omitempty"`
	Resources  []*Resource `json:"resources"`
}

func (x *ListResourcesResult) isResult()             {}
func (x *ListResourcesResult) nextCursorPtr() *string { return &x.NextCursor }

type ListResourceTemplatesParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListResourceTemplatesParams) isParams()         {}
func (x *ListResourceTemplatesParams) cursorPtr() *string { return &x.Cursor }

type ListResourceTemplatesResult struct {
	Meta              `json:"_meta,omitempty"`
	NextCursor        string              `json:"nextCursor,omitempty"`
	ResourceTemplates []*ResourceTemplate `json:"resourceTemplates"`
}

func (x *ListResourceTemplatesResult) isResult()             {}
func (x *ListResourceTemplatesResult) nextCursorPtr() *string { return &x.NextCursor }

type ResourceListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ResourceListChangedParams) isParams() {}

type SubscribeParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (*SubscribeParams) isParams() {}

type UnsubscribeParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (*UnsubscribeParams) isParams() {}

type ResourceUpdatedNotificationParams struct {
	Meta `json:"_meta,omitempty"`
	URI  string `json:"uri"`
}

func (*ResourceUpdatedNotificationParams) isParams() {}

// --- Completion ------------------------------------------------------------

type CompleteParamsArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CompleteContext struct {
	Arguments map[string]string `json:"arguments,omitempty"`
}

// CompleteReference is a completion target: either a prompt name
// ("ref/prompt") or a resource URI ("ref/resource").
type CompleteReference struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

func (r *CompleteReference) UnmarshalJSON(data []byte) error {
	type wire CompleteReference
	var w wire
	if err := internaljson.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "ref/prompt":
		if w.URI != "" {
			return fmt.Errorf("reference of type %q must not have a URI set", w.Type)
		}
	case "ref/resource":
		if w.Name != "" {
			return fmt.Errorf("reference of type %q must not have a Name set", w.Type)
		}
	default:
		return fmt.Errorf("unrecognized reference type %q", w.Type)
	}
	*r = CompleteReference(w)
	return nil
}

type CompleteParams struct {
	Meta     `json:"_meta,omitempty"`
	Argument CompleteParamsArgument `json:"argument"`
	Context  *CompleteContext       `json:"context,omitempty"`
	Ref      *CompleteReference     `json:"ref"`
}

func (*CompleteParams) isParams() {}

type CompletionResultDetails struct {
	HasMore bool     `json:"hasMore,omitempty"`
	Total   int      `json:"total,omitempty"`
	Values  []string `json:"values"`
}

type CompleteResult struct {
	Meta       `json:"_meta,omitempty"`
	Completion CompletionResultDetails `json:"completion"`
}

func (*CompleteResult) isResult() {}

// --- Logging ------------------------------------------------------------

// LoggingLevel mirrors RFC 5424 syslog severities.
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

type LoggingMessageParams struct {
	Meta   `json:"_meta,omitempty"`
	Data   any          `json:"data"`
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
}

func (x *LoggingMessageParams) isParams() {}

type SetLoggingLevelParams struct {
	Meta  `json:"_meta,omitempty"`
	Level LoggingLevel `json:"level"`
}

func (x *SetLoggingLevelParams) isParams() {}

// --- Roots ------------------------------------------------------------

type Root struct {
	Meta `json:"_meta,omitempty"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri"`
}

type ListRootsParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *ListRootsParams) isParams() {}

type ListRootsResult struct {
	Meta  `json:"_meta,omitempty"`
	Roots []*Root `json:"roots"`
}

func (*ListRootsResult) isResult() {}

type RootsListChangedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *RootsListChangedParams) isParams() {}

// --- Sampling ------------------------------------------------------------

// ModelHint is a substring match against a model name, used to steer
// [ModelPreferences]; unknown hint keys are left to the client to interpret.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

// ModelPreferences are advisory; the client may ignore them entirely.
type ModelPreferences struct {
	CostPriority         float64      `json:"costPriority,omitempty"`
	Hints                []*ModelHint `json:"hints,omitempty"`
	IntelligencePriority float64      `json:"intelligencePriority,omitempty"`
	SpeedPriority        float64      `json:"speedPriority,omitempty"`
}

// SamplingMessage is one turn of a conversation sent to sampling/createMessage.
// Assistant turns may use text/image/audio/tool_use content; user turns may
// additionally use tool_result.
type SamplingMessage struct {
	Content Content     `json:"content"`
	Role    MessageRole `json:"role"`
}

var samplingContentKinds = map[string]bool{
	"text": true, "image": true, "audio": true, "tool_use": true, "tool_result": true,
}

func (m *SamplingMessage) UnmarshalJSON(data []byte) error {
	type msg SamplingMessage
	var wire struct {
		msg
		Content *contentWire `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, err := decodeContentOne(wire.Content, samplingContentKinds)
	if err != nil {
		return err
	}
	*m = SamplingMessage(wire.msg)
	m.Content = c
	return nil
}

type CreateMessageParams struct {
	Meta             `json:"_meta,omitempty"`
	IncludeContext   string             `json:"includeContext,omitempty"`
	MaxTokens        int64              `json:"maxTokens"`
	Messages         []*SamplingMessage `json:"messages"`
	Metadata         any                `json:"metadata,omitempty"`
	ModelPreferences *ModelPreferences  `json:"modelPreferences,omitempty"`
	StopSequences    []string           `json:"stopSequences,omitempty"`
	SystemPrompt     string             `json:"systemPrompt,omitempty"`
	Temperature      float64            `json:"temperature,omitempty"`
}

func (x *CreateMessageParams) isParams() {}

type CreateMessageResult struct {
	Meta       `json:"_meta,omitempty"`
	Content    Content     `json:"content"`
	Model      string      `json:"model"`
	Role       MessageRole `json:"role"`
	StopReason string      `json:"stopReason,omitempty"`
}

func (*CreateMessageResult) isResult() {}

func (r *CreateMessageResult) UnmarshalJSON(data []byte) error {
	type res CreateMessageResult
	var wire struct {
		res
		Content *contentWire `json:"content"`
	}
	if err := internaljson.Unmarshal(data, &wire); err != nil {
		return err
	}
	c, err := decodeContentOne(wire.Content, samplingContentKinds)
	if err != nil {
		return err
	}
	*r = CreateMessageResult(wire.res)
	r.Content = c
	return nil
}

// --- Elicitation ------------------------------------------------------------

// ElicitParams asks the client to gather additional information from its
// user, either via an inline form (RequestedSchema) or an out-of-band URL.
type ElicitParams struct {
	Meta            `json:"_meta,omitempty"`
	Mode            string `json:"mode"`
	Message         string `json:"message"`
	RequestedSchema any    `json:"requestedSchema,omitempty"`
	URL             string `json:"url,omitempty"`
	ElicitationID   string `json:"elicitationId,omitempty"`
}

func (x *ElicitParams) isParams() {}

type ElicitResult struct {
	Meta    `json:"_meta,omitempty"`
	Action  string         `json:"action"`
	Content map[string]any `json:"content,omitempty"`
}

func (*ElicitResult) isResult() {}

// ElicitationCompleteParams tells the client an out-of-band (URL-mode)
// elicitation has finished.
type ElicitationCompleteParams struct {
	Meta          `json:"_meta,omitempty"`
	ElicitationID string `json:"elicitationId"`
}

func (*ElicitationCompleteParams) isParams() {}

// --- Tasks (supplemental; §6 "include but are not limited to") ------------

// TaskStatus is the lifecycle state of an augmented long-running request.
type TaskStatus string

const (
	TaskStatusWorking       TaskStatus = "working"
	TaskStatusInputRequired TaskStatus = "input_required"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusCancelled     TaskStatus = "cancelled"
)

// Task is a handle to an asynchronous operation created by augmenting a
// request (currently only tools/call) with a TaskParams.
type Task struct {
	Meta          `json:"_meta,omitempty"`
	TaskID        string     `json:"taskId"`
	Status        TaskStatus `json:"status"`
	StatusMessage string     `json:"statusMessage,omitempty"`
	CreatedAt     string     `json:"createdAt"`
	LastUpdatedAt string     `json:"lastUpdatedAt"`
	TTL           *int64     `json:"ttl"`
}

// TaskParams requests that a request be executed as a task instead of
// waiting inline for its result.
type TaskParams struct {
	TTL *int64 `json:"ttl,omitempty"`
}

type CreateTaskResult struct {
	Meta `json:"_meta,omitempty"`
	Task *Task `json:"task"`
}

func (*CreateTaskResult) isResult() {}

type GetTaskParams struct {
	Meta   `json:"_meta,omitempty"`
	TaskID string `json:"taskId"`
}

func (x *GetTaskParams) isParams() {}

type GetTaskResult Task

func (*GetTaskResult) isResult() {}

type ListTasksParams struct {
	Meta   `json:"_meta,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

func (x *ListTasksParams) isParams()         {}
func (x *ListTasksParams) cursorPtr() *string { return &x.Cursor }

type ListTasksResult struct {
	Meta       `json:"_meta,omitempty"`
	Tasks      []*Task `json:"tasks"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

func (x *ListTasksResult) isResult()             {}
func (x *ListTasksResult) nextCursorPtr() *string { return &x.NextCursor }

type CancelTaskParams struct {
	Meta   `json:"_meta,omitempty"`
	TaskID string `json:"taskId"`
}

func (x *CancelTaskParams) isParams() {}

type CancelTaskResult Task

func (*CancelTaskResult) isResult() {}

type TaskResultParams struct {
	Meta   `json:"_meta,omitempty"`
	TaskID string `json:"taskId"`
}

func (x *TaskResultParams) isParams() {}

// TaskStatusNotificationParams is notifications/tasks/status's payload; its
// underlying struct matches Task so a *Task can be cast to it directly.
type TaskStatusNotificationParams Task

func (x *TaskStatusNotificationParams) isParams() {}

type TaskListCapabilities struct{}
type TaskCancelCapabilities struct{}
type TaskToolCallCapabilities struct{}

type TaskToolRequestCapabilities struct {
	Call *TaskToolCallCapabilities `json:"call,omitempty"`
}

type TaskRequestCapabilities struct {
	Tools *TaskToolRequestCapabilities `json:"tools,omitempty"`
}

// TaskCapabilities advertises support for the task-augmentation extension.
type TaskCapabilities struct {
	List     *TaskListCapabilities    `json:"list,omitempty"`
	Cancel   *TaskCancelCapabilities  `json:"cancel,omitempty"`
	Requests *TaskRequestCapabilities `json:"requests,omitempty"`
}

// --- Method name table ------------------------------------------------------------

const (
	methodInitialize                = "initialize"
	notificationInitialized         = "notifications/initialized"
	methodPing                      = "ping"
	notificationCancelled           = "notifications/cancelled"
	notificationProgress            = "notifications/progress"
	methodListTools                 = "tools/list"
	methodCallTool                  = "tools/call"
	notificationToolListChanged     = "notifications/tools/list_changed"
	methodListPrompts               = "prompts/list"
	methodGetPrompt                 = "prompts/get"
	notificationPromptListChanged   = "notifications/prompts/list_changed"
	methodListResources             = "resources/list"
	methodListResourceTemplates     = "resources/templates/list"
	methodReadResource              = "resources/read"
	methodSubscribe                 = "resources/subscribe"
	methodUnsubscribe               = "resources/unsubscribe"
	notificationResourceListChanged = "notifications/resources/list_changed"
	notificationResourceUpdated     = "notifications/resources/updated"
	methodComplete                  = "completion/complete"
	methodSetLevel                  = "logging/setLevel"
	notificationLoggingMessage      = "notifications/message"
	methodListRoots                 = "roots/list"
	notificationRootsListChanged    = "notifications/roots/list_changed"
	methodCreateMessage             = "sampling/createMessage"
	methodElicit                    = "elicitation/create"
	notificationElicitationComplete = "notifications/elicitation/complete"
	methodGetTask                   = "tasks/get"
	methodListTasks                 = "tasks/list"
	methodCancelTask                = "tasks/cancel"
	methodTaskResult                = "tasks/result"
	notificationTaskStatus          = "notifications/tasks/status"
)
