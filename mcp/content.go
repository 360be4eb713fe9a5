// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"encoding/json"
	"fmt"

	internaljson "github.com/mcpcore/gomcp/internal/json"
)

// Content is the unstructured payload carried by tool results, prompt
// messages, and sampling messages. It is one of [TextContent],
// [ImageContent], [AudioContent], [ResourceLink], [EmbeddedResource],
// [ToolUseContent], or [ToolResultContent].
//
// [ToolUseContent] and [ToolResultContent] only appear inside sampling
// messages (CreateMessageParams / CreateMessageResult); every other content
// kind may appear anywhere content is accepted.
type Content interface {
	MarshalJSON() ([]byte, error)
	populate(*contentWire)
}

// TextContent is plain text.
type TextContent struct {
	Text        string
	Meta        Meta
	Annotations *Annotations
}

func (c *TextContent) MarshalJSON() ([]byte, error) {
	// text is required on the wire even when empty, so this can't reuse
	// contentWire's omitempty tag.
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Text        string       `json:"text"`
		Meta        Meta         `json:"_meta,omitempty"`
		Annotations *Annotations `json:"annotations,omitempty"`
	}{"text", c.Text, c.Meta, c.Annotations})
}

func (c *TextContent) populate(w *contentWire) {
	c.Text, c.Meta, c.Annotations = w.Text, w.Meta, w.Annotations
}

// ImageContent carries base64-encoded image bytes.
type ImageContent struct {
	Data        []byte // base64-encoded
	MIMEType    string
	Meta        Meta
	Annotations *Annotations
}

func (c *ImageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryContentWire("image", c.MIMEType, c.Data, c.Meta, c.Annotations))
}

func (c *ImageContent) populate(w *contentWire) {
	c.MIMEType, c.Data, c.Meta, c.Annotations = w.MIMEType, w.Data, w.Meta, w.Annotations
}

// AudioContent carries base64-encoded audio bytes.
type AudioContent struct {
	Data        []byte
	MIMEType    string
	Meta        Meta
	Annotations *Annotations
}

func (c *AudioContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(binaryContentWire("audio", c.MIMEType, c.Data, c.Meta, c.Annotations))
}

func (c *AudioContent) populate(w *contentWire) {
	c.MIMEType, c.Data, c.Meta, c.Annotations = w.MIMEType, w.Data, w.Meta, w.Annotations
}

func binaryContentWire(kind, mimeType string, data []byte, meta Meta, ann *Annotations) *contentWire {
	if data == nil {
		data = []byte{} // data is required on the wire, never omitted
	}
	return &contentWire{Type: kind, MIMEType: mimeType, Data: data, Meta: meta, Annotations: ann}
}

// ResourceLink points at a resource without embedding its contents.
type ResourceLink struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Size        *int64
	Icons       []Icon
	Meta        Meta
	Annotations *Annotations
}

func (c *ResourceLink) MarshalJSON() ([]byte, error) {
	return json.Marshal(&contentWire{
		Type: "resource_link", URI: c.URI, Name: c.Name, Title: c.Title,
		Description: c.Description, MIMEType: c.MIMEType, Size: c.Size,
		Icons: c.Icons, Meta: c.Meta, Annotations: c.Annotations,
	})
}

func (c *ResourceLink) populate(w *contentWire) {
	c.URI, c.Name, c.Title, c.Description = w.URI, w.Name, w.Title, w.Description
	c.MIMEType, c.Size, c.Icons = w.MIMEType, w.Size, w.Icons
	c.Meta, c.Annotations = w.Meta, w.Annotations
}

// EmbeddedResource inlines the contents of a resource.
type EmbeddedResource struct {
	Resource    *ResourceContents
	Meta        Meta
	Annotations *Annotations
}

func (c *EmbeddedResource) MarshalJSON() ([]byte, error) {
	return json.Marshal(&contentWire{Type: "resource", Resource: c.Resource, Meta: c.Meta, Annotations: c.Annotations})
}

func (c *EmbeddedResource) populate(w *contentWire) {
	c.Resource, c.Meta, c.Annotations = w.Resource, w.Meta, w.Annotations
}

// ToolUseContent is an assistant-issued request, inside a sampling message,
// to invoke a tool. It is matched against a later [ToolResultContent] by ID.
type ToolUseContent struct {
	ID    string
	Name  string
	Input map[string]any
	Meta  Meta
}

func (c *ToolUseContent) MarshalJSON() ([]byte, error) {
	input := c.Input
	if input == nil {
		input = map[string]any{}
	}
	return json.Marshal(struct {
		Type  string         `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
		Meta  Meta           `json:"_meta,omitempty"`
	}{"tool_use", c.ID, c.Name, input, c.Meta})
}

func (c *ToolUseContent) populate(w *contentWire) {
	c.ID, c.Name, c.Input, c.Meta = w.ID, w.Name, w.Input, w.Meta
}

// ToolResultContent is the outcome of a tool invocation requested by a prior
// [ToolUseContent]; it only ever appears in a "user"-role sampling message.
type ToolResultContent struct {
	ToolUseID         string
	Content           []Content
	StructuredContent any
	IsError           bool
	Meta              Meta
}

func (c *ToolResultContent) MarshalJSON() ([]byte, error) {
	nested := make([]*contentWire, 0, len(c.Content))
	for _, item := range c.Content {
		data, err := item.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var w contentWire
		if err := internaljson.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		nested = append(nested, &w)
	}
	return json.Marshal(struct {
		Type              string         `json:"type"`
		ToolUseID         string         `json:"toolUseId"`
		Content           []*contentWire `json:"content"`
		StructuredContent any            `json:"structuredContent,omitempty"`
		IsError           bool           `json:"isError,omitempty"`
		Meta              Meta           `json:"_meta,omitempty"`
	}{"tool_result", c.ToolUseID, nested, c.StructuredContent, c.IsError, c.Meta})
}

func (c *ToolResultContent) populate(w *contentWire) {
	c.ToolUseID, c.StructuredContent, c.IsError, c.Meta = w.ToolUseID, w.StructuredContent, w.IsError, w.Meta
	// Content itself is filled in by decodeContentOne, since it nests further content.
}

// ResourceContents is the body of a resource, either text or binary.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     []byte `json:"blob,omitzero"`
	Meta     Meta   `json:"_meta,omitempty"`
}

// contentWire is the union wire representation of every [Content] kind; Type
// selects which fields are meaningful.
type contentWire struct {
	Type              string            `json:"type"`
	Text              string            `json:"text,omitempty"`
	MIMEType          string            `json:"mimeType,omitempty"`
	Data              []byte            `json:"data,omitempty"`
	Resource          *ResourceContents `json:"resource,omitempty"`
	URI               string            `json:"uri,omitempty"`
	Name              string            `json:"name,omitempty"`
	Title             string            `json:"title,omitempty"`
	Description       string            `json:"description,omitempty"`
	Size              *int64            `json:"size,omitempty"`
	Icons             []Icon            `json:"icons,omitempty"`
	Meta              Meta              `json:"_meta,omitempty"`
	Annotations       *Annotations      `json:"annotations,omitempty"`
	ID                string            `json:"id,omitempty"`
	Input             map[string]any    `json:"input,omitempty"`
	ToolUseID         string            `json:"toolUseId,omitempty"`
	NestedContent     []*contentWire    `json:"content,omitempty"`
	StructuredContent any               `json:"structuredContent,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
}

var toolResultNestedKinds = map[string]bool{
	"text": true, "image": true, "audio": true, "resource_link": true, "resource": true,
}

// decodeContent unmarshals raw JSON holding either a single content object
// or an array of them, always returning a slice. allow, if non-nil,
// restricts which "type" tags are accepted.
func decodeContent(raw json.RawMessage, allow map[string]bool) ([]Content, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("nil content")
	}
	var wires []*contentWire
	if err := internaljson.Unmarshal(raw, &wires); err == nil {
		return decodeContentList(wires, allow)
	}
	var w contentWire
	if err := internaljson.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	c, err := decodeContentOne(&w, allow)
	if err != nil {
		return nil, err
	}
	return []Content{c}, nil
}

func decodeContentList(wires []*contentWire, allow map[string]bool) ([]Content, error) {
	out := make([]Content, 0, len(wires))
	for _, w := range wires {
		c, err := decodeContentOne(w, allow)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func decodeContentOne(w *contentWire, allow map[string]bool) (Content, error) {
	if w == nil {
		return nil, fmt.Errorf("nil content")
	}
	if allow != nil && !allow[w.Type] {
		return nil, fmt.Errorf("invalid content type %q", w.Type)
	}
	var c Content
	switch w.Type {
	case "text":
		c = new(TextContent)
	case "image":
		c = new(ImageContent)
	case "audio":
		c = new(AudioContent)
	case "resource_link":
		c = new(ResourceLink)
	case "resource":
		c = new(EmbeddedResource)
	case "tool_use":
		c = new(ToolUseContent)
	case "tool_result":
		tr := new(ToolResultContent)
		tr.populate(w)
		if w.NestedContent != nil {
			nested, err := decodeContentList(w.NestedContent, toolResultNestedKinds)
			if err != nil {
				return nil, fmt.Errorf("tool_result nested content: %w", err)
			}
			tr.Content = nested
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("unrecognized content type %q", w.Type)
	}
	c.populate(w)
	return c, nil
}
