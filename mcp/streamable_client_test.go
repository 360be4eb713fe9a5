// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewStreamableClientTransportRejectsReservedHeader(t *testing.T) {
	_, err := NewStreamableClientTransport("http://example.com", &StreamableClientTransportOptions{
		Header: http.Header{"Mcp-Session-Id": {"forged"}},
	})
	if err == nil {
		t.Fatal("expected ErrReservedHeaderConflict")
	}
}

func TestNewStreamableClientTransportAllowsOrdinaryHeader(t *testing.T) {
	tr, err := NewStreamableClientTransport("http://example.com", &StreamableClientTransportOptions{
		Header: http.Header{"Authorization": {"Bearer x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr == nil {
		t.Fatal("expected non-nil transport")
	}
}

func TestStreamableClientServerCallToolRoundTrip(t *testing.T) {
	srv := NewServer(&Implementation{Name: "s", Version: "1"}, nil)
	srv.AddTool(&Tool{Name: "double"}, func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		return &CallToolResult{Content: []Content{&TextContent{Text: "4"}}}, nil
	})
	handler := NewStreamableHTTPHandler(func(*http.Request) *Server { return srv }, nil)
	httpSrv := httptest.NewServer(handler)
	defer httpSrv.Close()
	defer handler.Close()

	transport, err := NewStreamableClientTransport(httpSrv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewStreamableClientTransport: %v", err)
	}

	client := NewClient(&Implementation{Name: "c", Version: "1"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := client.Connect(ctx, transport)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	result, err := sess.CallTool(ctx, &CallToolParams{Name: "double", Arguments: map[string]any{"n": 2}})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Content = %+v", result.Content)
	}
	if got := sess.ServerInfo(); got == nil || got.Name != "s" {
		t.Fatalf("ServerInfo = %+v", got)
	}
}
