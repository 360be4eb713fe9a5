// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebSocketClientServerCallToolRoundTrip(t *testing.T) {
	srv := NewServer(&Implementation{Name: "ws-server", Version: "1"}, nil)
	srv.AddTool(&Tool{Name: "echo"}, func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		return &CallToolResult{Content: []Content{&TextContent{Text: "pong"}}}, nil
	})

	wsTransport := NewWebSocketServerTransport(func(*http.Request) *Server { return srv })
	httpSrv := httptest.NewServer(wsTransport)
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	clientTransport := &WebSocketClientTransport{URL: wsURL}

	client := NewClient(&Implementation{Name: "ws-client", Version: "1"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := client.Connect(ctx, clientTransport)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sess.Close()

	result, err := sess.CallTool(ctx, &CallToolParams{Name: "echo"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(result.Content) != 1 {
		t.Fatalf("Content = %+v", result.Content)
	}
	text, ok := result.Content[0].(*TextContent)
	if !ok || text.Text != "pong" {
		t.Fatalf("Content[0] = %+v", result.Content[0])
	}
}

func TestWebSocketServerTransportRejectsWhenNoServer(t *testing.T) {
	wsTransport := NewWebSocketServerTransport(func(*http.Request) *Server { return nil })
	httpSrv := httptest.NewServer(wsTransport)
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
