// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mcpcore/gomcp/jsonrpc"
)

// sseTestServer is a minimal endpoint-discovery SSE server: GET / streams
// an "endpoint" event pointing at /messages, then forwards anything posted
// there back down the stream as a "message" event.
type sseTestServer struct {
	mu      sync.Mutex
	flusher http.Flusher
	w       http.ResponseWriter
	posted  chan []byte
}

func newSSETestServer() (*sseTestServer, *httptest.Server) {
	s := &sseTestServer{posted: make(chan []byte, 16)}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		writeSSEEvent(w, sseEvent{name: "endpoint", data: "/messages"})
		fl.Flush()
		s.mu.Lock()
		s.w, s.flusher = w, fl
		s.mu.Unlock()
		<-r.Context().Done()
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.posted <- body
		w.WriteHeader(http.StatusAccepted)
	})
	return s, httptest.NewServer(mux)
}

func (s *sseTestServer) push(t *testing.T, id string, msg jsonrpc.Message) {
	t.Helper()
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("EncodeMessage: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		t.Fatal("no SSE client connected yet")
	}
	writeSSEEvent(s.w, sseEvent{name: "message", id: id, data: string(data)})
	s.flusher.Flush()
}

func TestSSEClientTransportDiscoversEndpointAndExchanges(t *testing.T) {
	srv, httpSrv := newSSETestServer()
	defer httpSrv.Close()

	transport := NewSSEClientTransport(httpSrv.URL+"/", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := transport.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Write(ctx, &jsonrpc.Request{Method: "ping", ID: jsonrpc.Int64ID(1)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case body := <-srv.posted:
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err != nil {
			t.Fatalf("posted body not JSON: %v", err)
		}
		if decoded["method"] != "ping" {
			t.Errorf("posted method = %v, want ping", decoded["method"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the posted message")
	}

	srv.push(t, "1", &jsonrpc.Response{ID: jsonrpc.Int64ID(1), Result: []byte(`{}`)})
	msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		t.Fatalf("got %T, want *jsonrpc.Response", msg)
	}
	if resp.ID.Raw() != int64(1) {
		t.Errorf("ID = %v, want 1", resp.ID.Raw())
	}
}

func TestSSEClientTransportConnectFailsWithoutEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		// close immediately without ever sending an endpoint event
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	transport := NewSSEClientTransport(srv.URL+"/", &SSEClientTransportOptions{MaxRetries: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := transport.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail when no endpoint event ever arrives")
	}
}

func TestResolveEndpoint(t *testing.T) {
	cases := []struct {
		base, ref, want string
	}{
		{"http://example.com/sse", "/messages", "http://example.com/messages"},
		{"http://example.com/sse/", "messages", "http://example.com/sse/messages"},
		{"http://example.com/sse", "http://other.example.com/x", "http://other.example.com/x"},
	}
	for _, c := range cases {
		got, err := resolveEndpoint(c.base, c.ref)
		if err != nil {
			t.Fatalf("resolveEndpoint(%q, %q): %v", c.base, c.ref, err)
		}
		if got != c.want {
			t.Errorf("resolveEndpoint(%q, %q) = %q, want %q", c.base, c.ref, got, c.want)
		}
	}
}
