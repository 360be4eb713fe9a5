// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func connectTestPair(t *testing.T, srv *Server, opts *ClientOptions) (*ClientSession, *ServerSession) {
	t.Helper()
	clientT, serverT := NewInMemoryTransports()

	type connResult struct {
		sess *ServerSession
		err  error
	}
	serverCh := make(chan connResult, 1)
	go func() {
		sess, err := srv.Connect(context.Background(), serverT)
		serverCh <- connResult{sess, err}
	}()

	client := NewClient(&Implementation{Name: "test-client", Version: "0.0.1"}, opts)
	clientSess, err := client.Connect(context.Background(), clientT)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}

	select {
	case res := <-serverCh:
		if res.err != nil {
			t.Fatalf("server Connect: %v", res.err)
		}
		return clientSess, res.sess
	case <-time.After(2 * time.Second):
		t.Fatal("server Connect never returned")
	}
	return nil, nil
}

func TestClientServerInitializeHandshake(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	clientSess, _ := connectTestPair(t, srv, nil)
	defer clientSess.Close()

	if got := clientSess.ServerInfo(); got == nil || got.Name != "test-server" {
		t.Fatalf("ServerInfo = %+v", got)
	}
}

func TestClientServerCallTool(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	srv.AddTool(&Tool{Name: "add", InputSchema: map[string]any{"type": "object"}}, func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		var args struct {
			A, B int
		}
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return nil, err
		}
		return &CallToolResult{Content: []Content{&TextContent{Text: "sum computed"}},
			StructuredContent: map[string]any{"sum": args.A + args.B}}, nil
	})

	clientSess, serverSess := connectTestPair(t, srv, nil)
	defer clientSess.Close()
	defer serverSess.Close()

	result, err := clientSess.CallTool(context.Background(), &CallToolParams{
		Name:      "add",
		Arguments: map[string]any{"A": 2, "B": 3},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.GetError())
	}
	if len(result.Content) != 1 {
		t.Fatalf("Content = %+v", result.Content)
	}
}

func TestClientServerListTools(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	srv.AddTool(&Tool{Name: "one"}, func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		return &CallToolResult{}, nil
	})
	srv.AddTool(&Tool{Name: "two"}, func(ctx context.Context, req *CallToolRequest) (*CallToolResult, error) {
		return &CallToolResult{}, nil
	})

	clientSess, serverSess := connectTestPair(t, srv, nil)
	defer clientSess.Close()
	defer serverSess.Close()

	res, err := clientSess.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(res.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(res.Tools))
	}
}

func TestClientServerCallToolUnknownTool(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	clientSess, serverSess := connectTestPair(t, srv, nil)
	defer clientSess.Close()
	defer serverSess.Close()

	_, err := clientSess.CallTool(context.Background(), &CallToolParams{Name: "missing"})
	if err == nil {
		t.Fatal("expected error calling unregistered tool")
	}
}

func TestInitializeRejectsUnsupportedProtocolVersion(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	clientT, serverT := NewInMemoryTransports()

	serverCh := make(chan error, 1)
	go func() {
		_, err := srv.Connect(context.Background(), serverT)
		serverCh <- err
	}()

	clientConn, err := clientT.Connect(context.Background())
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	client := newPeerConn(RoleClient, clientConn, nil)
	client.start(context.Background())
	defer client.close()

	_, err = client.call(context.Background(), methodInitialize, &InitializeParams{
		ProtocolVersion: "1999-01-01",
		ClientInfo:      &Implementation{Name: "bad-client", Version: "0.0.1"},
	})
	if err == nil {
		t.Fatal("expected an error for an unrecognized protocolVersion")
	}

	select {
	case err := <-serverCh:
		if err != nil {
			t.Fatalf("server Connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server Connect never returned")
	}

	// The handshake failure must be fatal: the server closes the
	// connection rather than waiting for a corrected retry.
	if _, err := client.call(context.Background(), methodPing, nil); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("call after fatal initialize failure = %v, want ErrConnectionClosed", err)
	}
}

func TestServerOptionsRateLimitRejectsExhaustedBurst(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, &ServerOptions{
		RateLimit: rate.NewLimiter(rate.Every(time.Hour), 1),
	})
	clientSess, serverSess := connectTestPair(t, srv, nil)
	defer clientSess.Close()
	defer serverSess.Close()

	// The handshake's initialize request already consumed the lone token
	// in the burst, so the very next request must be rejected.
	if err := clientSess.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to be rejected once the rate limit burst is exhausted")
	} else if !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("Ping error = %v, want a rate limit rejection", err)
	}
}

func TestClientServerPing(t *testing.T) {
	srv := NewServer(&Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	clientSess, serverSess := connectTestPair(t, srv, nil)
	defer clientSess.Close()
	defer serverSess.Close()

	if err := clientSess.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
