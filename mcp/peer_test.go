// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

func newTestPeerPair(t *testing.T) (*peerConn, *peerConn) {
	t.Helper()
	clientT, serverT := NewInMemoryTransports()
	clientConn, err := clientT.Connect(context.Background())
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	serverConn, err := serverT.Connect(context.Background())
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	client := newPeerConn(RoleClient, clientConn, nil)
	server := newPeerConn(RoleServer, serverConn, nil)
	return client, server
}

func TestPeerCallRoundTrip(t *testing.T) {
	client, server := newTestPeerPair(t)
	server.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		if method != "echo" {
			return nil, jsonrpc2.ErrMethodNotFound
		}
		return &emptyResult{}, nil
	}
	server.notificationHandler = func(ctx context.Context, method string, raw json.RawMessage) {}
	client.notificationHandler = func(ctx context.Context, method string, raw json.RawMessage) {}
	client.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		return nil, jsonrpc2.ErrMethodNotFound
	}

	ctx := context.Background()
	client.start(ctx)
	server.start(ctx)
	defer client.close()
	defer server.close()

	raw, err := client.call(ctx, "echo", &PingParams{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var got emptyResult
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
}

func TestPeerCallMethodNotFound(t *testing.T) {
	client, server := newTestPeerPair(t)
	server.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		return nil, jsonrpc2.ErrMethodNotFound
	}
	server.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		return nil, jsonrpc2.ErrMethodNotFound
	}

	ctx := context.Background()
	client.start(ctx)
	server.start(ctx)
	defer client.close()
	defer server.close()

	_, err := client.call(ctx, "nope", &PingParams{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPeerCallCancellation(t *testing.T) {
	client, server := newTestPeerPair(t)
	handlerEntered := make(chan struct{})
	handlerCancelled := make(chan struct{})
	server.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		close(handlerEntered)
		<-ctx.Done()
		close(handlerCancelled)
		return nil, ctx.Err()
	}
	server.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		return nil, jsonrpc2.ErrMethodNotFound
	}

	ctx := context.Background()
	client.start(ctx)
	server.start(ctx)
	defer client.close()
	defer server.close()

	callCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		_, err := client.call(callCtx, "slow", &PingParams{})
		done <- err
	}()

	select {
	case <-handlerEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never entered")
	}
	cancel()

	select {
	case <-handlerCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never observed cancellation")
	}
	if err := <-done; err == nil {
		t.Fatal("expected call to report cancellation")
	}
}

func TestPeerCloseFailsOutstandingCalls(t *testing.T) {
	client, server := newTestPeerPair(t)
	block := make(chan struct{})
	server.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		<-block
		return &emptyResult{}, nil
	}
	server.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.notificationHandler = func(context.Context, string, json.RawMessage) {}
	client.requestHandler = func(ctx context.Context, method string, raw json.RawMessage) (Result, error) {
		return nil, jsonrpc2.ErrMethodNotFound
	}

	ctx := context.Background()
	client.start(ctx)
	server.start(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := client.call(ctx, "slow", &PingParams{})
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)

	if err := client.close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call never returned after close")
	}
	close(block)
	server.close()
}
