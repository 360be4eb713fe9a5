// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mcpcore/gomcp/jsonrpc"
)

// NewInMemoryTransports returns a connected pair of transports suitable for
// testing a client and server against each other without a real network or
// process boundary.
func NewInMemoryTransports() (client, server Transport) {
	id := randText()
	c2s := newMessagePipe()
	s2c := newMessagePipe()
	return &inMemoryTransport{id: id, read: s2c, write: c2s},
		&inMemoryTransport{id: id, read: c2s, write: s2c}
}

type inMemoryTransport struct {
	id    string
	read  *messagePipe
	write *messagePipe
}

func (t *inMemoryTransport) Connect(ctx context.Context) (Connection, error) {
	return &inMemoryConn{id: t.id, read: t.read, write: t.write}, nil
}

type inMemoryConn struct {
	id    string
	read  *messagePipe
	write *messagePipe
}

func (c *inMemoryConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	return c.read.recv(ctx)
}

func (c *inMemoryConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	return c.write.send(ctx, msg)
}

func (c *inMemoryConn) Close() error {
	c.write.closeSend()
	return nil
}

func (c *inMemoryConn) SessionID() string { return c.id }

// messagePipe is an unbounded, closeable channel of messages shared by the
// two ends of an in-memory transport pair.
type messagePipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []jsonrpc.Message
	closed bool
}

func newMessagePipe() *messagePipe {
	p := &messagePipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *messagePipe) send(ctx context.Context, msg jsonrpc.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("mcp: write to closed in-memory connection")
	}
	p.queue = append(p.queue, msg)
	p.cond.Signal()
	return nil
}

func (p *messagePipe) closeSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
	}
}

func (p *messagePipe) recv(ctx context.Context) (jsonrpc.Message, error) {
	// A goroutine bridges ctx cancellation into a cond broadcast, since
	// sync.Cond has no native context support.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(p.queue) == 0 {
		return nil, io.EOF
	}
	msg := p.queue[0]
	p.queue = p.queue[1:]
	return msg, nil
}
