// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mcpcore/gomcp/jsonrpc"
)

// SSEClientTransportOptions configures an SSEClientTransport.
type SSEClientTransportOptions struct {
	// HTTPClient is the client used for requests. If nil, http.DefaultClient.
	HTTPClient *http.Client

	// MaxRetries bounds stream-reconnection attempts. Zero means no retries.
	MaxRetries int

	// InitialBackoff is the first retry delay; doubles on each subsequent
	// retry up to a 30s cap, with jitter. Zero means 1s.
	InitialBackoff time.Duration
}

// An SSEClientTransport is a Transport implementing the pre-Streamable-HTTP
// SSE transport (§4.E): a single long-lived GET stream whose first event
// discovers the POST endpoint for outbound messages.
type SSEClientTransport struct {
	url  string
	opts SSEClientTransportOptions
}

// NewSSEClientTransport returns a transport that opens its event stream at
// url.
func NewSSEClientTransport(url string, opts *SSEClientTransportOptions) *SSEClientTransport {
	t := &SSEClientTransport{url: url}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.InitialBackoff <= 0 {
		t.opts.InitialBackoff = time.Second
	}
	return t
}

var errEndpointNotDiscovered = errors.New("mcp: SSE stream closed before an endpoint event arrived")

// Connect opens the GET stream and blocks until the "endpoint" event is
// received (§4.E step 2), then returns a Connection that posts to that
// endpoint and reads from the stream.
func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	client := t.opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	conn := &sseClientConn{
		streamURL:      t.url,
		client:         client,
		incoming:       make(chan []byte, 64),
		done:           make(chan struct{}),
		endpointReady:  make(chan struct{}),
		maxRetries:     t.opts.MaxRetries,
		initialBackoff: t.opts.InitialBackoff,
		rnd:            rand.New(rand.NewSource(1)),
	}

	go conn.streamLoop()

	select {
	case <-conn.endpointReady:
		if conn.endpointErr != nil {
			return nil, conn.endpointErr
		}
	case <-conn.done:
		return nil, errEndpointNotDiscovered
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
	return conn, nil
}

type sseClientConn struct {
	streamURL string
	client    *http.Client

	endpointOnce  sync.Once
	endpointReady chan struct{}
	endpointErr   error

	mu          sync.Mutex
	endpointURL string
	lastEventID string
	err         error
	cancelGET   context.CancelFunc

	incoming chan []byte
	done     chan struct{}

	closeOnce sync.Once

	maxRetries     int
	initialBackoff time.Duration
	rnd            *rand.Rand
}

func (c *sseClientConn) SessionID() string { return c.streamURL }

func (c *sseClientConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	case data := <-c.incoming:
		return jsonrpc.DecodeMessage(data)
	}
}

func (c *sseClientConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	c.mu.Lock()
	endpoint := c.endpointURL
	c.mu.Unlock()
	if endpoint == "" {
		return errEndpointNotDiscovered
	}
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mcp: POST to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mcp: POST to SSE endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *sseClientConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.cancelGET != nil {
			c.cancelGET()
		}
		c.mu.Unlock()
	})
	return nil
}

// streamLoop opens and, on failure, reconnects the GET stream, resolving
// the endpoint on the first successful connection and then feeding parsed
// messages into incoming for the transport's lifetime.
func (c *sseClientConn) streamLoop() {
	backoff := c.initialBackoff
	retries := 0
	for {
		select {
		case <-c.done:
			return
		default:
		}

		ctx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.cancelGET = cancel
		lastEventID := c.lastEventID
		c.mu.Unlock()

		err := c.connectOnce(ctx, lastEventID)

		c.mu.Lock()
		c.cancelGET = nil
		c.mu.Unlock()
		cancel()

		if err == nil {
			retries, backoff = 0, c.initialBackoff
			continue
		}

		c.endpointOnce.Do(func() {
			c.endpointErr = err
			close(c.endpointReady)
		})

		if retries >= c.maxRetries {
			c.mu.Lock()
			c.err = fmt.Errorf("mcp: SSE stream failed after %d retries: %w", c.maxRetries, err)
			c.mu.Unlock()
			c.Close()
			return
		}
		select {
		case <-c.done:
			return
		case <-time.After(backoff + time.Duration(c.rnd.Int63n(int64(backoff/2+1)))):
			retries++
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
	}
}

func (c *sseClientConn) connectOnce(ctx context.Context, lastEventID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set(headerLastEventID, lastEventID)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mcp: SSE GET returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	for evt, scanErr := range scanSSEEvents(resp.Body) {
		if scanErr != nil {
			if scanErr == io.EOF {
				return nil
			}
			return scanErr
		}
		if evt.id != "" {
			c.mu.Lock()
			c.lastEventID = evt.id
			c.mu.Unlock()
		}
		if evt.name == "endpoint" {
			resolved, err := resolveEndpoint(c.streamURL, evt.data)
			if err != nil {
				return err
			}
			c.mu.Lock()
			c.endpointURL = resolved
			c.mu.Unlock()
			c.endpointOnce.Do(func() { close(c.endpointReady) })
			continue
		}
		if evt.data == "" {
			continue
		}
		select {
		case c.incoming <- []byte(evt.data):
		case <-c.done:
			return io.EOF
		}
	}
	return nil
}

func resolveEndpoint(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("mcp: parsing SSE stream URL: %w", err)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("mcp: parsing endpoint event data %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
