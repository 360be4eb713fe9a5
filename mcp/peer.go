// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
	"github.com/mcpcore/gomcp/jsonrpc"
)

// ServerRequest carries an incoming request or notification bound for a
// server-side handler, together with the session it arrived on.
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P
}

// ClientRequest carries an incoming request or notification bound for a
// client-side handler (sampling, elicitation, roots, logging), together
// with the session it arrived on.
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

func newServerRequest[P Params](sess *ServerSession, p P) *ServerRequest[P] {
	return &ServerRequest[P]{Session: sess, Params: p}
}

func newClientRequest[P Params](sess *ClientSession, p P) *ClientRequest[P] {
	return &ClientRequest[P]{Session: sess, Params: p}
}

// notifier is implemented by every instantiation of ServerRequest/
// ClientRequest, letting handleNotify resend a request's params as a
// differently-named outbound notification without knowing its P.
type notifier interface {
	notify(ctx context.Context, method string) error
}

func (r *ServerRequest[P]) notify(ctx context.Context, method string) error {
	return r.Session.notify(ctx, method, r.Params)
}

func (r *ClientRequest[P]) notify(ctx context.Context, method string) error {
	return r.Session.notify(ctx, method, r.Params)
}

// rawRequestHandler decodes params for one method and produces a Result (or
// an error to report back over the wire).
type rawRequestHandler func(ctx context.Context, raw json.RawMessage) (Result, error)

// rawNotificationHandler decodes params for one notification method.
type rawNotificationHandler func(ctx context.Context, raw json.RawMessage)

// handleNotify resends a request's params as method, addressed to the same
// session the request arrived on. It is used for best-effort, fire-and-
// forget notifications (e.g. a task status update) built from a captured
// *ServerRequest[P]/*ClientRequest[P].
func handleNotify(ctx context.Context, method string, req any) error {
	n, ok := req.(notifier)
	if !ok {
		return fmt.Errorf("mcp: unsupported request type %T", req)
	}
	return n.notify(ctx, method)
}

// pendingCall is an outbound request awaiting its response.
type pendingCall struct {
	resultCh chan pendingResult
}

type pendingResult struct {
	raw json.RawMessage
	err error
}

// inboundCall tracks a request this side is currently handling, so that a
// notifications/cancelled referencing its id can cancel the handler's
// context.
type inboundCall struct {
	cancel context.CancelFunc
}

// peerConn is the symmetric engine underlying both ServerSession and
// ClientSession: one goroutine reads the Connection and dispatches each
// message, an outbound registry matches responses to their requests, and
// cancellation is propagated in both directions. Role only affects which
// handshake half runs; everything else here is identical for client and
// server (§4.C, §5).
type peerConn struct {
	role   Role
	conn   Connection
	logger *slog.Logger

	requestHandler      func(ctx context.Context, method string, raw json.RawMessage) (Result, error)
	notificationHandler func(ctx context.Context, method string, raw json.RawMessage)

	mu      sync.Mutex
	pending map[string]*pendingCall
	inbound map[string]*inboundCall
	closed  bool
	closeCh chan struct{}
	closeErr error

	wg sync.WaitGroup
}

func newPeerConn(role Role, conn Connection, logger *slog.Logger) *peerConn {
	if logger == nil {
		logger = slog.Default()
	}
	return &peerConn{
		role:    role,
		conn:    conn,
		logger:  logger,
		pending: make(map[string]*pendingCall),
		inbound: make(map[string]*inboundCall),
		closeCh: make(chan struct{}),
	}
}

// start launches the read loop. It must be called exactly once, after
// requestHandler/notificationHandler are set.
func (p *peerConn) start(ctx context.Context) {
	p.wg.Add(1)
	go p.readLoop(ctx)
}

func (p *peerConn) readLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		msg, err := p.conn.Read(ctx)
		if err != nil {
			p.shutdown(newConnectionError(ErrorKindTransportReceive, err))
			return
		}
		switch m := msg.(type) {
		case *jsonrpc.Request:
			p.wg.Add(1)
			go p.serveRequest(ctx, m)
		case *jsonrpc.Notification:
			p.wg.Add(1)
			go p.serveNotification(ctx, m)
		case *jsonrpc.Response:
			p.resolve(m.ID, m.Result, nil)
		case *jsonrpc.WireError:
			p.resolve(m.ID, nil, m.Error)
		default:
			p.logger.Warn("mcp: dropping unrecognized message", "type", fmt.Sprintf("%T", msg))
		}
	}
}

func (p *peerConn) serveRequest(ctx context.Context, req *jsonrpc.Request) {
	defer p.wg.Done()

	reqCtx, cancel := context.WithCancel(ctx)
	idKey := req.ID.String()
	p.mu.Lock()
	p.inbound[idKey] = &inboundCall{cancel: cancel}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inbound, idKey)
		p.mu.Unlock()
		cancel()
	}()

	result, err := p.requestHandler(reqCtx, req.Method, req.Params)
	if err != nil {
		p.writeError(ctx, req.ID, err)
		var f interface{ fatal() }
		if errors.As(err, &f) {
			p.shutdown(err)
		}
		return
	}
	raw, merr := json.Marshal(result)
	if merr != nil {
		p.writeError(ctx, req.ID, fmt.Errorf("%w: marshaling result: %v", jsonrpc2.ErrInternal, merr))
		return
	}
	p.write(ctx, &jsonrpc.Response{ID: req.ID, Result: raw})
}

func (p *peerConn) writeError(ctx context.Context, id jsonrpc.ID, err error) {
	p.write(ctx, &jsonrpc.WireError{ID: id, Error: toWireError(err)})
}

// toWireError maps a handler error to a JSON-RPC error object, recognizing
// a *jsonrpc.Error the handler built directly and the reserved jsonrpc2
// sentinels; anything else becomes an opaque internal error.
func toWireError(err error) *jsonrpc.ErrorValue {
	var rerr *jsonrpc.Error
	if errors.As(err, &rerr) {
		return rerr.ToWire()
	}
	switch {
	case errors.Is(err, jsonrpc2.ErrMethodNotFound):
		return &jsonrpc.ErrorValue{Code: jsonrpc2.CodeMethodNotFound, Message: err.Error()}
	case errors.Is(err, jsonrpc2.ErrInvalidParams):
		return &jsonrpc.ErrorValue{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, jsonrpc2.ErrInvalidRequest):
		return &jsonrpc.ErrorValue{Code: jsonrpc2.CodeInvalidRequest, Message: err.Error()}
	default:
		return &jsonrpc.ErrorValue{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
	}
}

// jsonrpcErrorFromWire adapts an incoming error object into a Go error.
func jsonrpcErrorFromWire(w *jsonrpc.ErrorValue) error {
	return jsonrpc.FromWire(w)
}

func (p *peerConn) serveNotification(ctx context.Context, note *jsonrpc.Notification) {
	defer p.wg.Done()
	if note.Method == notificationCancelled {
		var params CancelledParams
		if err := json.Unmarshal(note.Params, &params); err == nil {
			p.cancelInbound(fmt.Sprint(params.RequestID))
		}
		return
	}
	p.notificationHandler(ctx, note.Method, note.Params)
}

func (p *peerConn) cancelInbound(idKey string) {
	p.mu.Lock()
	ic := p.inbound[idKey]
	p.mu.Unlock()
	if ic != nil {
		ic.cancel()
	}
}

// call sends method/params as a request and blocks for its response.
func (p *peerConn) call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	id := jsonrpc.StringID(uuid.NewString())
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling params for %s: %w", method, err)
	}

	pc := &pendingCall{resultCh: make(chan pendingResult, 1)}
	idKey := id.String()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	p.pending[idKey] = pc
	p.mu.Unlock()

	cleanup := func() {
		p.mu.Lock()
		delete(p.pending, idKey)
		p.mu.Unlock()
	}

	if err := p.write(ctx, &jsonrpc.Request{Method: method, ID: id, Params: raw}); err != nil {
		cleanup()
		return nil, newConnectionError(ErrorKindTransportSend, err)
	}

	select {
	case res := <-pc.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.raw, nil
	case <-ctx.Done():
		cleanup()
		// Best-effort: tell the peer we no longer care about the result.
		_ = p.write(context.Background(), &jsonrpc.Notification{
			Method: notificationCancelled,
			Params: mustMarshal(&CancelledParams{RequestID: id.Raw()}),
		})
		return nil, ctx.Err()
	case <-p.closeCh:
		cleanup()
		return nil, ErrConnectionClosed
	}
}

// notify sends a fire-and-forget message.
func (p *peerConn) notify(ctx context.Context, method string, params Params) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("mcp: marshaling params for %s: %w", method, err)
	}
	return p.write(ctx, &jsonrpc.Notification{Method: method, Params: raw})
}

func (p *peerConn) write(ctx context.Context, msg jsonrpc.Message) error {
	if err := p.conn.Write(ctx, msg); err != nil {
		return newConnectionError(ErrorKindTransportSend, err)
	}
	return nil
}

func (p *peerConn) resolve(id jsonrpc.ID, raw json.RawMessage, rpcErr *jsonrpc.ErrorValue) {
	idKey := id.String()
	p.mu.Lock()
	pc := p.pending[idKey]
	delete(p.pending, idKey)
	p.mu.Unlock()
	if pc == nil {
		return // unsolicited or already-cancelled response; drop it
	}
	var err error
	if rpcErr != nil {
		err = jsonrpcErrorFromWire(rpcErr)
	}
	pc.resultCh <- pendingResult{raw: raw, err: err}
}

// shutdown tears down the connection, failing every outstanding call with
// cause and cancelling every in-flight inbound handler.
func (p *peerConn) shutdown(cause error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closeErr = cause
	pending := p.pending
	p.pending = make(map[string]*pendingCall)
	inbound := p.inbound
	p.inbound = make(map[string]*inboundCall)
	p.mu.Unlock()

	close(p.closeCh)
	for _, pc := range pending {
		pc.resultCh <- pendingResult{err: ErrConnectionClosed}
	}
	for _, ic := range inbound {
		ic.cancel()
	}
	_ = p.conn.Close()
}

// close initiates a local, graceful shutdown.
func (p *peerConn) close() error {
	p.shutdown(ErrConnectionClosed)
	p.wg.Wait()
	return nil
}

func (p *peerConn) wait() {
	p.wg.Wait()
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
