// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
	"github.com/mcpcore/gomcp/internal/util"
	"github.com/mcpcore/gomcp/jsonrpc"
)

const (
	headerSessionID      = "Mcp-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
	headerLastEventID    = "Last-Event-ID"

	commonSelector = "C"

	defaultStreamCacheSize   = 256
	defaultKeepAliveInterval = 15 * time.Second
)

// reservedClientHeaders is the closed set of header names the Streamable-HTTP
// client worker (§4.G) refuses to let callers override, since the worker
// injects or derives them itself.
var reservedClientHeaders = map[string]bool{
	"accept":          true,
	"content-type":    true,
	"mcp-session-id":  true,
	"last-event-id":   true,
}

// StreamableHTTPOptions configures a StreamableHTTPHandler.
type StreamableHTTPOptions struct {
	// MaxBodyBytes bounds POST bodies; see effectiveMaxBodyBytes for the
	// zero/negative conventions.
	MaxBodyBytes int64

	// KeepAliveInterval controls how often an idle SSE stream emits a
	// ":ping" comment. Zero means defaultKeepAliveInterval.
	KeepAliveInterval time.Duration

	// StreamCacheSize bounds the number of events retained per stream for
	// Last-Event-ID resumption. Zero means defaultStreamCacheSize.
	StreamCacheSize int

	// IdleTimeout, if positive, evicts a session whose last activity is
	// older than this duration. Disabled (the default) means sessions are
	// only destroyed by DELETE, transport closure, or Close.
	IdleTimeout time.Duration

	// SessionStore, if non-nil, is given a snapshot of each session's
	// negotiated InitializeParams, LoggingLevel and subscriptions after every
	// POST, and the snapshot is deleted when the session ends. The handler
	// never loads from it: a session id not held in this process's memory
	// is answered with 404.
	SessionStore ServerSessionStateStore
}

func (o *StreamableHTTPOptions) maxBodyBytes() int64 {
	if o == nil {
		return effectiveMaxBodyBytes(0)
	}
	return effectiveMaxBodyBytes(o.MaxBodyBytes)
}

func (o *StreamableHTTPOptions) keepAliveInterval() time.Duration {
	if o == nil || o.KeepAliveInterval <= 0 {
		return defaultKeepAliveInterval
	}
	return o.KeepAliveInterval
}

func (o *StreamableHTTPOptions) streamCacheSize() int {
	if o == nil || o.StreamCacheSize <= 0 {
		return defaultStreamCacheSize
	}
	return o.StreamCacheSize
}

func (o *StreamableHTTPOptions) store() ServerSessionStateStore {
	if o == nil {
		return nil
	}
	return o.SessionStore
}

// StreamableHTTPHandler is an http.Handler that multiplexes many logical MCP
// sessions over one Streamable-HTTP endpoint (§4.D). Each session wraps a
// *Server connection; HTTP requests are routed by a chi.Mux keyed on method,
// and the Mcp-Session-Id header then selects the session.
type StreamableHTTPHandler struct {
	getServer func(*http.Request) *Server
	opts      *StreamableHTTPOptions
	mux       *chi.Mux

	mu       sync.Mutex
	sessions map[string]*streamableSession
}

// NewStreamableHTTPHandler returns a handler that looks up or creates a
// *Server for each new session via getServer.
func NewStreamableHTTPHandler(getServer func(*http.Request) *Server, opts *StreamableHTTPOptions) *StreamableHTTPHandler {
	if opts == nil {
		opts = &StreamableHTTPOptions{}
	}
	h := &StreamableHTTPHandler{
		getServer: getServer,
		opts:      opts,
		sessions:  make(map[string]*streamableSession),
	}
	r := chi.NewRouter()
	r.Post("/", h.servePost)
	r.Get("/", h.serveGet)
	r.Delete("/", h.serveDelete)
	h.mux = r
	return h
}

func (h *StreamableHTTPHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.mux.ServeHTTP(w, req)
}

// Close terminates every session and releases its Server connection.
func (h *StreamableHTTPHandler) Close() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = nil
	h.mu.Unlock()
	for _, s := range sessions {
		s.terminate()
	}
}

func checkStreamableAccept(req *http.Request, requireJSON bool) error {
	var jsonOK, streamOK bool
	for _, v := range req.Header.Values("Accept") {
		for _, c := range strings.Split(v, ",") {
			switch strings.TrimSpace(strings.SplitN(c, ";", 2)[0]) {
			case "application/json", "*/*":
				jsonOK = true
			case "text/event-stream":
				streamOK = true
			}
		}
	}
	if !streamOK || (requireJSON && !jsonOK) {
		return fmt.Errorf("bad Accept header")
	}
	return nil
}

// checkProtocolVersionHeader validates MCP-Protocol-Version on requests
// after the initial handshake (§4.D.1). Absence is tolerated for backward
// compatibility with the 2024-11-05 transport, which predates the header;
// presence of an unknown value is rejected.
func checkProtocolVersionHeader(req *http.Request) error {
	v := req.Header.Get(headerProtocolVersion)
	if v == "" {
		return nil
	}
	for _, known := range ProtocolVersions {
		if v == known {
			return nil
		}
	}
	return fmt.Errorf("unsupported %s: %q", headerProtocolVersion, v)
}

func (h *StreamableHTTPHandler) lookupSession(req *http.Request) (*streamableSession, bool, error) {
	id := req.Header.Get(headerSessionID)
	if id == "" {
		return nil, false, nil
	}
	h.mu.Lock()
	s, ok := h.sessions[id]
	h.mu.Unlock()
	return s, ok, nil
}

func (h *StreamableHTTPHandler) servePost(w http.ResponseWriter, req *http.Request) {
	if err := checkStreamableAccept(req, true); err != nil {
		http.Error(w, err.Error(), http.StatusNotAcceptable)
		return
	}
	ct := req.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	session, ok, _ := h.lookupSession(req)
	if id := req.Header.Get(headerSessionID); id != "" && !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if session != nil {
		if err := checkProtocolVersionHeader(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if session == nil {
		server := h.getServer(req)
		if req.TLS == nil && !util.IsLoopback(req.RemoteAddr) {
			server.opts.logger().Warn("mcp: issuing Mcp-Session-Id over a non-loopback connection without TLS",
				"remote", req.RemoteAddr)
		}
		s := newStreamableSession(uuid.NewString(), h.opts)
		serverSession, err := server.Connect(context.WithoutCancel(req.Context()), s)
		if err != nil {
			http.Error(w, "failed connection", http.StatusInternalServerError)
			return
		}
		s.serverSession = serverSession
		h.mu.Lock()
		h.sessions[s.id] = s
		h.mu.Unlock()
		session = s
	}

	session.servePost(w, req)

	if store := h.opts.store(); store != nil && session.serverSession != nil {
		store.Save(req.Context(), session.id, session.serverSession.State())
	}

	if session.isDone() {
		h.mu.Lock()
		delete(h.sessions, session.id)
		h.mu.Unlock()
		if store := h.opts.store(); store != nil {
			store.Delete(req.Context(), session.id)
		}
	}
}

func (h *StreamableHTTPHandler) serveGet(w http.ResponseWriter, req *http.Request) {
	if err := checkStreamableAccept(req, false); err != nil {
		http.Error(w, err.Error(), http.StatusNotAcceptable)
		return
	}
	session, ok, _ := h.lookupSession(req)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if err := checkProtocolVersionHeader(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session.serveGet(w, req)
}

func (h *StreamableHTTPHandler) serveDelete(w http.ResponseWriter, req *http.Request) {
	session, ok, _ := h.lookupSession(req)
	if !ok {
		http.Error(w, "Mcp-Session-Id header required", http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	delete(h.sessions, session.id)
	h.mu.Unlock()
	session.terminate()
	if store := h.opts.store(); store != nil {
		store.Delete(req.Context(), session.id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// cachedEvent is one message appended to a stream's replay cache.
type cachedEvent struct {
	idx  int
	data []byte
}

// streamSubscriber is one HTTP response currently draining a stream.
type streamSubscriber struct {
	signal chan struct{} // 1-buffered: new cache entries are available
	shadow bool          // shadow subscribers receive only keep-alives
}

// eventStream is either the session's single common channel or one
// request-wise channel (§3, §4.D.2-4). It owns a capped replay cache and
// tracks which subscriber, if any, is primary.
type eventStream struct {
	mu         sync.Mutex
	selector   string
	cap        int
	baseIndex  int // number of entries evicted from the front of cache
	cache      []cachedEvent
	primary    *streamSubscriber
	shadows    map[*streamSubscriber]bool
	terminal   bool // request-wise only: a Response/Error has been appended
	progressTokens map[string]bool
}

func newEventStream(selector string, capacity int) *eventStream {
	return &eventStream{
		selector: selector,
		cap:      capacity,
		shadows:  make(map[*streamSubscriber]bool),
		progressTokens: make(map[string]bool),
	}
}

// append adds data to the cache, evicting the oldest entry if over capacity,
// and wakes the primary subscriber if any.
func (es *eventStream) append(data []byte) {
	es.mu.Lock()
	idx := es.baseIndex + len(es.cache)
	es.cache = append(es.cache, cachedEvent{idx: idx, data: data})
	if len(es.cache) > es.cap {
		es.cache = es.cache[1:]
		es.baseIndex++
	}
	primary := es.primary
	es.mu.Unlock()
	if primary != nil {
		select {
		case primary.signal <- struct{}{}:
		default:
		}
	}
}

// since returns cached entries with idx > n, and whether n is still
// resolvable against the cache (false if n predates baseIndex-1's eviction
// window, i.e. those events are gone for good).
func (es *eventStream) since(n int) ([]cachedEvent, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if n < es.baseIndex-1 {
		return nil, false
	}
	start := n + 1 - es.baseIndex
	if start < 0 {
		start = 0
	}
	if start > len(es.cache) {
		return nil, true
	}
	out := make([]cachedEvent, len(es.cache)-start)
	copy(out, es.cache[start:])
	return out, true
}

// attach installs sub as primary if none is active and sub isn't already
// forced into shadow mode, otherwise registers it as a shadow.
func (es *eventStream) attach(sub *streamSubscriber) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.primary == nil && !sub.shadow {
		es.primary = sub
	} else {
		sub.shadow = true
		es.shadows[sub] = true
	}
}

// detach removes sub, promoting one remaining shadow to primary if sub was
// primary (§4.D.4 "Primary replacement"); which shadow is promoted is not
// defined.
func (es *eventStream) detach(sub *streamSubscriber) {
	es.mu.Lock()
	defer es.mu.Unlock()
	delete(es.shadows, sub)
	if es.primary != sub {
		return
	}
	es.primary = nil
	for next := range es.shadows {
		delete(es.shadows, next)
		next.shadow = false
		es.primary = next
		select {
		case next.signal <- struct{}{}:
		default:
		}
		return
	}
}

func encodeEventID(selector string, idx int) string {
	return selector + "/" + strconv.Itoa(idx)
}

func parseEventID(raw string) (selector string, idx int, ok bool) {
	i := strings.LastIndex(raw, "/")
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(raw[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return raw[:i], n, true
}

// streamableSession is the Transport/Connection implementation backing one
// logical Mcp-Session-Id (§3's "Session (Streamable-HTTP server)").
type streamableSession struct {
	id            string
	opts          *StreamableHTTPOptions
	serverSession *ServerSession

	incoming chan jsonrpc.Message

	mu             sync.Mutex
	done           bool
	doneCh         chan struct{}
	common         *eventStream
	requestStreams map[string]*eventStream // keyed by jsonrpc.ID.String()
	lastActive     time.Time

	idleStop chan struct{}
}

func newStreamableSession(id string, opts *StreamableHTTPOptions) *streamableSession {
	s := &streamableSession{
		id:             id,
		opts:           opts,
		incoming:       make(chan jsonrpc.Message, 16),
		doneCh:         make(chan struct{}),
		common:         newEventStream(commonSelector, opts.streamCacheSize()),
		requestStreams: make(map[string]*eventStream),
		lastActive:     time.Now(),
	}
	if opts.IdleTimeout > 0 {
		s.idleStop = make(chan struct{})
		go s.idleSweep()
	}
	return s
}

func (s *streamableSession) idleSweep() {
	t := time.NewTicker(s.opts.IdleTimeout / 2)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.mu.Lock()
			idle := time.Since(s.lastActive) > s.opts.IdleTimeout
			s.mu.Unlock()
			if idle {
				s.terminate()
				return
			}
		case <-s.idleStop:
			return
		case <-s.doneCh:
			return
		}
	}
}

func (s *streamableSession) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *streamableSession) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Connect implements Transport: a streamableSession is its own Connection,
// since one HTTP session never opens more than one logical peer engine.
func (s *streamableSession) Connect(context.Context) (Connection, error) { return s, nil }

func (s *streamableSession) SessionID() string { return s.id }

func (s *streamableSession) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.incoming:
		if !ok {
			return nil, fmt.Errorf("mcp: session closed")
		}
		return msg, nil
	case <-s.doneCh:
		return nil, fmt.Errorf("mcp: session closed")
	}
}

// Write routes an outbound message per §4.D.2: replies and errors go to the
// request-wise stream for their id, progress follows its progress token,
// cancellation notifications follow their request id, and everything else
// goes to the common stream.
func (s *streamableSession) Write(ctx context.Context, msg jsonrpc.Message) error {
	target := s.routeFor(msg)
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return err
	}
	target.append(data)
	switch msg.(type) {
	case *jsonrpc.Response, *jsonrpc.WireError:
		s.finishRequestStream(target)
	}
	return nil
}

func (s *streamableSession) routeFor(msg jsonrpc.Message) *eventStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch m := msg.(type) {
	case *jsonrpc.Response:
		if rs, ok := s.requestStreams[m.ID.String()]; ok {
			return rs
		}
	case *jsonrpc.WireError:
		if rs, ok := s.requestStreams[m.ID.String()]; ok {
			return rs
		}
	case *jsonrpc.Notification:
		switch m.Method {
		case notificationCancelled:
			var p CancelledParams
			if json.Unmarshal(m.Params, &p) == nil {
				if rid := fmt.Sprint(p.RequestID); rid != "" {
					if rs, ok := s.requestStreams[rid]; ok {
						return rs
					}
				}
			}
		case notificationProgress:
			var p ProgressNotificationParams
			if json.Unmarshal(m.Params, &p) == nil {
				token := fmt.Sprint(p.ProgressToken)
				for _, rs := range s.requestStreams {
					if rs.progressTokens[token] {
						return rs
					}
				}
			}
		}
	}
	return s.common
}

func (s *streamableSession) finishRequestStream(target *eventStream) {
	target.mu.Lock()
	target.terminal = true
	target.mu.Unlock()
}

func (s *streamableSession) Close() error {
	s.terminate()
	return nil
}

func (s *streamableSession) terminate() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	close(s.doneCh)
	if s.idleStop != nil {
		close(s.idleStop)
	}
	s.mu.Unlock()
}

// servePost handles a client POST carrying one or more JSON-RPC messages
// (§4.D.1). Request-bearing bodies are given a request-wise stream; pure
// notification/response/error bodies get 202 once delivered.
func (s *streamableSession) servePost(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get(headerLastEventID) != "" {
		http.Error(w, "Last-Event-ID is not valid on POST", http.StatusBadRequest)
		return
	}
	s.touch()

	limit := s.opts.maxBodyBytes()
	reader := req.Body
	if limit > 0 {
		reader = http.MaxBytesReader(w, req.Body, limit)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "POST requires a non-empty body", http.StatusBadRequest)
		return
	}

	msgs, _, err := decodeBatch(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("malformed payload: %v", err), http.StatusBadRequest)
		return
	}

	var reqIDs []string
	s.mu.Lock()
	rs := newEventStream(encodeEventID("", 0), s.opts.streamCacheSize())
	for _, msg := range msgs {
		if r, ok := msg.(*jsonrpc.Request); ok {
			idKey := r.ID.String()
			rs.selector = idKey
			if tok, ok := progressTokenOf(r.Params); ok {
				rs.progressTokens[tok] = true
			}
			s.requestStreams[idKey] = rs
				reqIDs = append(reqIDs, idKey)
		}
	}
	s.mu.Unlock()

	for _, msg := range msgs {
		select {
		case s.incoming <- msg:
		case <-req.Context().Done():
			return
		}
	}

	if len(reqIDs) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set(headerSessionID, s.id)
	sub := &streamSubscriber{signal: make(chan struct{}, 1)}
	rs.attach(sub)
	defer rs.detach(sub)
	s.streamLoop(w, req, rs, sub, 0, true)

	s.mu.Lock()
	for _, id := range reqIDs {
		delete(s.requestStreams, id)
	}
	s.mu.Unlock()
}

func progressTokenOf(raw json.RawMessage) (string, bool) {
	var withMeta struct {
		Meta Meta `json:"_meta"`
	}
	if json.Unmarshal(raw, &withMeta) != nil {
		return "", false
	}
	tok, ok := withMeta.Meta[progressTokenKey]
	if !ok {
		return "", false
	}
	return fmt.Sprint(tok), true
}

// serveGet opens or resumes the session's common stream, or attaches a
// shadow following §4.D.4's rules for GET with Last-Event-ID.
func (s *streamableSession) serveGet(w http.ResponseWriter, req *http.Request) {
	s.touch()
	sub := &streamSubscriber{signal: make(chan struct{}, 1)}
	nextIdx := 0

	if lastID := req.Header.Get(headerLastEventID); lastID != "" {
		selector, idx, ok := parseEventID(lastID)
		if !ok {
			http.Error(w, fmt.Sprintf("malformed Last-Event-ID %q", lastID), http.StatusBadRequest)
			return
		}
		if selector == commonSelector {
			if _, inRange := s.common.since(idx); !inRange {
				http.Error(w, "event id out of range", http.StatusGone)
				return
			}
			nextIdx = idx + 1
		} else {
			// A stale request-wise id: fall through to a shadow common
			// stream with no replay (§4.D.4.2).
			sub.shadow = true
		}
	}

	w.Header().Set(headerSessionID, s.id)
	s.common.attach(sub)
	defer s.common.detach(sub)
	s.streamLoop(w, req, s.common, sub, nextIdx, false)
}

// streamLoop drains an eventStream's cache into an SSE response, emitting
// keep-alive comments when idle, until the stream is exhausted and terminal
// (request-wise POST path) or the client/session goes away.
func (s *streamableSession) streamLoop(w http.ResponseWriter, req *http.Request, es *eventStream, sub *streamSubscriber, nextIdx int, isPost bool) {
	flusher, _ := w.(http.Flusher)
	wrote := false
	keepAlive := s.opts.keepAliveInterval()

	writeHeaders := func() {
		if wrote {
			return
		}
		wrote = true
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache, no-transform")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}

	for {
		entries, _ := es.since(nextIdx - 1)
		if !sub.shadow {
			for _, e := range entries {
				writeHeaders()
				writeSSEEvent(w, sseEvent{name: "message", id: encodeEventID(es.selector, e.idx), data: string(e.data)})
				nextIdx = e.idx + 1
			}
			if flusher != nil && wrote {
				flusher.Flush()
			}
		}

		es.mu.Lock()
		terminal := es.terminal
		caughtUp := nextIdx >= es.baseIndex+len(es.cache)
		es.mu.Unlock()

		if isPost && terminal && caughtUp {
			if !wrote {
				w.WriteHeader(http.StatusAccepted)
			}
			return
		}

		select {
		case <-sub.signal:
		case <-time.After(keepAlive):
			writeHeaders()
			writeSSEComment(w, "ping")
			if flusher != nil {
				flusher.Flush()
			}
		case <-s.doneCh:
			if !wrote {
				http.Error(w, "session terminated", http.StatusGone)
			}
			return
		case <-req.Context().Done():
			return
		}
	}
}

func decodeBatch(body []byte) ([]jsonrpc.Message, bool, error) {
	trimmed := strings.TrimSpace(string(body))
	batch := strings.HasPrefix(trimmed, "[")
	msgs, err := jsonrpc2.Decode(body)
	if err != nil {
		return nil, batch, err
	}
	return msgs, batch, nil
}
