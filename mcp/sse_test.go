// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWriteSSEEvent(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSSEEvent(&buf, sseEvent{name: "message", id: "C/1", data: "hello"}); err != nil {
		t.Fatalf("writeSSEEvent: %v", err)
	}
	want := "event: message\nid: C/1\ndata: hello\n\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteSSEEventMultilineData(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSSEEvent(&buf, sseEvent{data: "line1\nline2"}); err != nil {
		t.Fatalf("writeSSEEvent: %v", err)
	}
	want := "data: line1\ndata: line2\n\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteSSEComment(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSSEComment(&buf, "ping"); err != nil {
		t.Fatalf("writeSSEComment: %v", err)
	}
	if buf.String() != ":ping\n\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestScanSSEEventsBasic(t *testing.T) {
	input := "event: message\nid: 1\ndata: hi\n\nevent: message\nid: 2\ndata: there\n\n"
	var got []sseEvent
	for evt, err := range scanSSEEvents(strings.NewReader(input)) {
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("scan error: %v", err)
		}
		got = append(got, evt)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].data != "hi" || got[0].id != "1" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].data != "there" || got[1].id != "2" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestScanSSEEventsSkipsComments(t *testing.T) {
	input := ":keep-alive\n\nevent: message\ndata: x\n\n"
	var got []sseEvent
	for evt, err := range scanSSEEvents(strings.NewReader(input)) {
		if err != nil {
			break
		}
		got = append(got, evt)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1 (comment should be skipped)", len(got))
	}
	if got[0].data != "x" {
		t.Errorf("data = %q", got[0].data)
	}
}

func TestScanSSEEventsRetryField(t *testing.T) {
	input := "retry: 2500\ndata: x\n\n"
	var got sseEvent
	for evt, err := range scanSSEEvents(strings.NewReader(input)) {
		if err != nil {
			break
		}
		got = evt
	}
	if got.retry != 2500 {
		t.Errorf("retry = %d, want 2500", got.retry)
	}
}

func TestScanSSEEventsRoundTripsWriteSSEEvent(t *testing.T) {
	var buf bytes.Buffer
	writeSSEEvent(&buf, sseEvent{name: "message", id: "C/9", data: "payload"})
	var got sseEvent
	for evt, err := range scanSSEEvents(&buf) {
		if err != nil {
			break
		}
		got = evt
	}
	if got.name != "message" || got.id != "C/9" || got.data != "payload" {
		t.Errorf("got %+v", got)
	}
}
