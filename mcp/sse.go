// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"
)

// sseEvent is one parsed "text/event-stream" event (§6): the optional
// event name, id, and reconnection-time hint, and the joined data lines.
type sseEvent struct {
	name  string
	id    string
	data  string
	retry int // milliseconds; 0 if absent
}

// writeSSEEvent writes one event in the field-per-line, blank-line-terminated
// framing the HTML event-stream spec defines.
func writeSSEEvent(w io.Writer, e sseEvent) error {
	var b strings.Builder
	if e.name != "" {
		fmt.Fprintf(&b, "event: %s\n", e.name)
	}
	if e.id != "" {
		fmt.Fprintf(&b, "id: %s\n", e.id)
	}
	for _, line := range strings.Split(e.data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// writeSSEComment writes a comment line, used for keep-alive frames (§4.D.5).
func writeSSEComment(w io.Writer, comment string) error {
	_, err := fmt.Fprintf(w, ":%s\n\n", comment)
	return err
}

// scanSSEEvents parses r as a sequence of "text/event-stream" events,
// yielding one (event, nil error) per blank-line-terminated block and a
// final (zero, err) when the stream ends: io.EOF on a clean end, the read
// error otherwise.
// Comment lines (a leading ':') are skipped, matching the spec's
// keep-alive framing (§4.D.5).
func scanSSEEvents(r io.Reader) iter.Seq2[sseEvent, error] {
	return func(yield func(sseEvent, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		var cur sseEvent
		var dataLines []string
		flush := func() (sseEvent, bool) {
			if len(dataLines) == 0 && cur.name == "" && cur.id == "" && cur.retry == 0 {
				return sseEvent{}, false
			}
			cur.data = strings.Join(dataLines, "\n")
			out := cur
			cur = sseEvent{}
			dataLines = nil
			return out, true
		}
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if e, ok := flush(); ok {
					if !yield(e, nil) {
						return
					}
				}
			case strings.HasPrefix(line, ":"):
				// comment / keep-alive
			case strings.HasPrefix(line, "event:"):
				cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "id:"):
				cur.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case strings.HasPrefix(line, "retry:"):
				if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "retry:"))); err == nil {
					cur.retry = n
				}
			}
		}
		if e, ok := flush(); ok {
			if !yield(e, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(sseEvent{}, err)
			return
		}
		yield(sseEvent{}, io.EOF)
	}
}
