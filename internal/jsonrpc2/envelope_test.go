// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"encoding/json"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	msgs, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	req, ok := msgs[0].(*Request)
	if !ok {
		t.Fatalf("got %T, want *Request", msgs[0])
	}
	if req.Method != "ping" {
		t.Errorf("Method = %q, want %q", req.Method, "ping")
	}
	if req.ID.Raw() != int64(1) {
		t.Errorf("ID.Raw() = %v, want 1", req.ID.Raw())
	}
}

func TestDecodeNotification(t *testing.T) {
	msgs, err := Decode([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	note, ok := msgs[0].(*Notification)
	if !ok {
		t.Fatalf("got %T, want *Notification", msgs[0])
	}
	if note.Method != "notifications/initialized" {
		t.Errorf("Method = %q", note.Method)
	}
}

func TestDecodeResponseAndError(t *testing.T) {
	msgs, err := Decode([]byte(`{"jsonrpc":"2.0","id":"abc","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	resp, ok := msgs[0].(*Response)
	if !ok {
		t.Fatalf("got %T, want *Response", msgs[0])
	}
	if resp.ID.Raw() != "abc" {
		t.Errorf("ID.Raw() = %v, want abc", resp.ID.Raw())
	}

	msgs, err = Decode([]byte(`{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"not found"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	werr, ok := msgs[0].(*WireError)
	if !ok {
		t.Fatalf("got %T, want *WireError", msgs[0])
	}
	if werr.Error.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", werr.Error.Code, CodeMethodNotFound)
	}
}

func TestDecodeBatch(t *testing.T) {
	msgs, err := Decode([]byte(`[
		{"jsonrpc":"2.0","id":1,"method":"a"},
		{"jsonrpc":"2.0","method":"b"}
	]`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if _, ok := msgs[0].(*Request); !ok {
		t.Errorf("msgs[0] = %T, want *Request", msgs[0])
	}
	if _, ok := msgs[1].(*Notification); !ok {
		t.Errorf("msgs[1] = %T, want *Notification", msgs[1])
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"1.0","id":1,"method":"a"}`)); err == nil {
		t.Fatal("expected error for wrong jsonrpc version")
	}
}

func TestDecodeRejectsEmptyEnvelope(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0"}`)); err == nil {
		t.Fatal("expected error for envelope with neither method, result, nor error")
	}
}

func TestDecodeRejectsEmptyInput(t *testing.T) {
	if _, err := Decode([]byte("   ")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDecodeRejectsEmptyBatch(t *testing.T) {
	if _, err := Decode([]byte("[]")); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cases := []Message{
		&Request{Method: "m", ID: Int64ID(7), Params: json.RawMessage(`{"a":1}`)},
		&Notification{Method: "n", Params: json.RawMessage(`{}`)},
		&Response{ID: StringID("x"), Result: json.RawMessage(`{"ok":true}`)},
		&WireError{ID: Int64ID(3), Error: &ErrorValue{Code: CodeInvalidParams, Message: "bad"}},
	}
	for _, msg := range cases {
		data, err := Encode(msg)
		if err != nil {
			t.Fatalf("Encode(%T): %v", msg, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode(Encode(%T)): %v", msg, err)
		}
		if len(out) != 1 {
			t.Fatalf("round trip produced %d messages", len(out))
		}
	}
}

func TestWireErrorWithoutID(t *testing.T) {
	werr := &WireError{Error: &ErrorValue{Code: CodeParseError, Message: "parse error"}}
	data, err := Encode(werr)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msgs, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, ok := msgs[0].(*WireError)
	if !ok {
		t.Fatalf("got %T, want *WireError", msgs[0])
	}
	if out.ID.IsValid() {
		t.Errorf("ID.IsValid() = true, want false")
	}
}

func TestIDJSONRoundTrip(t *testing.T) {
	ids := []ID{Int64ID(42), StringID("the-id")}
	for _, id := range ids {
		data, err := id.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON: %v", err)
		}
		var got ID
		if err := got.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON: %v", err)
		}
		if got.Raw() != id.Raw() {
			t.Errorf("got.Raw() = %v, want %v", got.Raw(), id.Raw())
		}
	}
}

func TestIDZeroValueInvalid(t *testing.T) {
	var id ID
	if id.IsValid() {
		t.Error("zero ID should not be valid")
	}
}

func TestDecodeRejectsCaseSmuggledKey(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"Method":"ping","method":"ping"}`)); err == nil {
		t.Fatal("expected rejection of a case-variant duplicate key")
	}
}

func TestDecodeRejectsCaseSmuggledFieldName(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"Method":"ping"}`)); err == nil {
		t.Fatal("expected rejection of a field name differing only in case from a known field")
	}
}

func TestDecodeRejectsUnknownField(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","extra":true}`)); err == nil {
		t.Fatal("expected rejection of an unrecognized top-level field")
	}
}

func TestDecodeRejectsNestedCaseSmuggledKey(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{"foo":1,"Foo":2}}`)); err == nil {
		t.Fatal("expected rejection of a case-variant duplicate key nested in params")
	}
}
