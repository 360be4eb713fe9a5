// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build !mcpfastjson

// Package json centralizes the JSON codec used to decode untrusted wire
// input, so the rest of the module never calls encoding/json directly on
// bytes that came off a transport. This file is the default build; building
// with -tags mcpfastjson swaps in github.com/segmentio/encoding/json, a
// drop-in faster decoder (see json_fast.go), without touching call sites.
package json

import "encoding/json"

// Unmarshal decodes data into v using the module's chosen JSON codec.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal encodes v using the module's chosen JSON codec.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
