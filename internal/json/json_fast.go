// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build mcpfastjson

package json

import sjson "github.com/segmentio/encoding/json"

// Unmarshal decodes data into v using the module's chosen JSON codec.
func Unmarshal(data []byte, v any) error {
	return sjson.Unmarshal(data, v)
}

// Marshal encodes v using the module's chosen JSON codec.
func Marshal(v any) ([]byte, error) {
	return sjson.Marshal(v)
}
