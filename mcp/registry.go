// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"iter"
	"sort"
)

// featureSet is an ordered-by-key collection of tools, prompts, or
// resources: registration order doesn't matter, only the stable sort key
// each entry is keyed by (a tool's name, a resource's URI, ...). Cursor
// pagination over a featureSet is just "every entry whose key sorts after
// the cursor".
type featureSet[T any] struct {
	keyFunc func(T) string
	entries map[string]T
}

func newFeatureSet[T any](keyFunc func(T) string) *featureSet[T] {
	return &featureSet[T]{keyFunc: keyFunc, entries: make(map[string]T)}
}

// add inserts or replaces entries, keyed by keyFunc.
func (s *featureSet[T]) add(ts ...T) {
	for _, t := range ts {
		s.entries[s.keyFunc(t)] = t
	}
}

// remove deletes the entry with the given key, reporting whether it existed.
func (s *featureSet[T]) remove(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *featureSet[T]) get(key string) (T, bool) {
	t, ok := s.entries[key]
	return t, ok
}

func (s *featureSet[T]) len() int { return len(s.entries) }

func (s *featureSet[T]) sortedKeys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// all iterates every entry in key order.
func (s *featureSet[T]) all() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, k := range s.sortedKeys() {
			if !yield(s.entries[k]) {
				return
			}
		}
	}
}

// above iterates every entry whose key sorts strictly after cursor, in key
// order — the shape a cursor-paginated List* handler needs directly.
func (s *featureSet[T]) above(cursor string) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, k := range s.sortedKeys() {
			if k <= cursor {
				continue
			}
			if !yield(s.entries[k]) {
				return
			}
		}
	}
}

// page collects up to pageSize entries above cursor and returns the cursor
// for the next page (empty if this was the last page).
func page[T any](s *featureSet[T], cursor string, pageSize int) ([]T, string) {
	if pageSize <= 0 {
		pageSize = 50
	}
	var out []T
	next := ""
	last := ""
	for k, t := range s.aboveWithKeys(cursor) {
		if len(out) == pageSize {
			next = last
			break
		}
		out = append(out, t)
		last = k
	}
	return out, next
}

func (s *featureSet[T]) aboveWithKeys(cursor string) iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for _, k := range s.sortedKeys() {
			if k <= cursor {
				continue
			}
			if !yield(k, s.entries[k]) {
				return
			}
		}
	}
}
