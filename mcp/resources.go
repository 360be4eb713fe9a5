// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"

	"github.com/mcpcore/gomcp/internal/jsonrpc2"
)

// ResourceHandler reads a resource addressed by params.URI.
type ResourceHandler func(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error)

type serverResource struct {
	resource *Resource
	handler  ResourceHandler
}

type serverResourceTemplate struct {
	template *ResourceTemplate
	compiled *compiledResourceTemplate
	handler  ResourceHandler
}

// resourceNotFoundError reports a resources/read for a URI this server does
// not serve.
func resourceNotFoundError(uri string) error {
	return fmt.Errorf("%w: resource %q not found", jsonrpc2.ErrInvalidParams, uri)
}

// findResource resolves a URI against the exact-match resource registry
// first, then every registered template in URI-template string order.
func (s *Server) findResource(uri string) (ResourceHandler, bool) {
	if r, ok := s.resources.get(uri); ok {
		return r.handler, true
	}
	for rt := range s.resourceTemplates.all() {
		if _, ok := rt.compiled.match(uri); ok {
			return rt.handler, true
		}
	}
	return nil, false
}
