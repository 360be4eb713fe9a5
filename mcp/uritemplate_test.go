// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "testing"

func TestCompileResourceTemplateSimpleMatch(t *testing.T) {
	c, err := compileResourceTemplate("file:///{name}")
	if err != nil {
		t.Fatalf("compileResourceTemplate: %v", err)
	}
	vars, ok := c.match("file:///report.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if vars["name"] != "report.txt" {
		t.Errorf("name = %q, want report.txt", vars["name"])
	}
}

func TestCompileResourceTemplateSimpleVarExcludesSlash(t *testing.T) {
	c, err := compileResourceTemplate("file:///{name}")
	if err != nil {
		t.Fatalf("compileResourceTemplate: %v", err)
	}
	if _, ok := c.match("file:///a/b"); ok {
		t.Error("simple expansion should not match a path containing '/'")
	}
}

func TestCompileResourceTemplateReservedVarIncludesSlash(t *testing.T) {
	c, err := compileResourceTemplate("file:///{+path}")
	if err != nil {
		t.Fatalf("compileResourceTemplate: %v", err)
	}
	vars, ok := c.match("file:///a/b/c.txt")
	if !ok {
		t.Fatal("expected match")
	}
	if vars["path"] != "a/b/c.txt" {
		t.Errorf("path = %q, want a/b/c.txt", vars["path"])
	}
}

func TestCompileResourceTemplateMultipleVars(t *testing.T) {
	c, err := compileResourceTemplate("db://{schema}/{table}")
	if err != nil {
		t.Fatalf("compileResourceTemplate: %v", err)
	}
	vars, ok := c.match("db://public/users")
	if !ok {
		t.Fatal("expected match")
	}
	if vars["schema"] != "public" || vars["table"] != "users" {
		t.Errorf("vars = %+v", vars)
	}
}

func TestCompileResourceTemplateNoMatch(t *testing.T) {
	c, err := compileResourceTemplate("db://{schema}/{table}")
	if err != nil {
		t.Fatalf("compileResourceTemplate: %v", err)
	}
	if _, ok := c.match("db://public"); ok {
		t.Error("expected no match for a URI missing the second segment")
	}
}

func TestCompileResourceTemplateInvalid(t *testing.T) {
	if _, err := compileResourceTemplate("db://{unterminated"); err == nil {
		t.Fatal("expected error for template missing closing brace")
	}
}
