// Copyright 2025 The gomcp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yosida95/uritemplate/v3"
)

// compiledResourceTemplate pairs a parsed RFC 6570 template (used to
// validate the template and enumerate its variables) with a regexp derived
// from those variables, since the template package itself expands rather
// than matches.
type compiledResourceTemplate struct {
	tmpl     *uritemplate.Template
	re       *regexp.Regexp
	varOrder []string // variable name for each capture group, in group order
}

func compileResourceTemplate(raw string) (*compiledResourceTemplate, error) {
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: invalid resource URI template %q: %w", raw, err)
	}
	re, order, err := uriTemplateRegexp(raw)
	if err != nil {
		return nil, fmt.Errorf("mcp: resource URI template %q: %w", raw, err)
	}
	return &compiledResourceTemplate{tmpl: tmpl, re: re, varOrder: order}, nil
}

// match reports whether uri satisfies the template, returning the bound
// variable values on success.
func (c *compiledResourceTemplate) match(uri string) (map[string]string, bool) {
	m := c.re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(c.varOrder))
	for i, name := range c.varOrder {
		vars[name] = m[i+1]
	}
	return vars, true
}

// uriTemplateRegexp builds a matching regexp for a level-1/level-2 subset of
// RFC 6570: simple {var} expansions (no slashes) and reserved {+var}
// expansions (slashes allowed). This covers every template shape the
// resources/templates/list examples in this module register; templates
// using list/associative-array expansion are rejected rather than silently
// mismatched. Capture groups are positional (not named) so variable names
// don't have to double as valid regexp group identifiers.
func uriTemplateRegexp(raw string) (*regexp.Regexp, []string, error) {
	seen := map[string]bool{}
	var order []string
	var b strings.Builder
	b.WriteByte('^')
	pat := raw
	for len(pat) > 0 {
		literal, rest, ok := strings.Cut(pat, "{")
		b.WriteString(regexp.QuoteMeta(literal))
		if !ok {
			break
		}
		expr, rest2, ok := strings.Cut(rest, "}")
		if !ok {
			return nil, nil, fmt.Errorf("missing '}' after %q", expr)
		}
		pat = rest2

		reserved := strings.HasPrefix(expr, "+")
		name := expr
		if reserved {
			name = expr[1:]
		}
		if strings.ContainsAny(name, ",:*") {
			return nil, nil, fmt.Errorf("unsupported expression {%s}: only simple and reserved single-variable expansions are supported", expr)
		}
		if seen[name] {
			return nil, nil, fmt.Errorf("duplicate variable %q", name)
		}
		seen[name] = true
		order = append(order, name)

		group := `[^/]+`
		if reserved {
			group = `.+`
		}
		b.WriteString("(" + group + ")")
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, nil, err
	}
	return re, order, nil
}
