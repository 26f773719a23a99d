// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/mapleglyph/wzcore

package wz

import (
	"fmt"
	"path"
	"strings"

	"github.com/woozymasta/pathrules"
)

// ExportSelection holds compiled path-rule matching used to decide which
// nodes a host wants included in an XML export or asset dump, reusing
// the teacher's compression-candidate allow-list matcher for a new
// purpose: selecting which archive paths to act on at all.
type ExportSelection struct {
	matcher *pathrules.Matcher
}

// NewExportSelection compiles rules into a ready matcher. An empty rule
// set matches everything (the matcher is nil and Match always returns
// true), mirroring the "no restriction configured" default a host
// expects when it never set up selection.
func NewExportSelection(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*ExportSelection, error) {
	rules = normalizeSelectionRules(rules)
	if len(rules) == 0 {
		return &ExportSelection{}, nil
	}

	if opts == (pathrules.MatcherOptions{}) {
		opts = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidSelectionPattern, err)
	}

	return &ExportSelection{matcher: matcher}, nil
}

// normalizeSelectionRules cleans rule patterns and drops empty ones.
func normalizeSelectionRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := path.Clean(strings.TrimLeft(rule.Pattern, "/"))
		if pattern == "" || pattern == "." {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether nodePath is included by the selection.
func (s *ExportSelection) Match(nodePath string) bool {
	if s == nil || s.matcher == nil {
		return true
	}

	candidate := path.Clean(strings.TrimLeft(nodePath, "/"))
	if candidate == "" || candidate == "." {
		return false
	}

	return s.matcher.Included(candidate, false)
}
