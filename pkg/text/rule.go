// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package text

import (
	"context"
	"io"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ RuleKind selects how a rule rewrites content
type RuleKind string

const (
	// KindLiteral replaces every occurrence of Match with Replace
	KindLiteral RuleKind = "literal"
	// KindPattern treats Match as a regular expression, Replace may use $1 style expansion
	KindPattern RuleKind = "pattern"
	// KindEnsure appends Replace as a new line when the Match expression does not match
	KindEnsure RuleKind = "ensure"
)

// ScopeGeneric marks a rule that applies to every file
const ScopeGeneric = "generic"

// 🔄 Rule is a single ordered rewrite over a file's content
type Rule struct {
	Name    string
	Kind    RuleKind
	Match   string
	Replace string
	// Scope is ScopeGeneric (or empty) or a filename / doublestar pattern
	Scope string

	re      *regexp.Regexp
	rewrite MatchFunc
}

// MatchFunc computes the replacement of one match. loc holds the submatch
// index pairs of the match within content, as returned by FindAllStringSubmatchIndex.
type MatchFunc func(content string, loc []int) string

// Literal builds a plain substring rule
func Literal(name, from, to string) Rule {
	return Rule{Name: name, Kind: KindLiteral, Match: from, Replace: to, Scope: ScopeGeneric}
}

// Pattern builds a regular expression rule. It panics on an invalid expression,
// so it is meant for rule tables built from constants.
func Pattern(name, expr, replace string) Rule {
	return Rule{Name: name, Kind: KindPattern, Match: expr, Replace: replace, Scope: ScopeGeneric, re: regexp.MustCompile(expr)}
}

// Func builds a pattern rule whose replacement is computed by fn. All matches
// are found on the content as it was before the rule ran.
func Func(name, expr string, fn MatchFunc) Rule {
	return Rule{Name: name, Kind: KindPattern, Match: expr, Scope: ScopeGeneric, re: regexp.MustCompile(expr), rewrite: fn}
}

// Ensure builds a conditional-append rule: line is appended only when expr has no match
func Ensure(name, expr, line string) Rule {
	return Rule{Name: name, Kind: KindEnsure, Match: expr, Replace: line, Scope: ScopeGeneric, re: regexp.MustCompile(expr)}
}

// WithScope returns a copy of the rule bound to a filename
func (r Rule) WithScope(scope string) Rule {
	r.Scope = scope
	return r
}

// Compile parses the rule's expression if it has one
func (r Rule) Compile() (Rule, error) {
	switch r.Kind {
	case KindLiteral, "":
		r.Kind = KindLiteral
		return r, nil
	case KindPattern, KindEnsure:
		if r.re != nil {
			return r, nil
		}
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return r, errors.Errorf("compiling %q: %w", r.Match, err)
		}
		r.re = re
		return r, nil
	default:
		return r, errors.Errorf("unknown rule kind %q", r.Kind)
	}
}

// IsGeneric reports whether the rule applies regardless of filename
func (r Rule) IsGeneric() bool {
	return r.Scope == "" || r.Scope == ScopeGeneric
}

// AppliesTo reports whether the rule applies to the given slash-separated relative path
func (r Rule) AppliesTo(path string) bool {
	if r.IsGeneric() {
		return true
	}
	if r.Scope == path || r.Scope == filepath.Base(path) {
		return true
	}
	matched, err := doublestar.Match(r.Scope, path)
	return err == nil && matched
}

// ForFile orders the rules that apply to path: generic rules first, then
// file-specific rules, each group keeping its original order.
func ForFile(rules []Rule, path string) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.IsGeneric() {
			out = append(out, r)
		}
	}
	for _, r := range rules {
		if !r.IsGeneric() && r.AppliesTo(path) {
			out = append(out, r)
		}
	}
	return out
}

// 📊 Result contains the results of a replacement pass
type Result struct {
	// WasModified indicates if any rule changed the content
	WasModified bool

	// ReplacementCount is the number of matches rewritten (an append counts once)
	ReplacementCount int

	// Applied lists the names of the rules that changed the content, in order
	Applied []string

	OriginalContent []byte
	ModifiedContent []byte
}

// 🔌 Replacer applies ordered rules to content
type Replacer interface {
	// ReplaceText applies rules in order to the whole content
	ReplaceText(ctx context.Context, content io.Reader, rules []Rule) (*Result, error)

	// ValidateRules checks that all rules are usable
	ValidateRules(rules []Rule) error
}
