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
	"strings"

	"gitlab.com/tozd/go/errors"
)

var _ Replacer = (*Engine)(nil)

// Engine implements Replacer with literal, pattern and ensure rules
type Engine struct{}

// NewEngine creates a new Engine
func NewEngine() *Engine {
	return &Engine{}
}

// ReplaceText implements Replacer.ReplaceText
func (e *Engine) ReplaceText(ctx context.Context, content io.Reader, rules []Rule) (*Result, error) {
	original, err := io.ReadAll(content)
	if err != nil {
		return nil, errors.Errorf("reading content: %w", err)
	}
	return e.Apply(ctx, string(original), rules)
}

// Apply runs rules over content in order. Each rule sees the output of the
// previous one.
func (e *Engine) Apply(ctx context.Context, content string, rules []Rule) (*Result, error) {
	result := &Result{
		OriginalContent: []byte(content),
	}

	current := content
	for i, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("applying rules: %w", err)
		}

		// Skip empty rules
		if rule.Match == "" {
			continue
		}

		compiled, err := rule.Compile()
		if err != nil {
			return nil, errors.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}

		next, count := applyOne(current, compiled)
		if next != current {
			result.WasModified = true
			result.ReplacementCount += count
			result.Applied = append(result.Applied, compiled.Name)
		}
		current = next
	}

	result.ModifiedContent = []byte(current)
	return result, nil
}

func applyOne(content string, rule Rule) (string, int) {
	switch rule.Kind {
	case KindPattern:
		if rule.rewrite != nil {
			return rewriteAll(content, rule)
		}
		matches := rule.re.FindAllStringIndex(content, -1)
		if len(matches) == 0 {
			return content, 0
		}
		return rule.re.ReplaceAllString(content, rule.Replace), len(matches)
	case KindEnsure:
		if rule.re.MatchString(content) {
			return content, 0
		}
		var b strings.Builder
		b.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(rule.Replace)
		if !strings.HasSuffix(rule.Replace, "\n") {
			b.WriteByte('\n')
		}
		return b.String(), 1
	default:
		count := strings.Count(content, rule.Match)
		if count == 0 {
			return content, 0
		}
		return strings.ReplaceAll(content, rule.Match, rule.Replace), count
	}
}

// rewriteAll counts only the matches whose replacement differs from the match
func rewriteAll(content string, rule Rule) (string, int) {
	var b strings.Builder
	last, count := 0, 0
	for _, loc := range rule.re.FindAllStringSubmatchIndex(content, -1) {
		repl := rule.rewrite(content, loc)
		if repl == content[loc[0]:loc[1]] {
			continue
		}
		b.WriteString(content[last:loc[0]])
		b.WriteString(repl)
		last = loc[1]
		count++
	}
	if count == 0 {
		return content, 0
	}
	b.WriteString(content[last:])
	return b.String(), count
}

// ValidateRules implements Replacer.ValidateRules
func (e *Engine) ValidateRules(rules []Rule) error {
	for i, rule := range rules {
		if rule.Match == "" {
			return errors.Errorf("rule %d: match is required", i)
		}
		if rule.Kind == KindEnsure && strings.TrimSpace(rule.Replace) == "" {
			return errors.Errorf("rule %d: ensure rule needs a line to append", i)
		}
		if _, err := rule.Compile(); err != nil {
			return errors.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}
