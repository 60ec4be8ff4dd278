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

// Package manifest renders the deployment custom resource for a target
// environment from a template taken from the source environment.
package manifest

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/text"
)

// DefaultLegacySecretKeys are the secret key names older templates reference
var DefaultLegacySecretKeys = []string{"git-token", "github-token"}

// 📝 Params are the values written into a template
type Params struct {
	Target config.Environment

	// SecretKey replaces the legacy secret key names; empty keeps them
	SecretKey string

	// DatabaseMode sets databaseMode when not empty
	DatabaseMode string

	// LegacySecretKeys defaults to DefaultLegacySecretKeys
	LegacySecretKeys []string
}

// Rules returns the line rules Generate applies for p
func Rules(p Params) []text.Rule {
	rules := []text.Rule{
		valueRule("manifest-namespace", "namespace", p.Target.Namespace),
		valueRule("manifest-branch", "branch", p.Target.Branch),
		valueRule("manifest-owner", "owner", p.Target.Owner),
		valueRule("manifest-repository", "repository", p.Target.Repo),
	}
	if p.DatabaseMode != "" {
		rules = append(rules, valueRule("manifest-database-mode", "databaseMode", p.DatabaseMode))
	}

	if p.SecretKey != "" {
		legacy := p.LegacySecretKeys
		if len(legacy) == 0 {
			legacy = DefaultLegacySecretKeys
		}
		quoted := make([]string, 0, len(legacy))
		for _, k := range legacy {
			if k != p.SecretKey {
				quoted = append(quoted, regexp.QuoteMeta(k))
			}
		}
		// longest first so one legacy name never shadows a longer one
		sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
		if len(quoted) > 0 {
			key := p.SecretKey
			rules = append(rules, text.Func("manifest-secret-key", strings.Join(quoted, "|"), func(content string, loc []int) string {
				if isKeyByte(content, loc[0]-1) || isKeyByte(content, loc[1]) {
					return content[loc[0]:loc[1]]
				}
				return key
			}))
		}
	}
	return rules
}

// valueRule replaces the scalar value of every key: line, keeping indentation,
// quoting and trailing comments. An empty quoted value is replaced too; keys
// without a scalar value are left alone.
func valueRule(name, key, value string) text.Rule {
	return text.Pattern(name,
		fmt.Sprintf(`(?m)^([ \t]*(?:- )?%s:[ \t]*)(?:(")[^"\n]*(")|(')[^'\n]*(')|[^\s"'#]+)`, regexp.QuoteMeta(key)),
		"${1}${2}${4}"+strings.ReplaceAll(value, "$", "$$")+"${3}${5}")
}

// isKeyByte reports whether content[i] could continue a secret key name
func isKeyByte(content string, i int) bool {
	if i < 0 || i >= len(content) {
		return false
	}
	c := content[i]
	return c == '-' || c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// 🏗️ Generate writes the target environment into template
func Generate(ctx context.Context, template []byte, p Params) ([]byte, error) {
	if len(strings.TrimSpace(string(template))) == 0 {
		return nil, errors.New("manifest template is empty")
	}
	for field, v := range map[string]string{
		"namespace":  p.Target.Namespace,
		"branch":     p.Target.Branch,
		"owner":      p.Target.Owner,
		"repository": p.Target.Repo,
	} {
		if v == "" {
			return nil, errors.Errorf("target %s is required", field)
		}
	}

	res, err := text.NewEngine().Apply(ctx, string(template), Rules(p))
	if err != nil {
		return nil, errors.Errorf("rendering manifest: %w", err)
	}
	return res.ModifiedContent, nil
}

// ManualCommand is the command that applies a generated manifest by hand
func ManualCommand(path string) string {
	return "kubectl apply -f " + path
}
