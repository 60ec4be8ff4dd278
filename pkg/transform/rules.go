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

package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/walteh/envmirror/pkg/config"
	"github.com/walteh/envmirror/pkg/text"
)

// Rule set names used in the dispatch table
const (
	SetNamespace  = "namespace"
	SetEndpoints  = "endpoints"
	SetDicomCache = "dicom-cache"
	SetDatabase   = "database"
)

// CanonicalTelemetryPort replaces every legacy collector port
const CanonicalTelemetryPort = "4317"

// LegacyTelemetryPorts are rewritten to CanonicalTelemetryPort
var LegacyTelemetryPorts = []string{"8080", "9411", "14268", "55680", "55681"}

// DefaultDispatch maps exact base filenames to the rule sets run after the namespace set
func DefaultDispatch() map[string][]string {
	return map[string][]string{
		"otel-collector.yaml": {SetEndpoints},
		"viewer.yaml":         {SetEndpoints, SetDicomCache},
		"database.yaml":       {SetDatabase},
	}
}

// BuiltinMappings are used when the config has no mapping for a namespace
var BuiltinMappings = map[string]config.DatabaseHost{
	"ac001001": {
		DefaultHost:  "ac001001-default-proxy.db.internal",
		VolatileHost: "ac001001-volatile-proxy.db.internal",
		Mode:         config.ModeRemote,
	},
}

// 🔤 NamespaceRules rewrites every namespace-form occurrence of source to target.
// Each pattern is bounded so that a longer token containing source is left alone.
// All forms are matched in a single pass, and an occurrence of source that is
// already part of target is kept, so the rule is stable even when target
// contains source (rpvna -> rpvna-dev).
func NamespaceRules(source, target string) []text.Rule {
	if source == "" || source == target {
		return nil
	}
	s := regexp.QuoteMeta(source)

	// every alternative captures the text in front of source as its first group
	forms := []string{
		`\b(namespace:[ \t]*["']?)` + s + `\b`, // key-value
		`\b(namespace=["']?)` + s + `\b`,       // bare key
		`(")` + s + `"`,                        // double quoted
		`(')` + s + `'`,                        // single quoted
		`(/)` + s + `\b`,                       // path segment
		`\b()` + s + `-`,                       // resource prefix
		`(\.)` + s + `\.`,                      // DNS segment
	}

	return []text.Rule{
		text.Func("namespace", strings.Join(forms, "|"), func(content string, loc []int) string {
			at := sourceStart(loc)
			if at < 0 || withinTarget(content, at, source, target) {
				return content[loc[0]:loc[1]]
			}
			return content[loc[0]:at] + target + content[at+len(source):loc[1]]
		}),
	}
}

// sourceStart returns where source begins in a match: the end of the one
// leading group that took part in it
func sourceStart(loc []int) int {
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 {
			return loc[i+1]
		}
	}
	return -1
}

// withinTarget reports whether the source occurrence at index at is part of a
// whole target token
func withinTarget(content string, at int, source, target string) bool {
	for k := 0; k+len(source) <= len(target); k++ {
		if k > at || !strings.HasPrefix(target[k:], source) {
			continue
		}
		start, end := at-k, at-k+len(target)
		if end > len(content) || content[start:end] != target {
			continue
		}
		if (start == 0 || !isWordByte(content[start-1])) && (end == len(content) || !isWordByte(content[end])) {
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// 📡 EndpointRules moves legacy telemetry ports to the canonical port
func EndpointRules() []text.Rule {
	return []text.Rule{
		text.Pattern("endpoints-legacy-ports", `:(?:`+strings.Join(LegacyTelemetryPorts, "|")+`)\b`, ":"+CanonicalTelemetryPort),
	}
}

// 🩻 DicomCacheRules turns the DICOM cache on when the file does not mention it
func DicomCacheRules() []text.Rule {
	return []text.Rule{
		text.Ensure("dicom-cache-enabled", `(?m)^[ \t]*dicom_cache_enabled:`, "dicom_cache_enabled: true"),
	}
}

// 🗄️ DatabaseRules rewrites host literals for the resolved mapping, folds the
// legacy role names and makes sure keep-alive is on. A nil mapping keeps the
// hosts as they are, except that directConnection strips the proxy hop.
func DatabaseRules(mapping *config.DatabaseHost, directConnection bool) []text.Rule {
	var rules []text.Rule

	switch {
	case mapping != nil && mapping.Mode == config.ModeRemote:
		rules = append(rules, hostRule("database-default-host", "default_host", mapping.DefaultHost))
		if mapping.VolatileHost != "" {
			rules = append(rules, hostRule("database-volatile-host", "volatile_host", mapping.VolatileHost))
		}
	case mapping == nil && directConnection:
		rules = append(rules, text.Pattern("database-direct-connection",
			`(?m)^([ \t]*[A-Za-z_]*host:[ \t]*["']?[A-Za-z0-9.]*(?:-[A-Za-z0-9.]+)*?)-proxy\b`, "${1}"))
	}

	return append(rules,
		text.Pattern("database-role-names", `\bload(?:primary|secondary)\b`, "load"),
		text.Ensure("database-keep-alive", `(?m)^[ \t]*keep_alive_enabled:`, "keep_alive_enabled: true"),
	)
}

func hostRule(name, key, host string) text.Rule {
	return text.Pattern(name,
		fmt.Sprintf(`(?m)^([ \t]*%s:[ \t]*)(["']?)[^\s"'#]+(["']?)`, regexp.QuoteMeta(key)),
		"${1}${2}"+escapeReplacement(host)+"${3}")
}

// ReplacementRules turns user replacements into rules; file-bound ones are scoped
func ReplacementRules(replacements []config.Replacement) ([]text.Rule, error) {
	rules := make([]text.Rule, 0, len(replacements))
	for i, r := range replacements {
		rule := text.Rule{
			Name:    fmt.Sprintf("replacement-%d", i),
			Kind:    text.KindLiteral,
			Match:   r.Old,
			Replace: r.New,
			Scope:   text.ScopeGeneric,
		}
		if r.Regexp {
			rule.Kind = text.KindPattern
		}
		if r.File != "" {
			rule.Scope = r.File
		}
		compiled, err := rule.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, compiled)
	}
	return rules, nil
}

func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
