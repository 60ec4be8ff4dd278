package text

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ReplaceText(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		rules        []Rule
		want         string
		wantCount    int
		wantModified bool
		wantApplied  []string
	}{
		{
			name:         "literal_replacement",
			content:      "Hello World World",
			rules:        []Rule{Literal("world", "World", "Universe")},
			want:         "Hello Universe Universe",
			wantCount:    2,
			wantModified: true,
			wantApplied:  []string{"world"},
		},
		{
			name:    "rules_run_in_order",
			content: "a",
			rules: []Rule{
				Literal("a-to-b", "a", "b"),
				Literal("b-to-c", "b", "c"),
			},
			want:         "c",
			wantCount:    2,
			wantModified: true,
			wantApplied:  []string{"a-to-b", "b-to-c"},
		},
		{
			name:         "pattern_with_expansion",
			content:      "namespace: rpvna\nother: rpvna\n",
			rules:        []Rule{Pattern("ns", `(namespace:\s*)rpvna\b`, "${1}ac001001")},
			want:         "namespace: ac001001\nother: rpvna\n",
			wantCount:    1,
			wantModified: true,
			wantApplied:  []string{"ns"},
		},
		{
			name:    "func_sees_original_matches",
			content: "keep these words",
			rules: []Rule{Func("upper", `\w+`, func(content string, loc []int) string {
				if m := content[loc[0]:loc[1]]; m != "keep" {
					return strings.ToUpper(m)
				}
				return content[loc[0]:loc[1]]
			})},
			want:         "keep THESE WORDS",
			wantCount:    2,
			wantModified: true,
			wantApplied:  []string{"upper"},
		},
		{
			name:         "ensure_appends_when_missing",
			content:      "a: 1",
			rules:        []Rule{Ensure("flag", `(?m)^\s*flag\s*:`, "flag: true")},
			want:         "a: 1\nflag: true\n",
			wantCount:    1,
			wantModified: true,
			wantApplied:  []string{"flag"},
		},
		{
			name:         "ensure_is_noop_when_present",
			content:      "a: 1\nflag: false\n",
			rules:        []Rule{Ensure("flag", `(?m)^\s*flag\s*:`, "flag: true")},
			want:         "a: 1\nflag: false\n",
			wantModified: false,
		},
		{
			name:         "ensure_on_empty_content",
			content:      "",
			rules:        []Rule{Ensure("flag", `(?m)^\s*flag\s*:`, "flag: true")},
			want:         "flag: true\n",
			wantCount:    1,
			wantModified: true,
			wantApplied:  []string{"flag"},
		},
		{
			name:         "no_match",
			content:      "Hello World",
			rules:        []Rule{Literal("bye", "Goodbye", "Hi")},
			want:         "Hello World",
			wantModified: false,
		},
		{
			name:         "empty_rules",
			content:      "Hello World",
			rules:        []Rule{},
			want:         "Hello World",
			wantModified: false,
		},
		{
			name:         "empty_match_is_skipped",
			content:      "Hello",
			rules:        []Rule{{Name: "empty", Kind: KindLiteral}},
			want:         "Hello",
			wantModified: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine()
			result, err := engine.ReplaceText(context.Background(), strings.NewReader(tt.content), tt.rules)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, tt.content, string(result.OriginalContent))
			assert.Equal(t, tt.want, string(result.ModifiedContent))
			assert.Equal(t, tt.wantCount, result.ReplacementCount)
			assert.Equal(t, tt.wantModified, result.WasModified)
			assert.Equal(t, tt.wantApplied, result.Applied)
		})
	}
}

func TestEngine_ApplyTwiceIsStable(t *testing.T) {
	rules := []Rule{
		Pattern("port", `:8080\b`, ":4317"),
		Ensure("flag", `(?m)^\s*flag\s*:`, "flag: true"),
	}
	engine := NewEngine()
	ctx := context.Background()

	first, err := engine.Apply(ctx, "endpoint: http://collector:8080\n", rules)
	require.NoError(t, err)
	second, err := engine.Apply(ctx, string(first.ModifiedContent), rules)
	require.NoError(t, err)

	assert.Equal(t, string(first.ModifiedContent), string(second.ModifiedContent))
	assert.False(t, second.WasModified)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Apply(ctx, "x", []Rule{Literal("x", "x", "y")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ValidateRules(t *testing.T) {
	tests := []struct {
		name      string
		rules     []Rule
		wantError string
	}{
		{
			name:  "valid_rules",
			rules: []Rule{Literal("a", "foo", "bar"), {Name: "p", Kind: KindPattern, Match: `foo(\d+)`, Replace: "$1"}},
		},
		{
			name:      "missing_match",
			rules:     []Rule{{Name: "m", Replace: "bar"}},
			wantError: "match is required",
		},
		{
			name:      "bad_pattern",
			rules:     []Rule{{Name: "p", Kind: KindPattern, Match: `foo(`}},
			wantError: "compiling",
		},
		{
			name:      "ensure_without_line",
			rules:     []Rule{{Name: "e", Kind: KindEnsure, Match: `x`}},
			wantError: "needs a line",
		},
		{
			name:      "unknown_kind",
			rules:     []Rule{{Name: "u", Kind: "sed", Match: "x"}},
			wantError: "unknown rule kind",
		},
		{
			name:  "empty_rules",
			rules: []Rule{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngine().ValidateRules(tt.rules)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestForFile(t *testing.T) {
	rules := []Rule{
		Literal("db-only", "a", "b").WithScope("database.yaml"),
		Literal("generic-1", "c", "d"),
		Literal("glob", "e", "f").WithScope("**/viewer.yaml"),
		Literal("generic-2", "g", "h"),
	}

	names := func(rs []Rule) []string {
		out := []string{}
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}

	assert.Equal(t, []string{"generic-1", "generic-2", "db-only"}, names(ForFile(rules, "config/database.yaml")))
	assert.Equal(t, []string{"generic-1", "generic-2", "glob"}, names(ForFile(rules, "apps/viewer.yaml")))
	assert.Equal(t, []string{"generic-1", "generic-2"}, names(ForFile(rules, "other.yaml")))
}
