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

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	// Disable color for testing
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name     string
		op       func(t *testing.T, logger *Logger)
		wantLogs []string
	}{
		{
			name: "start_stage",
			op: func(t *testing.T, logger *Logger) {
				logger.StartStage(context.Background(), Stage{
					Step:   1,
					Total:  6,
					Name:   "mirror",
					Detail: "acme/golden-config@main",
				})
			},
			wantLogs: []string{
				"[1/6 mirror]",
				"◆ acme/golden-config@main",
			},
		},
		{
			name: "start_stage_without_detail",
			op: func(t *testing.T, logger *Logger) {
				logger.StartStage(context.Background(), Stage{Step: 4, Total: 6, Name: "verify"})
				logger.EndStage(context.Background())
			},
			wantLogs: []string{
				"[4/6 verify]",
			},
		},
		{
			name: "log_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("info message")
				logger.Warning("warning message")
				logger.Error("error message")
				logger.Success("success message")
			},
			wantLogs: []string{
				"ℹ️  info message",
				"⚠️  warning message",
				"❌ error message",
				"✅ success message",
			},
		},
		{
			name: "log_formatted_messages",
			op: func(t *testing.T, logger *Logger) {
				logger.Infof("info %s", "test")
				logger.Warningf("warning %s", "test")
				logger.Errorf("error %s", "test")
				logger.Successf("success %s", "test")
			},
			wantLogs: []string{
				"ℹ️  info test",
				"⚠️  warning test",
				"❌ error test",
				"✅ success test",
			},
		},
		{
			name: "log_header",
			op: func(t *testing.T, logger *Logger) {
				logger.Header("mirroring rpvna into ac001001")
			},
			wantLogs: []string{
				"envmirror • mirroring rpvna into ac001001",
			},
		},
		{
			name: "log_newline",
			op: func(t *testing.T, logger *Logger) {
				logger.Info("first")
				logger.LogNewline()
				logger.Info("second")
			},
			wantLogs: []string{
				"ℹ️  first",
				"",
				"ℹ️  second",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))

			tt.op(t, logger)

			output := strings.TrimSpace(buf.String())
			lines := strings.Split(output, "\n")

			require.Equal(t, len(tt.wantLogs), len(lines), "number of log lines should match")
			for i, want := range tt.wantLogs {
				assert.Equal(t, want, strings.TrimSpace(lines[i]), "log line %d should match", i)
			}
		})
	}
}

func TestLoggerContext(t *testing.T) {
	logger := New(&bytes.Buffer{}, zerolog.Nop())

	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx), "logger from context should be the same instance")

	missing := FromContext(context.Background())
	require.NotNil(t, missing)
	assert.NotPanics(t, func() { missing.Info("dropped") })
}

func TestFileOperationFormatting(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	tests := []struct {
		name   string
		op     FileOperation
		fields []string
	}{
		{
			name: "modified_file",
			op: FileOperation{
				Path:         "values.yaml",
				Status:       "modified",
				Rules:        []string{"namespace", "endpoints"},
				Replacements: 3,
				IsModified:   true,
			},
			fields: []string{"⟳", "values.yaml", "namespace,endpoints", "modified"},
		},
		{
			name: "unchanged_file",
			op: FileOperation{
				Path:   "apps/viewer.yaml",
				Status: "unchanged",
				Rules:  []string{"namespace"},
			},
			fields: []string{"•", "apps/viewer.yaml", "namespace", "unchanged"},
		},
		{
			name: "skipped_file",
			op: FileOperation{
				Path:      "README.md",
				Status:    "skipped",
				IsSkipped: true,
			},
			fields: []string{"-", "README.md", "none", "skipped"},
		},
		{
			name: "failed_file",
			op: FileOperation{
				Path:     "database.yaml",
				Status:   "failed",
				Rules:    []string{"database"},
				IsFailed: true,
			},
			fields: []string{"✗", "database.yaml", "database", "failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))

			logger.LogFileOperation(context.Background(), tt.op)

			output := strings.TrimSpace(buf.String())
			assert.True(t, strings.HasPrefix(buf.String(), "    "), "file lines should be indented")
			assert.Equal(t, tt.fields, strings.Fields(output))
		})
	}
}

func TestLoggerTable(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	buf := &bytes.Buffer{}
	logger := New(buf, zerolog.New(zerolog.NewTestWriter(t)))

	logger.Table([][]string{
		{"stage", "result"},
		{"mirror", "ok"},
		{"publish", "pushed"},
	})
	logger.Table(nil)

	output := buf.String()
	assert.Contains(t, output, "stage")
	assert.Contains(t, output, "mirror")
	assert.Contains(t, output, "pushed")
	assert.Less(t, strings.Index(output, "mirror"), strings.Index(output, "publish"))
}
