package main

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestViewsCommand(t *testing.T) {
	t.Setenv("VIEWS_FILE", "")
	out := run(t, "views")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "students")
	assert.Contains(t, out, "credits")
}

func TestRenderContentCommand(t *testing.T) {
	out := run(t, "render", "content", "--stats")
	assert.Contains(t, out, "Dr. Lee")
	assert.Contains(t, out, "scalars")
}

func TestRenderDateRangeCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing picked", []string{"--now", "2026-03-10"}, "no range selected\n"},
		{"open start ends today", []string{"--now", "2026-03-10", "--pick", "2026-03-01"}, "2026-03-01 to 2026-03-10\n"},
		{"future start", []string{"--now", "2026-03-10", "--pick", "2026-04-01"}, "2026-04-01 to 2026-04-01\n"},
		{"swapped", []string{"--now", "2026-03-10", "--pick", "2026-03-05", "--pick", "2026-03-02"}, "2026-03-02 to 2026-03-05\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"render", "daterange"}, tt.args...)
			assert.Equal(t, tt.want, run(t, args...))
		})
	}
}

func TestRenderDateRangeCommand_JSON(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		start, end string
	}{
		{
			// US daylight saving starts on 8 March 2026.
			name:  "reference zone by default",
			start: "2026-03-01T00:00:00-05:00",
			end:   "2026-03-10T00:00:00-04:00",
		},
		{
			name:  "explicit zone",
			args:  []string{"--tz", "UTC"},
			start: "2026-03-01T00:00:00Z",
			end:   "2026-03-10T00:00:00Z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--json", "render", "daterange", "--now", "2026-03-10", "--pick", "2026-03-01"}, tt.args...)
			out := run(t, args...)

			var resp struct {
				Phase string `json:"phase"`
				Range struct {
					Start string `json:"start"`
					End   string `json:"end"`
				} `json:"range"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "complete", resp.Phase)
			assert.Equal(t, tt.start, resp.Range.Start)
			assert.Equal(t, tt.end, resp.Range.End)
		})
	}
}

func TestRenderDateRangeCommand_UnknownZone(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"render", "daterange", "--tz", "Mars/Olympus_Mons", "--pick", "2026-03-01"})
	assert.Error(t, cmd.Execute())
}
