// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/chatmd/pkg/types"
)

func TestParseGeneric(t *testing.T) {
	data := []byte(`{"turns":[
		{"role":"user","content":"Hi"},
		{"role":"assistant","content":"Hello back"}
	]}`)

	s, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, s.Turns, 2)
	assert.Equal(t, types.RoleUser, s.Turns[0].Role)
	assert.Equal(t, "Hi", s.Turns[0].Content)
	assert.Equal(t, types.RoleAssistant, s.Turns[1].Role)
	assert.Equal(t, "Hello back", s.Turns[1].Content)
	assert.Equal(t, 1, s.Turns[0].RequestIndex)
	assert.Equal(t, 2, s.Turns[1].RequestIndex)
}

func TestParseGenericTimestamps(t *testing.T) {
	tests := []struct {
		name string
		turn string
		want time.Time
	}{
		{
			name: "epoch milliseconds",
			turn: `{"role":"user","content":"x","timestamp":1714550400000}`,
			want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "epoch seconds",
			turn: `{"role":"user","content":"x","timestamp":1714550400}`,
			want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 string",
			turn: `{"role":"user","content":"x","timestamp":"2024-05-01T08:00:00Z"}`,
			want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(`{"turns":[` + tt.turn + `]}`))
			require.NoError(t, err)
			require.Len(t, s.Turns, 1)
			assert.True(t, s.Turns[0].Timestamp.Equal(tt.want),
				"got %v, want %v", s.Turns[0].Timestamp, tt.want)
		})
	}
}

func TestParseGenericUnknownRoleKept(t *testing.T) {
	s, err := Parse([]byte(`{"turns":[{"role":"tool","content":"ran tests"}]}`))
	require.NoError(t, err)
	require.Len(t, s.Turns, 1)
	assert.Equal(t, types.Role("tool"), s.Turns[0].Role)
	assert.Equal(t, "Tool", s.Turns[0].Role.Label())
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"turns": [`},
		{"not an object", `[1, 2, 3]`},
		{"missing turns and requests", `{"messages": []}`},
		{"turns not an array", `{"turns": "nope"}`},
		{"turn missing role", `{"turns":[{"content":"hi"}]}`},
		{"turn missing content", `{"turns":[{"role":"user"}]}`},
		{"role wrong type", `{"turns":[{"role":5,"content":"hi"}]}`},
		{"wrong version requests", `{"version":2,"requests":[{"message":{"text":"hi"}}]}`},
		{"requests without content", `{"version":3,"requests":[{"requestId":"r1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			var merr *MalformedError
			assert.True(t, errors.As(err, &merr), "want MalformedError, got %T: %v", err, err)
		})
	}
}

func TestParseEditorSession(t *testing.T) {
	data := []byte(`{
		"version": 3,
		"sessionId": "7f3c2a10-aaaa-bbbb-cccc-000011112222",
		"requesterUsername": "petar",
		"responderUsername": "copilot",
		"requests": [
			{
				"requestId": "req-1",
				"timestamp": 1714550400000,
				"message": {"text": "explain this"},
				"response": [
					{"value": "Sure.\n\n\n\nHere goes."},
					{"value": {"kind": "inlineReference"}}
				],
				"variableData": {"variables": [
					{"id": "file:///d%3A/work/main.cs", "name": "main.cs"},
					{"id": "sym-1", "name": "helper", "fullName": "src/helper.go"}
				]}
			},
			{
				"requestId": "req-2",
				"message": {"parts": [{"text": "part one"}, {"text": "part two"}]},
				"response": [{"value": ""}]
			}
		]
	}`)

	s, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "7f3c2a10-aaaa-bbbb-cccc-000011112222", s.ID)
	assert.Equal(t, "petar", s.Requester)
	assert.Equal(t, "copilot", s.Responder)

	require.Len(t, s.Turns, 3)

	user := s.Turns[0]
	assert.Equal(t, types.RoleUser, user.Role)
	assert.Equal(t, "explain this", user.Content)
	assert.Equal(t, "req-1", user.RequestID)
	assert.True(t, user.Timestamp.Equal(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))
	require.Len(t, user.FileRefs, 2)
	assert.Equal(t, "main.cs", user.FileRefs[0].Display)
	assert.Equal(t, "d:/work/main.cs", user.FileRefs[0].Path)
	assert.Equal(t, "src/helper.go", user.FileRefs[1].Path)

	asst := s.Turns[1]
	assert.Equal(t, types.RoleAssistant, asst.Role)
	assert.Equal(t, "Sure.\n\nHere goes.", asst.Content, "blank runs collapse to two newlines")
	assert.Empty(t, asst.FileRefs, "responses carry no file refs")

	// Second request: parts joined, empty response value dropped.
	assert.Equal(t, types.RoleUser, s.Turns[2].Role)
	assert.Equal(t, "part one\npart two", s.Turns[2].Content)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"turns":[{"role":"user","content":"Hi"}]}`), 0o644))

	s, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", s.ID, "ID falls back to the file stem")

	_, err = ParseFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	var merr *MalformedError
	assert.False(t, errors.As(err, &merr), "a read failure is not a malformed-input error")
	assert.True(t, os.IsNotExist(errors.Unwrap(err)))
}

func TestParseFileMalformedCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oops": true}`), 0o644))

	_, err := ParseFile(path)
	var merr *MalformedError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, path, merr.Path)
	assert.Contains(t, err.Error(), path)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\n\nb", Sanitize("a\n\n\n\n\nb"))
	assert.Equal(t, "x", Sanitize("x  \n\t"))
	assert.Equal(t, "", Sanitize(""))
	// Fence markers pass through untouched.
	fenced := "```python\nprint(1)\n```"
	assert.Equal(t, fenced, Sanitize(fenced))
}

func TestDecodeFileURI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"file:///d%3A/work/x.cs", "d:/work/x.cs"},
		{"file:///home/petar/notes.md", "/home/petar/notes.md"},
		{"not-a-uri.txt", "not-a-uri.txt"},
		{"FILE:///C%3A/Temp/a.txt", "C:/Temp/a.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeFileURI(tt.in), "input %q", tt.in)
	}
}
