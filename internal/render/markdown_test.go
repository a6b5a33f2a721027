// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/chatmd/pkg/types"
)

func testRenderer() *Renderer {
	return &Renderer{Loc: time.UTC}
}

func sampleSession() *types.Session {
	return &types.Session{
		ID:        "abc-123",
		Requester: "petar",
		Responder: "copilot",
		Turns: []types.Turn{
			{Role: types.RoleUser, Content: "Hi", RequestID: "r1",
				Timestamp: time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC)},
			{Role: types.RoleAssistant, Content: "Hello back", RequestID: "r1",
				Timestamp: time.Date(2024, 5, 1, 8, 30, 20, 0, time.UTC)},
		},
	}
}

func TestDocumentHeader(t *testing.T) {
	doc := testRenderer().Document(sampleSession())

	for _, want := range []string{
		"# Session abc-123",
		"## Metadata",
		"- Requester: `petar`",
		"- Responder: `copilot`",
		"- Turns: 2",
		"- User messages: 1",
		"- Assistant messages: 1",
		"- Code blocks: 0",
		"\n---\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if !strings.HasSuffix(doc, "\n") || strings.HasSuffix(doc, "\n\n") {
		t.Error("document should end with exactly one newline")
	}
}

func TestDocumentTurnBlocks(t *testing.T) {
	doc := testRenderer().Document(sampleSession())

	userIdx := strings.Index(doc, "### 1. User 08:30")
	asstIdx := strings.Index(doc, "### 2. Assistant 08:30")
	if userIdx < 0 || asstIdx < 0 {
		t.Fatalf("missing turn headings in:\n%s", doc)
	}
	if userIdx > asstIdx {
		t.Error("turns rendered out of order")
	}
	if !strings.Contains(doc[userIdx:asstIdx], "Hi") {
		t.Error("user block should contain the user content")
	}
	if !strings.Contains(doc[asstIdx:], "Hello back") {
		t.Error("assistant block should contain the assistant content")
	}
	if !strings.Contains(doc, "> requestId: r1") {
		t.Error("metadata blockquote should carry the request id")
	}
	if !strings.Contains(doc, "> UTC: 2024-05-01T08:30:15Z") {
		t.Error("metadata blockquote should carry the UTC timestamp")
	}
}

func TestDocumentFencePreservedVerbatim(t *testing.T) {
	fenced := "Run it:\n\n```python\nprint(1)\n```\n\nDone."
	s := &types.Session{
		ID: "s", Requester: "u", Responder: "a",
		Turns: []types.Turn{{Role: types.RoleAssistant, Content: fenced}},
	}

	doc := testRenderer().Document(s)
	if !strings.Contains(doc, "```python\nprint(1)\n```") {
		t.Fatalf("fence not preserved verbatim in:\n%s", doc)
	}
	if strings.Contains(doc, "\\`") {
		t.Error("fence must not be escaped")
	}
}

func TestDocumentIdempotent(t *testing.T) {
	s := sampleSession()
	r := testRenderer()
	if r.Document(s) != r.Document(s) {
		t.Error("rendering the same session twice must be byte-identical")
	}
}

func TestDocumentUnknownRole(t *testing.T) {
	s := &types.Session{
		ID: "s", Requester: "u", Responder: "a",
		Turns: []types.Turn{{Role: "tool", Content: "ran tests"}},
	}
	doc := testRenderer().Document(s)
	if !strings.Contains(doc, "### 1. Tool") {
		t.Errorf("unknown role should render generically, got:\n%s", doc)
	}
}

// turnHeadingRe matches the per-turn headings the renderer emits, but not
// headings inside turn content (those never sit at "### <n>. " exactly
// after our numbering).
var turnHeadingRe = regexp.MustCompile(`(?m)^### \d+\. (\w+)`)

// TestRoundTrip checks the semantic round-trip property: scanning the
// rendered document recovers the same role/content sequence.
func TestRoundTrip(t *testing.T) {
	s := &types.Session{
		ID: "rt", Requester: "u", Responder: "a",
		Turns: []types.Turn{
			{Role: types.RoleUser, Content: "first question"},
			{Role: types.RoleAssistant, Content: "first answer"},
			{Role: types.RoleUser, Content: "second question"},
		},
	}
	doc := testRenderer().Document(s)

	matches := turnHeadingRe.FindAllStringSubmatchIndex(doc, -1)
	if len(matches) != len(s.Turns) {
		t.Fatalf("found %d turn headings, want %d", len(matches), len(s.Turns))
	}

	for i, turn := range s.Turns {
		gotRole := doc[matches[i][2]:matches[i][3]]
		if gotRole != turn.Role.Label() {
			t.Errorf("turn %d: role %q, want %q", i, gotRole, turn.Role.Label())
		}

		end := len(doc)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if !strings.Contains(doc[matches[i][0]:end], turn.Content) {
			t.Errorf("turn %d: block does not contain content %q", i, turn.Content)
		}
	}
}

func TestDocumentAttachments(t *testing.T) {
	s := &types.Session{
		ID: "s", Requester: "u", Responder: "a",
		Turns: []types.Turn{{
			Role: types.RoleUser, Content: "see files",
			FileRefs: []types.FileRef{
				{Display: "a.txt", Path: "a.txt"},
				{Display: "gone.txt", Path: "gone.txt"},
			},
		}},
	}

	r := testRenderer()
	r.Attachments = func(ref types.FileRef) string {
		if ref.Path == "a.txt" {
			return "```\ncontents of a\n```"
		}
		return ""
	}

	doc := r.Document(s)
	if !strings.Contains(doc, "#### Attachments") {
		t.Fatal("expected an Attachments section")
	}
	if !strings.Contains(doc, "contents of a") {
		t.Error("resolved attachment should be embedded")
	}

	// No resolvable refs, no section.
	r.Attachments = func(types.FileRef) string { return "" }
	if strings.Contains(r.Document(s), "#### Attachments") {
		t.Error("unresolvable refs should not produce an Attachments section")
	}
}

func TestCollectCodeStats(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		blocks    int
		lines     int
		languages map[string]int
	}{
		{
			name:      "single tagged block",
			content:   "```python\nprint(1)\n```",
			blocks:    1,
			lines:     1,
			languages: map[string]int{"python": 1},
		},
		{
			name:      "untagged block",
			content:   "```\na\nb\n```",
			blocks:    1,
			lines:     2,
			languages: map[string]int{},
		},
		{
			name:      "two blocks same language",
			content:   "```Go\nx := 1\n```\ntext\n```go\ny := 2\nz := 3\n```",
			blocks:    2,
			lines:     3,
			languages: map[string]int{"go": 2},
		},
		{
			name:      "unterminated fence ignored",
			content:   "```python\nprint(1)",
			blocks:    0,
			lines:     0,
			languages: map[string]int{},
		},
		{
			name:      "no code",
			content:   "plain prose",
			blocks:    0,
			lines:     0,
			languages: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CollectCodeStats([]types.Turn{{Role: types.RoleUser, Content: tt.content}})
			if stats.Blocks != tt.blocks {
				t.Errorf("blocks = %d, want %d", stats.Blocks, tt.blocks)
			}
			if stats.Lines != tt.lines {
				t.Errorf("lines = %d, want %d", stats.Lines, tt.lines)
			}
			if len(stats.Languages) != len(tt.languages) {
				t.Fatalf("languages = %v, want %v", stats.Languages, tt.languages)
			}
			for lang, n := range tt.languages {
				if stats.Languages[lang] != n {
					t.Errorf("languages[%s] = %d, want %d", lang, stats.Languages[lang], n)
				}
			}
		})
	}
}

func TestFormatLanguages(t *testing.T) {
	got := formatLanguages(map[string]int{"python": 1, "go": 3, "bash": 1})
	if got != "go:3, bash:1, python:1" {
		t.Errorf("formatLanguages = %q", got)
	}
}
