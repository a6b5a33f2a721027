// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render turns a parsed session into a Markdown document. It is
// a pure mapping: no I/O, deterministic output, fenced code inside turn
// content passes through byte-for-byte.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/chatmd/pkg/types"
)

// AttachmentFunc resolves one file reference to a Markdown fragment, or
// returns "" when the reference cannot be embedded. Wiring a function
// here is the only way I/O enters a render; the default is nil.
type AttachmentFunc func(ref types.FileRef) string

// Renderer holds rendering options.
type Renderer struct {
	// Loc is the location used for the human-readable local times.
	Loc *time.Location

	// Attachments, when set, appends an Attachments section to turns
	// with resolvable file references.
	Attachments AttachmentFunc
}

// New returns a Renderer using the machine's local time zone.
func New() *Renderer {
	return &Renderer{Loc: time.Local}
}

const localTimeFmt = "2006-01-02 15:04:05 MST"

// Document renders the whole session: header with metadata and code
// statistics, then one block per turn.
func (r *Renderer) Document(s *types.Session) string {
	loc := r.Loc
	if loc == nil {
		loc = time.Local
	}
	stats := CollectCodeStats(s.Turns)

	var b strings.Builder
	fmt.Fprintf(&b, "# Session %s\n\n", sessionTitle(s))
	b.WriteString("## Metadata\n\n")
	fmt.Fprintf(&b, "- Requester: `%s`\n", s.Requester)
	fmt.Fprintf(&b, "- Responder: `%s`\n", s.Responder)
	fmt.Fprintf(&b, "- Turns: %d\n", len(s.Turns))
	fmt.Fprintf(&b, "- User messages: %d\n", s.CountRole(types.RoleUser))
	fmt.Fprintf(&b, "- Assistant messages: %d\n", s.CountRole(types.RoleAssistant))
	fmt.Fprintf(&b, "- Code blocks: %d\n", stats.Blocks)
	fmt.Fprintf(&b, "- Code block lines: %d\n", stats.Lines)
	if len(stats.Languages) > 0 {
		fmt.Fprintf(&b, "- Code languages: %s\n", formatLanguages(stats.Languages))
	}
	b.WriteString("\n---\n")

	for i, turn := range s.Turns {
		b.WriteString("\n")
		r.writeTurn(&b, i+1, turn, loc)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func (r *Renderer) writeTurn(b *strings.Builder, n int, turn types.Turn, loc *time.Location) {
	heading := fmt.Sprintf("### %d. %s", n, turn.Role.Label())
	if !turn.Timestamp.IsZero() {
		heading += " " + turn.Timestamp.In(loc).Format("15:04")
	}
	b.WriteString(heading + "\n")

	var meta []string
	if turn.RequestID != "" {
		meta = append(meta, "requestId: "+turn.RequestID)
	}
	if !turn.Timestamp.IsZero() {
		meta = append(meta, "Local time: "+turn.Timestamp.In(loc).Format(localTimeFmt))
		meta = append(meta, "UTC: "+turn.Timestamp.UTC().Format(time.RFC3339))
	}
	if len(meta) > 0 {
		b.WriteString("\n> " + strings.Join(meta, "\n> ") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(turn.Content)
	b.WriteString("\n")

	if r.Attachments != nil && len(turn.FileRefs) > 0 {
		var embedded []string
		for _, ref := range turn.FileRefs {
			if md := r.Attachments(ref); md != "" {
				embedded = append(embedded, md)
			}
		}
		if len(embedded) > 0 {
			b.WriteString("\n#### Attachments\n\n")
			b.WriteString(strings.Join(embedded, "\n\n"))
			b.WriteString("\n")
		}
	}
}

func sessionTitle(s *types.Session) string {
	if s.ID != "" {
		return s.ID
	}
	return "unknown-session"
}

// formatLanguages renders the histogram as "go:3, python:1", most
// frequent first, ties broken by name.
func formatLanguages(langs map[string]int) string {
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s:%d", name, langs[name])
	}
	return strings.Join(parts, ", ")
}
