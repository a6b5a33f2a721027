// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Label returns the display form of the role. Unknown roles are
// title-cased rather than rejected; exports from other tools carry
// roles we have never heard of.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	}
	s := string(r)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FileRef is a workspace file referenced by a turn (editor exports list
// these under variableData).
type FileRef struct {
	// Display is the human-readable name shown in the document.
	Display string `json:"display" yaml:"display"`

	// Path is the referenced path, absolute or relative to the export's
	// workspace root.
	Path string `json:"path" yaml:"path"`
}

// Turn is one message within a chat session.
type Turn struct {
	// Role is the author: user, assistant, system, or whatever the
	// export says.
	Role Role `json:"role" yaml:"role"`

	// Content is the message body, Markdown-ish text possibly containing
	// fenced code blocks that must survive rendering verbatim.
	Content string `json:"content" yaml:"content"`

	// RequestID ties the turn back to the originating request, when the
	// export carries one.
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`

	// RequestIndex is the 1-based position of the originating request.
	RequestIndex int `json:"request_index,omitempty" yaml:"request_index,omitempty"`

	// Timestamp is the request time in UTC; zero when the export has none.
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// FileRefs lists files the turn referenced.
	FileRefs []FileRef `json:"file_refs,omitempty" yaml:"file_refs,omitempty"`
}

// Session is a parsed chat export, immutable once built.
type Session struct {
	// ID is the session identifier from the export, or a stand-in when
	// the export has none.
	ID string `json:"id" yaml:"id"`

	// Requester is the username of the side asking questions.
	Requester string `json:"requester" yaml:"requester"`

	// Responder is the username of the side answering.
	Responder string `json:"responder" yaml:"responder"`

	// Turns is the ordered message sequence.
	Turns []Turn `json:"turns" yaml:"turns"`
}

// CountRole returns the number of turns with the given role.
func (s *Session) CountRole(r Role) int {
	n := 0
	for _, t := range s.Turns {
		if t.Role == r {
			n++
		}
	}
	return n
}

// ConversionStatus indicates the outcome of converting one export file.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// SessionSummary holds the catalog-facing facts about one converted
// session: where it came from, where the Markdown went, and the
// statistics printed in the document header.
type SessionSummary struct {
	ID             string    `json:"id" yaml:"id"`
	SourcePath     string    `json:"source_path" yaml:"source_path"`
	MarkdownPath   string    `json:"markdown_path" yaml:"markdown_path"`
	Requester      string    `json:"requester" yaml:"requester"`
	Responder      string    `json:"responder" yaml:"responder"`
	Turns          int       `json:"turns" yaml:"turns"`
	UserTurns      int       `json:"user_turns" yaml:"user_turns"`
	AssistantTurns int       `json:"assistant_turns" yaml:"assistant_turns"`
	CodeBlocks     int       `json:"code_blocks" yaml:"code_blocks"`
	CodeLines      int       `json:"code_lines" yaml:"code_lines"`
	ConvertedAt    time.Time `json:"converted_at" yaml:"converted_at"`
}
