// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session parses chat-export JSON into an ordered sequence of turns.
// Two schemas are accepted: the generic export ({"turns": [...]}) and the
// editor session export (version 3 with a "requests" array).
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/chatmd/pkg/types"
)

// MalformedError reports input that is not a chat export: invalid JSON,
// a top-level shape that matches neither schema, or a turn missing its
// required fields. It is distinguishable via errors.As from plain I/O
// errors, so batch callers can skip the file instead of aborting.
type MalformedError struct {
	Path   string // empty when parsing raw bytes
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return "malformed chat export: " + e.Reason
	}
	return fmt.Sprintf("malformed chat export %s: %s", e.Path, e.Reason)
}

// editorVersion is the only editor session schema we understand.
const editorVersion = 3

// rawExport covers the top-level fields of both schemas.
type rawExport struct {
	Turns    []json.RawMessage `json:"turns"`
	Version  int               `json:"version"`
	Requests []rawRequest      `json:"requests"`

	SessionID          string  `json:"sessionId"`
	RequesterUsername  string  `json:"requesterUsername"`
	ResponderUsername  string  `json:"responderUsername"`
	Requester          rawUser `json:"requester"`
	Responder          rawUser `json:"responder"`
}

type rawUser struct {
	Username string `json:"username"`
}

type rawTurn struct {
	Role      *string         `json:"role"`
	Content   *string         `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type rawRequest struct {
	RequestID string           `json:"requestId"`
	Timestamp int64            `json:"timestamp"`
	Message   *rawMessage      `json:"message"`
	Response  []rawResponse    `json:"response"`
	VarData   *rawVariableData `json:"variableData"`
}

type rawMessage struct {
	Text  string    `json:"text"`
	Parts []rawPart `json:"parts"`
}

type rawPart struct {
	Text string `json:"text"`
}

type rawResponse struct {
	Value json.RawMessage `json:"value"`
}

type rawVariableData struct {
	Variables []rawVariable `json:"variables"`
}

type rawVariable struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
}

// Parse decodes raw export bytes into a Session.
func Parse(data []byte) (*types.Session, error) {
	var raw rawExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	if raw.Turns != nil {
		return parseGeneric(&raw)
	}
	if isEditorSession(&raw) {
		return parseEditor(&raw), nil
	}
	return nil, &MalformedError{Reason: "neither a turns array nor a version 3 requests array"}
}

// ParseFile reads and parses one export file. Read failures come back as
// wrapped I/O errors; shape failures as *MalformedError carrying the path.
func ParseFile(path string) (*types.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		var merr *MalformedError
		if errors.As(err, &merr) {
			merr.Path = path
		}
		return nil, err
	}
	if s.ID == "" {
		s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

func parseGeneric(raw *rawExport) (*types.Session, error) {
	s := &types.Session{
		ID:        raw.SessionID,
		Requester: "user",
		Responder: "assistant",
	}
	for i, rt := range raw.Turns {
		var t rawTurn
		if err := json.Unmarshal(rt, &t); err != nil {
			return nil, &MalformedError{Reason: fmt.Sprintf("turn %d: %v", i, err)}
		}
		if t.Role == nil {
			return nil, &MalformedError{Reason: fmt.Sprintf("turn %d: missing role", i)}
		}
		if t.Content == nil {
			return nil, &MalformedError{Reason: fmt.Sprintf("turn %d: missing content", i)}
		}
		turn := types.Turn{
			Role:         types.Role(*t.Role),
			Content:      Sanitize(*t.Content),
			RequestIndex: i + 1,
		}
		if len(t.Timestamp) > 0 {
			ts, err := parseTimestamp(t.Timestamp)
			if err != nil {
				return nil, &MalformedError{Reason: fmt.Sprintf("turn %d: %v", i, err)}
			}
			turn.Timestamp = ts
		}
		s.Turns = append(s.Turns, turn)
	}
	return s, nil
}

// parseTimestamp accepts an epoch number (milliseconds, or seconds when
// small enough) or an RFC 3339 string.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var epoch int64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		return epochToTime(epoch), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp is neither a number nor a string")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// epochToTime treats values below 1e10 as seconds, everything else as
// milliseconds. Editor exports write milliseconds but older ones wrote
// seconds.
func epochToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	if v < 10_000_000_000 {
		v *= 1000
	}
	return time.UnixMilli(v).UTC()
}

// isEditorSession reports whether the export matches the editor session
// shape: version 3, a non-empty requests array, and at least one request
// carrying a message or a response.
func isEditorSession(raw *rawExport) bool {
	if raw.Version != editorVersion || len(raw.Requests) == 0 {
		return false
	}
	for _, r := range raw.Requests {
		if r.Message != nil || len(r.Response) > 0 {
			return true
		}
	}
	return false
}

func parseEditor(raw *rawExport) *types.Session {
	s := &types.Session{
		ID:        raw.SessionID,
		Requester: firstNonEmpty(raw.RequesterUsername, raw.Requester.Username, "user"),
		Responder: firstNonEmpty(raw.ResponderUsername, raw.Responder.Username, "assistant"),
	}

	for i, req := range raw.Requests {
		ts := epochToTime(req.Timestamp)
		refs := fileRefs(req.VarData)

		if text := Sanitize(messageText(req.Message)); text != "" {
			s.Turns = append(s.Turns, types.Turn{
				Role:         types.RoleUser,
				Content:      text,
				RequestID:    req.RequestID,
				RequestIndex: i + 1,
				Timestamp:    ts,
				FileRefs:     refs,
			})
		}

		for _, resp := range req.Response {
			var val string
			if err := json.Unmarshal(resp.Value, &val); err != nil {
				continue // structured response parts carry no text
			}
			if cleaned := Sanitize(val); cleaned != "" {
				s.Turns = append(s.Turns, types.Turn{
					Role:         types.RoleAssistant,
					Content:      cleaned,
					RequestID:    req.RequestID,
					RequestIndex: i + 1,
					Timestamp:    ts,
				})
			}
		}
	}
	return s
}

// messageText extracts the user text: the message's text field, or the
// concatenated part texts when the text field is empty.
func messageText(msg *rawMessage) string {
	if msg == nil {
		return ""
	}
	if t := strings.TrimSpace(msg.Text); t != "" {
		return t
	}
	var parts []string
	for _, p := range msg.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// fileRefs resolves variable references to paths. Preference order:
// fullName, then a decoded file:// id, then a name that looks like a path.
func fileRefs(vd *rawVariableData) []types.FileRef {
	if vd == nil {
		return nil
	}
	var refs []types.FileRef
	for _, v := range vd.Variables {
		var candidate string
		switch {
		case v.FullName != "":
			candidate = v.FullName
		case strings.HasPrefix(strings.ToLower(v.ID), "file:"):
			candidate = DecodeFileURI(v.ID)
		case strings.ContainsAny(v.Name, `/\`):
			candidate = v.Name
		}
		if candidate == "" {
			continue
		}
		display := v.Name
		if display == "" {
			display = filepath.Base(candidate)
		}
		if display == "" || display == "." {
			display = firstNonEmpty(v.ID, "file")
		}
		refs = append(refs, types.FileRef{Display: display, Path: candidate})
	}
	return refs
}

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	driveSlash = regexp.MustCompile(`^/[A-Za-z]:`)
)

// Sanitize normalizes message content: runs of three or more newlines
// collapse to two, trailing whitespace is dropped. Fence markers inside
// the content are untouched.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimRight(blankRuns.ReplaceAllString(text, "\n\n"), " \t\n\r")
}

// DecodeFileURI turns a file:// URI into a plain path. Windows exports
// produce forms like file:///d%3A/work/x.cs; the percent escapes are
// decoded and the leading slash before the drive letter stripped.
func DecodeFileURI(uri string) string {
	if !strings.HasPrefix(strings.ToLower(uri), "file:") {
		return uri
	}
	path := uri
	if i := strings.Index(uri, "://"); i >= 0 {
		path = uri[i+3:]
	} else {
		path = strings.TrimPrefix(path, "file:")
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	if driveSlash.MatchString(path) {
		path = path[1:]
	}
	return path
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
