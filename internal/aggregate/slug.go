// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// slugger generates unique anchor slugs within one aggregation run.
type slugger struct {
	seen map[string]bool
}

func newSlugger() *slugger {
	return &slugger{seen: map[string]bool{}}
}

// make turns text into a lower-case anchor slug, suffixing -2, -3, ...
// on collision.
func (s *slugger) make(text string) string {
	base := slugify(text)
	slug := base
	for i := 2; s.seen[slug]; i++ {
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	s.seen[slug] = true
	return slug
}

func slugify(text string) string {
	var b strings.Builder
	lastDash := true // suppress a leading dash
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

var (
	guidRe      = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexStemRe   = regexp.MustCompile(`^[0-9a-fA-F-]+$`)
	headingRe   = regexp.MustCompile(`(?m)^#\s*Session\s+(.+)$`)
	localDateRe = regexp.MustCompile(`(?m)^>\s*Local time:\s*(\d{4}-\d{2}-\d{2})`)
)

// displayName picks the index label for a source. Exports are commonly
// named by session GUID, which makes for an unreadable index; for those
// we derive a label from the document's session heading and first local
// date instead.
func displayName(relPath, content string) string {
	stem := strings.TrimSuffix(relPath[strings.LastIndex(relPath, "/")+1:], ".md")
	stem = strings.TrimSuffix(stem, ".markdown")
	if !guidRe.MatchString(stem) && !(len(stem) > 24 && hexStemRe.MatchString(stem)) {
		return relPath
	}

	var date, title string
	if m := localDateRe.FindStringSubmatch(content); m != nil {
		date = m[1]
	}
	if m := headingRe.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
		if guidRe.MatchString(title) {
			title = title[:8]
		}
	}

	switch {
	case date != "" && title != "":
		return fmt.Sprintf("Session %s %s", date, title)
	case date != "":
		return "Session " + date
	case title != "":
		return "Session " + title
	}
	return relPath
}
