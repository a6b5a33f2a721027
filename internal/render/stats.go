// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"regexp"
	"strings"

	"github.com/pdiddy/chatmd/pkg/types"
)

// CodeStats summarizes the fenced code blocks across a session.
type CodeStats struct {
	// Blocks is the number of triple-backtick fenced blocks.
	Blocks int

	// Lines is the total line count inside the fences, delimiters excluded.
	Lines int

	// Languages counts blocks per fence language tag, lower-cased.
	// Untagged blocks are not counted here.
	Languages map[string]int
}

var fenceRe = regexp.MustCompile("(?s)```.*?```")

// CollectCodeStats scans turn content for fenced code blocks. An
// unterminated fence does not count as a block, matching how viewers
// render it.
func CollectCodeStats(turns []types.Turn) CodeStats {
	stats := CodeStats{Languages: map[string]int{}}
	for _, turn := range turns {
		for _, block := range fenceRe.FindAllString(turn.Content, -1) {
			stats.Blocks++

			firstLine, _, _ := strings.Cut(block, "\n")
			lang := strings.ToLower(strings.TrimSpace(strings.Trim(firstLine, "`")))
			if lang != "" {
				stats.Languages[lang]++
			}

			inner := strings.Split(strings.TrimSpace(block), "\n")
			if len(inner) >= 2 {
				stats.Lines += len(inner) - 2
			}
		}
	}
	return stats
}
