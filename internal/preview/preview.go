// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package preview renders a Markdown document for the terminal.
package preview

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const (
	defaultWidth = 100
	maxWidth     = 120
)

// Render reads the Markdown file at path and writes a styled rendering
// to w. When w is not a terminal, or styling fails, the raw text is
// written instead so the command stays usable in pipes.
func Render(path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	f, isFile := w.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) {
		_, err := w.Write(data)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth(int(f.Fd()))),
	)
	if err != nil {
		_, werr := w.Write(data)
		return werr
	}

	out, err := renderer.Render(string(data))
	if err != nil {
		_, werr := w.Write(data)
		return werr
	}
	_, err = io.WriteString(w, out)
	return err
}

// renderWidth picks a word-wrap width from the terminal, leaving a
// small margin and capping long lines for readability.
func renderWidth(fd int) int {
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return defaultWidth
	}
	width -= 4
	if width < 20 {
		return 20
	}
	if width > maxWidth {
		return maxWidth
	}
	return width
}
