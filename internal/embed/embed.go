// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed resolves file references from chat turns and turns them
// into Markdown fragments: small images become data URIs, text and code
// files become fenced blocks, everything else is copied into an assets
// directory and linked. Failures degrade to a notice string, never an
// error; a missing attachment must not sink a conversion.
package embed

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/chatmd/pkg/types"
)

const (
	defaultImageMax  = 2_000_000
	defaultTextMax   = 200_000
	defaultAssetsDir = "assets"
)

var imageExts = map[string]string{
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".gif": "image/gif", ".bmp": "image/bmp", ".webp": "image/webp",
	".svg": "image/svg+xml",
}

var textExts = map[string]bool{
	".txt": true, ".log": true, ".json": true, ".xml": true,
	".yml": true, ".yaml": true, ".md": true, ".csv": true,
}

var codeLangs = map[string]string{
	".cs": "csharp", ".ts": "typescript", ".js": "javascript",
	".tsx": "tsx", ".jsx": "jsx", ".py": "python", ".java": "java",
	".go": "go", ".rs": "rust", ".cpp": "cpp", ".c": "c", ".h": "c",
	".sql": "sql", ".ps1": "powershell", ".sh": "bash",
}

// Embedder resolves references against a search root and writes copied
// assets next to the Markdown being produced.
type Embedder struct {
	root      string
	imageMax  int64
	textMax   int64
	assetsDir string
}

// New builds an Embedder from config, filling zero values with defaults.
func New(cfg types.EmbedConfig) *Embedder {
	e := &Embedder{
		root:      cfg.FileRoot,
		imageMax:  cfg.ImageMaxBytes,
		textMax:   cfg.TextMaxBytes,
		assetsDir: cfg.AssetsDirName,
	}
	if e.root == "" {
		e.root = "."
	}
	if e.imageMax <= 0 {
		e.imageMax = defaultImageMax
	}
	if e.textMax <= 0 {
		e.textMax = defaultTextMax
	}
	if e.assetsDir == "" {
		e.assetsDir = defaultAssetsDir
	}
	return e
}

// For returns an AttachmentFunc bound to the directory of the Markdown
// file being written; copied assets land under that directory.
func (e *Embedder) For(outDir string) func(types.FileRef) string {
	return func(ref types.FileRef) string {
		return e.embed(ref, outDir)
	}
}

func (e *Embedder) embed(ref types.FileRef, outDir string) string {
	path, ok := e.resolve(ref.Path)
	if !ok {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext] != "":
		return e.embedImage(ref.Display, path, ext)
	case textExts[ext] || codeLangs[ext] != "":
		return e.embedText(ref.Display, path, ext)
	default:
		return e.copyAsset(ref.Display, path, outDir)
	}
}

// resolve finds the referenced file: absolute path, path relative to the
// search root, then a walk of the root matching the base name exactly or
// with whitespace and case ignored.
func (e *Embedder) resolve(raw string) (string, bool) {
	norm := normalizePath(raw)
	if norm == "" {
		return "", false
	}

	candidate := norm
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(e.root, candidate)
	}
	if _, err := os.Stat(candidate); err == nil {
		return candidate, true
	}

	base := filepath.Base(norm)
	target := simplifyName(base)
	var exact, fuzzy string
	filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == base {
			exact = path
			return filepath.SkipAll
		}
		if fuzzy == "" && simplifyName(name) == target {
			fuzzy = path
		}
		return nil
	})
	if exact != "" {
		return exact, true
	}
	if fuzzy != "" {
		return fuzzy, true
	}
	return "", false
}

func (e *Embedder) embedImage(display, path, ext string) string {
	data, ok := readCapped(path, e.imageMax)
	if !ok {
		return fmt.Sprintf("(image too large to embed: %s)", display)
	}
	b64 := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("![%s](data:%s;base64,%s)", display, imageExts[ext], b64)
}

func (e *Embedder) embedText(display, path, ext string) string {
	data, ok := readCapped(path, e.textMax)
	if !ok {
		return fmt.Sprintf("(text file too large to inline: %s)", display)
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("(cannot decode text: %s)", display)
	}
	return fmt.Sprintf("```%s\n%s\n```", codeLangs[ext], strings.TrimRight(string(data), " \t\n\r"))
}

// copyAsset copies the file into the assets directory under outDir and
// returns a relative link.
func (e *Embedder) copyAsset(display, path, outDir string) string {
	assets := filepath.Join(outDir, e.assetsDir)
	if err := os.MkdirAll(assets, 0o755); err != nil {
		return fmt.Sprintf("(could not copy %s: %v)", display, err)
	}
	dst := filepath.Join(assets, filepath.Base(path))
	if _, err := os.Stat(dst); err != nil {
		if err := copyFile(path, dst); err != nil {
			return fmt.Sprintf("(could not copy %s: %v)", display, err)
		}
	}
	rel := filepath.ToSlash(filepath.Join(e.assetsDir, filepath.Base(path)))
	return fmt.Sprintf("[attachment %s](%s)", display, rel)
}

// readCapped reads a file only if it fits under max bytes.
func readCapped(path string, max int64) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > max {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// normalizePath cleans a referenced path: quotes stripped, Windows /d:/
// drive forms fixed, separators unified. file:// forms are decoded at
// parse time, before they reach the embedder.
func normalizePath(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, `\`, "/")
	if len(s) >= 3 && s[0] == '/' && s[2] == ':' && isASCIILetter(s[1]) {
		s = s[1:]
	}
	return filepath.Clean(filepath.FromSlash(s))
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// simplifyName lower-cases and strips all whitespace, for fuzzy matching
// of display names against on-disk names.
func simplifyName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if !unicode.IsSpace(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
