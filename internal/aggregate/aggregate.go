// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate combines a tree of converted Markdown documents into
// one file: an index of anchors up front, then each source under its own
// heading in a fixed, deterministic order.
package aggregate

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/chatmd/pkg/types"
)

// Options control an aggregation run.
type Options struct {
	// Sort selects the source ordering; empty means SortByName.
	Sort types.SortKey

	// Include, when set, keeps only sources whose slash-relative path
	// matches.
	Include *regexp.Regexp

	// Exclude, when set, drops sources whose slash-relative path matches.
	Exclude *regexp.Regexp

	// Now supplies the generated-at timestamp; nil uses time.Now.
	Now func() time.Time
}

// SkippedFile records one source that could not be read.
type SkippedFile struct {
	Path   string
	Reason string
}

// Result reports what went into the combined document.
type Result struct {
	Output  string
	Sources []string // relative paths, in emission order
	Skipped []SkippedFile
}

// mdExts are the extensions collected during discovery.
var mdExts = map[string]bool{".md": true, ".markdown": true}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git": true, ".idea": true, ".svn": true, ".hg": true,
}

// Aggregate combines all Markdown files under root into output. The
// output file itself and names starting with "~" are excluded. Files
// that cannot be read are skipped and enumerated in the result; an
// unreadable root or an empty source set is an error.
func Aggregate(root, output string, opts Options, w io.Writer) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolving output %s: %w", output, err)
	}

	files, err := discover(absRoot, absOutput, opts)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Markdown files to aggregate under %s", root)
	}

	if err := sortFiles(files, opts.Sort); err != nil {
		return nil, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	result := &Result{Output: output}
	slugs := newSlugger()

	var index strings.Builder
	var sections strings.Builder

	fmt.Fprintf(&index, "<!-- generated by chatmd at %s from %s -->\n\n",
		now().UTC().Format(time.RFC3339), absRoot)
	index.WriteString("# Aggregate Index\n\n")

	for _, f := range files {
		rel, err := filepath.Rel(absRoot, f.path)
		if err != nil {
			rel = f.path
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(f.path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: rel, Reason: err.Error()})
			fmt.Fprintf(w, "skipped: %s (%v)\n", rel, err)
			continue
		}

		slug := slugs.make(rel)
		fmt.Fprintf(&index, "- [%s](#%s)\n", displayName(rel, string(content)), slug)

		fmt.Fprintf(&sections, "<a id=%q></a>\n## %s\n\n", slug, rel)
		fmt.Fprintf(&sections, "<!-- SOURCE: %s -->\n", rel)
		sections.WriteString(strings.TrimSpace(string(content)))
		sections.WriteString("\n\n")

		result.Sources = append(result.Sources, rel)
		fmt.Fprintf(w, "merged: %s\n", rel)
	}

	if len(result.Sources) == 0 {
		return nil, fmt.Errorf("all %d Markdown files under %s were unreadable", len(files), root)
	}

	index.WriteString("\n---\n\n")
	doc := index.String() + strings.TrimRight(sections.String(), "\n") + "\n"

	if err := writeAtomic(output, []byte(doc)); err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "\naggregated: %d merged, %d skipped -> %s\n",
		len(result.Sources), len(result.Skipped), output)
	return result, nil
}

type mdFile struct {
	path    string
	modTime time.Time
}

func discover(absRoot, absOutput string, opts Options) ([]mdFile, error) {
	var files []mdFile
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			return nil // unreadable subtree: skip, do not fail the run
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "~") || !mdExts[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if path == absOutput {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr == nil {
			rel = filepath.ToSlash(rel)
			if opts.Include != nil && !opts.Include.MatchString(rel) {
				return nil
			}
			if opts.Exclude != nil && opts.Exclude.MatchString(rel) {
				return nil
			}
		}

		var mt time.Time
		if info, infoErr := d.Info(); infoErr == nil {
			mt = info.ModTime()
		}
		files = append(files, mdFile{path: path, modTime: mt})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", absRoot, err)
	}
	return files, nil
}

// sortFiles applies the deterministic ordering: lower-cased base name by
// default, modification time when asked. Ties fall back to the full path
// so the order is total.
func sortFiles(files []mdFile, key types.SortKey) error {
	switch key {
	case types.SortByModTime:
		sort.Slice(files, func(i, j int) bool {
			if !files[i].modTime.Equal(files[j].modTime) {
				return files[i].modTime.Before(files[j].modTime)
			}
			return files[i].path < files[j].path
		})
	case types.SortByName, "":
		sort.Slice(files, func(i, j int) bool {
			bi := strings.ToLower(filepath.Base(files[i].path))
			bj := strings.ToLower(filepath.Base(files[j].path))
			if bi != bj {
				return bi < bj
			}
			return files[i].path < files[j].path
		})
	default:
		return fmt.Errorf("unknown sort key %q", key)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".chatmd-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("setting permissions for %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
