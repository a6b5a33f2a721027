// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert orchestrates parsing and rendering for export files:
// one file in, one Markdown file out, plus a recursive batch mode over
// directory trees.
package convert

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/chatmd/internal/render"
	"github.com/pdiddy/chatmd/internal/session"
	"github.com/pdiddy/chatmd/pkg/types"
)

// Options control a conversion run.
type Options struct {
	// OutputDir mirrors results under this directory, preserving the
	// source tree's relative layout. Empty writes next to each source.
	OutputDir string

	// Workers bounds batch parallelism; below 2 means sequential.
	Workers int

	// Renderer produces the Markdown. Nil uses render.New().
	Renderer *render.Renderer

	// Attachments, when set, is bound to each output directory and wired
	// into the renderer for that file.
	Attachments func(outDir string) func(types.FileRef) string

	// ModifiedSince and ModifiedUntil, when non-zero, restrict batch
	// discovery to files whose mtime falls inside the window.
	ModifiedSince time.Time
	ModifiedUntil time.Time
}

// BatchResult summarizes a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// FileResult records the outcome for one source file.
type FileResult struct {
	Source  string
	Output  string
	Status  types.ConversionStatus
	Err     error
	Summary *types.SessionSummary // nil unless converted
}

// ConvertFile converts a single export file, overwriting dst. The write
// goes through a temp file in the destination directory and a rename, so
// a crash never leaves a truncated document behind. Malformed input
// produces no output file.
func ConvertFile(src, dst string, opts *Options) (*types.SessionSummary, error) {
	if opts == nil {
		opts = &Options{}
	}
	s, err := session.ParseFile(src)
	if err != nil {
		return nil, err
	}

	r := opts.Renderer
	if r == nil {
		r = render.New()
	}
	if opts.Attachments != nil {
		bound := *r
		bound.Attachments = opts.Attachments(filepath.Dir(dst))
		r = &bound
	}
	doc := r.Document(s)

	if err := writeAtomic(dst, []byte(doc)); err != nil {
		return nil, err
	}

	stats := render.CollectCodeStats(s.Turns)
	return &types.SessionSummary{
		ID:             s.ID,
		SourcePath:     src,
		MarkdownPath:   dst,
		Requester:      s.Requester,
		Responder:      s.Responder,
		Turns:          len(s.Turns),
		UserTurns:      s.CountRole(types.RoleUser),
		AssistantTurns: s.CountRole(types.RoleAssistant),
		CodeBlocks:     stats.Blocks,
		CodeLines:      stats.Lines,
		ConvertedAt:    time.Now().UTC(),
	}, nil
}

// DefaultOutput returns the Markdown path for a source file: same
// directory, same stem, .md extension.
func DefaultOutput(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".md"
}

// ConvertTree converts every .json file under root. Discovery order is
// sorted, and per-file status lines are written to w in that order no
// matter how many workers run, so batch output is deterministic. Files
// that are not chat exports are skipped; per-file failures do not stop
// the batch.
func ConvertTree(root string, opts *Options, w io.Writer) (BatchResult, []FileResult, error) {
	if opts == nil {
		opts = &Options{}
	}

	sources, err := discover(root, opts)
	if err != nil {
		return BatchResult{}, nil, err
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, "no export files found")
		return BatchResult{}, nil, nil
	}

	results := make([]FileResult, len(sources))
	run := func(i int) {
		src := sources[i]
		dst, err := outputPath(root, src, opts.OutputDir)
		if err == nil {
			var summary *types.SessionSummary
			summary, err = ConvertFile(src, dst, opts)
			results[i] = FileResult{Source: src, Output: dst, Summary: summary}
		}
		if err != nil {
			results[i] = FileResult{Source: src, Err: err}
		}
		results[i].Status = classify(err)
	}

	workers := opts.Workers
	if workers < 2 || len(sources) == 1 {
		for i := range sources {
			run(i)
		}
	} else {
		if workers > len(sources) {
			workers = len(sources)
		}
		jobs := make(chan int)
		done := make(chan struct{})
		for w := 0; w < workers; w++ {
			go func() {
				for i := range jobs {
					run(i)
				}
				done <- struct{}{}
			}()
		}
		for i := range sources {
			jobs <- i
		}
		close(jobs)
		for w := 0; w < workers; w++ {
			<-done
		}
	}

	var batch BatchResult
	for _, res := range results {
		name := filepath.Base(res.Source)
		switch res.Status {
		case types.ConversionDone:
			batch.Converted++
			fmt.Fprintf(w, "converted: %s -> %s\n", name, filepath.Base(res.Output))
		case types.ConversionSkipped:
			batch.Skipped++
			fmt.Fprintf(w, "skipped: %s (not a chat export)\n", name)
		case types.ConversionFailed:
			batch.Failed++
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, res.Err)
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		batch.Converted, batch.Skipped, batch.Failed, batch.Total())

	return batch, results, nil
}

// classify maps a conversion error to a status: malformed input means
// the file was not for us (skip), anything else is a failure.
func classify(err error) types.ConversionStatus {
	if err == nil {
		return types.ConversionDone
	}
	var merr *session.MalformedError
	if errors.As(err, &merr) {
		return types.ConversionSkipped
	}
	return types.ConversionFailed
}

// skipDirs are never descended into during discovery.
var skipDirs = map[string]bool{
	".git": true, ".idea": true, ".svn": true, ".hg": true,
}

func discover(root string, opts *Options) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			return nil
		}
		if !opts.ModifiedSince.IsZero() || !opts.ModifiedUntil.IsZero() {
			info, err := d.Info()
			if err != nil {
				return nil // racing deletion, drop it
			}
			mt := info.ModTime()
			if !opts.ModifiedSince.IsZero() && mt.Before(opts.ModifiedSince) {
				return nil
			}
			if !opts.ModifiedUntil.IsZero() && mt.After(opts.ModifiedUntil) {
				return nil
			}
		}
		sources = append(sources, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(sources)
	return sources, nil
}

// outputPath places the Markdown next to the source, or mirrors the
// relative tree under outputDir when set.
func outputPath(root, src, outputDir string) (string, error) {
	if outputDir == "" {
		return DefaultOutput(src), nil
	}
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return "", fmt.Errorf("relativizing %s: %w", src, err)
	}
	return filepath.Join(outputDir, DefaultOutput(rel)), nil
}

// writeAtomic writes data to path via a temp file and rename.
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
