// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/chatmd/internal/render"
	"github.com/pdiddy/chatmd/internal/session"
	"github.com/pdiddy/chatmd/pkg/types"
)

const validExport = `{"turns":[
	{"role":"user","content":"Hi"},
	{"role":"assistant","content":"Hello back"}
]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func utcOptions() *Options {
	return &Options{Renderer: &render.Renderer{Loc: time.UTC}}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "chat.json", validExport)
	dst := filepath.Join(dir, "chat.md")

	summary, err := ConvertFile(src, dst, utcOptions())
	if err != nil {
		t.Fatalf("ConvertFile: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	doc := string(data)

	userIdx := strings.Index(doc, "### 1. User")
	asstIdx := strings.Index(doc, "### 2. Assistant")
	if userIdx < 0 || asstIdx < 0 || userIdx > asstIdx {
		t.Fatalf("expected ordered User then Assistant blocks in:\n%s", doc)
	}
	if !strings.Contains(doc[userIdx:asstIdx], "Hi") {
		t.Error("User block should contain \"Hi\"")
	}
	if !strings.Contains(doc[asstIdx:], "Hello back") {
		t.Error("Assistant block should contain \"Hello back\"")
	}

	if summary.Turns != 2 || summary.UserTurns != 1 || summary.AssistantTurns != 1 {
		t.Errorf("summary counts = %+v", summary)
	}
	if summary.ID != "chat" {
		t.Errorf("summary ID = %q, want \"chat\"", summary.ID)
	}
}

func TestConvertFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "chat.json", validExport)
	dst := filepath.Join(dir, "chat.md")
	opts := utcOptions()

	if _, err := ConvertFile(src, dst, opts); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ConvertFile(src, dst, opts); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("converting the same input twice must produce byte-identical output")
	}
}

func TestConvertFileOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "chat.json", validExport)
	dst := writeFile(t, dir, "chat.md", "stale content")

	if _, err := ConvertFile(src, dst, utcOptions()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dst)
	if strings.Contains(string(data), "stale content") {
		t.Error("destination should be overwritten, not appended")
	}
}

func TestConvertFileMalformedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bad.json", `{"no": "turns"}`)
	dst := filepath.Join(dir, "bad.md")

	_, err := ConvertFile(src, dst, utcOptions())
	var merr *session.MalformedError
	if !errors.As(err, &merr) {
		t.Fatalf("want MalformedError, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("malformed input must produce no output file")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".chatmd-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestConvertFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := ConvertFile(filepath.Join(dir, "nope.json"), filepath.Join(dir, "out.md"), utcOptions())
	if err == nil {
		t.Fatal("expected an error for a missing source")
	}
	var merr *session.MalformedError
	if errors.As(err, &merr) {
		t.Error("a missing file is an I/O failure, not malformed input")
	}
}

func TestConvertTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.json", validExport)
	writeFile(t, root, filepath.Join("sub", "b.json"), validExport)
	writeFile(t, root, "notes.json", `{"just":"settings"}`)
	writeFile(t, root, "broken.json", `{"turns":[{"role":"user"}]}`)
	writeFile(t, root, "readme.txt", "ignored")

	var log bytes.Buffer
	batch, results, err := ConvertTree(root, utcOptions(), &log)
	if err != nil {
		t.Fatalf("ConvertTree: %v", err)
	}

	if batch.Converted != 2 || batch.Skipped != 2 || batch.Failed != 0 {
		t.Errorf("batch = %+v", batch)
	}
	if batch.Total() != 4 {
		t.Errorf("total = %d, want 4", batch.Total())
	}
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}

	if _, err := os.Stat(filepath.Join(root, "a.md")); err != nil {
		t.Error("a.md should exist next to a.json")
	}
	if _, err := os.Stat(filepath.Join(root, "sub", "b.md")); err != nil {
		t.Error("sub/b.md should exist next to sub/b.json")
	}
	if _, err := os.Stat(filepath.Join(root, "notes.md")); !os.IsNotExist(err) {
		t.Error("non-export JSON must not produce output")
	}

	out := log.String()
	if !strings.Contains(out, "skipped: notes.json") {
		t.Errorf("skip should be reported, got:\n%s", out)
	}
	if !strings.Contains(out, "Batch summary: 2 converted, 2 skipped, 0 failed") {
		t.Errorf("summary line wrong:\n%s", out)
	}
}

func TestConvertTreeDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.json", "a.json", "b.json"} {
		writeFile(t, root, name, validExport)
	}

	for _, workers := range []int{1, 4} {
		var log bytes.Buffer
		opts := utcOptions()
		opts.Workers = workers
		_, results, err := ConvertTree(root, opts, &log)
		if err != nil {
			t.Fatal(err)
		}

		var order []string
		for _, r := range results {
			order = append(order, filepath.Base(r.Source))
		}
		want := []string{"a.json", "b.json", "c.json"}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("workers=%d: order = %v, want %v", workers, order, want)
			}
		}

		aIdx := strings.Index(log.String(), "a.json")
		cIdx := strings.Index(log.String(), "c.json")
		if aIdx < 0 || cIdx < 0 || aIdx > cIdx {
			t.Errorf("workers=%d: status lines out of order:\n%s", workers, log.String())
		}
	}
}

func TestConvertTreeOutputDirMirrorsTree(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	writeFile(t, root, filepath.Join("nested", "deep", "x.json"), validExport)

	opts := utcOptions()
	opts.OutputDir = outDir
	var log bytes.Buffer
	if _, _, err := ConvertTree(root, opts, &log); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(outDir, "nested", "deep", "x.md")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected mirrored output at %s", want)
	}
}

func TestConvertTreeModTimeWindow(t *testing.T) {
	root := t.TempDir()
	oldFile := writeFile(t, root, "old.json", validExport)
	writeFile(t, root, "new.json", validExport)

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}

	opts := utcOptions()
	opts.ModifiedSince = time.Now().Add(-time.Hour)
	var log bytes.Buffer
	batch, _, err := ConvertTree(root, opts, &log)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Total() != 1 {
		t.Errorf("window should select 1 file, got %d", batch.Total())
	}
	if _, err := os.Stat(filepath.Join(root, "old.md")); !os.IsNotExist(err) {
		t.Error("file outside the window must not be converted")
	}
}

func TestConvertTreeMissingRoot(t *testing.T) {
	var log bytes.Buffer
	_, _, err := ConvertTree(filepath.Join(t.TempDir(), "nope"), utcOptions(), &log)
	if err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != types.ConversionDone {
		t.Error("nil error should classify as done")
	}
	if classify(&session.MalformedError{Reason: "x"}) != types.ConversionSkipped {
		t.Error("malformed input should classify as skipped")
	}
	if classify(errors.New("disk on fire")) != types.ConversionFailed {
		t.Error("other errors should classify as failed")
	}
}
