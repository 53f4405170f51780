// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-tarball"
)

// testRunContext returns a run context with the default limits
func testRunContext(t *testing.T, stdout io.Writer) *runContext {
	t.Helper()
	rc := newRunContext(context.Background(), Globals{
		MaxExtractionSize: 1 << 30,
		MaxFiles:          100000,
		MaxInputSize:      1 << 30,
		ScratchDir:        t.TempDir(),
	}, io.Discard)
	rc.stdout = stdout
	return rc
}

// createZip writes a zip archive with the files to dir
func createZip(t *testing.T, dir string, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("cannot create zip: %s", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for n, content := range files {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatalf("cannot create zip entry: %s", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("cannot write zip entry: %s", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("cannot close zip: %s", err)
	}
	return p
}

func TestPackListCat(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	if err := os.WriteFile(input, []byte("hello"), 0600); err != nil {
		t.Fatalf("cannot write input: %s", err)
	}
	archive := filepath.Join(dir, "packed.tar.gz")
	mtime := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	pack := &packCmd{Compression: "gz", Mtime: mtime, Archive: archive, Files: []string{input}}
	if err := pack.Run(testRunContext(t, io.Discard)); err != nil {
		t.Fatalf("pack failed: %s", err)
	}

	// packing again without overwrite fails
	if err := pack.Run(testRunContext(t, io.Discard)); err == nil {
		t.Errorf("pack on existing archive succeeded")
	}

	var out bytes.Buffer
	list := &listCmd{Archive: archive, Long: true}
	if err := list.Run(testRunContext(t, &out)); err != nil {
		t.Fatalf("list failed: %s", err)
	}
	want := "-rw------- " + "         5 2022-01-01T00:00:00Z " + memberName(input) + "\n"
	if out.String() != want {
		t.Errorf("list = %q, want %q", out.String(), want)
	}

	out.Reset()
	cat := &catCmd{Archive: archive, Member: memberName(input)}
	if err := cat.Run(testRunContext(t, &out)); err != nil {
		t.Fatalf("cat failed: %s", err)
	}
	if out.String() != "hello" {
		t.Errorf("cat = %q, want %q", out.String(), "hello")
	}

	cat.Member = "missing"
	if err := cat.Run(testRunContext(t, io.Discard)); err == nil {
		t.Errorf("cat of missing member succeeded")
	}
}

func TestListStdin(t *testing.T) {
	var archive bytes.Buffer
	w, err := tarball.NewWriter(&archive, "w:zst")
	if err != nil {
		t.Fatalf("NewWriter() failed: %s", err)
	}
	if err := w.Write("a", tarball.String("a")); err != nil {
		t.Fatalf("Write() failed: %s", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %s", err)
	}

	var out bytes.Buffer
	rc := testRunContext(t, &out)
	rc.stdin = &archive
	if err := (&listCmd{Archive: "-"}).Run(rc); err != nil {
		t.Fatalf("list failed: %s", err)
	}
	if out.String() != "a\n" {
		t.Errorf("list = %q, want %q", out.String(), "a\n")
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	inputs := []string{
		createZip(t, dir, "one.zip", map[string]string{"a.txt": "a", "sub/b.txt": "b"}),
		createZip(t, dir, "two.zip", map[string]string{"c.txt": "c"}),
	}

	convert := &convertCmd{Compression: "gz", Jobs: 2, OutputDir: outDir, Inputs: inputs}
	if err := convert.Run(testRunContext(t, io.Discard)); err != nil {
		t.Fatalf("convert failed: %s", err)
	}

	tests := map[string][]string{
		"one.tar.gz": {"a.txt", "sub/b.txt"},
		"two.tar.gz": {"c.txt"},
	}
	for name, members := range tests {
		tb, err := tarball.Open(context.Background(), filepath.Join(outDir, name), "r:gz")
		if err != nil {
			t.Fatalf("Open(%s) failed: %s", name, err)
		}
		for _, m := range members {
			data, ok, err := tb.Read(m)
			if err != nil || !ok {
				t.Errorf("Read(%s) in %s = %v, %v", m, name, ok, err)
				continue
			}
			if want := strings.TrimSuffix(filepath.Base(m), ".txt"); string(data) != want {
				t.Errorf("Read(%s) = %q, want %q", m, data, want)
			}
		}
		tb.Close()
	}

	// converting again fails without overwrite and succeeds with it
	if err := convert.Run(testRunContext(t, io.Discard)); err == nil {
		t.Errorf("convert into existing archives succeeded")
	}
	convert.Overwrite = true
	if err := convert.Run(testRunContext(t, io.Discard)); err != nil {
		t.Errorf("convert with overwrite failed: %s", err)
	}
}

func TestConvertInvalidInput(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	input := filepath.Join(dir, "junk.zip")
	if err := os.WriteFile(input, []byte("no archive"), 0600); err != nil {
		t.Fatalf("cannot write input: %s", err)
	}

	convert := &convertCmd{OutputDir: outDir, Inputs: []string{input}}
	if err := convert.Run(testRunContext(t, io.Discard)); err == nil {
		t.Fatalf("convert of junk succeeded")
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("convert left %d files behind", len(entries))
	}
}

func TestConvertDuplicateOutputs(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	for _, sub := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0700); err != nil {
			t.Fatalf("cannot create directory: %s", err)
		}
	}
	inputs := []string{
		createZip(t, filepath.Join(dir, "a"), "x.zip", map[string]string{"a.txt": "a"}),
		createZip(t, filepath.Join(dir, "b"), "x.zip", map[string]string{"b.txt": "b"}),
	}

	convert := &convertCmd{Jobs: 2, Overwrite: true, OutputDir: outDir, Inputs: inputs}
	err := convert.Run(testRunContext(t, io.Discard))
	if err == nil || !strings.Contains(err.Error(), "x.tar") {
		t.Errorf("convert error = %v, want duplicate output x.tar", err)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("convert wrote %d files despite duplicate outputs", len(entries))
	}
}

func TestConvertedName(t *testing.T) {
	tests := []struct {
		input       string
		compression string
		want        string
	}{
		{input: "/tmp/archive.zip", want: "archive.tar"},
		{input: "archive.rar", compression: "xz", want: "archive.tar.xz"},
		{input: "noext", compression: "gz", want: "noext.tar.gz"},
	}
	for _, tt := range tests {
		if got := convertedName(tt.input, tt.compression); got != tt.want {
			t.Errorf("convertedName(%q, %q) = %q, want %q", tt.input, tt.compression, got, tt.want)
		}
	}
}

func TestMemberName(t *testing.T) {
	tests := map[string]string{
		"file.txt":         "file.txt",
		"/abs/file.txt":    "abs/file.txt",
		"../up/file.txt":   "up/file.txt",
		"./dir/../f.txt":   "f.txt",
		"dir//nested/file": "dir/nested/file",
	}
	for input, want := range tests {
		if got := memberName(filepath.FromSlash(input)); got != want {
			t.Errorf("memberName(%q) = %q, want %q", input, got, want)
		}
	}
}
