// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// archiveContent describes an entry of a generated test archive
type archiveContent struct {
	Name     string
	Content  []byte
	Linkname string
	Mode     fs.FileMode
	ModTime  time.Time
	Filetype byte
}

// testModTime is a fixed timestamp for generated entries
var testModTime = time.Unix(1700000000, 0)

// packTar creates a tar archive with archive/tar from contents
func packTar(t *testing.T, contents []archiveContent) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, c := range contents {
		hdr := &tar.Header{
			Typeflag: c.Filetype,
			Name:     c.Name,
			Linkname: c.Linkname,
			Mode:     int64(c.Mode.Perm()),
			ModTime:  testModTime,
			Size:     int64(len(c.Content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("cannot write tar header: %s", err)
		}
		if _, err := tw.Write(c.Content); err != nil {
			t.Fatalf("cannot write tar content: %s", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("cannot close tar writer: %s", err)
	}
	return buf.Bytes()
}

// packZip creates a zip archive with archive/zip from contents. Mode carries
// the type bits, e.g. fs.ModeDir or fs.ModeSymlink; symlink targets are the
// content of the entry.
func packZip(t *testing.T, contents []archiveContent) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, c := range contents {
		modTime := c.ModTime
		if modTime.IsZero() {
			modTime = testModTime
		}
		hdr := &zip.FileHeader{Name: c.Name, Method: zip.Deflate, Modified: modTime}
		hdr.SetMode(c.Mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("cannot create zip entry: %s", err)
		}
		if _, err := w.Write(c.Content); err != nil {
			t.Fatalf("cannot write zip entry: %s", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("cannot close zip writer: %s", err)
	}
	return buf.Bytes()
}

// writeFile writes data to name in dir and returns the path
func writeFile(t *testing.T, dir string, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0640); err != nil {
		t.Fatalf("cannot write test file: %s", err)
	}
	return p
}

// assertEmptyDir fails if dir contains any entry
func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cannot read directory: %s", err)
	}
	for _, e := range entries {
		t.Errorf("unexpected scratch leftover: %s", e.Name())
	}
}

// testImage creates an image with a gradient and a translucent column
func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			alpha := uint8(255)
			if x == 6 {
				alpha = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 36), G: uint8(y * 50), B: uint8(x * y), A: alpha})
		}
	}
	return img
}

// pixelEqual returns true if a and b have the same bounds and pixels
func pixelEqual(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if color.NRGBAModel.Convert(a.At(x, y)) != color.NRGBAModel.Convert(b.At(x, y)) {
				return false
			}
		}
	}
	return true
}
