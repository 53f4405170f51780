// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/zip"
	"fmt"
	"io"
)

// fileExtensionZip is the file extension for zip files.
const fileExtensionZip = "zip"

// magicBytesZip match a zip archive that starts at offset 0. Archives with a
// prefix, e.g. a self-extracting stub, are found by [hasZipDirectory].
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // local file header
	{0x50, 0x4B, 0x05, 0x06}, // end of central directory, empty archive
}

// maxZipLinkLength bounds the link target read from a zip symlink payload
const maxZipLinkLength = 4096

// openZip creates a walker over the zip archive in src. The central directory
// is located from the end of the input, so leading bytes are skipped.
func openZip(src io.Reader, hr *headerReader, cfg *Config, td *TelemetryData) (archiveWalker, func(), error) {
	cfg.Logger().Info("opening zip")

	sra, size, cleanup, err := readerAtWithSize(src, hr, cfg, td)
	if err != nil {
		return nil, cleanup, err
	}

	zr, err := zip.NewReader(sra, size)
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: cannot create zip reader: %w", ErrFormat, err)
	}
	return &zipWalker{files: zr.File}, cleanup, nil
}

// hasZipDirectory reports whether src allows random access and ends with a
// readable zip central directory. The directory is located from the end, so
// leading bytes, e.g. a self-extracting stub, are allowed.
func hasZipDirectory(src io.Reader) bool {
	sra, ok := src.(seekerReaderAt)
	if !ok {
		return false
	}
	size, err := sra.Seek(0, io.SeekEnd)
	if err != nil {
		return false
	}
	_, err = zip.NewReader(sra, size)
	return err == nil
}

// zipWalker walks the central directory of a zip archive
type zipWalker struct {
	files []*zip.File
}

func (z *zipWalker) Type() string {
	return fileExtensionZip
}

func (z *zipWalker) Next() (*foreignEntry, error) {
	if len(z.files) == 0 {
		return nil, io.EOF
	}
	zf := z.files[0]
	z.files = z.files[1:]

	mode := zf.Mode()
	e := &foreignEntry{
		Name:    zf.Name,
		Kind:    kindOf(mode),
		Mode:    mode,
		ModTime: zf.Modified,
		Size:    int64(zf.UncompressedSize64),
		open:    zf.Open,
	}

	// zip stores the link target as payload
	if e.Kind == kindSymlink {
		target, err := readZipLink(zf)
		if err != nil {
			return nil, fmt.Errorf("cannot read link target of %s: %w", zf.Name, err)
		}
		e.Linkname = target
	}
	return e, nil
}

func readZipLink(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxZipLinkLength))
	return string(data), err
}
