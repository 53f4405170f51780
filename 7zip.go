// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// fileExtension7zip is the file extension for 7zip files
const fileExtension7zip = "7z"

// magicBytes7zip are the magic bytes for 7zip files
var magicBytes7zip = [][]byte{
	{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C},
}

// open7zip creates a walker over the 7zip archive in src
func open7zip(src io.Reader, hr *headerReader, cfg *Config, td *TelemetryData) (archiveWalker, func(), error) {
	cfg.Logger().Info("opening 7zip")

	sra, size, cleanup, err := readerAtWithSize(src, hr, cfg, td)
	if err != nil {
		return nil, cleanup, err
	}

	zr, err := sevenzip.NewReader(sra, size)
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: cannot create 7zip reader: %w", ErrFormat, err)
	}
	return &sevenZipWalker{files: zr.File}, cleanup, nil
}

// sevenZipWalker walks the file list of a 7zip archive
type sevenZipWalker struct {
	files []*sevenzip.File
}

func (w *sevenZipWalker) Type() string {
	return fileExtension7zip
}

func (w *sevenZipWalker) Next() (*foreignEntry, error) {
	if len(w.files) == 0 {
		return nil, io.EOF
	}
	f := w.files[0]
	w.files = w.files[1:]

	info := f.FileInfo()
	kind := kindOf(info.Mode())
	if kind == kindSymlink {
		// link targets are not part of the 7zip header
		kind = kindUnsupported
	}
	return &foreignEntry{
		Name:    f.Name,
		Kind:    kind,
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
		Size:    info.Size(),
		open:    f.Open,
	}, nil
}
