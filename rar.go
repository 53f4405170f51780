// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"fmt"
	"io"

	"github.com/nwaples/rardecode"
)

// fileExtensionRar is the file extension for Rar files.
const fileExtensionRar = "rar"

// magicBytesRar are the magic bytes for Rar files.
var magicBytesRar = [][]byte{
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00},       // Rar 1.5
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}, // Rar 5.0
}

// openRar streams the archive from hr; rar needs no random access.
func openRar(_ io.Reader, hr *headerReader, cfg *Config, _ *TelemetryData) (archiveWalker, func(), error) {
	cfg.Logger().Info("opening rar")

	rr, err := rardecode.NewReader(hr, "")
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: cannot create rar decoder: %w", ErrFormat, err)
	}
	return &rarWalker{rr}, func() {}, nil
}

// rarWalker walks the file headers of a rar stream. The payload of an entry
// is only readable until Next is called again.
type rarWalker struct {
	rr *rardecode.Reader
}

func (w *rarWalker) Type() string {
	return fileExtensionRar
}

func (w *rarWalker) Next() (*foreignEntry, error) {
	fh, err := w.rr.Next()
	if err != nil {
		return nil, err
	}

	mode := fh.Mode()
	kind := kindOf(mode)
	switch {
	case fh.IsDir:
		kind = kindDir
	case kind == kindSymlink:
		// rardecode does not expose link targets
		kind = kindUnsupported
	}

	payload := io.NopCloser(w.rr)
	return &foreignEntry{
		Name:    fh.Name,
		Kind:    kind,
		Mode:    mode,
		ModTime: fh.ModificationTime,
		Size:    fh.UnPackedSize,
		open:    func() (io.ReadCloser, error) { return payload, nil },
	}, nil
}
