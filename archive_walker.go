// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"
	"io/fs"
	"time"
)

// archiveWalker yields the entries of a foreign archive in archive order.
// Next returns io.EOF after the last entry.
type archiveWalker interface {
	Type() string
	Next() (*foreignEntry, error)
}

// entryKind tells extractToScratch how to materialize a foreign entry
type entryKind int

const (
	kindUnsupported entryKind = iota
	kindRegular
	kindDir
	kindSymlink
)

// kindOf derives the entry kind from the type bits of mode
func kindOf(mode fs.FileMode) entryKind {
	switch mode.Type() {
	case 0:
		return kindRegular
	case fs.ModeDir:
		return kindDir
	case fs.ModeSymlink:
		return kindSymlink
	default:
		return kindUnsupported
	}
}

// foreignEntry is one entry of a foreign archive. Walkers fill it from the
// headers of their format; the payload is only opened for regular files.
type foreignEntry struct {
	Name     string
	Kind     entryKind
	Mode     fs.FileMode
	ModTime  time.Time
	Size     int64
	Linkname string

	open func() (io.ReadCloser, error)
}

// Open returns the payload of a regular entry
func (e *foreignEntry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return io.NopCloser(eofReader{}), nil
	}
	return e.open()
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
