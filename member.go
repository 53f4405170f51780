// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/tar"
	"io/fs"
	"time"
)

// Member describes an entry of a tarball.
type Member struct {
	// Name is the posix-style path of the member, without trailing slash
	Name string

	// Typeflag is the tar type of the member, e.g. [tar.TypeReg]
	Typeflag byte

	// Linkname is the target of symlinks and hard links
	Linkname string

	// Size is the payload size
	Size int64

	// Mode holds permission and type bits
	Mode fs.FileMode

	// ModTime is the modification time
	ModTime time.Time
}

// IsDir returns true if the member is a directory.
func (m Member) IsDir() bool {
	return m.Typeflag == tar.TypeDir
}

// IsRegular returns true if the member is a regular file.
func (m Member) IsRegular() bool {
	return m.Typeflag == tar.TypeReg
}

// IsSymlink returns true if the member is a symbolic link.
func (m Member) IsSymlink() bool {
	return m.Typeflag == tar.TypeSymlink
}

// IsHardlink returns true if the member is a hard link.
func (m Member) IsHardlink() bool {
	return m.Typeflag == tar.TypeLink
}

// member is a Member with its payload
type member struct {
	Member
	data []byte
}

// EntryOption is a function pointer to adjust a single written member
type EntryOption func(*entryConfig)

// DefaultMode is the file mode of written members
const DefaultMode fs.FileMode = 0o644

// entryConfig holds the settings of a written member
type entryConfig struct {
	mode    fs.FileMode
	modTime time.Time
}

// WithMode options pattern function to set the file mode of a written member.
func WithMode(mode fs.FileMode) EntryOption {
	return func(e *entryConfig) {
		e.mode = mode
	}
}

// WithEntryModTime options pattern function to override the default
// timestamp of a written member.
func WithEntryModTime(t time.Time) EntryOption {
	return func(e *entryConfig) {
		if !t.IsZero() {
			e.modTime = t
		}
	}
}
