// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"fmt"
	"io"
	"sort"
)

const (
	// compressionAuto detects the compression from the magic bytes of the input
	compressionAuto = "*"

	// compressionNone reads or writes an uncompressed tar archive
	compressionNone = ""
)

// decompressionFunc wraps src into a decompressing reader
type decompressionFunc func(src io.Reader) (io.Reader, error)

// compressionFunc wraps dst into a compressing writer. Close must flush
// all pending data but must not close dst.
type compressionFunc func(dst io.Writer) (io.WriteCloser, error)

// compression describes a stream compression that can wrap a tar archive
type compression struct {
	// Name is the suffix used in open modes, e.g. "gz" in "w:gz"
	Name string

	// MagicBytes are used to detect the compression, nil if it cannot be detected
	MagicBytes [][]byte

	// Offset is the position of MagicBytes in the input
	Offset int

	// Decompress wraps a reader
	Decompress decompressionFunc

	// Compress wraps a writer
	Compress compressionFunc
}

// availableCompressions holds all supported compressions
var availableCompressions = []compression{
	{
		Name:       fileExtensionGZip,
		MagicBytes: magicBytesGZip,
		Decompress: decompressGZipStream,
		Compress:   compressGZipStream,
	},
	{
		Name:       fileExtensionBzip2,
		MagicBytes: magicBytesBzip2,
		Decompress: decompressBz2Stream,
		Compress:   compressBz2Stream,
	},
	{
		Name:       fileExtensionXz,
		MagicBytes: magicBytesXz,
		Decompress: decompressXzStream,
		Compress:   compressXzStream,
	},
	{
		Name:       fileExtensionZstd,
		MagicBytes: magicBytesZstd,
		Decompress: decompressZstdStream,
		Compress:   compressZstdStream,
	},
	{
		Name:       fileExtensionLZ4,
		MagicBytes: magicBytesLZ4,
		Decompress: decompressLZ4Stream,
		Compress:   compressLZ4Stream,
	},
	{
		Name:       fileExtensionSnappy,
		MagicBytes: magicBytesSnappy,
		Decompress: decompressSnappyStream,
		Compress:   compressSnappyStream,
	},
	{
		Name:       fileExtensionZlib,
		MagicBytes: magicBytesZlib,
		Decompress: decompressZlibStream,
		Compress:   compressZlibStream,
	},
	{
		Name:       fileExtensionBrotli,
		Decompress: decompressBrotliStream,
		Compress:   compressBrotliStream,
	},
}

// Compressions returns the names of all supported compressions, as they
// are used in open modes.
func Compressions() []string {
	names := make([]string, 0, len(availableCompressions))
	for _, c := range availableCompressions {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// lookupCompression returns the compression with name, or nil
func lookupCompression(name string) *compression {
	for i := range availableCompressions {
		if availableCompressions[i].Name == name {
			return &availableCompressions[i]
		}
	}
	return nil
}

// detectCompression returns the compression matching header, or nil
func detectCompression(header []byte) *compression {
	for i, c := range availableCompressions {
		if c.MagicBytes == nil {
			continue
		}
		if matchesMagicBytes(header, c.Offset, c.MagicBytes) {
			return &availableCompressions[i]
		}
	}
	return nil
}

// resolveCompression determines the compression for name. The auto mode
// inspects header, and returns nil for uncompressed input.
func resolveCompression(name string, header []byte) (*compression, error) {
	switch name {
	case compressionNone:
		return nil, nil
	case compressionAuto:
		// short magic bytes, e.g. of zlib, must not shadow a plain tar header
		if isTar(header) {
			return nil, nil
		}
		return detectCompression(header), nil
	}
	if c := lookupCompression(name); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown compression %q", ErrInvalidMode, name)
}
