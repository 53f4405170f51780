// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// fileExtensionGZip is the file extension for gzip compressed files
const fileExtensionGZip = "gz"

// magicBytesGZip are the magic bytes for gzip compressed files.
//
// https://socketloop.com/tutorials/golang-gunzip-file
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// decompressGZipStream returns an io.Reader that decompresses src with gzip algorithm
func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}

// compressGZipStream returns an io.WriteCloser that compresses to dst with gzip
// algorithm. Blocks are compressed in parallel.
func compressGZipStream(dst io.Writer) (io.WriteCloser, error) {
	return pgzip.NewWriterLevel(dst, pgzip.DefaultCompression)
}
