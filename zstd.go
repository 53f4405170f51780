// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// fileExtensionZstd is the file extension for zstandard files.
const fileExtensionZstd = "zst"

// magicBytesZstd is the magic bytes for zstandard files.
// reference: https://www.rfc-editor.org/rfc/rfc8878.html
var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// decompressZstdStream returns an io.Reader that decompresses src with zstandard algorithm
func decompressZstdStream(src io.Reader) (io.Reader, error) {
	d, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

// compressZstdStream returns an io.WriteCloser that compresses to dst with zstandard algorithm
func compressZstdStream(dst io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(dst)
}
