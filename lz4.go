// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// fileExtensionLZ4 is the file extension for LZ4 files.
const fileExtensionLZ4 = "lz4"

// magicBytesLZ4 is the magic bytes for LZ4 files.
// reference https://android.googlesource.com/platform/external/lz4/+/HEAD/doc/lz4_Frame_format.md
var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

// decompressLZ4Stream returns an io.Reader that decompresses src with LZ4 algorithm
func decompressLZ4Stream(src io.Reader) (io.Reader, error) {
	return lz4.NewReader(src), nil
}

// compressLZ4Stream returns an io.WriteCloser that compresses to dst with LZ4 algorithm
func compressLZ4Stream(dst io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(dst), nil
}
