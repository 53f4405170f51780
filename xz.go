// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/ulikunitz/xz"
)

// fileExtensionXz is the file extension for xz files.
const fileExtensionXz = "xz"

// magicBytesXz is the magic bytes for xz files.
// reference https://tukaani.org/xz/xz-file-format-1.0.4.txt
var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// decompressXzStream returns an io.Reader that decompresses src with xz algorithm
func decompressXzStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}

// compressXzStream returns an io.WriteCloser that compresses to dst with xz algorithm
func compressXzStream(dst io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(dst)
}
