// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// fileExtensionZlib is the file extension for Zlib files.
const fileExtensionZlib = "zz"

// magicBytesZlib is the magic bytes for Zlib files.
// reference https://www.ietf.org/rfc/rfc1950.txt
var magicBytesZlib = [][]byte{
	{0x78, 0x01},
	{0x78, 0x5e},
	{0x78, 0x9c},
	{0x78, 0xda},
}

// decompressZlibStream returns an io.Reader that decompresses src with zlib algorithm
func decompressZlibStream(src io.Reader) (io.Reader, error) {
	return zlib.NewReader(src)
}

// compressZlibStream returns an io.WriteCloser that compresses to dst with zlib algorithm
func compressZlibStream(dst io.Writer) (io.WriteCloser, error) {
	return zlib.NewWriter(dst), nil
}
