// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/klauspost/compress/snappy"
)

// fileExtensionSnappy is the file extension for snappy files.
const fileExtensionSnappy = "sz"

// magicBytesSnappy is the magic bytes for framed snappy streams.
var magicBytesSnappy = [][]byte{
	append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
}

// decompressSnappyStream returns an io.Reader that decompresses src with snappy algorithm
func decompressSnappyStream(src io.Reader) (io.Reader, error) {
	return snappy.NewReader(src), nil
}

// compressSnappyStream returns an io.WriteCloser that writes a framed snappy stream to dst
func compressSnappyStream(dst io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}
