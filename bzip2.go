// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// fileExtensionBzip2 is the file extension for bzip2 files
const fileExtensionBzip2 = "bz2"

// magicBytesBzip2 are the magic bytes for bzip2 compressed files
// reference: https://en.wikipedia.org/wiki/Bzip2 // https://github.com/dsnet/compress/blob/master/doc/bzip2-format.pdf
var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"),
	[]byte("BZh2"),
	[]byte("BZh3"),
	[]byte("BZh4"),
	[]byte("BZh5"),
	[]byte("BZh6"),
	[]byte("BZh7"),
	[]byte("BZh8"),
	[]byte("BZh9"),
}

// decompressBz2Stream returns an io.Reader that decompresses src with bzip2 algorithm
func decompressBz2Stream(src io.Reader) (io.Reader, error) {
	return bzip2.NewReader(src, nil)
}

// compressBz2Stream returns an io.WriteCloser that compresses to dst with bzip2 algorithm
func compressBz2Stream(dst io.Writer) (io.WriteCloser, error) {
	return bzip2.NewWriter(dst, nil)
}
