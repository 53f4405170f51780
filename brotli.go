// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"

	"github.com/andybalholm/brotli"
)

// fileExtensionBrotli is the file extension for brotli files. Brotli has no
// magic bytes, so it is only used if requested explicitly by the open mode.
const fileExtensionBrotli = "br"

// decompressBrotliStream returns an io.Reader that decompresses src with brotli algorithm
func decompressBrotliStream(src io.Reader) (io.Reader, error) {
	return brotli.NewReader(src), nil
}

// compressBrotliStream returns an io.WriteCloser that compresses to dst with brotli algorithm
func compressBrotliStream(dst io.Writer) (io.WriteCloser, error) {
	return brotli.NewWriter(dst), nil
}
