// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// headerReader buffers the start of a stream, so that magic bytes can be
// inspected before the stream is handed to a decoder that reads from the
// beginning.
type headerReader struct {
	*bufio.Reader
	header []byte
}

// minHeaderBuffer is the smallest read-ahead buffer of a headerReader
const minHeaderBuffer = 4096

// newHeaderReader peeks up to headerSize bytes of r. Shorter inputs yield a
// shorter header.
func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	br := bufio.NewReaderSize(r, max(headerSize, minHeaderBuffer))
	header, err := br.Peek(headerSize)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{Reader: br, header: bytes.Clone(header)}, nil
}

// PeekHeader returns the header bytes, independent of how much was read already.
func (h *headerReader) PeekHeader() []byte {
	return h.header
}

// matchesMagicBytes checks if data contains one of magicBytes at offset
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}
