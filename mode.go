// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"fmt"
	"strings"
)

// openMode is a parsed open mode string
type openMode struct {
	// op is one of 'r' (read), 'w' (write), 'x' (exclusive create) or 'a' (append)
	op byte

	// compression is a compression name, compressionAuto or compressionNone
	compression string
}

// reading returns true if the mode opens an archive for reading
func (m openMode) reading() bool {
	return m.op == 'r'
}

// parseMode parses mode strings in the conventional tar style:
//
//	r, r:*  read with transparent compression detection
//	r:      read uncompressed
//	r:gz    read with the named compression
//	w, w:   write uncompressed
//	w:gz    write with the named compression
//	x, x:gz like w, but fail if the file exists
//	a, a:   append to an uncompressed archive, create it if missing
func parseMode(mode string) (openMode, error) {
	op, comp, hasSuffix := strings.Cut(mode, ":")
	if len(op) != 1 || !strings.Contains("rwxa", op) {
		return openMode{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	m := openMode{op: op[0], compression: comp}

	// defaults without a suffix
	if !hasSuffix && m.reading() {
		m.compression = compressionAuto
	}

	switch {
	case m.op == 'a' && m.compression != compressionNone:
		return openMode{}, fmt.Errorf("%w: %q cannot append to a compressed archive", ErrInvalidMode, mode)
	case m.compression == compressionNone:
	case m.compression == compressionAuto:
		if !m.reading() {
			return openMode{}, fmt.Errorf("%w: %q cannot detect compression while writing", ErrInvalidMode, mode)
		}
	case lookupCompression(m.compression) == nil:
		return openMode{}, fmt.Errorf("%w: unknown compression %q", ErrInvalidMode, m.compression)
	}

	return m, nil
}
