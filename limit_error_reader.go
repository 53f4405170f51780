// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"io"
)

// limitErrorReader counts the bytes consumed from R and fails with
// [ErrMaxInputSizeExceeded] as soon as R holds more than L bytes. A limit of
// -1 only counts.
type limitErrorReader struct {
	R io.Reader
	L int64
	N int64
}

func (l *limitErrorReader) Read(p []byte) (int, error) {
	if l.L >= 0 {
		remaining := l.L - l.N
		if remaining <= 0 && len(p) > 0 {
			// at the limit, only the end of R is accepted
			var b [1]byte
			if n, err := l.R.Read(b[:]); n == 0 {
				return 0, err
			}
			return 0, ErrMaxInputSizeExceeded
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := l.R.Read(p)
	l.N += int64(n)
	return n, err
}

// Count returns the number of bytes consumed from R
func (l *limitErrorReader) Count() int64 {
	return l.N
}

func newLimitErrorReader(r io.Reader, limit int64) *limitErrorReader {
	return &limitErrorReader{R: r, L: limit}
}
