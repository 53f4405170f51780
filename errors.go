// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import "errors"

var (
	// ErrFormat is returned if the input is neither a tar archive nor a
	// foreign archive that can be converted into one.
	ErrFormat = errors.New("not a supported archive")

	// ErrUnsupportedType is returned if a value passed to Write or WriteAny
	// cannot be serialized.
	ErrUnsupportedType = errors.New("unsupported value type")

	// ErrClosed is returned by every operation on a closed [Tarball].
	ErrClosed = errors.New("tarball is closed")

	// ErrDecode is returned if a member payload is not a valid image.
	ErrDecode = errors.New("cannot decode image")

	// ErrWrongMode is returned if a read operation is called on a tarball
	// opened for writing or vice versa.
	ErrWrongMode = errors.New("operation not permitted in this mode")

	// ErrInvalidMode is returned if an open mode string cannot be parsed.
	ErrInvalidMode = errors.New("invalid open mode")

	// ErrInvalidName is returned if a member name is empty.
	ErrInvalidName = errors.New("invalid member name")

	// ErrMaxFilesExceeded is returned if the archive holds more members than allowed.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded is returned if the payload size exceeds the limit.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded is returned if the input exceeds the limit.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrUnsupportedFile is returned if a foreign archive contains an entry
	// that cannot be represented during conversion, e.g. a device file.
	ErrUnsupportedFile = errors.New("unsupported file type")
)
