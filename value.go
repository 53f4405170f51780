// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"fmt"
	"image"
)

// Value is a typed object that can be stored as a member payload. It is
// implemented by [Bytes], [String] and [Image] only.
type Value interface {
	payload() ([]byte, error)
}

// Bytes stores raw bytes as payload.
type Bytes []byte

func (b Bytes) payload() ([]byte, error) {
	return b, nil
}

// String stores the UTF-8 bytes of a string as payload.
type String string

func (s String) payload() ([]byte, error) {
	return []byte(s), nil
}

// Image stores an in-memory image as PNG encoded payload.
type Image struct {
	image.Image
}

func (i Image) payload() ([]byte, error) {
	if i.Image == nil {
		return nil, fmt.Errorf("%w: image is nil", ErrUnsupportedType)
	}
	return encodePNG(i.Image)
}

// valueOf converts v into a [Value]. Supported are string, []byte,
// image.Image and all Value implementations.
func valueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case image.Image:
		return Image{x}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}
