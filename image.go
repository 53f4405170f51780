// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// pngEncoder encodes images stored with [Image]
var pngEncoder = &png.Encoder{CompressionLevel: png.DefaultCompression}

// encodePNG serializes img as PNG. Images the encoder cannot handle, e.g. a
// nil *image.RGBA, are reported as [ErrUnsupportedType].
func encodePNG(img image.Image) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: cannot encode %T: %v", ErrUnsupportedType, img, r)
		}
	}()

	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("cannot encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// decodePNG decodes a PNG payload. Invalid data is reported as [ErrDecode].
func decodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}
