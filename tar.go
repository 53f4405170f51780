// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// fileExtensionTar is the file extension for tar files
const fileExtensionTar = "tar"

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// indexTar reads all members of the tar archive in src into memory. Errors of
// the tar reader are reported as [ErrFormat], limit violations as such.
func indexTar(ctx context.Context, src io.Reader, cfg *Config, td *TelemetryData) ([]*member, error) {
	tr := tar.NewReader(src)
	var members []*member
	var payloadSize int64

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return nil, handleError(cfg, td, "context error", err)
		}

		hdr, err := tr.Next()
		switch {

		// if no more members are found, indexing is done
		case err == io.EOF:
			td.Members = int64(len(members))
			td.PayloadSize = payloadSize
			return members, nil

		case errors.Is(err, ErrMaxInputSizeExceeded):
			return nil, handleError(cfg, td, "cannot read tar", err)

		case err != nil:
			return nil, handleError(cfg, td, "cannot read tar", fmt.Errorf("%w: %w", ErrFormat, err))
		}

		// git archives carry a comment file `pax_global_header`, which is no member
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		// check if maximum of members is exceeded
		if err := cfg.CheckMaxFiles(int64(len(members)) + 1); err != nil {
			return nil, handleError(cfg, td, "max files check failed", err)
		}

		// check payload size before reading
		if err := cfg.CheckExtractionSize(payloadSize + hdr.Size); err != nil {
			return nil, handleError(cfg, td, "max extraction size exceeded", err)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			if errors.Is(err, ErrMaxInputSizeExceeded) {
				return nil, handleError(cfg, td, "cannot read member", err)
			}
			return nil, handleError(cfg, td, "cannot read member", fmt.Errorf("%w: %w", ErrFormat, err))
		}
		payloadSize += int64(len(data))

		cfg.Logger().Debug("indexed member", "name", hdr.Name, "size", len(data))
		members = append(members, newMember(hdr, data))
	}
}

// newMember converts a tar header and its payload into a member
func newMember(hdr *tar.Header, data []byte) *member {
	name := hdr.Name
	if trimmed := strings.TrimRight(name, "/"); len(trimmed) > 0 {
		name = trimmed
	}
	return &member{
		Member: Member{
			Name:     name,
			Typeflag: hdr.Typeflag,
			Linkname: hdr.Linkname,
			Size:     hdr.Size,
			Mode:     hdr.FileInfo().Mode(),
			ModTime:  hdr.ModTime,
		},
		data: data,
	}
}
