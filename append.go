// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// tarBlockSize is the size of tar header and payload blocks
const tarBlockSize = 512

// openAppend opens the uncompressed archive at path for appending and
// creates it if it does not exist. Names lists the members already in the
// archive; new members replace the end-of-archive marker.
func openAppend(ctx context.Context, path string, cfg *Config) (*Tarball, error) {
	if err := rejectDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive: %w", err)
	}

	members, end, err := scanTarEnd(ctx, f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}

	// drop the end-of-archive marker and the record padding behind it
	if err := f.Truncate(end); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot truncate archive: %w", err)
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot seek archive: %w", err)
	}

	t := &Tarball{cfg: cfg, state: stateWrite, members: members, tw: tar.NewWriter(f), file: f}
	cfg.Logger().Info("appending to tarball", "path", path, "members", len(members), "offset", end)
	return t, nil
}

// scanTarEnd reads the uncompressed tar archive in src and returns its
// members without payload, together with the offset behind the last member.
func scanTarEnd(ctx context.Context, src io.Reader, cfg *Config) ([]*member, int64, error) {
	counter := newLimitErrorReader(src, cfg.MaxInputSize())
	tr := tar.NewReader(counter)
	var members []*member
	var end int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("context error: %w", err)
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return members, end, nil
		}
		if err != nil {
			return nil, 0, tarScanError(err)
		}

		// the payload is skipped; its last block is padded to tarBlockSize
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, 0, tarScanError(err)
		}
		end = alignToBlock(counter.Count())

		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := cfg.CheckMaxFiles(int64(len(members)) + 1); err != nil {
			return nil, 0, fmt.Errorf("max files check failed: %w", err)
		}
		cfg.Logger().Debug("found member", "name", hdr.Name, "size", hdr.Size)
		members = append(members, newMember(hdr, nil))
	}
}

func tarScanError(err error) error {
	if errors.Is(err, ErrMaxInputSizeExceeded) {
		return fmt.Errorf("cannot read tar: %w", err)
	}
	return fmt.Errorf("cannot read tar: %w: %w", ErrFormat, err)
}

// alignToBlock rounds n up to a multiple of tarBlockSize
func alignToBlock(n int64) int64 {
	return (n + tarBlockSize - 1) / tarBlockSize * tarBlockSize
}
