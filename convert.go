// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// openWalkerFunc opens a walker over a foreign archive. src is the original
// input, hr replays the already consumed header of src. The returned cleanup
// function releases cached input and must always be called.
type openWalkerFunc func(src io.Reader, hr *headerReader, cfg *Config, td *TelemetryData) (archiveWalker, func(), error)

// foreignArchive describes an archive format that is converted to tar
type foreignArchive struct {
	// Type is the file extension of the format
	Type string

	// MagicBytes are used to detect the format
	MagicBytes [][]byte

	// Offset is the position of MagicBytes in the input
	Offset int

	// Open creates a walker over the archive
	Open openWalkerFunc
}

// foreignArchives holds all formats that are converted on read
var foreignArchives = []foreignArchive{
	{
		Type:       fileExtensionZip,
		MagicBytes: magicBytesZip,
		Open:       openZip,
	},
	{
		Type:       fileExtensionRar,
		MagicBytes: magicBytesRar,
		Open:       openRar,
	},
	{
		Type:       fileExtension7zip,
		MagicBytes: magicBytes7zip,
		Open:       open7zip,
	},
}

// maxHeaderLength is the number of bytes needed to detect all formats
var maxHeaderLength int

// init calculates the maximum header length
func init() {
	needs := func(offset int, magicBytes [][]byte) {
		for _, mb := range magicBytes {
			if offset+len(mb) > maxHeaderLength {
				maxHeaderLength = offset + len(mb)
			}
		}
	}
	needs(offsetTar, magicBytesTar)
	for _, c := range availableCompressions {
		needs(c.Offset, c.MagicBytes)
	}
	for _, fa := range foreignArchives {
		needs(fa.Offset, fa.MagicBytes)
	}
}

// detectForeignArchive returns the foreign archive format matching header, or nil
func detectForeignArchive(header []byte) *foreignArchive {
	for i, fa := range foreignArchives {
		if matchesMagicBytes(header, fa.Offset, fa.MagicBytes) {
			return &foreignArchives[i]
		}
	}
	return nil
}

// lookupForeignArchive returns the foreign archive format with typ, or nil
func lookupForeignArchive(typ string) *foreignArchive {
	for i := range foreignArchives {
		if foreignArchives[i].Type == typ {
			return &foreignArchives[i]
		}
	}
	return nil
}

// convert extracts the foreign archive into a scratch directory, packs the
// directory into a scratch tar file and indexes that file. Scratch directory
// and file are removed on return, regardless of the outcome.
func convert(ctx context.Context, src io.Reader, hr *headerReader, fa *foreignArchive, cfg *Config, td *TelemetryData) ([]*member, error) {
	// scratch directory for the extracted entries
	scratchDir, err := os.MkdirTemp(cfg.ScratchDir(), "tarball-*")
	if err != nil {
		return nil, handleError(cfg, td, "cannot create scratch directory", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			cfg.Logger().Error("cannot remove scratch directory", "path", scratchDir, "error", err)
		}
	}()

	// scratch file for the repacked archive
	scratchFile, err := os.CreateTemp(cfg.ScratchDir(), "tarball-*.tar")
	if err != nil {
		return nil, handleError(cfg, td, "cannot create scratch file", err)
	}
	defer func() {
		scratchFile.Close()
		if err := os.Remove(scratchFile.Name()); err != nil {
			cfg.Logger().Error("cannot remove scratch file", "path", scratchFile.Name(), "error", err)
		}
	}()

	// open foreign archive
	walker, cleanup, err := fa.Open(src, hr, cfg, td)
	defer cleanup()
	if err != nil {
		return nil, handleError(cfg, td, fmt.Sprintf("cannot open %s", fa.Type), err)
	}

	// extract into scratch directory
	attrs, err := extractToScratch(ctx, walker, scratchDir, cfg, td)
	if err != nil {
		return nil, err
	}

	// repack scratch directory
	if err := repack(ctx, scratchDir, attrs, scratchFile, cfg); err != nil {
		return nil, handleError(cfg, td, "cannot repack scratch directory", err)
	}
	if err := scratchFile.Close(); err != nil {
		return nil, handleError(cfg, td, "cannot close scratch file", err)
	}

	// reopen repacked archive
	f, err := os.Open(scratchFile.Name())
	if err != nil {
		return nil, handleError(cfg, td, "cannot reopen scratch file", err)
	}
	defer f.Close()

	cfg.Logger().Debug("repacked foreign archive", "type", fa.Type, "scratch", scratchFile.Name())
	return indexTar(ctx, f, cfg, td)
}

// seekerReaderAt is the interface needed by random access archive formats
type seekerReaderAt interface {
	io.ReaderAt
	io.Seeker
}

// readerAtWithSize provides random access to the input. If src does not
// support random access, the input is replayed from hr and cached in memory or
// in a scratch file, depending on cfg.CacheInMemory(). The returned cleanup
// function removes the cache and must always be called.
func readerAtWithSize(src io.Reader, hr *headerReader, cfg *Config, td *TelemetryData) (io.ReaderAt, int64, func(), error) {
	cleanup := func() {}

	sra, ok := src.(seekerReaderAt)
	if !ok {
		var err error
		if sra, cleanup, err = cacheInput(hr, cfg); err != nil {
			return nil, 0, cleanup, err
		}
	}

	// get size of input and check if it exceeds maximum input size
	size, err := sra.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, cleanup, fmt.Errorf("cannot seek to end of reader: %w", err)
	}
	td.InputSize = size
	if cfg.MaxInputSize() != -1 && size > cfg.MaxInputSize() {
		return nil, 0, cleanup, ErrMaxInputSizeExceeded
	}

	return sra, size, cleanup, nil
}

// cacheInput reads r completely into memory or a scratch file
func cacheInput(r io.Reader, cfg *Config) (seekerReaderAt, func(), error) {
	noop := func() {}

	// check how to cache
	if cfg.CacheInMemory() {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, noop, fmt.Errorf("cannot read all from reader: %w", err)
		}
		return bytes.NewReader(b), noop, nil
	}

	// create scratch file
	tmpFile, err := os.CreateTemp(cfg.ScratchDir(), "tarball-input-*")
	if err != nil {
		return nil, noop, fmt.Errorf("cannot create cache file: %w", err)
	}
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}

	// copy reader to scratch file
	if _, err := io.Copy(tmpFile, r); err != nil {
		return nil, cleanup, fmt.Errorf("cannot copy reader to file: %w", err)
	}

	return tmpFile, cleanup, nil
}
