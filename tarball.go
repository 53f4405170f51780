// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path"
)

// maxLinkDepth limits how many links are followed by [Tarball.Read]
const maxLinkDepth = 32

// state of a Tarball
type state int

const (
	stateRead state = iota
	stateWrite
	stateClosed
)

// Tarball is an open tar archive. A Tarball is either opened for reading,
// then all members are held in memory, or for writing, then members can
// only be appended. A Tarball is not safe for concurrent use.
type Tarball struct {
	cfg   *Config
	state state

	// members in creation order; in write mode without payload
	members []*member

	// index maps a name to the position of its last member
	index map[string]int

	// write mode
	tw         *tar.Writer
	compressor io.WriteCloser
	file       *os.File
}

// Open opens the archive at path. The mode follows the conventional tar
// style, see [parseMode]: "r" reads a tar archive with any supported
// compression or converts a foreign archive, e.g. zip, into a tar archive;
// "w" and "x" create a new archive, optionally compressed, e.g. "w:gz"; "a"
// appends to an uncompressed archive. A directory at path fails with
// [ErrFormat].
func Open(ctx context.Context, path string, mode string, opts ...ConfigOption) (*Tarball, error) {
	m, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(opts...)

	if m.op == 'a' {
		return openAppend(ctx, path, cfg)
	}
	if err := rejectDir(path); err != nil {
		return nil, err
	}

	if m.reading() {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open archive: %w", err)
		}
		defer f.Close()
		return newReader(ctx, f, m.compression, cfg)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if m.op == 'x' {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, fmt.Errorf("cannot create archive: %w", err)
	}
	t, err := newWriter(f, m.compression, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.file = f
	cfg.Logger().Info("created tarball", "path", path, "compression", m.compression)
	return t, nil
}

// NewReader reads the archive from src, which must be positioned at the
// start of the archive. The mode must be a read mode. The caller keeps the
// ownership of src; it is not used after NewReader returned.
func NewReader(ctx context.Context, src io.Reader, mode string, opts ...ConfigOption) (*Tarball, error) {
	m, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if !m.reading() {
		return nil, fmt.Errorf("%w: %q is not a read mode", ErrInvalidMode, mode)
	}
	return newReader(ctx, src, m.compression, NewConfig(opts...))
}

// NewWriter writes a new archive to dst. The mode must be a write mode;
// appending needs a file, see [Open]. Closing the Tarball flushes the
// archive, but does not close dst.
func NewWriter(dst io.Writer, mode string, opts ...ConfigOption) (*Tarball, error) {
	m, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if m.reading() || m.op == 'a' {
		return nil, fmt.Errorf("%w: %q is not a write mode", ErrInvalidMode, mode)
	}
	return newWriter(dst, m.compression, NewConfig(opts...))
}

// rejectDir fails with [ErrFormat] if path is a directory
func rejectDir(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("cannot open archive: %w: %s is a directory", ErrFormat, path)
	}
	return nil
}

// newReader detects the archive type of src and indexes all members
func newReader(ctx context.Context, src io.Reader, compressionName string, cfg *Config) (*Tarball, error) {
	// prepare telemetry capturing
	td := &TelemetryData{ArchiveType: fileExtensionTar}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureOpenDuration(td, now())

	// limit input size
	limitedReader := newLimitErrorReader(src, cfg.MaxInputSize())
	defer func() {
		if td.InputSize == 0 {
			captureInputSize(td, limitedReader)
		}
	}()

	// peek header
	hr, err := newHeaderReader(limitedReader, maxHeaderLength)
	if err != nil {
		return nil, handleError(cfg, td, "cannot read header", err)
	}
	header := hr.PeekHeader()
	if len(header) == 0 {
		return nil, handleError(cfg, td, "cannot open tarball", fmt.Errorf("%w: empty input", ErrFormat))
	}

	// foreign archives are converted
	var members []*member
	if fa := detectForeignArchive(header); fa != nil && !isTar(header) {
		td.ArchiveType = fa.Type
		td.Converted = true
		cfg.Logger().Info("converting foreign archive", "type", fa.Type)
		if members, err = convert(ctx, src, hr, fa, cfg, td); err != nil {
			return nil, err
		}
		return newTarballFromMembers(cfg, members), nil
	}

	// determine compression
	c, err := resolveCompression(compressionName, header)
	if err != nil {
		return nil, handleError(cfg, td, "cannot determine compression", err)
	}
	var stream io.Reader = hr
	if c != nil {
		td.ArchiveType = fmt.Sprintf("%s.%s", fileExtensionTar, c.Name)
		decompressed, err := c.Decompress(hr)
		if err != nil {
			return nil, handleError(cfg, td, "cannot start decompression", fmt.Errorf("%w: %w", ErrFormat, err))
		}
		defer func() {
			if closer, ok := decompressed.(io.Closer); ok {
				closer.Close()
			}
		}()
		stream = decompressed
	}

	cfg.Logger().Info("reading tarball", "type", td.ArchiveType)
	members, err = indexTar(ctx, stream, cfg, td)
	if err != nil && c == nil && errors.Is(err, ErrFormat) && hasZipDirectory(src) {
		// zip with leading bytes, e.g. a self-extracting archive
		td.OpenErrors, td.LastOpenError = 0, nil
		td.ArchiveType = fileExtensionZip
		td.Converted = true
		cfg.Logger().Info("converting foreign archive", "type", fileExtensionZip, "prefixed", true)
		members, err = convert(ctx, src, hr, lookupForeignArchive(fileExtensionZip), cfg, td)
	}
	if err != nil {
		return nil, err
	}
	return newTarballFromMembers(cfg, members), nil
}

// newTarballFromMembers returns a Tarball in read mode
func newTarballFromMembers(cfg *Config, members []*member) *Tarball {
	index := make(map[string]int, len(members))
	for i, m := range members {
		index[m.Name] = i
	}
	return &Tarball{cfg: cfg, state: stateRead, members: members, index: index}
}

// newWriter returns a Tarball in write mode that writes to dst
func newWriter(dst io.Writer, compressionName string, cfg *Config) (*Tarball, error) {
	t := &Tarball{cfg: cfg, state: stateWrite}
	if compressionName != compressionNone {
		c, err := resolveCompression(compressionName, nil)
		if err != nil {
			return nil, err
		}
		if t.compressor, err = c.Compress(dst); err != nil {
			return nil, fmt.Errorf("cannot start compression: %w", err)
		}
		dst = t.compressor
	}
	t.tw = tar.NewWriter(dst)
	return t, nil
}

// checkState returns an error if the tarball is not in state s
func (t *Tarball) checkState(s state) error {
	switch t.state {
	case s:
		return nil
	case stateClosed:
		return ErrClosed
	default:
		return ErrWrongMode
	}
}

// Names returns the names of all members in creation order. In write mode,
// the names of all members written so far are returned.
func (t *Tarball) Names() ([]string, error) {
	if t.state == stateClosed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(t.members))
	for _, m := range t.members {
		names = append(names, m.Name)
	}
	return names, nil
}

// Members returns the metadata of all members in creation order.
func (t *Tarball) Members() ([]Member, error) {
	if t.state == stateClosed {
		return nil, ErrClosed
	}
	members := make([]Member, 0, len(t.members))
	for _, m := range t.members {
		members = append(members, m.Member)
	}
	return members, nil
}

// lookup returns the last member with name, or nil
func (t *Tarball) lookup(name string) *member {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.members[i]
}

// Read returns the payload of the member with name. If no such member exists,
// or the member has no payload, e.g. a directory, ok is false. Symlinks and
// hard links are resolved inside the archive.
func (t *Tarball) Read(name string) (data []byte, ok bool, err error) {
	if err := t.checkState(stateRead); err != nil {
		return nil, false, err
	}

	m := t.lookup(name)
	for depth := 0; m != nil; depth++ {
		if depth > maxLinkDepth {
			t.cfg.Logger().Warn("too many links", "name", name)
			return nil, false, nil
		}

		switch m.Typeflag {
		case tar.TypeSymlink:
			m = t.lookup(path.Join(path.Dir(m.Name), m.Linkname))
		case tar.TypeLink:
			m = t.lookup(path.Clean(m.Linkname))
		case tar.TypeDir, tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
			return nil, false, nil
		default:
			return bytes.Clone(m.data), true, nil
		}
	}

	return nil, false, nil
}

// ReadImage reads the member with name and decodes it as PNG image. If the
// member does not exist, an error wrapping [fs.ErrNotExist] is returned; if
// the payload is not a valid image, an error wrapping [ErrDecode].
func (t *Tarball) ReadImage(name string) (image.Image, error) {
	data, ok, err := t.Read(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cannot read image %q: %w", name, fs.ErrNotExist)
	}
	return decodePNG(data)
}

// Write appends a member with name and v as payload. The member gets the
// mode [DefaultMode] and the default timestamp of the tarball, unless
// adjusted by opts. If v cannot be serialized, nothing is written.
func (t *Tarball) Write(name string, v Value, opts ...EntryOption) error {
	if err := t.checkState(stateWrite); err != nil {
		return err
	}
	if len(name) == 0 {
		return ErrInvalidName
	}
	if v == nil {
		return fmt.Errorf("%w: <nil>", ErrUnsupportedType)
	}

	// serialize before anything is written
	data, err := v.payload()
	if err != nil {
		return err
	}

	e := &entryConfig{mode: DefaultMode, modTime: t.cfg.ModTime()}
	for _, opt := range opts {
		opt(e)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     int64(e.mode.Perm()),
		ModTime:  e.modTime,
		Size:     int64(len(data)),
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("cannot write header of %q: %w", name, err)
	}
	if _, err := t.tw.Write(data); err != nil {
		return fmt.Errorf("cannot write %q: %w", name, err)
	}

	t.cfg.Logger().Debug("wrote member", "name", name, "size", len(data))
	t.members = append(t.members, newMember(hdr, nil))
	return nil
}

// WriteAny is like [Tarball.Write], but accepts string, []byte, image.Image
// and [Value]. Any other type fails with [ErrUnsupportedType].
func (t *Tarball) WriteAny(name string, v any, opts ...EntryOption) error {
	if err := t.checkState(stateWrite); err != nil {
		return err
	}
	val, err := valueOf(v)
	if err != nil {
		return err
	}
	return t.Write(name, val, opts...)
}

// Close finalizes the archive in write mode and releases all resources.
// Calling Close on a closed Tarball is a no-op.
func (t *Tarball) Close() error {
	prev := t.state
	t.state = stateClosed
	t.members = nil
	t.index = nil

	if prev != stateWrite {
		return nil
	}

	var errs []error
	if err := t.tw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("cannot finalize tar: %w", err))
	}
	if t.compressor != nil {
		if err := t.compressor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot finalize compression: %w", err))
		}
	}
	if t.file != nil {
		if err := t.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
