// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	// scratchDirPerm is the on-disk mode of directories in the scratch directory
	scratchDirPerm = 0700

	// scratchFilePerm is the on-disk mode of files in the scratch directory
	scratchFilePerm = 0600
)

// entryAttrs are the attributes of an extracted entry, which are restored
// when the scratch directory is repacked
type entryAttrs struct {
	mode    fs.FileMode
	modTime time.Time
}

// extractToScratch extracts all entries of src into dst. Modes and
// modification times are returned keyed by the posix-style name, as the
// on-disk attributes only keep the scratch directory usable.
func extractToScratch(ctx context.Context, src archiveWalker, dst string, cfg *Config, td *TelemetryData) (map[string]entryAttrs, error) {
	cfg.Logger().Info("start extraction", "type", src.Type())
	attrs := make(map[string]entryAttrs)
	var objectCounter int64
	var extractedBytes int64

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return nil, handleError(cfg, td, "context error", err)
		}

		// get next entry
		fe, err := src.Next()
		switch {

		// if no more entries are found exit loop
		case err == io.EOF:
			return attrs, nil

		case errors.Is(err, ErrMaxInputSizeExceeded):
			return nil, handleError(cfg, td, "error reading", err)

		case err != nil:
			return nil, handleError(cfg, td, "error reading", fmt.Errorf("%w: %w", ErrFormat, err))

		// if the entry is nil, just skip it
		case fe == nil:
			continue
		}

		// check if maximum of objects is exceeded
		objectCounter++
		if err := cfg.CheckMaxFiles(objectCounter); err != nil {
			return nil, handleError(cfg, td, "max files check failed", err)
		}

		name, err := scratchName(fe.Name)
		if err != nil {
			return nil, handleError(cfg, td, "invalid entry name", err)
		}

		cfg.Logger().Debug("extract", "name", name)
		switch {

		case fe.Kind == kindDir:
			if name == "." {
				continue
			}
			if err := createDir(dst, name); err != nil {
				return nil, handleError(cfg, td, "failed to create directory", err)
			}
			attrs[name] = entryAttrs{mode: fe.Mode.Perm(), modTime: fe.ModTime}
			td.ConvertedDirs++

		case fe.Kind == kindRegular:
			// check extraction size
			if err := cfg.CheckExtractionSize(extractedBytes + fe.Size); err != nil {
				return nil, handleError(cfg, td, "max extraction size exceeded", err)
			}

			maxSize := int64(-1)
			if cfg.MaxExtractionSize() != -1 {
				maxSize = cfg.MaxExtractionSize() - extractedBytes
			}

			fin, err := fe.Open()
			if err != nil {
				return nil, handleError(cfg, td, "failed to open file", fmt.Errorf("%w: %w", ErrFormat, err))
			}
			n, err := createFile(dst, name, entryReader{fin}, maxSize)
			fin.Close()
			if err != nil {
				return nil, handleError(cfg, td, "failed to create file", err)
			}
			extractedBytes += n
			attrs[name] = entryAttrs{mode: fe.Mode.Perm(), modTime: fe.ModTime}
			td.ConvertedFiles++

		case fe.Kind == kindSymlink && !cfg.DenySymlinks():
			if err := createSymlink(dst, name, fe.Linkname); err != nil {
				return nil, handleError(cfg, td, "failed to create symlink", err)
			}
			attrs[name] = entryAttrs{mode: fe.Mode.Perm(), modTime: fe.ModTime}
			td.ConvertedSymlinks++

		default:
			// check if unsupported files should be skipped
			if cfg.ContinueOnUnsupportedFiles() {
				cfg.Logger().Info("skipped unsupported file", "name", name, "type", fe.Mode.Type())
				td.UnsupportedFiles++
				td.LastUnsupportedFile = fe.Name
				continue
			}
			return nil, handleError(cfg, td, "cannot convert entry", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFile, fe.Name, fe.Mode.Type()))
		}
	}
}

// entryReader reports read errors of an entry payload, e.g. checksum
// mismatches, as [ErrFormat]
type entryReader struct {
	r io.Reader
}

func (e entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF && !errors.Is(err, ErrMaxInputSizeExceeded) {
		err = fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return n, err
}

// scratchName converts an entry name into a clean, relative posix-style path.
// Leading slashes are dropped, path traversal is rejected.
func scratchName(name string) (string, error) {
	rel := strings.TrimLeft(name, "/")
	if len(rel) == 0 {
		return "", fmt.Errorf("empty name (%q)", name)
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", fmt.Errorf("path traversal detected (%q)", name)
	}
	return path.Clean(rel), nil
}

// createDir creates the directory name, with all parents, inside dst
func createDir(dst string, name string) error {
	if err := securityCheck(dst, name); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dst, filepath.FromSlash(name)), scratchDirPerm); err != nil {
		return fmt.Errorf("failed to create directory (%w)", err)
	}
	return nil
}

// createFile creates the file name inside dst with src as content. Existing
// files are overwritten, so that the last entry of a name wins. The size of the
// file does not exceed maxSize, unless maxSize < 0.
func createFile(dst string, name string, src io.Reader, maxSize int64) (int64, error) {
	if dir := path.Dir(name); dir != "." {
		if err := createDir(dst, dir); err != nil {
			return 0, fmt.Errorf("cannot create directory: %w", err)
		}
	}
	if err := securityCheck(dst, name); err != nil {
		return 0, fmt.Errorf("security check path failed: %w", err)
	}

	// create dst file
	p := filepath.Join(dst, filepath.FromSlash(name))
	dstFile, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, scratchFilePerm)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer dstFile.Close()

	// write data to file
	n, err := io.Copy(limitWriter(dstFile, maxSize), src)
	if errors.Is(err, io.ErrShortWrite) {
		return n, ErrMaxExtractionSizeExceeded
	}
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// createSymlink creates the symlink name inside dst pointing to linkTarget.
// Absolute link targets and targets outside of dst are rejected.
func createSymlink(dst string, name string, linkTarget string) error {
	if len(linkTarget) == 0 {
		return fmt.Errorf("empty link target")
	}

	// check if link target is absolute path
	if path.IsAbs(linkTarget) || filepath.IsAbs(linkTarget) {
		return fmt.Errorf("symlink with absolute path as target: %s", linkTarget)
	}

	// check link target for traversal
	resolved := filepath.Join(filepath.FromSlash(path.Dir(name)), filepath.FromSlash(linkTarget))
	if !filepath.IsLocal(resolved) {
		return fmt.Errorf("symlink target outside of archive: %s", linkTarget)
	}

	// ensure the parent exists and is safe
	dir := path.Dir(name)
	if dir != "." {
		if err := createDir(dst, dir); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	}

	// a later entry replaces an earlier one
	p := filepath.Join(dst, filepath.FromSlash(name))
	if _, err := os.Lstat(p); err == nil {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to overwrite file: %w", err)
		}
	}

	if err := os.Symlink(filepath.FromSlash(linkTarget), p); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// securityCheck returns an error if name, or one of its parents, is a
// symlink inside dst. Writing through symlinks could leave the scratch
// directory.
func securityCheck(dst string, name string) error {
	parts := strings.Split(name, "/")
	for i := range parts {
		checkPath := filepath.Join(dst, filepath.Join(parts[:i+1]...))
		stat, err := os.Lstat(checkPath)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if stat.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlink in path (%s)", path.Join(parts[:i+1]...))
		}
	}
	return nil
}
