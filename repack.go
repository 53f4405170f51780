// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package tarball

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// repack writes the content of root as tar archive to dst. Members are named
// relative to root, root itself is not a member. Directories are walked in
// lexical order. Mode and modification time are taken from attrs, if present.
func repack(ctx context.Context, root string, attrs map[string]entryAttrs, dst io.Writer, cfg *Config) error {
	tw := tar.NewWriter(dst)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return fmt.Errorf("cannot read link %s: %w", name, err)
			}
			link = filepath.ToSlash(link)
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("cannot create header for %s: %w", name, err)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}

		// restore attributes from the foreign archive
		if a, ok := attrs[name]; ok {
			hdr.Mode = int64(a.mode.Perm())
			if !a.modTime.IsZero() {
				hdr.ModTime = a.modTime
			}
		} else if info.IsDir() {
			hdr.Mode = int64(cfg.ScratchDirMode().Perm())
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("cannot write header for %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("cannot write %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return tw.Close()
}
