// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-tarball"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// listCmd lists the members of an archive
type listCmd struct {
	Archive string `arg:"" name:"archive" help:"Path to archive. (\"-\" for STDIN)"`
	Long    bool   `short:"l" help:"Print mode, size and modification time."`
}

func (c *listCmd) Run(rc *runContext) error {
	tb, err := rc.openArchive(c.Archive)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", c.Archive)
	}
	defer tb.Close()

	members, err := tb.Members()
	if err != nil {
		return errors.Wrap(err, "cannot list members")
	}

	w := bufio.NewWriter(rc.stdout)
	for _, m := range members {
		if c.Long {
			fmt.Fprintf(w, "%s %10d %s %s\n", m.Mode, m.Size, m.ModTime.UTC().Format(time.RFC3339), m.Name)
			continue
		}
		fmt.Fprintln(w, m.Name)
	}
	return w.Flush()
}

// catCmd writes the payload of a member to stdout
type catCmd struct {
	Archive string `arg:"" name:"archive" help:"Path to archive. (\"-\" for STDIN)"`
	Member  string `arg:"" name:"member" help:"Name of the member."`
}

func (c *catCmd) Run(rc *runContext) error {
	tb, err := rc.openArchive(c.Archive)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", c.Archive)
	}
	defer tb.Close()

	data, ok, err := tb.Read(c.Member)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", c.Member)
	}
	if !ok {
		return errors.Errorf("member %s not found in %s", c.Member, c.Archive)
	}
	_, err = rc.stdout.Write(data)
	return err
}

// convertCmd converts archives into tar archives in parallel
type convertCmd struct {
	Compression string   `short:"c" optional:"" help:"Compression of the created archives, e.g. gz. (default: none)"`
	Jobs        int      `short:"j" optional:"" default:"4" help:"Number of archives converted in parallel."`
	Overwrite   bool     `short:"O" help:"Overwrite existing archives."`
	OutputDir   string   `arg:"" name:"output-dir" help:"Directory for the converted archives." type:"existingdir"`
	Inputs      []string `arg:"" name:"inputs" help:"Archives to convert." type:"existingfile"`
}

func (c *convertCmd) Run(rc *runContext) error {
	// parallel conversions must not share an output
	outputs := make(map[string]string, len(c.Inputs))
	for _, input := range c.Inputs {
		name := convertedName(input, c.Compression)
		if prev, ok := outputs[name]; ok {
			return errors.Errorf("%s and %s would both be converted to %s", prev, input, name)
		}
		outputs[name] = input
	}

	g, ctx := errgroup.WithContext(rc.ctx)
	if c.Jobs > 0 {
		g.SetLimit(c.Jobs)
	}

	for _, input := range c.Inputs {
		input := input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			output := filepath.Join(c.OutputDir, convertedName(input, c.Compression))
			if err := c.convert(rc, input, output); err != nil {
				return errors.Wrapf(err, "cannot convert %s", input)
			}
			rc.logger.Info("converted archive", "input", input, "output", output)
			return nil
		})
	}

	return g.Wait()
}

// convert copies all members with a payload from input to output
func (c *convertCmd) convert(rc *runContext, input string, output string) error {
	src, err := rc.openArchive(input)
	if err != nil {
		return err
	}
	defer src.Close()

	return writeArchive(output, c.Compression, c.Overwrite, rc.opts, func(dst *tarball.Tarball) error {
		return copyMembers(src, dst)
	})
}

// copyMembers writes every member of src with a payload to dst. Links are
// written as copies of their target.
func copyMembers(src *tarball.Tarball, dst *tarball.Tarball) error {
	members, err := src.Members()
	if err != nil {
		return err
	}
	for _, m := range members {
		data, ok, err := src.Read(m.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		err = dst.Write(m.Name, tarball.Bytes(data),
			tarball.WithMode(m.Mode.Perm()),
			tarball.WithEntryModTime(m.ModTime),
		)
		if err != nil {
			return errors.Wrapf(err, "cannot write %s", m.Name)
		}
	}
	return nil
}

// convertedName returns the file name of the converted archive
func convertedName(input string, compression string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := base + ".tar"
	if len(compression) > 0 {
		name += "." + compression
	}
	return name
}

// packCmd packs files into a new archive
type packCmd struct {
	Compression string    `short:"c" optional:"" help:"Compression of the archive, e.g. gz. (default: none)"`
	Mtime       time.Time `optional:"" help:"Modification time of all members in RFC3339 format. (default: now)"`
	Overwrite   bool      `short:"O" help:"Overwrite an existing archive."`
	Archive     string    `arg:"" name:"archive" help:"Path of the created archive."`
	Files       []string  `arg:"" name:"files" help:"Files to pack." type:"existingfile"`
}

func (c *packCmd) Run(rc *runContext) error {
	opts := append(append([]tarball.ConfigOption{}, rc.opts...), tarball.WithModTime(c.Mtime))
	err := writeArchive(c.Archive, c.Compression, c.Overwrite, opts, func(tb *tarball.Tarball) error {
		for _, f := range c.Files {
			if err := packFile(tb, f); err != nil {
				return errors.Wrapf(err, "cannot pack %s", f)
			}
		}
		return nil
	})
	return errors.Wrapf(err, "cannot create %s", c.Archive)
}

// packFile adds the file at p to tb, keeping its permissions
func packFile(tb *tarball.Tarball, p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	return tb.Write(memberName(p), tarball.Bytes(data), tarball.WithMode(info.Mode().Perm()))
}

// memberName converts a file path into a relative posix-style member name
func memberName(p string) string {
	name := path.Clean(filepath.ToSlash(p))
	name = strings.TrimLeft(name, "/")
	for strings.HasPrefix(name, "../") {
		name = strings.TrimPrefix(name, "../")
	}
	return name
}

// writeArchive creates the archive at p with compression and lets fill add
// the members. The archive is written atomically, so a failure never leaves
// a partial archive behind.
func writeArchive(p string, compression string, overwrite bool, opts []tarball.ConfigOption, fill func(*tarball.Tarball) error) error {
	switch _, err := os.Stat(p); {
	case os.IsNotExist(err): // create archive below
	case err == nil:
		if !overwrite {
			return errors.Errorf("unable to create %q, it already exists", p)
		}
	default:
		return errors.Wrap(err, "failed to stat "+p)
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		tb, err := tarball.NewWriter(pw, "w:"+compression, opts...)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := fill(tb); err != nil {
			tb.Close()
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(tb.Close())
	}()

	err := atomic.WriteFile(p, pr)
	pr.Close()
	<-done
	return err
}
