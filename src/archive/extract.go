// Package archive unpacks release tarballs into a destination directory.
package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/mholt/archives"
)

// Format tags accepted by Extract.
const (
	FormatGzip = "gz"
	FormatXz   = "xz"
)

// ErrUnsupportedFormat is returned for a format tag Extract does not know.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

var formats = map[string]archives.Compression{
	FormatGzip: archives.Gz{},
	FormatXz:   archives.Xz{},
}

// Supported reports whether Extract accepts the format tag.
func Supported(format string) bool {
	_, ok := formats[format]
	return ok
}

// Formats returns the accepted format tags, sorted.
func Formats() []string {
	out := make([]string, 0, len(formats))
	for f := range formats {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Extractor is the Extract function as a value, for callers that take
// their collaborators as interfaces.
type Extractor struct {
	Verbose bool
	Stderr  io.Writer
}

// Extract unpacks archivePath into destDir.
func (e Extractor) Extract(ctx context.Context, destDir, archivePath, format string) error {
	if e.Verbose && e.Stderr != nil {
		fmt.Fprintf(e.Stderr, "extract: %s (%s) -> %s\n", archivePath, format, destDir)
	}
	return Extract(ctx, destDir, archivePath, format)
}

// Extract unpacks the tarball at archivePath into destDir.
//
// format selects the compression and is never guessed from the file name or
// content; an unknown tag fails before the archive is opened. Entries are
// confined to destDir.
func Extract(ctx context.Context, destDir, archivePath, format string) error {
	compression, ok := formats[format]
	if !ok {
		return fmt.Errorf("%w %q (supported: %v)", ErrUnsupportedFormat, format, Formats())
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	ex := archives.CompressedArchive{
		Compression: compression,
		Extraction:  archives.Tar{},
	}

	err = ex.Extract(ctx, f, func(ctx context.Context, fi archives.FileInfo) error {
		return writeEntry(destDir, fi)
	})
	if err != nil {
		return fmt.Errorf("extracting %s: %w", archivePath, err)
	}
	return nil
}

// writeEntry materialises one archive entry under destDir.
func writeEntry(destDir string, fi archives.FileInfo) error {
	name := path.Clean("/" + fi.NameInArchive)[1:]
	if name == "" {
		return nil
	}

	// Resolve the parent inside destDir. The leaf is never followed: a
	// symlink an earlier entry left at the same path is removed first.
	parent, err := securejoin.SecureJoin(destDir, path.Dir(name))
	if err != nil {
		return fmt.Errorf("%s: %w", fi.NameInArchive, err)
	}
	target := filepath.Join(parent, path.Base(name))
	if err := clearLeaf(target, fi.IsDir()); err != nil {
		return fmt.Errorf("%s: %w", fi.NameInArchive, err)
	}

	if hdr, ok := fi.Header.(*tar.Header); ok && hdr.Typeflag == tar.TypeLink {
		src, err := securejoin.SecureJoin(destDir, hdr.Linkname)
		if err != nil {
			return fmt.Errorf("%s: %w", fi.NameInArchive, err)
		}
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
		return os.Link(src, target)
	}

	switch {
	case fi.IsDir():
		return os.MkdirAll(target, fi.Mode().Perm()|0o700)

	case fi.Mode()&fs.ModeSymlink != 0:
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
		return os.Symlink(fi.LinkTarget, target)

	case fi.Mode().IsRegular():
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
		return writeFile(target, fi)

	default:
		// Device nodes, fifos: not present in source or binary tarballs.
		return nil
	}
}

// clearLeaf removes whatever sits at target unless both it and the new
// entry are real directories.
func clearLeaf(target string, dir bool) error {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if dir && info.IsDir() {
		return nil
	}
	return os.Remove(target)
}

func writeFile(target string, fi archives.FileInfo) error {
	src, err := fi.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", fi.NameInArchive, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fi.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%s: %w", fi.NameInArchive, err)
	}
	return dst.Close()
}
