// SPDX-License-Identifier: MPL-2.0

// Package xarchive implements the unarchive primitive: unpack a compressed
// module tree into a directory, reporting progress. Supports tar.gz, tgz,
// tar.zst, plain tar, and zip, detected by filename.
package xarchive

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxEntryBytes is the upper bound on a single extracted file (500 MB).
// Prevents decompression bombs inside module archives.
const maxEntryBytes = 500 << 20

var (
	// ErrUnsupportedFormat is returned for archive extensions this package
	// does not understand.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrNoSingleRoot is returned by TopLevelEntry when the extracted tree
	// does not have exactly one top-level entry.
	ErrNoSingleRoot = errors.New("archive does not contain a single top-level entry")
)

// Progress receives byte counts as extraction advances; done counts
// compressed input consumed against the archive's total size, so the
// fraction done/total is monotonic across entries.
type Progress func(done, total int64)

// Unarchive unpacks archivePath into destDir. Entry paths are confined to
// destDir; symlinks and entries escaping the destination are rejected.
func Unarchive(archivePath, destDir string, progress Progress) error {
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return untar(archivePath, destDir, "gzip", progress)
	case strings.HasSuffix(archivePath, ".tar.zst"):
		return untar(archivePath, destDir, "zstd", progress)
	case strings.HasSuffix(archivePath, ".tar"):
		return untar(archivePath, destDir, "", progress)
	case strings.HasSuffix(archivePath, ".zip"):
		return unzip(archivePath, destDir, progress)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(archivePath))
	}
}

// TopLevelEntry returns the name of the single top-level entry in dir.
// Module archives conventionally pack everything under one root directory.
func TopLevelEntry(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(entries) != 1 {
		return "", fmt.Errorf("%w: found %d entries in %s", ErrNoSingleRoot, len(entries), dir)
	}
	return entries[0].Name(), nil
}

// countingReader tracks compressed bytes consumed from the underlying file,
// giving Unarchive a cheap single-pass progress fraction.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func untar(archivePath, destDir, compression string, progress Progress) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer func() { _ = f.Close() }() // read-only handle

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive %s: %w", archivePath, err)
	}
	total := info.Size()

	counting := &countingReader{r: f}

	var stream io.Reader = counting
	switch compression {
	case "gzip":
		gz, gzErr := gzip.NewReader(counting)
		if gzErr != nil {
			return fmt.Errorf("failed to read gzip stream of %s: %w", archivePath, gzErr)
		}
		defer func() { _ = gz.Close() }()
		stream = gz
	case "zstd":
		zr, zErr := zstd.NewReader(counting)
		if zErr != nil {
			return fmt.Errorf("failed to read zstd stream of %s: %w", archivePath, zErr)
		}
		defer zr.Close()
		stream = zr
	}

	tr := tar.NewReader(stream)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return fmt.Errorf("failed to read tar entry in %s: %w", archivePath, nextErr)
		}

		target, pathErr := confinedPath(destDir, hdr.Name)
		if pathErr != nil {
			return pathErr
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// Symlinks, devices and the rest are skipped: module trees are
			// plain files, and links can escape the destination.
			continue
		}

		if progress != nil {
			progress(counting.n, total)
		}
	}

	if progress != nil {
		progress(total, total)
	}
	return nil
}

func unzip(archivePath, destDir string, progress Progress) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer func() { _ = zr.Close() }()

	var total int64
	for _, zf := range zr.File {
		total += int64(zf.UncompressedSize64)
	}

	var done int64
	for _, zf := range zr.File {
		target, pathErr := confinedPath(destDir, zf.Name)
		if pathErr != nil {
			return pathErr
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		rc, openErr := zf.Open()
		if openErr != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", zf.Name, openErr)
		}
		writeErr := writeEntry(target, rc, zf.Mode().Perm())
		_ = rc.Close()
		if writeErr != nil {
			return writeErr
		}

		done += int64(zf.UncompressedSize64)
		if progress != nil {
			progress(done, total)
		}
	}

	if progress != nil {
		progress(total, total)
	}
	return nil
}

// confinedPath joins name under destDir and rejects entries that escape it.
func confinedPath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination directory", name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err := io.Copy(out, io.LimitReader(r, maxEntryBytes+1))
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", target, err)
	}
	if n > maxEntryBytes {
		return fmt.Errorf("entry %s exceeds the extraction size limit", target)
	}
	return nil
}
