// SPDX-License-Identifier: MPL-2.0

package manager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modhub/modhub/internal/fetch"
	"github.com/modhub/modhub/internal/xarchive"
	"github.com/modhub/modhub/pkg/hubmod"
)

// resolved is a module tree staged on the local filesystem, ready to be
// copied into the module home. cleanup releases any scratch space backing
// it and must be called on every exit path, success included.
type resolved struct {
	dir     string
	cleanup func()
}

// sourceResolver turns the three non-registry install sources into a local
// directory holding a manifest: FromURL downloads then delegates to
// FromArchive, FromArchive extracts then delegates to FromDirectory.
type sourceResolver struct {
	tmp        string
	downloader *fetch.Downloader
}

func newSourceResolver(tmp string) *sourceResolver {
	return &sourceResolver{tmp: tmp, downloader: fetch.NewDownloader()}
}

// FromDirectory validates that dir holds a module manifest and stages it
// as-is. The directory is never modified; the later copy into the module
// home is the only materialization.
func (r *sourceResolver) FromDirectory(dir string) (*resolved, error) {
	if _, err := hubmod.Info(dir); err != nil {
		return nil, err
	}
	return &resolved{dir: dir, cleanup: func() {}}, nil
}

// FromArchive extracts archivePath into a scratch directory and stages the
// module tree inside it. Archives may carry the manifest at the root or
// under a single top-level directory.
func (r *sourceResolver) FromArchive(archivePath string, progress xarchive.Progress) (*resolved, error) {
	extractDir, err := os.MkdirTemp(r.tmp, "extract-")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(extractDir) }

	if err := xarchive.Unarchive(archivePath, extractDir, progress); err != nil {
		cleanup()
		return nil, err
	}

	moduleDir := extractDir
	if _, err := os.Stat(filepath.Join(extractDir, hubmod.ManifestName)); err != nil {
		root, rootErr := xarchive.TopLevelEntry(extractDir)
		if rootErr != nil {
			cleanup()
			return nil, fmt.Errorf("archive %s does not contain a module: %w", archivePath, rootErr)
		}
		moduleDir = filepath.Join(extractDir, root)
	}

	if _, err := hubmod.Info(moduleDir); err != nil {
		cleanup()
		return nil, err
	}
	return &resolved{dir: moduleDir, cleanup: cleanup}, nil
}

// FromURL downloads the archive at rawURL into its own scratch directory,
// then stages it via FromArchive. Both scratch directories are released by
// the returned cleanup.
func (r *sourceResolver) FromURL(ctx context.Context, rawURL string, progress fetch.Progress) (*resolved, error) {
	downloadDir, err := os.MkdirTemp(r.tmp, "download-")
	if err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	removeDownload := func() { _ = os.RemoveAll(downloadDir) }

	archivePath, err := r.downloader.Download(ctx, rawURL, downloadDir, progress)
	if err != nil {
		removeDownload()
		return nil, err
	}

	res, err := r.FromArchive(archivePath, xarchive.Progress(progress))
	if err != nil {
		removeDownload()
		return nil, err
	}

	extractCleanup := res.cleanup
	res.cleanup = func() {
		extractCleanup()
		removeDownload()
	}
	return res, nil
}

// copyDir copies a module tree recursively. Symlinks are skipped: module
// trees are plain files, and links could point outside the tree.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}

	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			continue
		case entry.IsDir():
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}

	return nil
}

func copyFile(src, dst string) (err error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }() // read-only handle

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
