// SPDX-License-Identifier: MPL-2.0

// Package fetch implements the download primitive: fetch a URL into a local
// file, reporting progress as bytes arrive. The manager treats it as an
// opaque, blocking operation.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxArchiveBytes is the upper bound on a downloaded module archive (2 GB).
const maxArchiveBytes = 2 << 30

// ErrUnsupportedScheme is returned for URLs that are not http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Progress receives byte counts as a transfer advances. total is -1 when
// the server does not announce a length; the final call always carries
// done == total.
type Progress func(done, total int64)

// Downloader fetches URLs with retries.
type Downloader struct {
	http *retryablehttp.Client
}

// NewDownloader creates a Downloader with sane retry defaults.
func NewDownloader() *Downloader {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 10 * time.Minute
	c.Logger = nil
	return &Downloader{http: c}
}

// Download fetches rawURL into destDir, invoking progress (when non-nil) as
// bytes arrive. Returns the path of the completed file. A failed transfer
// leaves no partial file behind; there is no resume.
func (d *Downloader) Download(ctx context.Context, rawURL, destDir string, progress Progress) (_ string, err error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request for %s: %w", rawURL, err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", rawURL, resp.Status)
	}

	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = "module-archive"
	}
	destPath := filepath.Join(destDir, name)

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			// Best-effort removal of the partial file.
			_ = os.Remove(destPath)
		}
	}()

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 64<<10)
	body := io.LimitReader(resp.Body, maxArchiveBytes)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return "", fmt.Errorf("writing %s: %w", destPath, writeErr)
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("downloading %s: %w", rawURL, readErr)
		}
	}

	// Final report pins done == total even for length-less responses.
	if progress != nil {
		progress(done, done)
	}

	return destPath, nil
}
