// Package fetch downloads release artifacts and verifies their digests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Downloader retrieves release tarballs over HTTP.
type Downloader struct {
	Client  *http.Client
	Verbose bool
	Stderr  io.Writer
}

// NewDownloader creates a Downloader with a generous timeout; toolchain
// tarballs run to tens of megabytes.
func NewDownloader(verbose bool) *Downloader {
	return &Downloader{
		Client:  &http.Client{Timeout: 30 * time.Minute},
		Verbose: verbose,
		Stderr:  os.Stderr,
	}
}

// Download fetches url into destPath and checks it against digest.
//
// The body is streamed to a temporary file next to destPath and hashed on
// the way. The file only appears at destPath once the digest matches; on
// any failure nothing is left behind.
func (d *Downloader) Download(ctx context.Context, destPath, url, digest string) error {
	want, err := ParseDigest(digest)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}

	if d.Verbose {
		fmt.Fprintf(d.Stderr, "fetch: %s -> %s\n", url, destPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: create request: %w", err)
	}

	resp, err := d.client().Do(req)
	if err != nil {
		return fmt.Errorf("fetch: GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: GET %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), "."+filepath.Base(destPath)+".part-*")
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	h := want.newHash()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("fetch: read %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	if err := want.check(destPath, h.Sum(nil)); err != nil {
		return err
	}

	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}
