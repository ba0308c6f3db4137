// Package download streams resolved media URLs to the local media directory.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// Downloader writes each stream to a temp file and renames it into place once
// the byte count is confirmed.
type Downloader struct {
	opener ports.MediaOpener
	dir    string
	ext    string
	logger *slog.Logger
}

var _ ports.Acquirer = (*Downloader)(nil)

// NewDownloader creates dir when missing. An error here is fatal to startup.
func NewDownloader(opener ports.MediaOpener, dir, ext string, logger *slog.Logger) (*Downloader, error) {
	if dir == "" {
		return nil, fmt.Errorf("download directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create download directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		opener: opener,
		dir:    dir,
		ext:    ext,
		logger: logger.With("component", "download"),
	}, nil
}

// Dir returns the destination directory.
func (d *Downloader) Dir() string { return d.dir }

// Acquire streams directURL to <dir>/<sanitized title><ext>.
func (d *Downloader) Acquire(ctx context.Context, directURL, title string) (domain.Acquisition, error) {
	body, size, err := d.opener.OpenStream(ctx, ports.FetchRequest{URL: directURL})
	if err != nil {
		return domain.Acquisition{}, err
	}
	defer body.Close()

	dest := filepath.Join(d.dir, Filename(title, d.ext))
	tmp, err := os.CreateTemp(d.dir, ".partial-*")
	if err != nil {
		return domain.Acquisition{}, fmt.Errorf("%w: create temp file: %w", domain.ErrStream, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	written, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	switch {
	case copyErr != nil:
		return domain.Acquisition{}, fmt.Errorf("%w: write %s: %w", domain.ErrStream, dest, copyErr)
	case closeErr != nil:
		return domain.Acquisition{}, fmt.Errorf("%w: close %s: %w", domain.ErrStream, dest, closeErr)
	case size >= 0 && written != size:
		return domain.Acquisition{}, fmt.Errorf("%w: %s truncated: got %d of %d bytes", domain.ErrStream, dest, written, size)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return domain.Acquisition{}, fmt.Errorf("%w: rename to %s: %w", domain.ErrStream, dest, err)
	}
	committed = true

	d.logger.Info("video downloaded", "title", title, "path", dest, "bytes", written)
	return domain.Acquisition{Path: dest, Bytes: written}, nil
}
