// Package storage fetches uploaded recordings from object storage.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Downloader returns the raw bytes stored at path.
type Downloader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

var ErrNotFound = errors.New("object not found")

// MaxObjectSize caps how much of a recording is read into memory.
const MaxObjectSize = 512 << 20

// Filesystem serves objects from a local directory.
type Filesystem struct {
	Root string
}

func (f *Filesystem) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(path, "/"))
	if clean == "/" {
		return "", errors.Newf("invalid object path %q", path)
	}
	return filepath.Join(f.Root, clean), nil
}

func (f *Filesystem) Download(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fh.Close()
	return readLimited(fh, path)
}

func readLimited(r io.Reader, path string) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if len(b) > MaxObjectSize {
		return nil, errors.Newf("object %s exceeds %d bytes", path, MaxObjectSize)
	}
	return b, nil
}
