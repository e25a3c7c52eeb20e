package images

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/2beens/engblog/pkg"
)

// PublicPathPrefix is where the disk backend serves its files.
const PublicPathPrefix = "/uploads/"

type DiskBackend struct {
	rootPath      string
	publicBaseURL string
}

// NewDiskBackend stores images flat in rootPath, which is created if missing.
// An empty publicBaseURL yields root-relative URLs.
func NewDiskBackend(rootPath, publicBaseURL string) (*DiskBackend, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("create images root dir: %w", err)
	}
	if _, err := pkg.PathExists(rootPath, true); err != nil {
		return nil, err
	}
	return &DiskBackend{
		rootPath:      rootPath,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (d *DiskBackend) URL(filename string) string {
	return joinURL(d.publicBaseURL+PublicPathPrefix, filename)
}

// Put writes to a temp file first, so a listing never sees a half written image.
func (d *DiskBackend) Put(_ context.Context, filename, _ string, data []byte) error {
	if err := checkFilename(filename); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.rootPath, ".upload-*")
	if err != nil {
		return err
	}
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(d.rootPath, filename))
}

func (d *DiskBackend) List(_ context.Context) ([]Image, error) {
	entries, err := os.ReadDir(d.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read images dir: %w", err)
	}

	images := make([]Image, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || checkFilename(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed in the meantime
			continue
		}
		images = append(images, Image{
			Filename:  entry.Name(),
			URL:       d.URL(entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	return images, nil
}

func (d *DiskBackend) Delete(_ context.Context, filename string) error {
	if err := checkFilename(filename); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.rootPath, filename)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrImageNotFound
		}
		return err
	}
	return nil
}

// Path resolves a stored image to its file on disk.
func (d *DiskBackend) Path(filename string) (string, error) {
	if err := checkFilename(filename); err != nil {
		return "", err
	}
	path := filepath.Join(d.rootPath, filename)
	exists, err := pkg.PathExists(path, false)
	if err != nil || !exists {
		return "", ErrImageNotFound
	}
	return path, nil
}
