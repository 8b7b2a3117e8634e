// Package filestore manages the three on-disk buckets holding document
// variants. Paths are content-addressed by convention (hash-derived
// filenames), so concurrent writers for the same variant race harmlessly to
// identical bytes; writes still go through a temp file and atomic rename so a
// reader never observes a partial file.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"veristamp/pkg/platform/sentinel"
)

// Bucket names the three logical storage areas.
type Bucket string

const (
	BucketOriginal    Bucket = "original"
	BucketProcessed   Bucket = "processed"
	BucketWatermarked Bucket = "watermarked"
)

// Storage is a directory-backed implementation of the file storage contract.
type Storage struct {
	root string
}

// New creates the bucket directories under root if needed.
func New(root string) (*Storage, error) {
	for _, b := range []Bucket{BucketOriginal, BucketProcessed, BucketWatermarked} {
		if err := os.MkdirAll(filepath.Join(root, string(b)), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", b, err)
		}
	}
	return &Storage{root: root}, nil
}

// PathFor returns the full path a file would occupy in a bucket.
func (s *Storage) PathFor(bucket Bucket, filename string) string {
	return filepath.Join(s.root, string(bucket), filepath.Base(filename))
}

// Write stores data all-or-nothing and returns the final path.
func (s *Storage) Write(bucket Bucket, filename string, data []byte) (string, error) {
	final := s.PathFor(bucket, filename)

	tmp, err := os.CreateTemp(filepath.Dir(final), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish file: %w", err)
	}
	return final, nil
}

// Read returns the raw bytes at path, or sentinel.ErrNotFound when the file
// was never produced or has been lost.
func (s *Storage) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
