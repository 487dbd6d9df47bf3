package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is the narrow object-storage contract the rest of the system
// consumes. Production deployments put a CDN-backed implementation here;
// the bundled DiskStore keeps development self-contained.
type Store interface {
	Save(bucket, objectName string, data []byte) (string, error)
	Delete(bucket, objectName string) error
	URL(bucket, objectName string) string
}

// DiskStore stores objects as files under baseDir/<bucket>/<object> and
// serves them from a public base URL.
type DiskStore struct {
	baseDir       string
	publicBaseURL string
}

// NewDiskStore creates a disk-backed store rooted at baseDir.
func NewDiskStore(baseDir, publicBaseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &DiskStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// BaseDir returns the root directory objects are stored under.
func (s *DiskStore) BaseDir() string {
	return s.baseDir
}

// Save writes an object and returns its public URL.
func (s *DiskStore) Save(bucket, objectName string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, objectName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return s.URL(bucket, objectName), nil
}

// Delete removes an object. Missing objects are not an error.
func (s *DiskStore) Delete(bucket, objectName string) error {
	err := os.Remove(filepath.Join(s.baseDir, bucket, objectName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL returns the public URL of an object.
func (s *DiskStore) URL(bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, bucket, objectName)
}

// ObjectNameFromURL extracts the trailing object name from a stored URL.
// Used by cleanup to remove files belonging to deleted rows.
func ObjectNameFromURL(url string) string {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return url
	}
	return url[idx+1:]
}
