package cache

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	filePerm os.FileMode = 0666
	dirPerm  os.FileMode = 0700
)

// NewFileStore returns a Store backed by a local directory holding one
// file per key. It is the fallback backend for deployments without a
// cache service.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache dir not provided")
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Wrap(err, "failed to create cache dir")
		}
	}

	return &FileStore{dir: dir}, nil
}

// FileStore persists cache entries as files in a single directory.
type FileStore struct {
	dir string
}

// Get returns the cached value for key. Any read failure other than a
// missing file is logged and reported as a miss.
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("file cache: failed to read entry %s: %s", key, err)
		}
		return "", ErrCacheMiss
	}

	return string(data), nil
}

// Set writes the value for key. The file backend holds permanent
// historical data only, so ttl is accepted for interface compatibility
// and ignored.
func (s *FileStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := os.WriteFile(s.entryPath(key), []byte(value), filePerm)
	if err != nil {
		return errors.Wrap(err, "failed to write cache entry")
	}

	return nil
}

func (s *FileStore) entryPath(key string) string {
	return path.Join(s.dir, key+".json")
}
