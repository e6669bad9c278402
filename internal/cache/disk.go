package cache

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// DiskStore keeps one file per key under dir, bounded by a byte quota
type DiskStore struct {
	dir   string
	quota int64
	mu    sync.Mutex
}

const diskSuffix = ".cache"

// NewDiskStore creates a disk store (quotaBytes 0 = unbounded)
func NewDiskStore(dir string, quotaBytes int64) *DiskStore {
	return &DiskStore{
		dir:   dir,
		quota: quotaBytes,
	}
}

// Get retrieves a value from disk
func (s *DiskStore) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set writes a value atomically (temp file + rename) or returns ErrQuotaExceeded
func (s *DiskStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}

	if s.quota > 0 {
		used, err := s.usage()
		if err != nil {
			return err
		}
		if info, err := os.Stat(s.path(key)); err == nil {
			used -= info.Size()
		}
		if used+int64(len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return eris.Wrap(err, "cache: rename")
	}
	return nil
}

// Delete removes a value; a missing file is not an error
func (s *DiskStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "cache: delete")
	}
	return nil
}

// Keys lists every stored key
func (s *DiskStore) Keys() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, diskSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, diskSuffix))
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func (s *DiskStore) usage() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, eris.Wrap(err, "cache: read dir")
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskSuffix) {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// path maps a key to a file name that survives "/" and other separators
func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+diskSuffix)
}
