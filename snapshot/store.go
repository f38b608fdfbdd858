package snapshot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// Backend is the interface Supervisor depends on, so a test can
// substitute MemoryStore for a real filesystem-backed Store.
type Backend interface {
	Save(dbName string, encode func(io.Writer) error) error
	Open(dbName string) (io.ReadCloser, error)
}

// DefaultDirName is the snapshot directory created under $HOME when no
// --snapshot-dir is given.
const DefaultDirName = ".tinyirrdbcache"

// Store persists one file per registry. Writes are atomic from a
// reader's perspective: Save writes to a sibling temporary file and
// renames it into place, so a reader opening the destination path
// never observes a partially written snapshot.
type Store struct {
	Dir string
}

// NewStore creates a Store rooted at dir. If dir is empty, it resolves
// to $HOME/.tinyirrdbcache.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("snapshot: can't determine home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) initDir() error {
	info, err := os.Stat(s.Dir)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return errors.New("snapshot: store dir is not a directory: " + s.Dir)
	}
	if os.IsNotExist(err) {
		return os.MkdirAll(s.Dir, 0775)
	}
	return err
}

// Path returns the snapshot file path for a registry's short name.
func (s *Store) Path(dbName string) string {
	return filepath.Join(s.Dir, dbName+".tiny")
}

// Save atomically replaces the registry's snapshot file contents with
// the result of calling encode, by writing to a temp file in the same
// directory (so the rename is on the same filesystem) and renaming
// into place.
func (s *Store) Save(dbName string, encode func(io.Writer) error) error {
	if err := s.initDir(); err != nil {
		return err
	}

	final := s.Path(dbName)
	tmp, err := os.CreateTemp(s.Dir, dbName+".tiny.tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, final)
}

// Open opens a registry's snapshot file for reading. Callers should
// treat any error (including os.IsNotExist) as "no snapshot" and fall
// back to bootstrap.
func (s *Store) Open(dbName string) (io.ReadCloser, error) {
	return os.Open(s.Path(dbName))
}
