package snapshot

import (
	"bytes"
	"errors"
	"io"
)

// ErrNotFound is returned by MemoryStore.Open for a dbName that was
// never Saved.
var ErrNotFound = errors.New("snapshot: not found in memory store")

// MemoryStore is an in-process stand-in for Store used by tests that
// don't want to touch the filesystem. It implements the same
// Save/Open methods as Store (the Backend interface), so a caller
// that only depends on Backend can use either interchangeably.
type MemoryStore struct {
	files map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

// Save runs encode against an in-memory buffer and stores a copy of
// the result under dbName. There is no partial-write hazard to guard
// against in memory, but the call shape matches Store.Save.
func (m *MemoryStore) Save(dbName string, encode func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	cp := make([]byte, buf.Len())
	copy(cp, buf.Bytes())
	m.files[dbName] = cp
	return nil
}

// Open returns a reader over a copy of the stored bytes, so a caller
// mutating what it reads can't corrupt the store's copy.
func (m *MemoryStore) Open(dbName string) (io.ReadCloser, error) {
	data, ok := m.files[dbName]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}
