package snapshot

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: filepath.Join(dir, "snapshots")}

	err := s.Save("ripe", func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	})
	require.NoError(t, err)

	f, err := s.Open("ripe")
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, f)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())
}

func TestStoreSaveLeavesNoTempFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir}

	require.NoError(t, s.Save("ripe", func(w io.Writer) error {
		_, err := w.Write([]byte("x"))
		return err
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ripe.tiny", entries[0].Name())
}

func TestStoreSaveFailureLeavesOldSnapshotIntact(t *testing.T) {
	dir := t.TempDir()
	s := &Store{Dir: dir}

	require.NoError(t, s.Save("ripe", func(w io.Writer) error {
		_, err := w.Write([]byte("original"))
		return err
	}))

	err := s.Save("ripe", func(w io.Writer) error {
		return assertError
	})
	require.Error(t, err)

	f, err := s.Open("ripe")
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, f)
	assert.Equal(t, "original", buf.String())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file should have been removed")
}

func TestStoreOpenMissingReturnsError(t *testing.T) {
	s := &Store{Dir: t.TempDir()}
	_, err := s.Open("ghost")
	assert.True(t, os.IsNotExist(err))
}

var assertError = &os.PathError{Op: "encode", Path: "test", Err: os.ErrInvalid}

func TestMemoryStoreCopiesOnSaveAndLoad(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Save("ripe", func(w io.Writer) error {
		_, err := w.Write([]byte("hello"))
		return err
	}))

	r, err := m.Open("ripe")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got[0] = 'Y' // mutating the returned bytes must not affect the store
	r2, err := m.Open("ripe")
	require.NoError(t, err)
	got2, _ := io.ReadAll(r2)
	assert.Equal(t, "hello", string(got2))
}

func TestMemoryStoreOpenMissingReturnsError(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.Open("ghost")
	assert.Equal(t, ErrNotFound, err)
}
