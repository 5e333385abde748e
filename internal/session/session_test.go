package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Save("first"))
	require.NoError(t, s.Save("second"))

	tok, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", tok)

	require.NoError(t, s.Clear())
	_, ok, err = s.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Clear())
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	s, err := NewSQLite(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("tok"))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	tok, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", tok)
}
