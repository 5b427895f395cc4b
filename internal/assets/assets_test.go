package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/geomcache/pkg/grf"
)

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.grf")
	require.NoError(t, grf.Create(path, map[string][]byte{
		"data/model/tree.rsm": []byte("tree"),
		"data/model/rock.rsm": []byte("rock"),
	}))
	return path
}

func TestStoreReadsArchiveEntries(t *testing.T) {
	archive := writeArchive(t)
	s := NewStore()
	defer s.Close()

	data, err := s.Read(archive + "#data/model/tree.rsm")
	require.NoError(t, err)
	assert.Equal(t, "tree", string(data))

	data, err = s.Read(archive + "#data/model/tree.rsm")
	require.NoError(t, err)
	assert.Equal(t, "tree", string(data))

	_, err = s.Read(archive + "#data/model/rock.rsm")
	require.NoError(t, err)

	assert.Equal(t, 1, s.Archives())
	hits, misses := s.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestStoreReadsPlainFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.rsm")
	require.NoError(t, os.WriteFile(path, []byte("plain"), 0o644))

	s := NewStore()
	data, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))
	assert.Zero(t, s.Archives())
}

func TestStoreErrors(t *testing.T) {
	s := NewStore()

	_, err := s.Read(filepath.Join(t.TempDir(), "missing.grf") + "#model.rsm")
	assert.Error(t, err)

	_, err = s.Read(writeArchive(t) + "#data/model/missing.rsm")
	assert.ErrorIs(t, err, grf.ErrNotFound)
}

func TestStoreClose(t *testing.T) {
	archive := writeArchive(t)
	s := NewStore()

	_, err := s.Read(archive + "#data/model/tree.rsm")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Zero(t, s.Archives())
	hits, misses := s.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)

	// The store reopens archives after Close.
	data, err := s.Read(archive + "#data/model/rock.rsm")
	require.NoError(t, err)
	assert.Equal(t, "rock", string(data))
}
