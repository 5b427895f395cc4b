package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaReleaseDeletesEverything(t *testing.T) {
	host := NewMemHost()
	arena := NewArena(host)

	brdf, err := arena.New(TypeBRDFDiffuse, "diffuse")
	require.NoError(t, err)
	_, err = arena.New(TypeMtlSingleBRDF, "diffuseMtl")
	require.NoError(t, err)

	assert.Equal(t, 2, arena.Len())
	assert.Equal(t, 2, host.Len())
	assert.Same(t, brdf, host.FindPlugin("diffuse"))

	require.NoError(t, arena.Release())
	assert.Equal(t, 0, arena.Len())
	assert.Equal(t, 0, host.Len())
	assert.Nil(t, host.FindPlugin("diffuse"))

	// Releasing an empty arena is a no-op.
	assert.NoError(t, arena.Release())
}

func TestArenaReleaseCollectsErrors(t *testing.T) {
	host := NewMemHost()
	arena := NewArena(host)

	a, err := arena.New("TexBitmap", "a")
	require.NoError(t, err)
	_, err = arena.New("TexBitmap", "b")
	require.NoError(t, err)

	// Delete one behind the arena's back.
	require.NoError(t, host.DeletePlugin(a))

	err = arena.Release()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPluginNotFound))
	assert.Equal(t, 0, host.Len(), "remaining plugins must still be deleted")
	assert.Equal(t, 0, arena.Len())
}

func TestArenaWithoutManager(t *testing.T) {
	arena := NewArena(nil)
	_, err := arena.New(TypeGeomStaticMesh, "x")
	assert.ErrorIs(t, err, ErrNoPluginManager)
}

func TestArenaReleaseFromKeepsOlderPlugins(t *testing.T) {
	host := NewMemHost()
	arena := NewArena(host)

	first, err := arena.New(TypeBRDFDiffuse, "first")
	require.NoError(t, err)
	mark := arena.Len()
	_, err = arena.New(TypeMtlSingleBRDF, "second")
	require.NoError(t, err)
	_, err = arena.New(TypeGeomStaticMesh, "third")
	require.NoError(t, err)

	require.NoError(t, arena.ReleaseFrom(mark))
	assert.Equal(t, 1, arena.Len())
	assert.Equal(t, 1, host.Len())
	assert.Same(t, first, arena.Plugins()[0])
	assert.Nil(t, host.FindPlugin("second"))
	assert.Nil(t, host.FindPlugin("third"))

	// A mark past the end releases nothing.
	require.NoError(t, arena.ReleaseFrom(5))
	assert.Equal(t, 1, arena.Len())

	require.NoError(t, arena.ReleaseFrom(0))
	assert.Zero(t, host.Len())
}
