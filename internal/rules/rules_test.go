package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/geomcache/internal/render"
)

const ruleFile = `<?xml version="1.0"?>
<materialAssignmentRules>
  <patternRule>
    <pattern>fx_*</pattern>
    <material>matA</material>
    <displacement amount="2.5">noise</displacement>
    <subdivision>1</subdivision>
  </patternRule>
  <patternRule>
    <pattern>*</pattern>
    <material>matB</material>
  </patternRule>
</materialAssignmentRules>
`

func newScene(t *testing.T, names ...string) *render.MemHost {
	t.Helper()
	host := render.NewMemHost()
	for _, name := range names {
		_, err := host.NewPlugin("Mtl", name)
		require.NoError(t, err)
	}
	return host
}

func observe() (render.Progress, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core).Sugar(), logs
}

func TestLoad_FirstMatchWins(t *testing.T) {
	scene := newScene(t, "matA", "matB", "noise")
	progress, logs := observe()

	table, err := Load(strings.NewReader(ruleFile), scene, "", progress)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())

	require.Len(t, table.Materials, 2)
	require.Len(t, table.Displacements, 1)
	require.Len(t, table.Subdivisions, 1)
	assert.Equal(t, 4, table.Len())

	tests := []struct {
		name string
		want string
	}{
		{"fx_smoke", "matA"},
		{"bg_wall", "matB"},
		{"/root/fx_dust", "matB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mtl := table.Material(tt.name)
			require.NotNil(t, mtl)
			assert.Equal(t, tt.want, mtl.Name())
		})
	}

	assert.Nil(t, table.Material(""), "empty names never match")
}

func TestTable_Displacement(t *testing.T) {
	scene := newScene(t, "matA", "matB", "noise")
	table, err := Load(strings.NewReader(ruleFile), scene, "", nil)
	require.NoError(t, err)

	tex, amount, ok := table.Displacement("fx_smoke")
	require.True(t, ok)
	assert.Equal(t, "noise", tex.Name())
	assert.Equal(t, float32(2.5), amount)

	_, _, ok = table.Displacement("bg_wall")
	assert.False(t, ok)

	assert.True(t, table.SubdivisionEnabled("fx_smoke"))
	assert.False(t, table.SubdivisionEnabled("bg_wall"))
}

func TestTable_Empty(t *testing.T) {
	var table *Table
	assert.Nil(t, table.Material("fx_smoke"))
	_, _, ok := table.Displacement("fx_smoke")
	assert.False(t, ok)
	assert.False(t, table.SubdivisionEnabled("fx_smoke"))
	assert.Zero(t, table.Len())

	table, err := Load(strings.NewReader("<materialAssignmentRules/>"), newScene(t), "", nil)
	require.NoError(t, err)
	assert.Nil(t, table.Material("fx_smoke"))
}

func TestLoad_UnresolvedNames(t *testing.T) {
	scene := newScene(t, "matB")
	progress, logs := observe()

	table, err := Load(strings.NewReader(ruleFile), scene, "", progress)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessageSnippet(`Cannot find material "matA"`).Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet(`Cannot find displacement texture "noise"`).Len())

	// The unresolved rule still matches first; the caller falls back to
	// its default material.
	assert.Nil(t, table.Material("fx_smoke"))
	assert.Equal(t, "matB", table.Material("bg_wall").Name())

	// A matching displacement rule without a texture yields no displacement.
	tex, amount, ok := table.Displacement("fx_smoke")
	assert.False(t, ok)
	assert.Nil(t, tex)
	assert.Zero(t, amount)
}

func TestLoad_Prefix(t *testing.T) {
	scene := newScene(t, "defs.yaml_matA", "defs.yaml_matB")
	table, err := Load(strings.NewReader(ruleFile), scene, "defs.yaml_", nil)
	require.NoError(t, err)
	assert.Equal(t, "defs.yaml_matA", table.Material("fx_1").Name())
}

func TestLoad_Values(t *testing.T) {
	const doc = `<materialAssignmentRules>
  <patternRule>
    <pattern> a? </pattern>
    <pattern></pattern>
    <pattern>[x]*</pattern>
    <displacement>tex</displacement>
    <subdivision>zero</subdivision>
  </patternRule>
  <patternRule>
    <pattern>b*</pattern>
    <displacement amount="lots">tex</displacement>
    <subdivision>0</subdivision>
  </patternRule>
</materialAssignmentRules>`

	progress, logs := observe()
	table, err := Load(strings.NewReader(doc), newScene(t, "tex"), "", progress)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Invalid subdivision").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Invalid displacement amount").Len())

	_, amount, ok := table.Displacement("ab")
	require.True(t, ok, "? matches one character")
	assert.Equal(t, float32(DefaultDisplacementAmount), amount)

	_, _, ok = table.Displacement("abc")
	assert.False(t, ok)

	_, _, ok = table.Displacement("[x]yz")
	assert.True(t, ok, "brackets match literally")
	_, _, ok = table.Displacement("xyz")
	assert.False(t, ok)

	_, amount, ok = table.Displacement("box")
	require.True(t, ok)
	assert.Equal(t, float32(DefaultDisplacementAmount), amount)
	assert.False(t, table.SubdivisionEnabled("box"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("<otherRoot/>"), nil, "", nil)
	assert.Error(t, err)

	_, err = Load(strings.NewReader("<materialAssignmentRules>"), nil, "", nil)
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.xml"), nil, "", nil)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.xml")
	require.NoError(t, os.WriteFile(path, []byte(ruleFile), 0o644))

	table, err := LoadFile(path, newScene(t, "matA", "matB"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "matB", table.Material("x").Name())
}
