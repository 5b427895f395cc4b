package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/geomcache/internal/config"
	"github.com/Faultbox/geomcache/internal/meshfile"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/math"
)

func writeCube(t *testing.T) string {
	t.Helper()
	g := &formats.GVC{FPS: 24}
	name := g.AddString("/root/cube")

	tri := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	var samples []formats.GVCSample
	for frame := 0; frame <= 2; frame++ {
		samples = append(samples, formats.GVCSample{
			Time:      float64(frame),
			Transform: [16]float32(math.Translate(float32(frame), 0, 0)),
			Channels: []formats.GVCChannel{
				formats.NewVectorChannel(uint16(meshfile.ChannelVertices), 0, tri, true),
				formats.NewFaceChannel(uint16(meshfile.ChannelFaces), 0, []int32{0, 1, 2}, true),
			},
		})
	}
	g.Voxels = []formats.GVCVoxel{{Flags: formats.GVCFlagGeometry, NameID: name, Samples: samples}}

	path := filepath.Join(t.TempDir(), "cube.gvc")
	require.NoError(t, formats.WriteGVCFile(path, g))
	return path
}

func TestRunFrames(t *testing.T) {
	cfg := config.Default()
	cfg.Reader.File = writeCube(t)
	cfg.Render.FrameStart = 0
	cfg.Render.FrameEnd = 2
	cfg.Decoder.Workers = 0

	host := render.NewMemHost()
	var out bytes.Buffer
	require.NoError(t, runFrames(cfg, host, &out))

	text := out.String()
	assert.Contains(t, text, "frame 0: 1 meshes")
	assert.Contains(t, text, "frame 2: 1 meshes")
	assert.Contains(t, text, "mtl=diffuseMtl")
	assert.Equal(t, 0, host.Len(), "every plugin is deleted after the render")
}

func TestRunFramesMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Reader.File = filepath.Join(t.TempDir(), "missing.gvc")
	cfg.Decoder.Workers = 0

	var out bytes.Buffer
	require.NoError(t, runFrames(cfg, render.NewMemHost(), &out))
	assert.Contains(t, out.String(), "frame 0: 0 meshes")
}

func TestOpenFileExport(t *testing.T) {
	cfg := config.Default()
	cfg.Decoder.Workers = 2
	host := render.NewMemHost()

	file, err := openFile(cfg, writeCube(t), host)
	require.NoError(t, err)
	defer file.Close()

	cache, err := meshfile.ExportGVC(file, host, []float64{0, 1}, cfg.Render.FPS)
	require.NoError(t, err)
	require.Len(t, cache.Voxels, 1)
	assert.Len(t, cache.Voxels[0].Samples, 2)

	out := filepath.Join(t.TempDir(), "out.gvc")
	require.NoError(t, formats.WriteGVCFile(out, cache))
	assert.Equal(t, formats.FormatGVC, detectFormat(out))
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, formats.FormatRSM, detectFormat("data.grf#data\\model\\tree.rsm"))
	assert.Equal(t, formats.FormatUnknown, detectFormat(filepath.Join(t.TempDir(), "none.gvc")))
}

func TestFormatTimes(t *testing.T) {
	assert.Equal(t, "1.5,2,2.5", formatTimes([]float64{1.5, 2, 2.5}))
	assert.Equal(t, "", formatTimes(nil))
}
