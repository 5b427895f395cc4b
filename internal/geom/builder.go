package geom

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/internal/meshfile"
	"github.com/Faultbox/geomcache/internal/render"
)

// Builder errors.
var (
	ErrMissingGeometry = errors.New("voxel has no vertex or face data")
	ErrFaceIndex       = errors.New("face index out of range")
)

// Sampling is the time window a frame is sampled over.
type Sampling struct {
	N          int
	Start, End float64
	Frame      float64
}

// NewSampling derives the sampling for frame from motion blur parameters.
// A zero-length shutter collapses to a single sample at the frame.
func NewSampling(p meshfile.Params, frame float64) Sampling {
	n := p.Samples()
	start, end := p.Window(frame)
	if end <= start {
		n = 1
	}
	return Sampling{N: n, Start: start, End: end, Frame: frame}
}

// Time returns the time of sample i.
func (s Sampling) Time(i int) float64 {
	return meshfile.SampleTime(i, s.N, s.Start, s.End, s.Frame)
}

// Params returns decoder parameters producing the same time indices.
func (s Sampling) Params(p meshfile.Params) meshfile.Params {
	p.TimeIndices = s.N
	p.MotionBlurOn = p.MotionBlurOn && s.N > 1
	return p
}

// SetNames holds the UV and color set names read from the preview voxel.
type SetNames struct {
	UV    []string
	Color []string
}

// Name returns the name of the k-th set of an object: UV names first, then
// color names, by position. Unknown positions are unnamed.
func (n SetNames) Name(k int) string {
	if k < len(n.UV) {
		return n.UV[k]
	}
	k -= len(n.UV)
	if k < len(n.Color) {
		return n.Color[k]
	}
	return ""
}

// Builder turns voxels of one file into mesh sources for a frame. Mesh
// plugins are created in the frame arena.
type Builder struct {
	file     meshfile.MeshFile
	strings  render.StringTable
	arena    *render.Arena
	setNames SetNames
	sampling Sampling
	// velocities are only read with motion blur on.
	velocities bool
	built      int
	instances  int
	log        *zap.Logger
}

// NewBuilder returns a builder for one frame.
func NewBuilder(file meshfile.MeshFile, st render.StringTable, arena *render.Arena, sampling Sampling, motionBlur bool) *Builder {
	return &Builder{
		file:       file,
		strings:    st,
		arena:      arena,
		sampling:   sampling,
		velocities: motionBlur,
		log:        logger.Named("geom"),
	}
}

// SetSetNames sets the names used for UV and color sets.
func (b *Builder) SetSetNames(names SetNames) { b.setNames = names }

// Built returns the number of sources built so far.
func (b *Builder) Built() int { return b.built }

// Build decodes voxel index across the frame's samples. All tracks are
// filled before the mesh plugin is created, so a failed build leaves
// nothing behind. The instance is nil unless createInstance is set.
func (b *Builder) Build(index int, createInstance bool) (*MeshSource, *MeshInstance, error) {
	guard := voxelGuard{file: b.file}
	defer guard.release()

	n := b.sampling.N
	src := newMeshSource(n)
	inst := &MeshInstance{Source: src}
	inst.Transforms.Reserve(n)

	var nameID render.StringID
	for i := 0; i < n; i++ {
		v, err := guard.load(index, i)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			nameID = v.NameID
		}
		t := b.sampling.Time(i)
		if err := b.addSample(src, v, t); err != nil {
			return nil, nil, fmt.Errorf("voxel %d sample %d: %w", index, i, err)
		}
		inst.Transforms.Add(t, v.Transform)
	}

	name := ""
	if nameID != 0 && b.strings != nil {
		name, _ = b.strings.Lookup(nameID)
	}
	pluginName := fmt.Sprintf("voxel_%d", b.built)
	if name != "" {
		pluginName = "voxel_" + name
	}

	plugin, err := b.arena.New(render.TypeGeomStaticMesh, pluginName)
	if err != nil {
		return nil, nil, err
	}
	src.Plugin = plugin
	for _, p := range src.params() {
		plugin.SetParameter(p)
	}
	b.built++

	b.log.Debug("built mesh source",
		zap.String("plugin", pluginName),
		zap.Int("samples", n),
		zap.Int("vertices", len(src.Vertices.VectorList(b.sampling.Frame))))

	if !createInstance {
		return src, nil, nil
	}
	inst.Name = name
	inst.Index = b.instances
	b.instances++
	return src, inst, nil
}

// addSample appends one keyframe to every track the voxel has data for.
func (b *Builder) addSample(src *MeshSource, v *meshfile.Voxel, t float64) error {
	verts := v.Channel(meshfile.ChannelVertices)
	faces := v.Channel(meshfile.ChannelFaces)
	if verts == nil || faces == nil || len(verts.Vectors) == 0 || len(faces.Ints) == 0 {
		return ErrMissingGeometry
	}
	if err := checkFaces(faces, len(verts.Vectors)); err != nil {
		return err
	}

	normals := v.Channel(meshfile.ChannelNormals)
	normalFaces := v.Channel(meshfile.ChannelNormalFaces)
	hasNormals := normals != nil && normalFaces != nil
	if hasNormals {
		if err := checkFaces(normalFaces, len(normals.Vectors)); err != nil {
			return err
		}
	}

	var sets []render.MapChannel
	var names []string
	for i := range v.Channels {
		ch := &v.Channels[i]
		if !ch.ID.IsSet() {
			continue
		}
		topo := v.Channel(ch.DepID)
		if topo == nil {
			continue
		}
		if err := checkFaces(topo, len(ch.Vectors)); err != nil {
			return err
		}
		names = append(names, b.setNames.Name(len(sets)))
		sets = append(sets, render.MapChannel{
			Index:    int(ch.ID - meshfile.ChannelSetBase),
			Vertices: ch.Vectors,
			Faces:    topo.Ints,
		})
	}

	// Every channel is checked before any track is touched.
	src.Vertices.Add(t, verts.Vectors)
	src.Faces.Add(t, faces.Ints)
	if hasNormals {
		src.Normals.Add(t, normals.Vectors)
		src.FaceNormals.Add(t, normalFaces.Ints)
	}
	if b.velocities {
		if vel := v.Channel(meshfile.ChannelVelocities); vel != nil && len(vel.Vectors) == len(verts.Vectors) {
			src.Velocities.Add(t, vel.Vectors)
		}
	}
	if mtl := v.Channel(meshfile.ChannelFaceMaterials); mtl != nil && len(mtl.Ints) > 0 {
		src.FaceMtlIDs.Add(t, mtl.Ints)
	}

	if len(sets) > 0 {
		src.MapChannels.Add(t, sets)
		src.MapChannelNames.Add(t, names)
	}
	return nil
}

// checkFaces verifies that faces index into n vertices.
func checkFaces(faces *meshfile.Channel, n int) error {
	for i, idx := range faces.Ints {
		if idx < 0 || int(idx) >= n {
			return fmt.Errorf("%w: channel %d face %d uses vertex %d of %d", ErrFaceIndex, faces.ID, i/3, idx, n)
		}
	}
	return nil
}

// voxelGuard owns the voxel handle currently being read and releases it
// when the next one is loaded or the guard is released.
type voxelGuard struct {
	file meshfile.MeshFile
	cur  *meshfile.Voxel
}

func (g *voxelGuard) load(index, timeIndex int) (*meshfile.Voxel, error) {
	g.release()
	v, err := g.file.Voxel(index, timeIndex)
	if err != nil {
		return nil, err
	}
	g.cur = v
	return v, nil
}

func (g *voxelGuard) release() {
	if g.cur != nil {
		g.file.ReleaseVoxel(g.cur)
		g.cur = nil
	}
}
