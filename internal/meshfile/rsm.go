package meshfile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/geomcache/internal/logger"
	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/math"
)

// Set names reported by the legacy decoder's preview voxel.
const (
	RSMUVSetName    = "map1"
	RSMColorSetName = "colorSet1"
)

// RSM exposes a legacy keyframed model through the voxel contract. Voxel 0
// is a preview voxel naming the sets; every node with geometry follows as a
// geometry voxel named by its hierarchy path. Geometry is static; only the
// transform is animated.
type RSM struct {
	base
	path  string
	model *formats.RSM
	nodes []rsmNode
	log   *zap.Logger
}

// rsmNode caches the static channels of one geometry node.
type rsmNode struct {
	node     *formats.RSMNode
	path     string
	channels []Channel
}

// NewRSM returns a decoder for a model file or "archive.grf#inner" path.
func NewRSM(path string) *RSM {
	return newRSM(path, nil)
}

func newRSM(path string, l Loader) *RSM {
	return &RSM{base: newBase(l), path: path, log: logger.Named("meshfile")}
}

// Init reads the model and prepares its channels.
func (r *RSM) Init() error {
	data, err := r.loader.Read(r.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", r.path, err)
	}
	model, err := formats.ParseRSM(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", r.path, err)
	}

	r.model = model
	r.nodes = r.nodes[:0]
	for i := range model.Nodes {
		node := &model.Nodes[i]
		if len(node.Vertices) == 0 || len(node.Faces) == 0 {
			continue
		}
		r.nodes = append(r.nodes, rsmNode{
			node:     node,
			path:     model.NodePath(node),
			channels: rsmChannels(node),
		})
	}

	r.log.Debug("opened legacy model",
		zap.String("path", r.path),
		zap.Stringer("version", model.Version),
		zap.Int("geometry_nodes", len(r.nodes)),
		zap.Int32("anim_ms", model.AnimLength))
	return nil
}

// Close drops the parsed model.
func (r *RSM) Close() error {
	r.model = nil
	r.nodes = nil
	return nil
}

// NumVoxels returns the preview voxel plus one voxel per geometry node.
func (r *RSM) NumVoxels() int {
	if r.model == nil {
		return 0
	}
	return len(r.nodes) + 1
}

// VoxelFlags returns the flags of voxel i.
func (r *RSM) VoxelFlags(i int) Flags {
	switch {
	case i < 0 || i >= r.NumVoxels():
		return 0
	case i == 0:
		return FlagPreview
	default:
		return FlagGeometry
	}
}

// Voxel returns voxel i posed at the given time index.
func (r *RSM) Voxel(i, timeIndex int) (*Voxel, error) {
	if r.model == nil {
		return nil, ErrNotInitialized
	}
	if i < 0 || i >= r.NumVoxels() {
		return nil, fmt.Errorf("%w: %d", ErrVoxelIndex, i)
	}
	t, err := r.sampleTime(timeIndex)
	if err != nil {
		return nil, err
	}

	v := &Voxel{Flags: r.VoxelFlags(i), Time: t, Transform: math.Identity()}
	if i == 0 {
		v.Channels = []Channel{
			{ID: ChannelUVSetNames, Strings: []string{RSMUVSetName}},
			{ID: ChannelColorSetNames, Strings: []string{RSMColorSetName}},
		}
		r.open++
		return v, nil
	}

	n := &r.nodes[i-1]
	ms := animTime(t, r.framesPerSecond(), r.model.AnimLength)
	v.NameID = r.intern(n.path)
	v.Transform = nodeMatrix(r.model, n.node, ms)
	v.Channels = n.channels
	r.open++
	return v, nil
}

// rsmChannels converts a node mesh into voxel channels: positions, faces,
// per-face texture ids, UV set 0 and color set 1. Both sets use the
// texcoord topology.
func rsmChannels(node *formats.RSMNode) []Channel {
	verts := make([]math.Vec3, len(node.Vertices))
	for i, v := range node.Vertices {
		verts[i] = math.V3(v)
	}

	faces := make([]int32, 0, len(node.Faces)*3)
	tcFaces := make([]int32, 0, len(node.Faces)*3)
	mtls := make([]int32, len(node.Faces))
	for i, f := range node.Faces {
		for k := 0; k < 3; k++ {
			faces = append(faces, int32(f.VertexIDs[k]))
			tcFaces = append(tcFaces, int32(f.TexCoordIDs[k]))
		}
		mtls[i] = int32(f.TextureID)
		if int(f.TextureID) < len(node.TextureIDs) {
			mtls[i] = node.TextureIDs[f.TextureID]
		}
	}

	channels := []Channel{
		{ID: ChannelVertices, Vectors: verts},
		{ID: ChannelFaces, Ints: faces},
		{ID: ChannelFaceMaterials, DepID: ChannelFaces, Ints: mtls},
	}
	if len(node.TexCoords) == 0 {
		return channels
	}

	uvs := make([]math.Vec3, len(node.TexCoords))
	colors := make([]math.Vec3, len(node.TexCoords))
	for i, tc := range node.TexCoords {
		uvs[i] = math.Vec3{X: tc.U, Y: tc.V}
		colors[i] = math.Vec3{
			X: float32(tc.Color[0]) / 255,
			Y: float32(tc.Color[1]) / 255,
			Z: float32(tc.Color[2]) / 255,
		}
	}

	return append(channels,
		Channel{ID: ChannelSetBase, DepID: ChannelSetFaceBase, Vectors: uvs},
		Channel{ID: ChannelSetFaceBase, Ints: tcFaces},
		Channel{ID: ChannelSetBase + 1, DepID: ChannelSetFaceBase + 1, Vectors: colors},
		Channel{ID: ChannelSetFaceBase + 1, Ints: tcFaces},
	)
}
