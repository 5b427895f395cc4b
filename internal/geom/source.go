// Package geom builds renderer mesh sources from decoded voxels.
//
// A MeshSource holds one animated parameter per mesh attribute, each with a
// keyframe per motion blur sample, and the GeomStaticMesh plugin they are
// attached to. A MeshInstance places a source with its own local transform
// track and the object's full name, used for material rule lookups.
package geom

import (
	"github.com/Faultbox/geomcache/internal/anim"
	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/math"
)

// GeomStaticMesh parameter names.
const (
	ParamVertices        = "vertices"
	ParamFaces           = "faces"
	ParamNormals         = "normals"
	ParamFaceNormals     = "faceNormals"
	ParamVelocities      = "velocities"
	ParamMapChannels     = "map_channels"
	ParamMapChannelNames = "map_channels_names"
	ParamFaceMtlIDs      = "face_mtlIDs"
	ParamDynamicGeometry = "dynamic_geometry"
)

// MeshSource is one decoded object and its renderer-side mesh plugin.
type MeshSource struct {
	Plugin render.Plugin

	Vertices        *anim.VectorList
	Faces           *anim.IntList
	Normals         *anim.VectorList
	FaceNormals     *anim.IntList
	Velocities      *anim.VectorList
	MapChannels     *anim.MapChannels
	MapChannelNames *anim.StringList
	FaceMtlIDs      *anim.IntList

	// DynamicGeometry lets the renderer share the mesh across instances
	// instead of replicating it. Always on.
	DynamicGeometry render.BoolParam
}

func newMeshSource(samples int) *MeshSource {
	s := &MeshSource{
		Vertices:        anim.NewVectorList(ParamVertices),
		Faces:           anim.NewIntList(ParamFaces),
		Normals:         anim.NewVectorList(ParamNormals),
		FaceNormals:     anim.NewIntList(ParamFaceNormals),
		Velocities:      anim.NewVectorList(ParamVelocities),
		MapChannels:     anim.NewMapChannels(ParamMapChannels),
		MapChannelNames: anim.NewStringList(ParamMapChannelNames),
		FaceMtlIDs:      anim.NewIntList(ParamFaceMtlIDs),
		DynamicGeometry: render.NewBool(ParamDynamicGeometry, true),
	}
	s.Vertices.Reserve(samples)
	s.Faces.Reserve(samples)
	s.Normals.Reserve(samples)
	s.FaceNormals.Reserve(samples)
	s.Velocities.Reserve(samples)
	s.MapChannels.Reserve(samples)
	s.MapChannelNames.Reserve(samples)
	s.FaceMtlIDs.Reserve(samples)
	return s
}

// Samples returns the number of keyframes of the mandatory tracks.
func (s *MeshSource) Samples() int {
	return s.Vertices.Len()
}

// Times returns the keyframe times of the source.
func (s *MeshSource) Times() []float64 {
	return s.Vertices.Times()
}

// params returns the parameters to attach: the mandatory ones and every
// optional track that received data.
func (s *MeshSource) params() []render.Param {
	out := []render.Param{s.Vertices, s.Faces}
	if s.Normals.Len() > 0 && s.FaceNormals.Len() > 0 {
		out = append(out, s.Normals, s.FaceNormals)
	}
	if s.Velocities.Len() > 0 {
		out = append(out, s.Velocities)
	}
	if s.MapChannels.Len() > 0 {
		out = append(out, s.MapChannels, s.MapChannelNames)
	}
	if s.FaceMtlIDs.Len() > 0 {
		out = append(out, s.FaceMtlIDs)
	}
	return append(out, s.DynamicGeometry)
}

// MeshInstance is a placement of a MeshSource.
type MeshInstance struct {
	Source *MeshSource
	// Name is the object's full hierarchical name, or empty when the file
	// has none. Material rules match against it.
	Name string
	// Transforms holds the object's own world matrix per source sample.
	Transforms anim.Track[math.Mat4]
	// Index is the ordinal of the instance within its frame.
	Index int
}
