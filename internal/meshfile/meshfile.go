// Package meshfile decodes cached geometry files into voxels: one object's
// channel data at one motion blur time index.
//
// Two decoders share the MeshFile contract: the GVC voxel cache and legacy
// RSM models, either on disk or inside a GRF archive ("data.grf#model.rsm").
package meshfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/geomcache/internal/render"
	"github.com/Faultbox/geomcache/pkg/formats"
	"github.com/Faultbox/geomcache/pkg/grf"
	"github.com/Faultbox/geomcache/pkg/math"
)

// Decoder errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported mesh file format")
	ErrNotInitialized    = errors.New("mesh file not initialized")
	ErrVoxelIndex        = errors.New("voxel index out of range")
	ErrTimeIndex         = errors.New("time index out of range")
)

// DefaultFramesPerSecond is used when the host reports no frame rate.
const DefaultFramesPerSecond = 24

// Flags classify a voxel.
type Flags uint32

const (
	FlagGeometry  = Flags(formats.GVCFlagGeometry)
	FlagPreview   = Flags(formats.GVCFlagPreview)
	FlagInstance  = Flags(formats.GVCFlagInstance)
	FlagHair      = Flags(formats.GVCFlagHair)
	FlagParticles = Flags(formats.GVCFlagParticles)
)

// Has reports whether all bits of f are set.
func (v Flags) Has(f Flags) bool { return v&f == f }

// String lists the set flags, e.g. "geometry|preview".
func (v Flags) String() string {
	names := []struct {
		f    Flags
		name string
	}{
		{FlagGeometry, "geometry"},
		{FlagPreview, "preview"},
		{FlagInstance, "instance"},
		{FlagHair, "hair"},
		{FlagParticles, "particles"},
	}
	var parts []string
	for _, n := range names {
		if v.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ChannelID identifies a voxel data stream.
type ChannelID uint16

const (
	ChannelVertices      ChannelID = 0
	ChannelNormals       ChannelID = 1
	ChannelNormalFaces   ChannelID = 2
	ChannelVelocities    ChannelID = 3
	ChannelFaces         ChannelID = 4
	ChannelFaceMaterials ChannelID = 5

	// UV and color set positions occupy [ChannelSetBase, ChannelSetBase+MaxSets).
	// Each set's DepID names its face channel in the ChannelSetFaceBase range.
	ChannelSetBase     ChannelID = 100
	ChannelSetFaceBase ChannelID = 200

	// Set names, carried by the preview voxel only.
	ChannelUVSetNames    ChannelID = 300
	ChannelColorSetNames ChannelID = 301
)

// MaxSets bounds the number of UV/color sets per object.
const MaxSets = 100

// IsSet reports whether id is a UV/color set position channel.
func (id ChannelID) IsSet() bool {
	return id >= ChannelSetBase && id < ChannelSetBase+MaxSets
}

// Channel is one decoded data stream. Exactly one of the slices is used,
// depending on the channel. Faces are flat index triples.
type Channel struct {
	ID      ChannelID
	DepID   ChannelID
	Vectors []math.Vec3
	Ints    []int32
	Strings []string
}

// Voxel is one object at one time index.
type Voxel struct {
	Flags Flags
	// NameID is the object's shader-set name interned into the host string
	// table, or 0 when the object has none.
	NameID    render.StringID
	Time      float64
	Transform math.Mat4
	Channels  []Channel
}

// Channel returns the channel with the given id, or nil.
func (v *Voxel) Channel(id ChannelID) *Channel {
	for i := range v.Channels {
		if v.Channels[i].ID == id {
			return &v.Channels[i]
		}
	}
	return nil
}

// Params configures time sampling for a frame.
type Params struct {
	MotionBlurOn bool
	// TimeIndices is the number of samples per frame when motion blur is on.
	TimeIndices    int
	Duration       float64
	IntervalCenter float64
}

// Samples returns the effective number of time indices.
func (p Params) Samples() int {
	if !p.MotionBlurOn || p.TimeIndices < 1 {
		return 1
	}
	return p.TimeIndices
}

// Window returns the shutter interval around frame.
func (p Params) Window(frame float64) (start, end float64) {
	if !p.MotionBlurOn {
		return frame, frame
	}
	center := frame + p.IntervalCenter
	return center - p.Duration/2, center + p.Duration/2
}

// SampleTime returns the time of sample i out of n in [start, end], or
// current when n is 1.
func SampleTime(i, n int, start, end, current float64) float64 {
	if n <= 1 {
		return current
	}
	return start + (end-start)*float64(i)/float64(n-1)
}

// Times returns the time of every index for frame.
func (p Params) Times(frame float64) []float64 {
	n := p.Samples()
	start, end := p.Window(frame)
	times := make([]float64, n)
	for i := range times {
		times[i] = SampleTime(i, n, start, end, frame)
	}
	return times
}

// MeshFile is a decoder for one geometry file. Setters configure the
// decoder before Init; SetCurrentFrame and SetParams may change between
// frames. Voxel handles returned by Voxel must be given back with
// ReleaseVoxel; channel data stays valid after release and may be
// retained by the caller.
type MeshFile interface {
	Init() error
	Close() error

	SetStringTable(st render.StringTable)
	SetThreadPool(pool render.ThreadPool)
	SetUseFullNames(full bool)
	SetFramesPerSecond(fps float32)
	SetParams(p Params)
	SetCurrentFrame(frame float64)

	NumVoxels() int
	VoxelFlags(i int) Flags
	Voxel(i, timeIndex int) (*Voxel, error)
	ReleaseVoxel(v *Voxel)
}

// Loader reads the bytes of a file or "archive.grf#inner" path.
type Loader interface {
	Read(path string) ([]byte, error)
}

// fileLoader reads straight from disk, opening archives per call.
type fileLoader struct{}

func (fileLoader) Read(path string) ([]byte, error) {
	if _, _, ok := grf.SplitPath(path); ok {
		return grf.ReadPath(path)
	}
	return os.ReadFile(path)
}

// Open returns an uninitialized decoder for path, chosen by extension.
// Archive paths of the form "archive.grf#inner/model.rsm" use the RSM
// decoder.
func Open(path string) (MeshFile, error) {
	return OpenWith(path, nil)
}

// OpenWith is Open with the file bytes read through l. A nil l reads from
// disk.
func OpenWith(path string, l Loader) (MeshFile, error) {
	if _, inner, ok := grf.SplitPath(path); ok {
		if strings.EqualFold(filepath.Ext(inner), ".rsm") {
			return newRSM(path, l), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gvc":
		return newGVC(path, l), nil
	case ".rsm":
		return newRSM(path, l), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// base holds the configuration shared by decoders.
type base struct {
	strings  render.StringTable
	pool     render.ThreadPool
	fullName bool
	fps      float32
	params   Params
	frame    float64
	times    []float64
	open     int // voxels handed out and not yet released
	loader   Loader
}

func newBase(l Loader) base {
	if l == nil {
		l = fileLoader{}
	}
	return base{pool: render.Inline{}, fullName: true, times: []float64{0}, loader: l}
}

func (b *base) SetStringTable(st render.StringTable) { b.strings = st }
func (b *base) SetUseFullNames(full bool)            { b.fullName = full }
func (b *base) SetFramesPerSecond(fps float32)       { b.fps = fps }

func (b *base) SetThreadPool(pool render.ThreadPool) {
	if pool == nil {
		pool = render.Inline{}
	}
	b.pool = pool
}

func (b *base) SetParams(p Params) {
	b.params = p
	b.times = p.Times(b.frame)
}

func (b *base) SetCurrentFrame(frame float64) {
	b.frame = frame
	b.times = b.params.Times(frame)
}

func (b *base) ReleaseVoxel(v *Voxel) {
	if v != nil && b.open > 0 {
		b.open--
	}
}

// OpenVoxels returns the number of voxel handles not yet released.
func (b *base) OpenVoxels() int { return b.open }

func (b *base) framesPerSecond() float32 {
	if b.fps <= 0 {
		return DefaultFramesPerSecond
	}
	return b.fps
}

func (b *base) sampleTime(timeIndex int) (float64, error) {
	if timeIndex < 0 || timeIndex >= len(b.times) {
		return 0, fmt.Errorf("%w: %d of %d", ErrTimeIndex, timeIndex, len(b.times))
	}
	return b.times[timeIndex], nil
}

// intern resolves a file-level name into the host string table.
func (b *base) intern(name string) render.StringID {
	if name == "" || b.strings == nil {
		return 0
	}
	if !b.fullName {
		name = shortName(name)
	}
	return b.strings.Intern(name)
}

// shortName returns the last element of a hierarchical name.
func shortName(name string) string {
	trimmed := strings.TrimRight(name, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
